// Package logging builds the process-wide zap logger from the configured
// level string.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a production zap logger at the given level. An empty level
// means info.
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
