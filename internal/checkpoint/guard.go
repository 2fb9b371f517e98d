package checkpoint

import (
	"fmt"
	"time"

	"github.com/mintid/mintid/pkg/flake"
)

// WaitBeforeServing compares the persisted high-water tick against the
// tick the wall clock currently maps to. If the clock regressed past the
// checkpoint but within tolerance, it returns how long to wait before
// minting; beyond tolerance it returns an error and the node must not
// serve, since it could reissue (tick, sequence) pairs from its previous
// life.
func WaitBeforeServing(persisted, current uint64, tolerance time.Duration) (time.Duration, error) {
	if current >= persisted {
		return 0, nil
	}
	behind := time.Duration(persisted-current) * flake.TickDuration
	if behind > tolerance {
		return 0, fmt.Errorf("checkpoint: clock is %s behind the persisted high-water tick (tolerance %s)", behind, tolerance)
	}
	return behind, nil
}
