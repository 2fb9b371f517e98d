package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration loaded from file/env.
type Config struct {
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`
	DataDir  string `json:"dataDir" yaml:"dataDir"`
	LogLevel string `json:"logLevel" yaml:"logLevel"`

	// StartTime is the generator epoch as RFC3339; empty means the
	// library default (2014-09-01T00:00:00Z).
	StartTime string `json:"startTime" yaml:"startTime"`

	// CheckMachineID is an optional CEL expression over `machine_id`
	// gating the resolved id, e.g. "machine_id >= 1024 && machine_id < 2048".
	CheckMachineID string `json:"checkMachineId" yaml:"checkMachineId"`

	BatchMax   int              `json:"batchMax" yaml:"batchMax"`
	MachineID  MachineIDConfig  `json:"machineId" yaml:"machineId"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
}

// MachineIDConfig selects how the machine discriminator is resolved.
type MachineIDConfig struct {
	// Source is one of: hostip (default), static, env, redis, etcd.
	Source string      `json:"source" yaml:"source"`
	Static uint16      `json:"static" yaml:"static"`
	EnvKey string      `json:"envKey" yaml:"envKey"`
	Redis  RedisConfig `json:"redis" yaml:"redis"`
	Etcd   EtcdConfig  `json:"etcd" yaml:"etcd"`
}

// RedisConfig connects the redis-counter allocator.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Key      string `json:"key" yaml:"key"`
}

// EtcdConfig connects the etcd slot allocator.
type EtcdConfig struct {
	Endpoints     []string `json:"endpoints" yaml:"endpoints"`
	DialTimeoutMs int      `json:"dialTimeoutMs" yaml:"dialTimeoutMs"`
	Username      string   `json:"username" yaml:"username"`
	Password      string   `json:"password" yaml:"password"`
	Prefix        string   `json:"prefix" yaml:"prefix"`
}

// CheckpointConfig controls the persisted high-water tick guard.
type CheckpointConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	IntervalMs  int    `json:"intervalMs" yaml:"intervalMs"`
	ToleranceMs int    `json:"toleranceMs" yaml:"toleranceMs"`
	Fsync       string `json:"fsync" yaml:"fsync"` // always|interval|never
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		BatchMax: 1000,
		MachineID: MachineIDConfig{
			Source: "hostip",
		},
		Checkpoint: CheckpointConfig{
			Enabled:     true,
			IntervalMs:  1000,
			ToleranceMs: 5000,
			Fsync:       "always",
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If
// path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
