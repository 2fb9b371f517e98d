package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays MINTID_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("MINTID_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MINTID_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MINTID_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MINTID_START_TIME"); v != "" {
		cfg.StartTime = v
	}
	if v := os.Getenv("MINTID_CHECK_MACHINE_ID"); v != "" {
		cfg.CheckMachineID = v
	}
	if v := os.Getenv("MINTID_BATCH_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchMax = n
		}
	}
	if v := os.Getenv("MINTID_MACHINE_ID_SOURCE"); v != "" {
		cfg.MachineID.Source = v
	}
	if v := os.Getenv("MINTID_MACHINE_ID_STATIC"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			cfg.MachineID.Static = uint16(n)
		}
	}
	if v := os.Getenv("MINTID_MACHINE_ID_ENV_KEY"); v != "" {
		cfg.MachineID.EnvKey = v
	}
	if v := os.Getenv("MINTID_REDIS_ADDR"); v != "" {
		cfg.MachineID.Redis.Addr = v
	}
	if v := os.Getenv("MINTID_REDIS_KEY"); v != "" {
		cfg.MachineID.Redis.Key = v
	}
	if v := os.Getenv("MINTID_ETCD_ENDPOINTS"); v != "" {
		parts := strings.Split(v, ",")
		cfg.MachineID.Etcd.Endpoints = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.MachineID.Etcd.Endpoints = append(cfg.MachineID.Etcd.Endpoints, p)
			}
		}
	}
	if v := os.Getenv("MINTID_ETCD_PREFIX"); v != "" {
		cfg.MachineID.Etcd.Prefix = v
	}
	if v := os.Getenv("MINTID_CHECKPOINT_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Checkpoint.Enabled = b
		}
	}
	if v := os.Getenv("MINTID_CHECKPOINT_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Checkpoint.IntervalMs = n
		}
	}
	if v := os.Getenv("MINTID_CHECKPOINT_TOLERANCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Checkpoint.ToleranceMs = n
		}
	}
	if v := os.Getenv("MINTID_CHECKPOINT_FSYNC"); v != "" {
		cfg.Checkpoint.Fsync = v
	}
}
