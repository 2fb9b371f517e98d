// Package config provides loading and environment overlay for mintid
// server configuration. It exposes a Default() baseline, a Load() that
// accepts JSON or YAML by extension, and a FromEnv() overlay for
// MINTID_* variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/mintid/config.yaml")
//	config.FromEnv(&cfg)
package config
