package machineid

import (
	"fmt"
	"os"
	"strconv"
)

// Provider resolves a machine id. It matches the signature the flake
// builder's MachineID option expects.
type Provider func() (uint16, error)

// Static returns a provider that always yields id.
func Static(id uint16) Provider {
	return func() (uint16, error) { return id, nil }
}

// FromEnv returns a provider reading a decimal machine id from the named
// environment variable. Unset or out-of-range values are errors.
func FromEnv(key string) Provider {
	return func() (uint16, error) {
		v := os.Getenv(key)
		if v == "" {
			return 0, fmt.Errorf("machineid: %s is not set", key)
		}
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("machineid: parse %s: %w", key, err)
		}
		return uint16(n), nil
	}
}
