package flake

import (
	"errors"
	"fmt"
	"time"
)

// Generation-time errors.
var (
	// ErrSequenceExhausted means the 512 sequence slots of the current tick
	// are used up. Transient: retry once the wall clock reaches the next
	// tick. The generator itself never sleeps or retries.
	ErrSequenceExhausted = errors.New("flake: sequence exhausted for the current tick")

	// ErrTimeLimitExceeded means elapsed time no longer fits in 39 bits.
	// Permanent for this generator; reconfigure with a fresher start time.
	ErrTimeLimitExceeded = errors.New("flake: over the 39-bit time limit")
)

// ErrNoPrivateIPv4 is returned by Finalize when no machine-id provider was
// configured and the host has no RFC1918 IPv4 address to derive one from.
var ErrNoPrivateIPv4 = errors.New("flake: no private ipv4 address found")

// StartTimeAheadError is returned by Finalize when the configured start
// time lies in the future.
type StartTimeAheadError struct {
	StartTime time.Time
}

func (e *StartTimeAheadError) Error() string {
	return fmt.Sprintf("flake: start time %s is ahead of current time", e.StartTime.Format(time.RFC3339))
}

// MachineIDError is returned by Finalize when the machine-id provider
// failed. The underlying cause is preserved and available via errors.Unwrap.
type MachineIDError struct {
	Cause error
}

func (e *MachineIDError) Error() string {
	return "flake: machine id provider failed: " + e.Cause.Error()
}

func (e *MachineIDError) Unwrap() error { return e.Cause }

// MachineIDRejectedError is returned by Finalize when the acceptance
// predicate rejected the resolved machine id.
type MachineIDRejectedError struct {
	MachineID uint16
}

func (e *MachineIDRejectedError) Error() string {
	return fmt.Sprintf("flake: machine id %d rejected by check", e.MachineID)
}
