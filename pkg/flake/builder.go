package flake

import (
	"time"
)

// Builder assembles and validates generator configuration. All setters are
// optional; Finalize applies defaults and fails closed on anything
// inconsistent.
type Builder struct {
	startTime      time.Time
	machineID      func() (uint16, error)
	checkMachineID func(uint16) bool
}

// NewBuilder returns a builder with no options set.
func NewBuilder() *Builder {
	return &Builder{}
}

// StartTime sets the epoch elapsed time is counted from. Finalize fails if
// it is ahead of the current wall clock. Default: 2014-09-01 00:00:00 UTC.
func (b *Builder) StartTime(t time.Time) *Builder {
	b.startTime = t
	return b
}

// MachineID sets the provider for the 16-bit machine discriminator.
// Finalize fails if the provider returns an error. Default: the low 16
// bits of the host's first private IPv4 address.
func (b *Builder) MachineID(fn func() (uint16, error)) *Builder {
	b.machineID = fn
	return b
}

// CheckMachineID sets an acceptance predicate applied to the resolved
// machine id. Finalize fails if it returns false. Default: accept.
func (b *Builder) CheckMachineID(fn func(uint16) bool) *Builder {
	b.checkMachineID = fn
	return b
}

// Finalize validates the configuration and returns a ready generator.
func (b *Builder) Finalize() (Generator, error) {
	var startTime int64
	if !b.startTime.IsZero() {
		if b.startTime.After(time.Now()) {
			return Generator{}, &StartTimeAheadError{StartTime: b.startTime}
		}
		startTime = toInternalTime(b.startTime)
	} else {
		startTime = toInternalTime(defaultEpoch)
	}

	var machineID uint16
	if b.machineID != nil {
		id, err := b.machineID()
		if err != nil {
			return Generator{}, &MachineIDError{Cause: err}
		}
		machineID = id
	} else {
		id, err := lower16BitPrivateIP()
		if err != nil {
			return Generator{}, err
		}
		machineID = id
	}

	if b.checkMachineID != nil && !b.checkMachineID(machineID) {
		return Generator{}, &MachineIDRejectedError{MachineID: machineID}
	}

	return Generator{state: &generatorState{
		startTime: startTime,
		machineID: machineID,
		// Starting the sequence at the midpoint instead of 0 halves the
		// chance of colliding with a prior incarnation that died early in
		// the same tick.
		sequence:    1 << (BitLenSequence - 1),
		elapsedTime: 0,
	}}, nil
}

// New returns a generator with the default configuration.
func New() (Generator, error) {
	return NewBuilder().Finalize()
}
