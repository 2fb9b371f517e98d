package flake

import (
	"sync"
	"time"
)

// Bit lengths of the three ID fields. They sum to 64 and are part of the
// wire contract: changing them breaks ordering and uniqueness against IDs
// minted with the original layout.
const (
	BitLenTime      = 39
	BitLenSequence  = 9
	BitLenMachineID = 64 - BitLenTime - BitLenSequence
)

// TickDuration is the generator's time resolution. Elapsed time is counted
// in ticks of this size since the epoch.
const TickDuration = 10 * time.Millisecond

const maskSequence = uint16(1<<BitLenSequence - 1)

// defaultEpoch is used when the builder is given no start time.
var defaultEpoch = time.Date(2014, time.September, 1, 0, 0, 0, 0, time.UTC)

// generatorState is the single shared mutable resource. startTime and
// machineID are immutable after construction; elapsedTime and sequence are
// touched only under mu.
type generatorState struct {
	startTime int64
	machineID uint16

	mu          sync.Mutex
	elapsedTime int64
	sequence    uint16
}

// Generator mints IDs from state shared by every copy of the handle.
// Handles are cheap to copy and safe for concurrent use; all copies observe
// the same counters. The zero value is not usable, construct one through
// New or a Builder.
type Generator struct {
	state *generatorState
}

// toInternalTime converts an instant to ticks since the Unix epoch,
// truncating toward zero.
func toInternalTime(t time.Time) int64 {
	return t.UnixNano() / int64(TickDuration)
}

// Next mints the next ID using the supplied clock reading. The critical
// section is O(1) and performs no I/O and no clock reads; now may be
// non-monotonic or backdated, in which case the generator keeps issuing
// from the last-used tick until its sequence runs out.
//
// Next returns ErrSequenceExhausted when the current tick has no sequence
// slots left (retry after the clock advances) and ErrTimeLimitExceeded once
// the 39-bit elapsed time range is spent (permanent for this generator).
func (g Generator) Next(now time.Time) (uint64, error) {
	s := g.state
	current := toInternalTime(now) - s.startTime

	s.mu.Lock()
	defer s.mu.Unlock()

	if current > s.elapsedTime {
		s.elapsedTime = current
		s.sequence = 0
	} else {
		// Clock has not moved past the last-used tick (or went backward).
		// The wrapped-to-zero value is committed even on the failure path;
		// the next tick advance resets it regardless.
		s.sequence = (s.sequence + 1) & maskSequence
		if s.sequence == 0 {
			return 0, ErrSequenceExhausted
		}
	}

	if s.elapsedTime >= 1<<BitLenTime {
		return 0, ErrTimeLimitExceeded
	}

	return uint64(s.elapsedTime)<<(BitLenSequence+BitLenMachineID) |
		uint64(s.sequence)<<BitLenMachineID |
		uint64(s.machineID), nil
}

// NextID is Next with the wall clock. The clock read happens outside the
// lock.
func (g Generator) NextID() (uint64, error) {
	return g.Next(time.Now())
}

// MinIDForTime returns the smallest ID this generator could mint at or
// after t, using the same tick truncation as Next. Useful for range
// queries such as "all IDs issued after t".
func (g Generator) MinIDForTime(t time.Time) uint64 {
	return uint64(toInternalTime(t)-g.state.startTime) << (BitLenSequence + BitLenMachineID)
}

// Epoch returns the generator's start time, truncated to tick resolution.
func (g Generator) Epoch() time.Time {
	return time.Unix(0, g.state.startTime*int64(TickDuration)).UTC()
}

// MachineID returns the discriminator embedded in every ID this generator
// mints.
func (g Generator) MachineID() uint16 {
	return g.state.machineID
}
