package flake

import "time"

const (
	decomposeMaskSequence = uint64(1<<BitLenSequence-1) << BitLenMachineID
	maskMachineID         = uint64(1<<BitLenMachineID - 1)
)

// DecomposedID is an ID broken into its three fields. It carries no state;
// re-encoding the fields yields ID again for any input.
type DecomposedID struct {
	ID        uint64
	Time      uint64
	Sequence  uint64
	MachineID uint64
}

// Decompose splits an ID into its fields. It is total: every 64-bit value
// decomposes without error.
func Decompose(id uint64) DecomposedID {
	return DecomposedID{
		ID:        id,
		Time:      id >> (BitLenSequence + BitLenMachineID),
		Sequence:  (id & decomposeMaskSequence) >> BitLenMachineID,
		MachineID: id & maskMachineID,
	}
}

// NanosTime returns the time field as a nanosecond offset from the epoch.
// The epoch itself is not added back; see Timestamp.
func (d DecomposedID) NanosTime() int64 {
	return int64(d.Time) * int64(TickDuration)
}

// Timestamp returns the absolute instant the ID was minted at, given the
// epoch of the generator that minted it. Resolution is one tick.
func (d DecomposedID) Timestamp(epoch time.Time) time.Time {
	return epoch.Add(time.Duration(d.NanosTime()))
}
