// Package flake implements a Sonyflake-style distributed unique ID
// generator producing 64-bit, roughly time-ordered integers.
//
// # Format
//
// An ID packs three fields, most significant first:
//
//	39 bits  elapsed time, in 10ms ticks since the configured epoch
//	 9 bits  sequence number within a tick (0..511)
//	16 bits  machine id (0..65535)
//
// The 39-bit time field gives about 174 years from the epoch; the default
// epoch is 2014-09-01 00:00:00 UTC. IDs minted by one generator are unique
// and monotonically non-decreasing in completion order. Uniqueness across
// generators requires a shared epoch and disjoint machine ids; assigning
// those is the deployment's job (see pkg/machineid for helpers).
//
// # Usage
//
//	gen, err := flake.New()
//	id, err := gen.NextID()
//	parts := flake.Decompose(id)
//
// When the 512 sequence slots of the current tick are used up, Next returns
// ErrSequenceExhausted. The generator never sleeps; callers retry after a
// short wait:
//
//	for {
//		id, err := gen.NextID()
//		if errors.Is(err, flake.ErrSequenceExhausted) {
//			time.Sleep(flake.TickDuration)
//			continue
//		}
//		return id, err
//	}
package flake
