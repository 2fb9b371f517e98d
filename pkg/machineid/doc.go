// Package machineid supplies providers for the 16-bit machine
// discriminator a flake generator embeds in every ID.
//
// Uniqueness across generators depends entirely on machine ids not
// overlapping within one epoch. The helpers here cover the usual
// assignment strategies: a fixed value from config, an environment
// variable, a shared Redis counter, or a lease-backed etcd slot claim
// that frees itself when the process dies.
//
// Every helper ends in a Provider, the zero-argument fallible function
// the flake builder consumes:
//
//	alloc := machineid.NewEtcdAllocator(client, "/mintid/machine-id")
//	defer alloc.Close(ctx)
//	gen, err := flake.NewBuilder().MachineID(alloc.Provider()).Finalize()
package machineid
