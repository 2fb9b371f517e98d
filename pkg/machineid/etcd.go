package machineid

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrSlotsExhausted means all 65536 machine-id slots under the prefix are
// currently claimed.
var ErrSlotsExhausted = errors.New("machineid: all etcd machine-id slots are claimed")

// EtcdAllocator claims the lowest free machine-id slot under a key prefix.
// The claim is bound to a lease kept alive for the allocator's lifetime, so
// a crashed process frees its slot after the TTL instead of leaking it.
type EtcdAllocator struct {
	client  *clientv3.Client
	prefix  string
	ttl     int64
	timeout time.Duration

	leaseID   clientv3.LeaseID
	id        uint16
	claimed   bool
	stopRenew context.CancelFunc
}

// NewEtcdAllocator builds an allocator over an already-connected client.
// The caller owns the client's lifecycle; the allocator owns its lease.
func NewEtcdAllocator(client *clientv3.Client, prefix string) *EtcdAllocator {
	if prefix == "" {
		prefix = "/mintid/machine-id"
	}
	return &EtcdAllocator{
		client:  client,
		prefix:  prefix,
		ttl:     30,
		timeout: 5 * time.Second,
	}
}

// Allocate claims a slot and starts keep-alive on its lease. Calling it
// again returns the already-claimed id.
func (a *EtcdAllocator) Allocate(ctx context.Context) (uint16, error) {
	if a.claimed {
		return a.id, nil
	}

	lease, err := a.client.Grant(ctx, a.ttl)
	if err != nil {
		return 0, fmt.Errorf("machineid: etcd lease grant: %w", err)
	}

	for slot := 0; slot < 1<<16; slot++ {
		key := fmt.Sprintf("%s/%05d", a.prefix, slot)
		resp, err := a.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, "", clientv3.WithLease(lease.ID))).
			Commit()
		if err != nil {
			return 0, fmt.Errorf("machineid: etcd claim %s: %w", key, err)
		}
		if !resp.Succeeded {
			continue
		}

		renewCtx, cancel := context.WithCancel(context.Background())
		ch, err := a.client.KeepAlive(renewCtx, lease.ID)
		if err != nil {
			cancel()
			return 0, fmt.Errorf("machineid: etcd keepalive: %w", err)
		}
		go func() {
			for range ch {
			}
		}()

		a.leaseID = lease.ID
		a.id = uint16(slot)
		a.claimed = true
		a.stopRenew = cancel
		return a.id, nil
	}

	_, _ = a.client.Revoke(ctx, lease.ID)
	return 0, ErrSlotsExhausted
}

// Provider adapts Allocate for the flake builder, bounding the call with
// the allocator's timeout.
func (a *EtcdAllocator) Provider() Provider {
	return func() (uint16, error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		return a.Allocate(ctx)
	}
}

// Close releases the claimed slot by revoking its lease.
func (a *EtcdAllocator) Close(ctx context.Context) error {
	if !a.claimed {
		return nil
	}
	a.stopRenew()
	_, err := a.client.Revoke(ctx, a.leaseID)
	a.claimed = false
	if err != nil {
		return fmt.Errorf("machineid: etcd lease revoke: %w", err)
	}
	return nil
}
