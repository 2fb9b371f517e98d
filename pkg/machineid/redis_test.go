package machineid

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIncrementer struct {
	next    int64
	err     error
	lastKey string
}

func (f *fakeIncrementer) Incr(_ context.Context, key string) *redis.IntCmd {
	f.lastKey = key
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.next++
	return redis.NewIntResult(f.next, nil)
}

func TestRedisAllocatorFirstIDIsZero(t *testing.T) {
	fake := &fakeIncrementer{}
	a := NewRedisAllocator(fake, "test:machine-id")

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(0), id)
	assert.Equal(t, "test:machine-id", fake.lastKey)

	id, err = a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(1), id)
}

func TestRedisAllocatorWrapsAt65536(t *testing.T) {
	fake := &fakeIncrementer{next: 1 << 16}
	a := NewRedisAllocator(fake, "")

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(0), id)
}

func TestRedisAllocatorError(t *testing.T) {
	cause := errors.New("connection refused")
	a := NewRedisAllocator(&fakeIncrementer{err: cause}, "")

	_, err := a.Provider()()
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestRedisAllocatorDefaultKey(t *testing.T) {
	fake := &fakeIncrementer{}
	a := NewRedisAllocator(fake, "")
	_, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mintid:machine-id", fake.lastKey)
}
