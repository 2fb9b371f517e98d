package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintid/mintid/pkg/flake"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeAlways})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadEmpty(t *testing.T) {
	s := openStore(t)
	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(12345))
	tick, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), tick)
}

func TestSaveOnlyMovesForward(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Save(100))
	require.NoError(t, s.Save(50))
	tick, ok, err := s.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), tick)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	require.NoError(t, err)
	require.NoError(t, s.Save(777))
	require.NoError(t, s.Close())

	s2, err := Open(Options{DataDir: dir, Fsync: FsyncModeAlways})
	require.NoError(t, err)
	defer s2.Close()
	tick, ok, err := s2.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(777), tick)
}

func TestParseFsyncMode(t *testing.T) {
	for s, want := range map[string]FsyncMode{
		"":         FsyncModeAlways,
		"always":   FsyncModeAlways,
		"interval": FsyncModeInterval,
		"never":    FsyncModeNever,
	} {
		got, err := ParseFsyncMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got, "mode %q", s)
	}
	_, err := ParseFsyncMode("sometimes")
	assert.Error(t, err)
}

func TestWaitBeforeServing(t *testing.T) {
	// Clock at or past the checkpoint: serve immediately.
	wait, err := WaitBeforeServing(100, 100, time.Second)
	require.NoError(t, err)
	assert.Zero(t, wait)

	wait, err = WaitBeforeServing(100, 500, time.Second)
	require.NoError(t, err)
	assert.Zero(t, wait)

	// Within tolerance: wait out the regression.
	wait, err = WaitBeforeServing(110, 100, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*flake.TickDuration, wait)

	// Beyond tolerance: refuse.
	_, err = WaitBeforeServing(1000, 100, time.Second)
	assert.Error(t, err)
}
