package checkpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode defines durability behavior for checkpoint writes.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways requests a WAL fsync on each checkpoint write.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs for writes within
	// the configured interval.
	FsyncModeInterval
	// FsyncModeNever avoids forcing WAL syncs from the application. A
	// crash may lose the last few checkpoints, which widens the restart
	// guard window by the flush interval at worst.
	FsyncModeNever
)

// ParseFsyncMode maps the config strings always|interval|never.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeUnspecified, fmt.Errorf("checkpoint: invalid fsync mode %q", s)
	}
}

// Options configures the checkpoint store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
}

// highWaterKey holds the single record: the highest elapsed tick observed
// in IDs issued by this node, big-endian uint64.
var highWaterKey = []byte("mintid/highwater")

// Store persists the high-water elapsed tick across restarts. It exists so
// a restarted node whose clock regressed past its last issued tick can
// refuse to mint IDs that would collide with its previous life. Writes
// happen off the mint path, on a periodic flush.
type Store struct {
	inner     *pebble.DB
	writeSync bool
}

// Open creates or opens the checkpoint database.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, errors.New("checkpoint: Options.DataDir is required")
	}

	po := &pebble.Options{}
	switch opts.Fsync {
	case FsyncModeAlways:
		// WriteOptions{Sync:true} on each write; no WALMinSyncInterval.
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		interval := opts.FsyncInterval
		po.WALMinSyncInterval = func() time.Duration { return interval }
	case FsyncModeNever:
		// Neither WALMinSyncInterval nor Sync on writes.
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	return &Store{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
	}, nil
}

// Load returns the persisted high-water tick. ok is false when no
// checkpoint has ever been written.
func (s *Store) Load() (tick uint64, ok bool, err error) {
	val, closer, err := s.inner.Get(highWaterKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, false, fmt.Errorf("checkpoint: corrupt high-water record (%d bytes)", len(val))
	}
	return binary.BigEndian.Uint64(val), true, nil
}

// Save persists tick if it is ahead of the stored value. Checkpoints only
// move forward; a regressed caller cannot shrink the guard window.
func (s *Store) Save(tick uint64) error {
	if cur, ok, err := s.Load(); err != nil {
		return err
	} else if ok && cur >= tick {
		return nil
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], tick)
	wo := pebble.NoSync
	if s.writeSync {
		wo = pebble.Sync
	}
	return s.inner.Set(highWaterKey, buf[:], wo)
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
