package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/mintid/mintid/internal/checkpoint"
	cfgpkg "github.com/mintid/mintid/internal/config"
	"github.com/mintid/mintid/internal/logging"
	"github.com/mintid/mintid/internal/policy"
	httpserver "github.com/mintid/mintid/internal/server/http"
	"github.com/mintid/mintid/pkg/flake"
	"github.com/mintid/mintid/pkg/machineid"
)

// Options carries the resolved configuration into Run.
type Options struct {
	Config cfgpkg.Config
}

// Run assembles the generator from config and serves HTTP until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so Run behaves
	// the same under callers that don't pass a signal-aware context.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := opts.Config

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	gen, cleanup, err := buildGenerator(cfg)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return err
	}
	logger.Info("generator ready",
		zap.Uint16("machine_id", gen.MachineID()),
		zap.Time("epoch", gen.Epoch()),
	)

	var store *checkpoint.Store
	if cfg.Checkpoint.Enabled {
		store, err = openCheckpoint(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := guardClock(sctx, store, gen, cfg, logger); err != nil {
			return err
		}
	}

	srv := httpserver.New(gen, logger, httpserver.Options{BatchMax: cfg.BatchMax})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	if store != nil {
		interval := time.Duration(cfg.Checkpoint.IntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = time.Second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			flushLoop(sctx, store, srv, interval, logger)
		}()
	}

	logger.Info("mintid server started", zap.String("http", cfg.HTTPAddr))
	<-sctx.Done()
	wg.Wait()

	if store != nil {
		if tick := srv.LastTick(); tick > 0 {
			if err := store.Save(tick); err != nil {
				logger.Warn("final checkpoint save failed", zap.Error(err))
			}
		}
	}
	return nil
}

// buildGenerator resolves the machine-id provider and acceptance policy
// from config and finalizes the generator. cleanup releases any allocator
// resources (redis connection, etcd lease) and may be non-nil even on
// error.
func buildGenerator(cfg cfgpkg.Config) (flake.Generator, func(), error) {
	check, err := policy.Compile(cfg.CheckMachineID)
	if err != nil {
		return flake.Generator{}, nil, err
	}

	provider, cleanup, err := buildProvider(cfg.MachineID)
	if err != nil {
		return flake.Generator{}, cleanup, err
	}

	b := flake.NewBuilder()
	if cfg.StartTime != "" {
		start, err := time.Parse(time.RFC3339, cfg.StartTime)
		if err != nil {
			return flake.Generator{}, cleanup, fmt.Errorf("run: parse startTime: %w", err)
		}
		b.StartTime(start)
	}
	if provider != nil {
		b.MachineID(provider)
	}
	if cfg.CheckMachineID != "" {
		b.CheckMachineID(check.Func())
	}

	gen, err := b.Finalize()
	return gen, cleanup, err
}

func buildProvider(cfg cfgpkg.MachineIDConfig) (machineid.Provider, func(), error) {
	switch cfg.Source {
	case "", "hostip":
		// nil provider leaves the builder on its host-IP default.
		return nil, nil, nil
	case "static":
		return machineid.Static(cfg.Static), nil, nil
	case "env":
		key := cfg.EnvKey
		if key == "" {
			key = "MINTID_MACHINE_ID"
		}
		return machineid.FromEnv(key), nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
		})
		alloc := machineid.NewRedisAllocator(client, cfg.Redis.Key)
		return alloc.Provider(), func() { _ = client.Close() }, nil
	case "etcd":
		dial := time.Duration(cfg.Etcd.DialTimeoutMs) * time.Millisecond
		if dial <= 0 {
			dial = 5 * time.Second
		}
		client, err := clientv3.New(clientv3.Config{
			Endpoints:   cfg.Etcd.Endpoints,
			DialTimeout: dial,
			Username:    cfg.Etcd.Username,
			Password:    cfg.Etcd.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("run: etcd client: %w", err)
		}
		alloc := machineid.NewEtcdAllocator(client, cfg.Etcd.Prefix)
		cleanup := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = alloc.Close(cctx)
			_ = client.Close()
		}
		return alloc.Provider(), cleanup, nil
	default:
		return nil, nil, fmt.Errorf("run: unknown machine id source %q", cfg.Source)
	}
}

func openCheckpoint(cfg cfgpkg.Config) (*checkpoint.Store, error) {
	mode, err := checkpoint.ParseFsyncMode(cfg.Checkpoint.Fsync)
	if err != nil {
		return nil, err
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	return checkpoint.Open(checkpoint.Options{
		DataDir: filepath.Join(dataDir, "checkpoint"),
		Fsync:   mode,
	})
}

// guardClock refuses or waits out a wall clock that sits behind the
// persisted high-water tick from a previous run.
func guardClock(ctx context.Context, store *checkpoint.Store, gen flake.Generator, cfg cfgpkg.Config, logger *zap.Logger) error {
	persisted, ok, err := store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	current := flake.Decompose(gen.MinIDForTime(time.Now())).Time
	tolerance := time.Duration(cfg.Checkpoint.ToleranceMs) * time.Millisecond
	wait, err := checkpoint.WaitBeforeServing(persisted, current, tolerance)
	if err != nil {
		return err
	}
	if wait > 0 {
		logger.Warn("clock behind last checkpoint, waiting before serving",
			zap.Duration("wait", wait),
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func flushLoop(ctx context.Context, store *checkpoint.Store, srv *httpserver.Server, interval time.Duration, logger *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if tick := srv.LastTick(); tick > 0 {
				if err := store.Save(tick); err != nil {
					logger.Warn("checkpoint save failed", zap.Error(err))
				}
			}
		}
	}
}
