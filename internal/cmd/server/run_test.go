package serverrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/mintid/mintid/internal/config"
)

func TestBuildProviderStatic(t *testing.T) {
	p, cleanup, err := buildProvider(cfgpkg.MachineIDConfig{Source: "static", Static: 99})
	require.NoError(t, err)
	require.Nil(t, cleanup)
	id, err := p()
	require.NoError(t, err)
	assert.Equal(t, uint16(99), id)
}

func TestBuildProviderEnv(t *testing.T) {
	t.Setenv("MINTID_MACHINE_ID", "7")
	p, _, err := buildProvider(cfgpkg.MachineIDConfig{Source: "env"})
	require.NoError(t, err)
	id, err := p()
	require.NoError(t, err)
	assert.Equal(t, uint16(7), id)
}

func TestBuildProviderHostIPDefault(t *testing.T) {
	p, cleanup, err := buildProvider(cfgpkg.MachineIDConfig{Source: ""})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, cleanup)
}

func TestBuildProviderUnknown(t *testing.T) {
	_, _, err := buildProvider(cfgpkg.MachineIDConfig{Source: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestBuildGeneratorWithPolicy(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MachineID = cfgpkg.MachineIDConfig{Source: "static", Static: 1500}
	cfg.CheckMachineID = "machine_id >= 1024 && machine_id < 2048"

	gen, cleanup, err := buildGenerator(cfg)
	if cleanup != nil {
		defer cleanup()
	}
	require.NoError(t, err)
	assert.Equal(t, uint16(1500), gen.MachineID())
}

func TestBuildGeneratorPolicyRejects(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MachineID = cfgpkg.MachineIDConfig{Source: "static", Static: 5}
	cfg.CheckMachineID = "machine_id >= 1024"

	_, _, err := buildGenerator(cfg)
	assert.Error(t, err)
}

func TestBuildGeneratorBadStartTime(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MachineID = cfgpkg.MachineIDConfig{Source: "static", Static: 1}
	cfg.StartTime = "last tuesday"

	_, _, err := buildGenerator(cfg)
	assert.Error(t, err)
}

func TestRunServesAndStops(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.LogLevel = "error"
	cfg.MachineID = cfgpkg.MachineIDConfig{Source: "static", Static: 3}
	cfg.DataDir = t.TempDir()
	cfg.Checkpoint.IntervalMs = 10

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, Run(ctx, Options{Config: cfg}))
}
