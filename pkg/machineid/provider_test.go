package machineid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	id, err := Static(1234)()
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), id)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MINTID_MACHINE_ID", "42")
	id, err := FromEnv("MINTID_MACHINE_ID")()
	require.NoError(t, err)
	assert.Equal(t, uint16(42), id)
}

func TestFromEnvUnset(t *testing.T) {
	_, err := FromEnv("MINTID_MACHINE_ID_UNSET_FOR_TEST")()
	assert.Error(t, err)
}

func TestFromEnvMalformed(t *testing.T) {
	t.Setenv("MINTID_MACHINE_ID", "not-a-number")
	_, err := FromEnv("MINTID_MACHINE_ID")()
	assert.Error(t, err)
}

func TestFromEnvOutOfRange(t *testing.T) {
	t.Setenv("MINTID_MACHINE_ID", "70000")
	_, err := FromEnv("MINTID_MACHINE_ID")()
	assert.Error(t, err)
}
