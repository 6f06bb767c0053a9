package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, 200*time.Millisecond, d.DecisionInterval())
	assert.Equal(t, time.Second, d.StreamingInterval())
	assert.Equal(t, time.Second/64, d.MovementInterval())
	assert.InDelta(t, 1.0/64, d.MovementStep(), 1e-12)
	assert.Len(t, d.DwellerNames, 5)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte("chunk_size: 16\nmob_wander_chance: 0.5\nworldgen:\n  tree_permille: 0\n"), 0o644))

	tu, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 16, tu.ChunkSize)
	assert.Equal(t, 0.5, tu.MobWanderChance)
	assert.Equal(t, 0, tu.WorldGen.TreePermille)
	assert.Equal(t, 200, tu.DecisionIntervalMs)
	assert.Equal(t, "tree", tu.WorldGen.TreeObject)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mob_wander_chance: 2\n"), 0o644))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "mob_wander_chance")

	require.NoError(t, os.WriteFile(bad, []byte("dweller_speed: 0\n"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "dweller_speed")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, os.IsNotExist(err))
}
