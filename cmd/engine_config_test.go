package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

func newEngineCmd(mode danmaku.Mode) (*cobra.Command, *engineFlags) {
	c := &cobra.Command{Use: "test"}
	f := &engineFlags{}
	f.register(c, mode)
	return c, f
}

func TestEngineFlags_Unchanged_KeepDefaults(t *testing.T) {
	c, f := newEngineCmd(danmaku.ModeLive)

	cfg, err := f.resolve(c, false)

	require.NoError(t, err)
	want := danmaku.DefaultConfig()
	want.Mode = danmaku.ModeLive
	assert.Equal(t, want, cfg)
}

func TestEngineFlags_ChangedFlagsOverrideFile(t *testing.T) {
	// GIVEN a config file setting duration and lanes
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duration: 7\nnumber_of_lanes: 4\nmode: live\n"), 0o644))
	c, f := newEngineCmd(danmaku.ModeBatch)
	require.NoError(t, c.Flags().Set("config", path))

	// WHEN only --lanes is set explicitly
	require.NoError(t, c.Flags().Set("lanes", "6"))
	cfg, err := f.resolve(c, false)

	// THEN the file wins for duration and mode, the flag wins for lanes
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Duration)
	assert.Equal(t, danmaku.ModeLive, cfg.Mode)
	assert.Equal(t, 6, cfg.NumberOfLanes)
}

func TestEngineFlags_EnvBetweenFileAndFlags(t *testing.T) {
	t.Setenv("DANMAKU_DURATION", "4")
	t.Setenv("DANMAKU_LANES", "3")
	t.Setenv("DANMAKU_SEED", "11")

	t.Run("env applied", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeLive)
		cfg, err := f.resolve(c, true)
		require.NoError(t, err)
		assert.Equal(t, 4.0, cfg.Duration)
		assert.Equal(t, 3, cfg.NumberOfLanes)
		assert.Equal(t, int64(11), cfg.Seed)
	})
	t.Run("flag beats env", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeLive)
		require.NoError(t, c.Flags().Set("lanes", "5"))
		cfg, err := f.resolve(c, true)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.NumberOfLanes)
	})
	t.Run("env ignored without withEnv", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeLive)
		cfg, err := f.resolve(c, false)
		require.NoError(t, err)
		assert.Equal(t, danmaku.DefaultConfig().Duration, cfg.Duration)
	})
}

func TestEngineFlags_Errors(t *testing.T) {
	t.Run("malformed env number", func(t *testing.T) {
		t.Setenv("DANMAKU_TOLERANCE", "lots")
		c, f := newEngineCmd(danmaku.ModeLive)
		_, err := f.resolve(c, true)
		assert.Error(t, err)
	})
	t.Run("invalid value", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeBatch)
		require.NoError(t, c.Flags().Set("frame-interval", "0"))
		_, err := f.resolve(c, false)
		assert.Error(t, err)
	})
	t.Run("unknown mode", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeBatch)
		require.NoError(t, c.Flags().Set("mode", "replay"))
		_, err := f.resolve(c, false)
		assert.Error(t, err)
	})
	t.Run("missing config file", func(t *testing.T) {
		c, f := newEngineCmd(danmaku.ModeBatch)
		require.NoError(t, c.Flags().Set("config", filepath.Join(t.TempDir(), "nope.yaml")))
		_, err := f.resolve(c, false)
		assert.Error(t, err)
	})
}

func TestLoadDotEnv_SetsUnsetVariables(t *testing.T) {
	// GIVEN a dotenv file and an unset variable
	t.Setenv("DANMAKU_MAX_VISIBLE", "")
	require.NoError(t, os.Unsetenv("DANMAKU_MAX_VISIBLE"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DANMAKU_MAX_VISIBLE=25\n"), 0o644))

	// WHEN it is loaded
	require.NoError(t, loadDotEnv(path))

	// THEN the variable is visible to the config resolution
	assert.Equal(t, "25", getEnv("DANMAKU_MAX_VISIBLE", ""))
	cfg := danmaku.DefaultConfig()
	require.NoError(t, applyEnv(&cfg))
	assert.Equal(t, 25, cfg.MaxVisible)
}

func TestLoadDotEnv_MissingFile_NoError(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
	assert.NoError(t, loadDotEnv(""))
	assert.Equal(t, "fallback", getEnv("DANMAKU_TEST_UNSET_KEY", "fallback"))
}
