package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"TALLY_DB", "TALLY_TZ", "TALLY_FORMAT", "TALLY_VERBOSE"} {
		t.Setenv(k, "") // restores the original value after the test
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FormatText, cfg.Format)
	assert.False(t, cfg.Verbose)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TALLY_DB", "/tmp/habits.db")
	t.Setenv("TALLY_TZ", "UTC")
	t.Setenv("TALLY_FORMAT", "json")
	t.Setenv("TALLY_VERBOSE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{DB: "/tmp/habits.db", TZ: "UTC", Format: FormatJSON, Verbose: true}, cfg)
	path, err := cfg.DBPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/habits.db", path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad bool", "TALLY_VERBOSE", "sometimes", "parse env:"},
		{"bad format", "TALLY_FORMAT", "xml", `invalid format "xml"`},
		{"bad zone", "TALLY_TZ", "Mars/Olympus_Mons", "invalid time zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultDBPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")

	path, err := Config{}.DBPath()
	require.NoError(t, err)

	assert.Equal(t, "tally.db", filepath.Base(path))
	assert.Equal(t, "tally", filepath.Base(filepath.Dir(path)))
}
