package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestInitConfig(t *testing.T) {
	cfg := writeConfig(t, `
[app]
log = "debug"

[store]
dir = "/from/file"
max_segment_size = 4096
`)

	t.Run("File", func(t *testing.T) {
		ko, err := initConfig([]string{"--config", cfg})
		require.NoError(t, err)

		assert.Equal(t, "/from/file", ko.String("store.dir"))
		assert.Equal(t, int64(4096), ko.Int64("store.max_segment_size"))
		assert.Equal(t, "debug", ko.String("app.log"))
		// Keys missing from the file take the flag defaults.
		assert.Equal(t, 1000, ko.Int("store.capacity"))
		assert.False(t, ko.Bool("store.replay"))
	})

	t.Run("Env", func(t *testing.T) {
		t.Setenv("CASKDB_STORE__DIR", "/from/env")

		ko, err := initConfig([]string{"--config", cfg})
		require.NoError(t, err)
		assert.Equal(t, "/from/env", ko.String("store.dir"))
	})

	t.Run("Flags", func(t *testing.T) {
		t.Setenv("CASKDB_STORE__DIR", "/from/env")

		ko, err := initConfig([]string{"--config", cfg, "--store.dir", "/from/flag", "--store.replay", "--store.capacity", "2"})
		require.NoError(t, err)
		assert.Equal(t, "/from/flag", ko.String("store.dir"))
		assert.True(t, ko.Bool("store.replay"))
		assert.Equal(t, 2, ko.Int("store.capacity"))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := initConfig([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")})
		assert.Error(t, err)
	})
}

func TestInitStore(t *testing.T) {
	var (
		dir = t.TempDir()
		cfg = writeConfig(t, "[store]\ncapacity = 1\n")
	)

	ko, err := initConfig([]string{"--config", cfg, "--store.dir", dir, "--store.replay"})
	require.NoError(t, err)

	store, err := initStore(ko, initLogger(ko))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put("one", []byte("1")))
	require.NoError(t, store.Put("two", []byte("2")))

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*", "*.chunk"))
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
