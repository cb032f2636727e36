package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/Hussein-Mazeh/pwtrainer/internal/config"
	"github.com/Hussein-Mazeh/pwtrainer/krypto"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "pwtrain"}
	cfg.BindFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

// isolate runs the test from an empty directory so a stray pwtrain.yaml cannot leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := cfg.Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, cfg.Defaults(), c)
	assert.Equal(t, "store.bin", c.Store)
	assert.Equal(t, krypto.DefaultParams(), c.Params())
}

func TestLoadFromWorkingDirectoryFile(t *testing.T) {
	dir := isolate(t)
	yaml := "store: vault/my.bin\nlog_level: debug\nargon2:\n  time: 2\n  memory_kib: 1024\n  threads: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pwtrain.yaml"), []byte(yaml), 0o600))

	c, err := cfg.Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, "vault/my.bin", c.Store)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, cfg.Argon2{Time: 2, MemoryKiB: 1024, Threads: 2}, c.Argon2)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("store: from-file.bin\nlog_level: info\n"), 0o600))

	t.Setenv("PWTRAIN_STORE", "from-env.bin")
	t.Setenv("PWTRAIN_LOG_LEVEL", "error")
	t.Setenv("PWTRAIN_ARGON2_TIME", "5")

	c, err := cfg.Load(newCmd(t, "--config", file, "--store", "from-flag.bin"))
	require.NoError(t, err)
	assert.Equal(t, "from-flag.bin", c.Store)
	assert.Equal(t, "error", c.LogLevel)
	assert.Equal(t, uint32(5), c.Argon2.Time)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	dir := isolate(t)
	_, err := cfg.Load(newCmd(t, "--config", filepath.Join(dir, "absent.yaml")))
	require.Error(t, err)
}

func TestLoadRejectsInvalidArgon2(t *testing.T) {
	isolate(t)
	t.Setenv("PWTRAIN_ARGON2_THREADS", "0")

	_, err := cfg.Load(newCmd(t))
	require.ErrorIs(t, err, krypto.ErrHashing)
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "out", "pwtrain.yaml")

	want := cfg.Defaults()
	want.Store = "elsewhere.bin"
	want.Argon2.Time = 4
	require.NoError(t, cfg.WriteFile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := cfg.Load(newCmd(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
