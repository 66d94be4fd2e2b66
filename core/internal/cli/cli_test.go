package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demos-to-discord/core/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "DemosToDiscord.json")

	out, err := run(t, "init-config", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = run(t, "init-config", "--path", path)
	assert.Error(t, err)
	_, err = run(t, "init-config", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestMatch_FindsDemo(t *testing.T) {
	dir := t.TempDir()
	demo := filepath.Join(dir, "tdm_mp_nuketown_2020_12_10_2025_4_4.demo")
	require.NoError(t, os.WriteFile(demo, []byte("x"), 0o644))
	cfgPath := filepath.Join(t.TempDir(), "missing.json")

	out, err := run(t, "match", "--config", cfgPath, "--dir", dir,
		"--game", "t6", "--map", "nuketown", "--mode", "tdm", "--at", "2025-12-10T04:10:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, demo)

	out, err = run(t, "match", "--config", cfgPath, "--dir", dir,
		"--map", "nuketown", "--at", "2025-12-10 02:00")
	require.NoError(t, err)
	assert.Contains(t, out, "no match")
}

func TestMatch_RejectsUnsupportedGame(t *testing.T) {
	_, err := run(t, "match", "--config", filepath.Join(t.TempDir(), "c.json"), "--game", "IW4", "--map", "x")
	assert.Error(t, err)
}

func TestParseAt(t *testing.T) {
	got, err := parseAt("2025-12-10 04:10", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 10, 4, 10, 0, 0, time.UTC), got)

	_, err = parseAt("yesterday", time.UTC)
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.1.0")
}
