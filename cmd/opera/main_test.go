package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/opera"
	"github.com/aretw0/opera/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := run(t, "version")
	assert.Equal(t, "opera version "+strings.TrimSpace(opera.Version)+"\n", out)
}

func TestConfigCommand(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.yaml")
	out := run(t, "config", "--config", missing, "--env-file", "", "--hash", "64", "--time-policy", "fixed")

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 64, cfg.Engine.HashMB)
	assert.Equal(t, "fixed", cfg.Time.Policy)
	assert.Equal(t, "memory", cfg.Cache.Backend)
}

func TestDocsCommand_Raw(t *testing.T) {
	out := run(t, "docs", "options", "--raw")
	assert.Contains(t, out, "# Engine options")
	assert.Contains(t, out, "`SacrificeThreshold`")
}
