package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mindflow/internal/scheduler"
)

func TestLoadConfig_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := loadConfig()
	assert.Equal(t, ":4200", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(home, ".mindflow", "mindflow.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, scheduler.DefaultSchedule, cfg.VacuumSchedule)
	assert.Equal(t, 50, cfg.RevisionKeep)
	assert.Equal(t, filepath.Join(home, ".mindflow", "bin", "mermaid-ascii"), cfg.MermaidASCIIBin)
}

func TestLoadConfig_Layering(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".mindflow"), 0o700))
	require.NoError(t, os.WriteFile(settingsPath(), []byte(`{
		"listen_addr": ":9000",
		"log_level": "debug",
		"revision_keep": 10
	}`), 0o644))
	t.Setenv("MINDFLOW_LOG_LEVEL", "warn")
	t.Setenv("MINDFLOW_REVISION_KEEP", "not-a-number")
	t.Setenv("MINDFLOW_DB_PATH", "/tmp/other.db")

	cfg := loadConfig()
	assert.Equal(t, ":9000", cfg.ListenAddr, "settings.json overrides default")
	assert.Equal(t, "warn", cfg.LogLevel, "env overrides settings.json")
	assert.Equal(t, 10, cfg.RevisionKeep, "invalid env value is ignored")
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfg.bindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-log-level", "error", "-revision-keep", "3"}))
	assert.Equal(t, "error", cfg.LogLevel, "flags override env")
	assert.Equal(t, 3, cfg.RevisionKeep)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoadConfig_BadSettingsIgnored(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".mindflow"), 0o700))
	require.NoError(t, os.WriteFile(settingsPath(), []byte("{not json"), 0o644))

	assert.Equal(t, ":4200", loadConfig().ListenAddr)
}

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/var/lib/mindflow.db", want: "file:/var/lib/mindflow.db"},
		{path: "file:/already.db", want: "file:/already.db"},
		{path: "libsql://db.example.turso.io", want: "libsql://db.example.turso.io"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Config{DBPath: tt.path}.dsn())
	}
}

func TestDiffConfigs(t *testing.T) {
	base := defaultConfig()

	t.Run("identical", func(t *testing.T) {
		d := diffConfigs(base, base)
		assert.False(t, d.LogLevelChanged)
		assert.False(t, d.RendererChanged)
		assert.Empty(t, d.RestartNeeded)
	})

	t.Run("hot fields", func(t *testing.T) {
		next := base
		next.LogLevel = "debug"
		next.MermaidASCIIBin = "/usr/local/bin/mermaid-ascii"
		d := diffConfigs(base, next)
		assert.True(t, d.LogLevelChanged)
		assert.True(t, d.RendererChanged)
		assert.Empty(t, d.RestartNeeded)
	})

	t.Run("restart fields", func(t *testing.T) {
		next := base
		next.ListenAddr = ":1"
		next.DBPath = "/x.db"
		next.VacuumSchedule = "@hourly"
		next.RevisionKeep = 1
		d := diffConfigs(base, next)
		assert.Equal(t, []string{"listen_addr", "db_path", "vacuum_schedule", "revision_keep"}, d.RestartNeeded)
	})
}
