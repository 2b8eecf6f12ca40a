package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rendis/mindflow/internal/scheduler"
)

// Config holds all mindflow configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string `json:"listen_addr"`
	DBPath          string `json:"db_path"`
	LogLevel        string `json:"log_level"`
	VacuumSchedule  string `json:"vacuum_schedule"`
	RevisionKeep    int    `json:"revision_keep"`
	MermaidASCIIBin string `json:"mermaid_ascii_bin"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":4200",
		DBPath:          filepath.Join(mindflowDir(), "mindflow.db"),
		LogLevel:        "info",
		VacuumSchedule:  scheduler.DefaultSchedule,
		RevisionKeep:    50,
		MermaidASCIIBin: filepath.Join(mindflowDir(), "bin", "mermaid-ascii"),
	}
}

func mindflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mindflow"
	}
	return filepath.Join(home, ".mindflow")
}

func settingsPath() string {
	return filepath.Join(mindflowDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(mindflowDir(), "mindflow.pid")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("MINDFLOW_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MINDFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MINDFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MINDFLOW_VACUUM_SCHEDULE"); v != "" {
		cfg.VacuumSchedule = v
	}
	if v := os.Getenv("MINDFLOW_REVISION_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RevisionKeep = n
		}
	}
	if v := os.Getenv("MINDFLOW_MERMAID_ASCII_BIN"); v != "" {
		cfg.MermaidASCIIBin = v
	}

	return cfg
}

// bindFlags registers flags that override cfg on fs.Parse.
func (c *Config) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen-addr", c.ListenAddr, "TCP listen address")
	fs.StringVar(&c.DBPath, "db-path", c.DBPath, "database path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.VacuumSchedule, "vacuum-schedule", c.VacuumSchedule, "cron schedule for revision pruning and VACUUM")
	fs.IntVar(&c.RevisionKeep, "revision-keep", c.RevisionKeep, "revisions kept per diagram (0 keeps all)")
	fs.StringVar(&c.MermaidASCIIBin, "mermaid-ascii-bin", c.MermaidASCIIBin, "mermaid-ascii binary for ASCII renders")
}

// dsn returns the libSQL data source name for DBPath.
func (c Config) dsn() string {
	if strings.HasPrefix(c.DBPath, "file:") || strings.Contains(c.DBPath, "://") {
		return c.DBPath
	}
	return "file:" + c.DBPath
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	RendererChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.MermaidASCIIBin != new.MermaidASCIIBin {
		d.RendererChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.VacuumSchedule != new.VacuumSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "vacuum_schedule")
	}
	if old.RevisionKeep != new.RevisionKeep {
		d.RestartNeeded = append(d.RestartNeeded, "revision_keep")
	}
	return d
}
