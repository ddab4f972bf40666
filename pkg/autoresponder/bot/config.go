// Package bot wires the trigger engine to chat channels: configuration,
// token resolution, the message handling loop, chat commands, the trigger
// file watcher and the heartbeat.
package bot

import (
	"fmt"
	"time"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels/discord"
)

// Config is the application configuration, usually loaded from config.yaml.
type Config struct {
	// Name is the bot instance name, used in logs and !status.
	Name string `yaml:"name"`

	// Prefix starts every chat command (default "!").
	Prefix string `yaml:"prefix"`

	// Workers bounds how many inbound messages are handled concurrently.
	Workers int `yaml:"workers"`

	// SendTimeout bounds a single reply delivery.
	SendTimeout time.Duration `yaml:"send_timeout"`

	Triggers  TriggersConfig  `yaml:"triggers"`
	Discord   discord.Config  `yaml:"discord"`
	Access    AccessConfig    `yaml:"access"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TriggersConfig selects where the trigger set is stored.
type TriggersConfig struct {
	// Backend is "file" (JSON document) or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the JSON trigger document used by the file backend.
	Path string `yaml:"path"`

	// Database is the SQLite database path used by the sqlite backend.
	Database string `yaml:"database"`

	// Watch reloads the trigger document when it changes on disk.
	// Only applies to the file backend.
	Watch bool `yaml:"watch"`
}

// AccessConfig lists users that may run every admin command regardless of
// their role in the guild.
type AccessConfig struct {
	Admins []string `yaml:"admins"`
}

// HeartbeatConfig configures the periodic health log job.
type HeartbeatConfig struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor ("@every 30m", "@hourly").
	Schedule string `yaml:"schedule"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`

	// File, when set, receives a copy of every log line.
	File string `yaml:"file"`
}

// Backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Name:        "autoresponder",
		Prefix:      "!",
		Workers:     16,
		SendTimeout: 10 * time.Second,
		Triggers: TriggersConfig{
			Backend:  BackendFile,
			Path:     "config.json",
			Database: "./data/triggers.db",
			Watch:    true,
		},
		Discord: discord.DefaultConfig(),
		Heartbeat: HeartbeatConfig{
			Schedule: "@every 30m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "bot.log",
		},
	}
}

// Validate checks the configuration for values the bot cannot run with.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch c.Triggers.Backend {
	case BackendFile:
		if c.Triggers.Path == "" {
			return fmt.Errorf("triggers.path is required for the file backend")
		}
	case BackendSQLite:
		if c.Triggers.Database == "" {
			return fmt.Errorf("triggers.database is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown triggers.backend %q (want %s or %s)", c.Triggers.Backend, BackendFile, BackendSQLite)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}
