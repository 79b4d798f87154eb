package config

import (
	"path/filepath"
	"time"
)

// Config holds runtime settings for the journal client.
type Config struct {
	ServerEndpointAddr string
	// DataDir holds journal.db and the client log.
	DataDir string
	// MediaDir holds attachment copies; defaults to DataDir/media.
	MediaDir     string
	LogLevel     string
	PushInterval time.Duration
	// DispatcherLimit bounds concurrent background push and media tasks.
	DispatcherLimit int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DataDir = ".gophjournal"
	c.MediaDir = ""
	c.LogLevel = "info"
	c.PushInterval = 15 * time.Minute
	c.DispatcherLimit = 4
}

func (c *Config) DatabasePath() string { return filepath.Join(c.DataDir, "journal.db") }
func (c *Config) LogPath() string      { return filepath.Join(c.DataDir, "journal.log") }

func (c *Config) MediaPath() string {
	if c.MediaDir != "" {
		return c.MediaDir
	}
	return filepath.Join(c.DataDir, "media")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
