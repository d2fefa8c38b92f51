package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// DefaultSites are offered when no sites are configured.
var DefaultSites = []string{"Site A", "Site B", "Site C"}

// Config is the top-level configuration for levelogd.
type Config struct {
	ListenAddr string        `mapstructure:"listen_addr"`
	LogFormat  string        `mapstructure:"log_format"`
	Timezone   string        `mapstructure:"timezone"`
	Sites      []string      `mapstructure:"sites"`
	CORSOrigin string        `mapstructure:"cors_origin"`
	Storage    StorageConfig `mapstructure:"storage"`
	Export     ExportConfig  `mapstructure:"export"`
}

// StorageConfig defines the local store and the optional remote store.
type StorageConfig struct {
	Local  LocalConfig  `mapstructure:"local"`
	Remote RemoteConfig `mapstructure:"remote"`
}

// LocalConfig holds the SQLite file location.
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig holds PostgreSQL settings. The remote store is best-effort;
// when it cannot be reached levelogd runs on the local store alone.
type RemoteConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	DSN            string        `mapstructure:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ExportConfig controls scheduled CSV exports.
type ExportConfig struct {
	Dir      string `mapstructure:"dir"`
	Schedule string `mapstructure:"schedule"` // cron spec; empty disables
}

// Load reads configuration from flag path, env vars, then default file paths.
// Precedence: flag → $LEVELOGD_CONFIG env → ~/.config/levelogd/config.yaml → /etc/levelogd/config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_format", "json")
	v.SetDefault("timezone", "Local")
	v.SetDefault("sites", DefaultSites)
	v.SetDefault("cors_origin", "")
	v.SetDefault("storage.local.path", "data/levelogd.db")
	v.SetDefault("storage.remote.enabled", false)
	v.SetDefault("storage.remote.dsn", "")
	v.SetDefault("storage.remote.connect_timeout", "30s")
	v.SetDefault("export.dir", "")
	v.SetDefault("export.schedule", "")

	// Env var support: LEVELOGD_STORAGE_REMOTE_DSN and friends.
	v.SetEnvPrefix("LEVELOGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("LEVELOGD_CONFIG"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "levelogd"))
		}
		v.AddConfigPath("/etc/levelogd")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else {
		// The remote DSN may carry credentials.
		if cfgPath := v.ConfigFileUsed(); cfgPath != "" {
			if info, err := os.Stat(cfgPath); err == nil {
				perm := info.Mode().Perm()
				if perm&0004 != 0 {
					slog.Warn("config file is world-readable", "path", cfgPath, "permissions", fmt.Sprintf("%04o", perm))
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete and correct.
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}
	seen := make(map[string]bool, len(c.Sites))
	for i, s := range c.Sites {
		name := strings.TrimSpace(s)
		if name == "" {
			return fmt.Errorf("sites[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("sites[%d]: duplicate site %q", i, name)
		}
		seen[name] = true
		c.Sites[i] = name
	}

	if c.Storage.Local.Path == "" {
		return fmt.Errorf("storage.local.path is required")
	}
	dir := filepath.Dir(c.Storage.Local.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating storage directory %q: %w", dir, err)
		}
	}

	if c.Storage.Remote.Enabled {
		if c.Storage.Remote.DSN == "" {
			return fmt.Errorf("storage.remote.dsn is required when the remote store is enabled")
		}
		if c.Storage.Remote.ConnectTimeout <= 0 {
			return fmt.Errorf("storage.remote.connect_timeout must be positive, got %s", c.Storage.Remote.ConnectTimeout)
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}

	if c.Export.Schedule != "" {
		if _, err := cron.ParseStandard(c.Export.Schedule); err != nil {
			return fmt.Errorf("export.schedule %q: %w", c.Export.Schedule, err)
		}
		if c.Export.Dir == "" {
			return fmt.Errorf("export.dir is required when export.schedule is set")
		}
	}

	// Validate listen_addr.
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("listen_addr %q is not a valid address: %w", c.ListenAddr, err)
	}

	return nil
}

// Location returns the zone used for month bucketing and display.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
