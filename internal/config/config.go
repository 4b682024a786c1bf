// Package config loads the processor configuration from defaults, an
// optional config file, environment variables and runtime overrides, in
// ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the full processor configuration tree.
type Config struct {
	// PublicURL is the externally reachable base URL of this processor.
	// Job ids are minted under it, so it must be stable across restarts.
	PublicURL string `mapstructure:"public_url"`

	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Mutex      MutexConfig      `mapstructure:"mutex"`
	Locator    LocatorConfig    `mapstructure:"locator"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Manifest   ManifestConfig   `mapstructure:"manifest"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// CORSOrigins lists allowed cross-origin callers. Empty disables CORS.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StoreConfig configures the resource store database.
type StoreConfig struct {
	// Path is a local SQLite file path. Mutually exclusive with URL.
	Path string `mapstructure:"path"`

	// URL is a libsql:// remote database URL.
	URL string `mapstructure:"url"`

	// AuthToken authenticates against a remote database.
	AuthToken string `mapstructure:"auth_token"`
}

// RegistryConfig configures the capability registry client.
type RegistryConfig struct {
	ServicesEndpoint      string        `mapstructure:"services_endpoint"`
	JobProfilesEndpoint   string        `mapstructure:"job_profiles_endpoint"`
	NotificationsEndpoint string        `mapstructure:"notifications_endpoint"`
	AuthHeader            string        `mapstructure:"auth_header"`
	AuthValue             string        `mapstructure:"auth_value"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// DispatcherConfig tunes the async operation queue.
type DispatcherConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	Workers       int           `mapstructure:"workers"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	JobTypeFilter string        `mapstructure:"job_type_filter"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// MutexConfig tunes the distributed job lock.
type MutexConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
}

// LocatorConfig configures cloud storage URL resolution.
type LocatorConfig struct {
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	Profile         string        `mapstructure:"profile"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	ForcePathStyle  bool          `mapstructure:"force_path_style"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// ManifestConfig points at the optional bootstrap manifest.
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.PublicURL == "" {
		return fmt.Errorf("public_url is required")
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public_url must be an http(s) URL, got %q", c.PublicURL)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Store.Path != "" && c.Store.URL != "" {
		return fmt.Errorf("store.path and store.url are mutually exclusive")
	}
	if c.Registry.ServicesEndpoint == "" {
		return fmt.Errorf("registry.services_endpoint is required")
	}
	return nil
}

// BaseURL returns the public URL without a trailing slash.
func (c *Config) BaseURL() string {
	return strings.TrimRight(c.PublicURL, "/")
}
