package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// JOBPROCESSOR_SERVER_PORT=9000.
const EnvPrefix = "JOBPROCESSOR"

// Load builds the configuration from defaults, an optional config file,
// JOBPROCESSOR_* environment variables and any runtime overrides, each
// layer taking precedence over the previous.
//
// configFile may be empty; then jobprocessor.yaml is searched in the
// working directory and /etc/jobprocessor. A missing file is not an error,
// an unreadable or malformed one is.
func Load(ctx context.Context, configFile string, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("jobprocessor")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jobprocessor")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	for _, override := range overrides {
		if err := v.MergeConfigMap(override); err != nil {
			return nil, fmt.Errorf("apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("public_url", "http://localhost:8080")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("store.path", "jobprocessor.db")

	v.SetDefault("registry.services_endpoint", "http://localhost:8081/services")
	v.SetDefault("registry.job_profiles_endpoint", "http://localhost:8081/job-profiles")
	v.SetDefault("registry.notifications_endpoint", "")
	v.SetDefault("registry.timeout", "30s")

	v.SetDefault("dispatcher.queue_size", 256)
	v.SetDefault("dispatcher.workers", 4)
	v.SetDefault("dispatcher.rate_per_second", 0)
	v.SetDefault("dispatcher.max_attempts", 3)
	v.SetDefault("dispatcher.retry_delay", "5s")

	v.SetDefault("mutex.ttl", "60s")
	v.SetDefault("mutex.acquire_timeout", "30s")
	v.SetDefault("mutex.retry_interval", "25ms")

	v.SetDefault("locator.presign_expiry", "15m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "STRUCTURED")
}
