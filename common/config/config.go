package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rainbow-me/platform-lifecycle/common/env"
	"github.com/rainbow-me/platform-lifecycle/common/logger"
)

const (
	fileFormat   = ".yaml"    // File format of the config files
	relativePath = "./config" // Default relative path for config files (base path)
)

// Config carries the process lifecycle settings. The graceful-shutdown timeout
// is the single total budget shared across all registered waiters; it defaults
// to several minutes so long-running units of work can drain.
type Config struct {
	ServiceName string `mapstructure:"service_name"`

	// HTTPAddress is the bind address of the serving surface (":8080" style).
	HTTPAddress string `mapstructure:"http_address"`

	// GRPCHealthAddress optionally enables the gRPC health listener in
	// production mode. Empty disables it.
	GRPCHealthAddress string `mapstructure:"grpc_health_address"`

	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`

	ExecutorWorkers   int `mapstructure:"executor_workers"`
	ExecutorQueueSize int `mapstructure:"executor_queue_size"`

	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ReadConfigOption is a function signature used to set configuration options.
type ReadConfigOption func(*yamlReadConfig)

type yamlReadConfig struct {
	relativePath string
	absolutePath string
}

// WithRelativePath sets a relative path for the config file.
func WithRelativePath(path string) ReadConfigOption {
	return func(c *yamlReadConfig) {
		c.relativePath = path
	}
}

// WithAbsolutePath sets an absolute path for the config file.
func WithAbsolutePath(path string) ReadConfigOption {
	return func(c *yamlReadConfig) {
		c.absolutePath = path
	}
}

// LoadConfig loads the YAML configuration file for the current environment and
// unmarshals it on top of the defaults. Environment variables override file
// values (e.g. GRACEFUL_SHUTDOWN_TIMEOUT).
func LoadConfig(log *logger.Logger, options ...ReadConfigOption) (*Config, error) {
	cfg := &yamlReadConfig{relativePath: relativePath}
	for _, option := range options {
		option(cfg)
	}

	pathToConfigDir := cfg.relativePath
	if cfg.absolutePath != "" {
		pathToConfigDir = cfg.absolutePath
	}

	currentEnv := env.GetApplicationEnvSafe()

	filePath := fmt.Sprintf("%s/%s%s", pathToConfigDir, currentEnv, fileFormat)
	log.Info("Reading config file", logger.String("path", filePath))

	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // Automatically map environment variables

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing or unreadable file is not fatal, defaults plus env vars still apply.
		log.Warn("Config file not read, using defaults", logger.Error(err))
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "platform-lifecycle")
	v.SetDefault("http_address", ":8080")
	v.SetDefault("grpc_health_address", "")
	v.SetDefault("graceful_shutdown_timeout", 5*time.Minute)
	v.SetDefault("executor_workers", 4)
	v.SetDefault("executor_queue_size", 64)
	v.SetDefault("metrics_interval", 30*time.Second)
	v.SetDefault("cleanup_interval", time.Minute)
}
