// Package config provides configuration management for the agent execution
// control plane. It supports loading configuration from environment
// variables, a config file, and defaults, following the conventions of the
// reference backend's viper-based setup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the control plane.
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Auth            AuthConfig            `mapstructure:"auth"`
	ObjectStore     ObjectStoreConfig     `mapstructure:"objectStore"`
	ExecutorManager ExecutorManagerConfig `mapstructure:"executorManager"`
	Git             GitConfig             `mapstructure:"git"`
	Stager          StagerConfig          `mapstructure:"stager"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig holds database connection configuration. Driver selects
// between the two supported dialects: "sqlite" (dev/single-node) and
// "postgres" (the FOR UPDATE SKIP LOCKED claim protocol's real home).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// AuthConfig holds the shared secret for internal service-to-service JWTs.
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwtSecret"`
	TokenDuration int    `mapstructure:"tokenDuration"` // in seconds
}

// ObjectStoreConfig configures the S3-compatible attachment/workspace store.
type ObjectStoreConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"accessKey"`
	SecretKey    string `mapstructure:"secretKey"`
	UsePathStyle bool   `mapstructure:"usePathStyle"`
}

// ExecutorManagerConfig tunes the claim loop and dispatch client.
type ExecutorManagerConfig struct {
	ClaimPollInterval int    `mapstructure:"claimPollInterval"` // in seconds
	ClaimTTL          int    `mapstructure:"claimTTL"`          // in seconds
	DispatchTimeout   int    `mapstructure:"dispatchTimeout"`   // in seconds
	BackendURL        string `mapstructure:"backendURL"`
	Concurrency       int    `mapstructure:"concurrency"`
}

// GitConfig configures shallow-clone behavior for the attachment stager.
type GitConfig struct {
	CloneBasePath string `mapstructure:"cloneBasePath"`
	CloneTimeout  int    `mapstructure:"cloneTimeout"` // in seconds
}

// StagerConfig configures where staged run inputs are materialized.
type StagerConfig struct {
	WorkspaceRoot string `mapstructure:"workspaceRoot"`
}

func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

func (a *AuthConfig) TokenDurationTime() time.Duration {
	return time.Duration(a.TokenDuration) * time.Second
}

func (e *ExecutorManagerConfig) ClaimPollIntervalDuration() time.Duration {
	return time.Duration(e.ClaimPollInterval) * time.Second
}

func (e *ExecutorManagerConfig) ClaimTTLDuration() time.Duration {
	return time.Duration(e.ClaimTTL) * time.Second
}

func (e *ExecutorManagerConfig) DispatchTimeoutDuration() time.Duration {
	return time.Duration(e.DispatchTimeout) * time.Second
}

func (g *GitConfig) CloneTimeoutDuration() time.Duration {
	return time.Duration(g.CloneTimeout) * time.Second
}

// detectDefaultLogFormat mirrors logger.detectFormat so the config default
// and the logger's own fallback agree when OutputPath/Format are left at
// their zero values.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("APP_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./controlplane.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "controlplane")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "controlplane")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenDuration", 3600)

	v.SetDefault("objectStore.endpoint", "")
	v.SetDefault("objectStore.region", "us-east-1")
	v.SetDefault("objectStore.bucket", "controlplane-artifacts")
	v.SetDefault("objectStore.usePathStyle", true)

	v.SetDefault("executorManager.claimPollInterval", 2)
	v.SetDefault("executorManager.claimTTL", 120)
	v.SetDefault("executorManager.dispatchTimeout", 30)
	v.SetDefault("executorManager.backendURL", "http://localhost:8080")
	v.SetDefault("executorManager.concurrency", 4)

	v.SetDefault("git.cloneBasePath", "/var/lib/controlplane/repos")
	v.SetDefault("git.cloneTimeout", 60)

	v.SetDefault("stager.workspaceRoot", "/var/lib/controlplane/inputs")
}

// Load reads configuration from environment variables, config file, and
// defaults. Environment variables use the prefix CTRLPLANE_.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified directory (or the
// default search path when empty).
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CTRLPLANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for the handful of keys whose env name doesn't
	// mechanically follow the camelCase config key.
	_ = v.BindEnv("executorManager.backendURL", "CTRLPLANE_EXECUTOR_MANAGER_BACKEND_URL")
	_ = v.BindEnv("logging.level", "CTRLPLANE_LOG_LEVEL")
	_ = v.BindEnv("database.driver", "CTRLPLANE_DB_DRIVER")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/controlplane/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite driver")
		}
	case "postgres":
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be one of: sqlite, postgres (got %q)", cfg.Database.Driver))
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = generateDevSecret()
	}
	if cfg.Auth.TokenDuration <= 0 {
		errs = append(errs, "auth.tokenDuration must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.ExecutorManager.ClaimTTL <= 0 {
		errs = append(errs, "executorManager.claimTTL must be positive")
	}
	if cfg.ExecutorManager.Concurrency <= 0 {
		errs = append(errs, "executorManager.concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string for the pgx stdlib driver.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// generateDevSecret produces a throwaway signing secret for local/dev runs
// where CTRLPLANE_AUTH_JWTSECRET is left unset. Never used when a real
// secret is configured.
func generateDevSecret() string {
	return "dev-secret-change-in-production-" + fmt.Sprintf("%d", time.Now().UnixNano())
}
