package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/classroom-http/internal/server"
)

// Config holds all application configuration
type Config struct {
	// Core
	Debug bool

	// Server
	Server server.Config

	// Logging
	LogLevel  string
	LogPretty bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	defaults := server.DefaultConfig()

	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		Server: server.Config{
			Host:            getEnv("HTTP_HOST", defaults.Host),
			Port:            getEnvInt("HTTP_PORT", defaults.Port),
			Workers:         getEnvInt("HTTP_WORKERS", defaults.Workers),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", defaults.ReadTimeout),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", defaults.WriteTimeout),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", defaults.ShutdownTimeout),
			MaxHeaderBytes:  getEnvInt("HTTP_MAX_HEADER_BYTES", defaults.MaxHeaderBytes),
			MaxBodyBytes:    int64(getEnvInt("HTTP_MAX_BODY_BYTES", int(defaults.MaxBodyBytes))),
			ReusePort:       getEnvBool("HTTP_REUSE_PORT", defaults.ReusePort),
		},

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty: getEnvBool("LOG_PRETTY", false),
	}

	// DEBUG wins over LOG_LEVEL
	if cfg.Debug {
		cfg.LogLevel = zerolog.DebugLevel.String()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.Server.Port)
	}
	if c.Server.Workers < 0 {
		return fmt.Errorf("HTTP_WORKERS must not be negative: %d", c.Server.Workers)
	}
	if c.Server.MaxHeaderBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_HEADER_BYTES must be positive: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("HTTP_READ_TIMEOUT and HTTP_WRITE_TIMEOUT must not be negative")
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("unsupported LOG_LEVEL: %s", c.LogLevel)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go duration strings ("750ms", "2m") or a bare
// number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
