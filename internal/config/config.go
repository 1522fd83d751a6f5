package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the task service.
type Config struct {
	BindAddr        string
	ShutdownTimeout time.Duration

	AppName     string
	Version     string
	Environment string
	Debug       bool

	MetricsNamespace string
	AllowAnyOrigin   bool
	TaskEventBuffer  int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		AppName:          envOrDefault("APP_NAME", "Task Management API"),
		Version:          envOrDefault("APP_VERSION", "1.0.0"),
		Environment:      strings.ToLower(envOrDefault("ENVIRONMENT", "development")),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "taskboard"),
		ShutdownTimeout:  15 * time.Second,
		TaskEventBuffer:  64,
	}
	// APP_BIND_ADDR wins; otherwise HOST and PORT are joined.
	cfg.BindAddr = stringsTrimSpace("APP_BIND_ADDR")
	if cfg.BindAddr == "" {
		port, err := intFromEnv("PORT", 8000)
		if err != nil {
			return Config{}, err
		}
		if port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("PORT must be between 1 and 65535")
		}
		cfg.BindAddr = net.JoinHostPort(envOrDefault("HOST", "0.0.0.0"), strconv.Itoa(port))
	}

	var err error
	cfg.Debug, err = boolFromEnv("APP_DEBUG", cfg.Environment == "development" || cfg.Environment == "dev")
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.TaskEventBuffer, err = intFromEnv("TASK_EVENT_BUFFER", cfg.TaskEventBuffer)
	if err != nil {
		return Config{}, err
	}

	if cfg.ShutdownTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be at least 1s")
	}
	if cfg.TaskEventBuffer <= 0 {
		return Config{}, fmt.Errorf("TASK_EVENT_BUFFER must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
