// Package config loads server configuration from flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Tracking  TrackingConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	// DataPath is the directory holding reading.db and auth.key.
	DataPath string
}

// DBFile returns the sqlite database file path.
func (d DatabaseConfig) DBFile() string {
	return filepath.Join(d.DataPath, "reading.db")
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	// AccessTokenKey is the PASETO v4 symmetric key, set by auth.LoadOrGenerateKey.
	AccessTokenKey      []byte
	AccessTokenDuration time.Duration
}

// TrackingConfig holds the reading-activity thresholds. The three windows
// are independent and must not be derived from one another.
type TrackingConfig struct {
	// ConflictSkew is how far the stored update may be ahead of the client
	// clock before a lower progress value is reported as a conflict.
	ConflictSkew time.Duration
	// IdleDiscard is the gap after which an open session is closed with no credited time.
	IdleDiscard time.Duration
	// SessionCoalesce is the window in which an explicit session start reuses the open session.
	SessionCoalesce time.Duration
	// InterimCap bounds the duration stored on a session while it is still open.
	InterimCap time.Duration
	// SweepInterval is how often abandoned open sessions are closed. Zero disables the sweeper.
	SweepInterval time.Duration
}

// RateLimitConfig holds limits for progress pushes, per user.
type RateLimitConfig struct {
	ProgressRPS   float64
	ProgressBurst int
}

// LoadConfig parses args (usually os.Args[1:]) and loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("reading-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the database and auth key")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	host := fs.String("host", "", "Listen host (default: all interfaces)")
	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins (default: *)")

	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 15m)")

	conflictSkew := fs.String("conflict-skew", "", "Clock skew tolerated before reporting a progress conflict (default: 5s)")
	idleDiscard := fs.String("idle-discard", "", "Idle gap after which an open session is discarded (default: 2h)")
	sessionCoalesce := fs.String("session-coalesce", "", "Window in which session starts reuse the open session (default: 1h)")
	interimCap := fs.String("interim-cap", "", "Cap on interim session duration (default: 2h)")
	sweepInterval := fs.String("sweep-interval", "", "Interval of the abandoned session sweep, 0 to disable (default: 10m)")

	progressRPS := fs.String("progress-rps", "", "Progress pushes per second per user (default: 5)")
	progressBurst := fs.String("progress-burst", "", "Progress push burst per user (default: 20)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	if err := loadEnvFile(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:           getConfigValue(*host, "SERVER_HOST", ""),
			Port:           getConfigValue(*port, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "SERVER_ALLOWED_ORIGINS", "*")),
		},
		Database: DatabaseConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		RateLimit: RateLimitConfig{
			ProgressBurst: getIntConfigValue(*progressBurst, "RATE_LIMIT_PROGRESS_BURST", 20),
		},
	}

	rps, err := strconv.ParseFloat(getConfigValue(*progressRPS, "RATE_LIMIT_PROGRESS_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid progress rps: %w", err)
	}
	cfg.RateLimit.ProgressRPS = rps

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*conflictSkew, "TRACKING_CONFLICT_SKEW", "5s", &cfg.Tracking.ConflictSkew},
		{*idleDiscard, "TRACKING_IDLE_DISCARD", "2h", &cfg.Tracking.IdleDiscard},
		{*sessionCoalesce, "TRACKING_SESSION_COALESCE", "1h", &cfg.Tracking.SessionCoalesce},
		{*interimCap, "TRACKING_INTERIM_CAP", "2h", &cfg.Tracking.InterimCap},
		{*sweepInterval, "TRACKING_SWEEP_INTERVAL", "10m", &cfg.Tracking.SweepInterval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	t := c.Tracking
	if t.ConflictSkew < 0 {
		return errors.New("conflict skew cannot be negative")
	}
	if t.IdleDiscard <= 0 || t.SessionCoalesce <= 0 || t.InterimCap <= 0 {
		return errors.New("tracking windows must be positive")
	}
	if t.SweepInterval < 0 {
		return errors.New("sweep interval cannot be negative")
	}

	if c.RateLimit.ProgressRPS <= 0 || c.RateLimit.ProgressBurst <= 0 {
		return errors.New("progress rate limit must be positive")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(c.Database.DataPath, filepath.Join(homeDir, ".reading-server"))
	if err != nil {
		return err
	}
	c.Database.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments). Variables already set
// in the environment win.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
