// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	Server    ServerConfig
	Auth      AuthConfig
	Query     QueryConfig
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

// StorageConfig holds directory backend configuration.
type StorageConfig struct {
	// BasePath is the root directory for the document store and search index.
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// AuthConfig holds authentication and authorization configuration.
type AuthConfig struct {
	// UsersFile is the path to the htpasswd-style credentials file.
	// Empty disables authenticated mutations entirely.
	UsersFile string
	// Role group membership, comma-separated group names per role.
	AdminGroups    []string
	ChannelGroups  []string
	PropertyGroups []string
	TagGroups      []string
}

// QueryConfig holds search tuning configuration.
type QueryConfig struct {
	// DefaultSize is the page size applied when a query carries no ~size.
	DefaultSize int
	// MaxResultWindow caps size+from for non-scrolling queries.
	MaxResultWindow int
}

// RateLimitConfig holds mutation rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool
	// RPS is the sustained mutations-per-second allowance per client.
	RPS float64
	// Burst is the instantaneous allowance per client.
	Burst int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	basePath := flag.String("data-path", "", "Base path for the document store and search index")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	// Auth flags
	usersFile := flag.String("users-file", "", "Path to the htpasswd-style credentials file")
	adminGroups := flag.String("admin-groups", "", "Comma-separated groups granted the admin role")
	channelGroups := flag.String("channel-groups", "", "Comma-separated groups granted the channel role")
	propertyGroups := flag.String("property-groups", "", "Comma-separated groups granted the property role")
	tagGroups := flag.String("tag-groups", "", "Comma-separated groups granted the tag role")

	// Query flags
	defaultSize := flag.String("query-default-size", "", "Default query page size (default: 10000)")
	maxResultWindow := flag.String("query-max-result-window", "", "Maximum size+from window (default: 10000)")

	// Rate limit flags
	rateLimitEnabled := flag.String("rate-limit-enabled", "", "Enable mutation rate limiting (default: false)")
	rateLimitRPS := flag.String("rate-limit-rps", "", "Sustained mutations per second per client (default: 25)")
	rateLimitBurst := flag.String("rate-limit-burst", "", "Mutation burst allowance per client (default: 50)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			BasePath: getConfigValue(*basePath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "ChannelFinder"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Auth: AuthConfig{
			UsersFile:      getConfigValue(*usersFile, "AUTH_USERS_FILE", ""),
			AdminGroups:    getListConfigValue(*adminGroups, "AUTH_ADMIN_GROUPS", []string{"cf-admins"}),
			ChannelGroups:  getListConfigValue(*channelGroups, "AUTH_CHANNEL_GROUPS", []string{"cf-channels"}),
			PropertyGroups: getListConfigValue(*propertyGroups, "AUTH_PROPERTY_GROUPS", []string{"cf-properties"}),
			TagGroups:      getListConfigValue(*tagGroups, "AUTH_TAG_GROUPS", []string{"cf-tags"}),
		},
		Query: QueryConfig{
			DefaultSize:     getIntConfigValue(*defaultSize, "QUERY_DEFAULT_SIZE", 10000),
			MaxResultWindow: getIntConfigValue(*maxResultWindow, "QUERY_MAX_RESULT_WINDOW", 10000),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolConfigValue(*rateLimitEnabled, "RATE_LIMIT_ENABLED", false),
			RPS:     getFloatConfigValue(*rateLimitRPS, "RATE_LIMIT_RPS", 25),
			Burst:   getIntConfigValue(*rateLimitBurst, "RATE_LIMIT_BURST", 50),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand and validate the data path.
	if err := cfg.expandBasePath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
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

	if c.Storage.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Query.DefaultSize <= 0 {
		return fmt.Errorf("invalid default query size: %d (must be positive)", c.Query.DefaultSize)
	}
	if c.Query.MaxResultWindow < c.Query.DefaultSize {
		return fmt.Errorf("max result window %d is smaller than the default query size %d", c.Query.MaxResultWindow, c.Query.DefaultSize)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return fmt.Errorf("invalid rate limit rps: %v (must be positive)", c.RateLimit.RPS)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("invalid rate limit burst: %d (must be positive)", c.RateLimit.Burst)
		}
	}

	return nil
}

// StorePath is the document store directory under the data path.
func (c *Config) StorePath() string {
	return filepath.Join(c.Storage.BasePath, "store")
}

// IndexPath is the search index directory under the data path.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Storage.BasePath, "index")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandBasePath expands ~ and makes the path absolute.
// Defaults to ~/channelfinder when unset.
func (c *Config) expandBasePath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "channelfinder")

	expanded, err := expandPath(c.Storage.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue returns a comma-separated list from flag, env var, or default.
// Blank entries are dropped.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
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

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
