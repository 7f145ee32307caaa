package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// Token source modes.
const (
	TokenSourceAuto   = "auto"
	TokenSourceStatic = "static"
	TokenSourceCLI    = "cli"
)

// envPrefix namespaces environment overrides, e.g. ALIASMAP_CACHE_TTL.
const envPrefix = "ALIASMAP"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Catalog source
	SubscriptionID string
	AccessToken    string
	TokenSource    string
	Endpoint       string
	APIVersion     string

	// Acquisition tuning
	CacheTTL            time.Duration
	Workers             int
	RequestsPerMinute   int
	Burst               int
	TaskTimeout         time.Duration
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	AutoRefreshInterval time.Duration

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.aliasmap.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig("")
}

// LoadConfigFile is LoadConfig with an explicit config file.
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(path)
}

func loadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.NewConfigError("env", "failed to bind environment variables", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("file", "failed to read "+configFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(constants.DefaultConfigFile, filepath.Ext(constants.DefaultConfigFile)))
		// A missing default config file is fine.
		_ = v.ReadInConfig()
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		SubscriptionID: strings.TrimSpace(v.GetString("subscription_id")),
		AccessToken:    strings.TrimSpace(v.GetString("access_token")),
		TokenSource:    strings.ToLower(strings.TrimSpace(v.GetString("token_source"))),
		Endpoint:       v.GetString("arm_endpoint"),
		APIVersion:     v.GetString("api_version"),

		CacheTTL:            v.GetDuration("cache_ttl"),
		Workers:             v.GetInt("workers"),
		RequestsPerMinute:   v.GetInt("requests_per_minute"),
		Burst:               v.GetInt("burst"),
		TaskTimeout:         v.GetDuration("task_timeout"),
		MaxAttempts:         v.GetInt("max_attempts"),
		BaseDelay:           v.GetDuration("base_delay"),
		MaxDelay:            v.GetDuration("max_delay"),
		AutoRefreshInterval: v.GetDuration("auto_refresh_interval"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("token_source", TokenSourceAuto)
	v.SetDefault("arm_endpoint", constants.DefaultEndpoint)
	v.SetDefault("api_version", constants.DefaultAPIVersion)
	v.SetDefault("cache_ttl", constants.DefaultCacheTTL)
	v.SetDefault("workers", constants.DefaultWorkers)
	v.SetDefault("requests_per_minute", constants.DefaultRequestsPerMinute)
	v.SetDefault("burst", constants.DefaultBurst)
	v.SetDefault("task_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("max_attempts", constants.MaxRetries)
	v.SetDefault("base_delay", constants.RetryBackoff)
	v.SetDefault("max_delay", constants.MaxRetryBackoff)
}

// bindEnv maps the unprefixed variables operators already export.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"subscription_id": {"ALIASMAP_SUBSCRIPTION_ID", "SUBSCRIPTION_ID", "AZURE_SUBSCRIPTION_ID"},
		"access_token":    {"ALIASMAP_ACCESS_TOKEN", "AZURE_ACCESS_TOKEN"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings the client would refuse later with a less useful message.
func (c *Config) Validate() error {
	switch c.TokenSource {
	case "", TokenSourceAuto, TokenSourceCLI:
	case TokenSourceStatic:
		if c.AccessToken == "" {
			return errors.NewConfigError("token_source", "static token source requires AZURE_ACCESS_TOKEN", nil)
		}
	default:
		return errors.NewValidationError("token_source", c.TokenSource, "must be one of: auto, static, cli")
	}
	if c.CacheTTL <= 0 {
		return errors.NewValidationError("cache_ttl", c.CacheTTL, "must be positive")
	}
	if c.Workers <= 0 {
		return errors.NewValidationError("workers", c.Workers, "must be positive")
	}
	if c.AutoRefreshInterval < 0 {
		return errors.NewValidationError("auto_refresh_interval", c.AutoRefreshInterval, "must not be negative")
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env; neither overrides the real environment.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
