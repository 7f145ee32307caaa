package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/aliasmap/pkg/constants"
)

// TestLoadConfig verifies defaults.
func TestLoadConfig(t *testing.T) {
	t.Setenv("ALIASMAP_TOKEN_SOURCE", "")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
	if config.Endpoint != constants.DefaultEndpoint {
		t.Errorf("Endpoint = %s, want %s", config.Endpoint, constants.DefaultEndpoint)
	}
	if config.Workers != constants.DefaultWorkers {
		t.Errorf("Workers = %d, want %d", config.Workers, constants.DefaultWorkers)
	}
	if config.MaxAttempts != constants.MaxRetries {
		t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, constants.MaxRetries)
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("SUBSCRIPTION_ID", " 11111111-2222-3333-4444-555555555555 ")
	t.Setenv("AZURE_ACCESS_TOKEN", "token")
	t.Setenv("ALIASMAP_WORKERS", "7")
	t.Setenv("ALIASMAP_CACHE_TTL", "10m")
	t.Setenv("ALIASMAP_AUTO_REFRESH_INTERVAL", "30m")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.SubscriptionID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("SubscriptionID = %q", config.SubscriptionID)
	}
	if config.AccessToken != "token" {
		t.Errorf("AccessToken = %q, want token", config.AccessToken)
	}
	if config.Workers != 7 {
		t.Errorf("Workers = %d, want 7", config.Workers)
	}
	if config.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", config.CacheTTL)
	}
	if config.AutoRefreshInterval != 30*time.Minute {
		t.Errorf("AutoRefreshInterval = %v, want 30m", config.AutoRefreshInterval)
	}
}

// TestConfig_PrefixedSubscriptionWins verifies the prefixed variable takes precedence.
func TestConfig_PrefixedSubscriptionWins(t *testing.T) {
	t.Setenv("ALIASMAP_SUBSCRIPTION_ID", "prefixed")
	t.Setenv("SUBSCRIPTION_ID", "plain")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if config.SubscriptionID != "prefixed" {
		t.Errorf("SubscriptionID = %q, want prefixed", config.SubscriptionID)
	}
}

// TestConfig_File verifies an explicit YAML config file.
func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliasmap.yaml")
	content := []byte("subscription_id: from-file\nworkers: 3\ntask_timeout: 5s\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}
	if config.SubscriptionID != "from-file" {
		t.Errorf("SubscriptionID = %q, want from-file", config.SubscriptionID)
	}
	if config.Workers != 3 {
		t.Errorf("Workers = %d, want 3", config.Workers)
	}
	if config.TaskTimeout != 5*time.Second {
		t.Errorf("TaskTimeout = %v, want 5s", config.TaskTimeout)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", config.ConfigFile, path)
	}
}

// TestConfig_MissingFile verifies an explicit but missing file is an error.
func TestConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

// TestConfig_Validate verifies rejected settings.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{TokenSource: TokenSourceAuto, CacheTTL: time.Hour, Workers: 1}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "cli source", mutate: func(c *Config) { c.TokenSource = TokenSourceCLI }},
		{name: "static without token", mutate: func(c *Config) { c.TokenSource = TokenSourceStatic }, wantErr: true},
		{name: "static with token", mutate: func(c *Config) { c.TokenSource = TokenSourceStatic; c.AccessToken = "t" }},
		{name: "unknown source", mutate: func(c *Config) { c.TokenSource = "msi" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.CacheTTL = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.AutoRefreshInterval = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies flag values override loaded ones.
func TestConfig_UpdateFromFlags(t *testing.T) {
	config := &Config{Format: "yaml", LogLevel: "warn"}

	config.UpdateFromFlags(true, false, true, "", "")
	if !config.Verbose || !config.NoColor {
		t.Error("boolean flags not applied")
	}
	if config.Format != "yaml" || config.LogLevel != "warn" {
		t.Error("empty flag values should not clear loaded ones")
	}

	config.UpdateFromFlags(false, true, false, "json", "debug")
	if config.Format != "json" || config.LogLevel != "debug" {
		t.Errorf("Format = %s, LogLevel = %s", config.Format, config.LogLevel)
	}
}
