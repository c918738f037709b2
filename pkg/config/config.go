// Package config loads tickerflow configuration from ~/.tickerflow and the
// environment. Environment variables take precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tickerflow/tickerflow/pkg/capability"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	TavilyAPIKey    string
	DefaultAdapter  string
	DefaultModel    string
	DefaultMarket   string
	Retry           capability.RetryPolicy
	ConfigDir       string
}

// FileConfig represents the structure of ~/.tickerflow/config.yaml.
type FileConfig struct {
	APIKeys  APIKeysConfig  `yaml:"api_keys"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Retry    RetryConfig    `yaml:"retry"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
	Tavily    string `yaml:"tavily"`
}

// DefaultsConfig holds default adapter, model, and market selection.
type DefaultsConfig struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
	Market  string `yaml:"market"`
}

// RetryConfig holds the capability retry policy from file.
type RetryConfig struct {
	MaxRetries    *int `yaml:"max_retries"`
	BaseBackoffMs int  `yaml:"base_backoff_ms"`
	MaxBackoffMs  int  `yaml:"max_backoff_ms"`
}

// Load reads configuration from the config file and environment variables.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		TavilyAPIKey:    getEnvOrDefault("TAVILY_API_KEY", fileConfig.APIKeys.Tavily),
		DefaultAdapter:  getEnvOrDefault("TICKERFLOW_ADAPTER", fileConfig.Defaults.Adapter),
		DefaultModel:    getEnvOrDefault("TICKERFLOW_MODEL", fileConfig.Defaults.Model),
		DefaultMarket:   getEnvOrDefault("TICKERFLOW_MARKET", fileConfig.Defaults.Market),
		Retry:           retryPolicy(fileConfig.Retry),
		ConfigDir:       configDir,
	}

	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	default:
		return false
	}
}

func retryPolicy(rc RetryConfig) capability.RetryPolicy {
	policy := capability.DefaultRetryPolicy()
	if rc.MaxRetries != nil && *rc.MaxRetries >= 0 {
		policy.MaxRetries = *rc.MaxRetries
	}
	if rc.BaseBackoffMs > 0 {
		policy.BaseBackoff = time.Duration(rc.BaseBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		policy.MaxBackoff = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	return policy
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".tickerflow")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
