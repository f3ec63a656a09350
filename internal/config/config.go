package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Target binds one logical chat pane to a relay endpoint, an upstream model
// and the greeting seeded into its conversation.
type Target struct {
	Name     string `mapstructure:"name"`
	Title    string `mapstructure:"title"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
	Greeting string `mapstructure:"greeting"`
}

type ServeConfig struct {
	Port       int    `mapstructure:"port"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type Config struct {
	SystemPrompt string      `mapstructure:"system_prompt"`
	MaxTokens    int         `mapstructure:"max_tokens"`
	CharLimit    int         `mapstructure:"char_limit"`
	Serve        ServeConfig `mapstructure:"serve"`

	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`

	OpenAIFetch  Target `mapstructure:"openai_fetch"`
	OpenAISDK    Target `mapstructure:"openai_sdk"`
	AnthropicSDK Target `mapstructure:"anthropic_sdk"`
	GeminiSDK    Target `mapstructure:"gemini_sdk"`
}

// ChatTargets returns the three targets shown as panes, in display order.
func (c *Config) ChatTargets() []Target {
	return []Target{c.OpenAIFetch, c.OpenAISDK, c.AnthropicSDK}
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(configDir, "triplechat"))
	v.AddConfigPath(".")

	setDefaults(v)

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand ${VAR} references, then fall back to the conventional env vars.
	cfg.OpenAIAPIKey = expandEnv(cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = expandEnv(cfg.AnthropicAPIKey)
	cfg.GeminiAPIKey = expandEnv(cfg.GeminiAPIKey)
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.AnthropicAPIKey == "" {
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system_prompt", "You are a helpful, friendly, assistant.")
	v.SetDefault("max_tokens", 800)
	v.SetDefault("char_limit", 12000)
	v.SetDefault("serve.port", 8001)
	v.SetDefault("serve.cors_origin", "http://localhost:3000")

	v.SetDefault("openai_fetch.name", "openai-fetch")
	v.SetDefault("openai_fetch.title", "OpenAI Fetch")
	v.SetDefault("openai_fetch.model", "gpt-3.5-turbo")
	v.SetDefault("openai_fetch.endpoint", "http://localhost:8001/openai-fetch")
	v.SetDefault("openai_fetch.greeting",
		"Hi there! I'm the OpenAI Fetch bot (GPT-3.5 Turbo). I use direct API calls without the SDK.")

	v.SetDefault("openai_sdk.name", "openai-sdk")
	v.SetDefault("openai_sdk.title", "OpenAI GPT-4o")
	v.SetDefault("openai_sdk.model", "gpt-4o")
	v.SetDefault("openai_sdk.endpoint", "http://localhost:8001/openai-sdk")
	v.SetDefault("openai_sdk.greeting",
		"Hello! I'm the OpenAI GPT-4o bot. I use the official OpenAI SDK through the relay.")

	v.SetDefault("anthropic_sdk.name", "anthropic-sdk")
	v.SetDefault("anthropic_sdk.title", "Anthropic Claude")
	v.SetDefault("anthropic_sdk.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic_sdk.endpoint", "http://localhost:8001/anthropic-sdk")
	v.SetDefault("anthropic_sdk.greeting",
		"Greetings! I'm the Anthropic Claude Sonnet bot. I use the Anthropic SDK through the relay.")

	v.SetDefault("gemini_sdk.name", "gemini-sdk")
	v.SetDefault("gemini_sdk.title", "Gemini")
	v.SetDefault("gemini_sdk.model", "gemini-2.0-flash")
	v.SetDefault("gemini_sdk.endpoint", "http://localhost:8001/gemini-sdk")
	v.SetDefault("gemini_sdk.greeting",
		"Hi! I'm the Gemini bot. I use the Gemini SDK through the relay.")
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "triplechat", "config.yaml"), nil
}
