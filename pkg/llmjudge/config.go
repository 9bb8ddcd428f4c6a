package llmjudge

import (
	"fmt"
	"os"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultModel       = "gpt-4o"
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
	DefaultBaseURLEnv  = "OPENAI_BASE_URL"
)

// Config selects and configures the judge. Credentials are read from the
// environment variables it names, never stored in the config file.
type Config struct {
	Provider    string        `json:"provider,omitempty"`
	Model       string        `json:"model,omitempty"`
	BaseURL     string        `json:"baseUrl,omitempty"`
	BaseURLEnv  string        `json:"baseUrlEnv,omitempty"`
	APIKeyEnv   string        `json:"apiKeyEnv,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Timeout     time.Duration `json:"-"`
}

func (cfg Config) WithDefaults() Config {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Model == "" {
		if cfg.Provider == ProviderGemini {
			cfg.Model = DefaultGeminiModel
		} else {
			cfg.Model = DefaultModel
		}
	}
	if cfg.APIKeyEnv == "" {
		if cfg.Provider == ProviderGemini {
			cfg.APIKeyEnv = "GEMINI_API_KEY"
		} else {
			cfg.APIKeyEnv = DefaultAPIKeyEnv
		}
	}
	if cfg.BaseURLEnv == "" && cfg.Provider == ProviderOpenAI {
		cfg.BaseURLEnv = DefaultBaseURLEnv
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg
}

func (cfg *Config) APIKey() string {
	return os.Getenv(cfg.APIKeyEnv)
}

// BaseUrl returns the explicit base URL, or the one named by BaseURLEnv.
func (cfg *Config) BaseUrl() string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.BaseURLEnv == "" {
		return ""
	}
	return os.Getenv(cfg.BaseURLEnv)
}

func (cfg *Config) GetTemperature() float64 {
	if cfg.Temperature == nil {
		return DefaultTemperature
	}
	return *cfg.Temperature
}

func (cfg *Config) Validate() error {
	switch cfg.Provider {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown judge provider '%s': expected one of %s, %s", cfg.Provider, ProviderOpenAI, ProviderGemini)
	}

	if t := cfg.GetTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("judge temperature must be between 0 and 2, got %v", t)
	}

	return nil
}
