package llm

import (
	"fmt"
	"strings"

	"github.com/cbattlegear/forkalytics/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

func LoadConfig() Config {
	return Config{
		Provider:  config.GetEnv("LLM_PROVIDER", ""),
		Model:     config.GetEnv("LLM_MODEL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// Enabled reports whether enough configuration is present to talk to a model.
// Topic extraction and daily summaries are skipped when this is false.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Provider) != "" && strings.TrimSpace(c.Model) != ""
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
