package llm

import (
	"os"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_API_URL", "LLM_MAX_TOKENS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()

	if cfg.Provider != "" {
		t.Errorf("Provider = %q, want empty", cfg.Provider)
	}
	if cfg.Enabled() {
		t.Error("Enabled() = true for empty config")
	}
}

func TestLoadConfig_Enabled(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_MODEL", "llama3")
	t.Setenv("LLM_API_URL", "http://localhost:11434")

	cfg := LoadConfig()

	if !cfg.Enabled() {
		t.Error("Enabled() = false, want true")
	}
	if cfg.Model != "llama3" {
		t.Errorf("Model = %q, want %q", cfg.Model, "llama3")
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider(Config{Provider: "bard"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
