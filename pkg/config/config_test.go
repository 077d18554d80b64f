package config

import (
	"testing"
	"time"

	"github.com/moltocasto/podcast-qa/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LLM_PROVIDER", "CHUNK_MAX_TOKENS", "MODEL_MAX_TOKENS", "OLLAMA_BASE_URL", "OLLAMA_CHAT_URL", "SPEECH_POLL_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaChatURL)
	assert.Equal(t, 5*time.Second, cfg.SpeechPollInterval)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, chunker.Options{MaxTokens: 819, FlushTrailing: true, DropSkipped: true}, cfg.ChunkOptions())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_TOKEN", "secret")
	t.Setenv("CHUNK_MAX_TOKENS", "200")
	t.Setenv("CHUNK_DROP_SKIPPED", "false")
	t.Setenv("RAG_TOP_K", "not-a-number")

	cfg := Load()
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaEmbedURL)
	assert.Equal(t, "secret", cfg.OllamaChatToken)
	assert.Equal(t, 5, cfg.RAGTopK)

	opts := cfg.ChunkOptions()
	assert.Equal(t, 200, opts.MaxTokens)
	assert.False(t, opts.DropSkipped)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero model max", func(c *Config) { c.ModelMaxTokens = 0 }, "MODEL_MAX_TOKENS"},
		{"negative chunk max", func(c *Config) { c.ChunkMaxTokens = -1 }, "CHUNK_MAX_TOKENS"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "bard" }, "unknown LLM_PROVIDER"},
		{"azure without target", func(c *Config) { c.LLMProvider = ProviderAzure }, "LLM_TARGET_URI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLMProvider: ProviderOpenAI, ModelMaxTokens: 8192}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDSNMasksPassword(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://podcast:hunter2@db:5432/podcast?sslmode=disable"}
	assert.NotContains(t, cfg.DSN(), "hunter2")
	assert.Contains(t, cfg.DSN(), "db:5432")
}
