package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMethodExtractor_OpenAI(t *testing.T) {
	t.Parallel()

	cfg := FactoryConfig{
		Provider:    "openai",
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		Temperature: 0,
		OpenAI: OpenAIConfig{
			APIKey:  "sk-test-key",
			Model:   "gpt-4o",
			BaseURL: "https://api.openai.com/v1",
		},
	}

	extractor, err := NewMethodExtractor(cfg)

	require.NoError(t, err)
	require.NotNil(t, extractor)
	assert.Equal(t, "openai", extractor.Provider())
	assert.Equal(t, "gpt-4o", extractor.Model())
}

func TestNewMethodExtractor_Anthropic(t *testing.T) {
	t.Parallel()

	cfg := FactoryConfig{
		Provider: "anthropic",
		Timeout:  45 * time.Second,
		Anthropic: AnthropicConfig{
			APIKey: "sk-ant-test-key",
		},
	}

	extractor, err := NewMethodExtractor(cfg)

	require.NoError(t, err)
	require.NotNil(t, extractor)
	assert.Equal(t, "anthropic", extractor.Provider())
	assert.Equal(t, defaultAnthropicModel, extractor.Model())
}

func TestNewMethodExtractor_Disabled(t *testing.T) {
	t.Parallel()

	for _, provider := range []string{"", "none"} {
		extractor, err := NewMethodExtractor(FactoryConfig{Provider: provider})
		require.NoError(t, err)
		assert.Nil(t, extractor)
	}
}

func TestNewMethodExtractor_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     FactoryConfig
		wantErr string
	}{
		{name: "unknown provider", cfg: FactoryConfig{Provider: "gemini"}, wantErr: `unsupported LLM provider: "gemini"`},
		{name: "openai without key", cfg: FactoryConfig{Provider: "openai"}, wantErr: "api key is required"},
		{name: "anthropic without key", cfg: FactoryConfig{Provider: "anthropic"}, wantErr: "api key is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			extractor, err := NewMethodExtractor(tc.cfg)
			require.Error(t, err)
			assert.Nil(t, extractor)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
