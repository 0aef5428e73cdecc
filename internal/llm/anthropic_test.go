package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ MethodExtractor = (*AnthropicProvider)(nil)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc, maxRetries int) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider := NewAnthropicProvider(AnthropicConfig{
		APIKey:  "test-key",
		Model:   "claude-test",
		BaseURL: server.URL,
	}, 0, 5*time.Second, maxRetries)
	provider.retryDelay = time.Millisecond
	return provider
}

func TestAnthropicProvider_ExtractMethods(t *testing.T) {
	t.Run("returns first text block", func(t *testing.T) {
		var received messagesRequest
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(messagesResponse{
				Content: []contentBlock{
					{Type: "thinking"},
					{Type: "text", Text: "mouse model, plaque assay"},
				},
			})
		}, 0)

		answer, err := provider.ExtractMethods(context.Background(), "abstract", []string{"mouse model", "plaque assay"})

		require.NoError(t, err)
		assert.Equal(t, "mouse model, plaque assay", answer)
		assert.Equal(t, "claude-test", received.Model)
		assert.Contains(t, received.System, "allowed methods")
		require.Len(t, received.Messages, 1)
		assert.Equal(t, "user", received.Messages[0].Role)
	})

	t.Run("no text block is an error", func(t *testing.T) {
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(messagesResponse{})
		}, 0)

		_, err := provider.ExtractMethods(context.Background(), "abstract", nil)
		assert.Error(t, err)
	})

	t.Run("retries overloaded", func(t *testing.T) {
		var calls atomic.Int32
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(529)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(messagesResponse{Content: []contentBlock{{Type: "text", Text: ""}}})
		}, 1)

		answer, err := provider.ExtractMethods(context.Background(), "abstract", nil)

		require.NoError(t, err)
		assert.Empty(t, answer)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client error is typed", func(t *testing.T) {
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
		}, 2)

		_, err := provider.ExtractMethods(context.Background(), "abstract", nil)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_request_error", apiErr.Type)
		assert.Equal(t, "bad", apiErr.Message)
	})
}
