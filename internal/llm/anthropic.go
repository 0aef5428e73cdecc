package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIVersion       = "2023-06-01"
	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 256
)

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicProvider implements MethodExtractor over the Messages API.
type AnthropicProvider struct {
	chatClient
	apiKey string
}

// AnthropicConfig holds the Anthropic connection settings.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewAnthropicProvider creates an Anthropic method extractor.
func NewAnthropicProvider(cfg AnthropicConfig, temperature float64, timeout time.Duration, maxRetries int) *AnthropicProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicProvider{
		chatClient: newChatClient("anthropic", baseURL, model, temperature, timeout, maxRetries),
		apiKey:     cfg.APIKey,
	}
}

// ExtractMethods asks the model which vocabulary methods the abstract uses.
// The answer is the first text block of the reply.
func (p *AnthropicProvider) ExtractMethods(ctx context.Context, abstract string, vocabulary []string) (string, error) {
	system, user := BuildMethodPrompt(abstract, vocabulary)
	req := messagesRequest{
		Model:       p.model,
		MaxTokens:   defaultAnthropicMaxTokens,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: user}},
		Temperature: p.temperature,
	}
	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", anthropicAPIVersion)

	var resp messagesResponse
	err := p.withRetry(ctx, func() error {
		return p.postJSON(ctx, "/v1/messages", header, req, &resp, parseAnthropicAPIError)
	})
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("anthropic: response contains no text content blocks")
}

func parseAnthropicAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{Provider: "anthropic", StatusCode: statusCode, Message: string(body)}

	var errResp anthropicErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
	}
	return apiErr
}
