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
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAIMaxTokens = 256
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAIProvider implements MethodExtractor over the Chat Completions API.
// Any endpoint speaking the same protocol works through BaseURL.
type OpenAIProvider struct {
	chatClient
	apiKey string
}

// OpenAIConfig holds the OpenAI connection settings.
type OpenAIConfig struct {
	APIKey string
	// Model defaults to gpt-4o-mini.
	Model string
	// BaseURL defaults to the public API.
	BaseURL string
}

// NewOpenAIProvider creates an OpenAI method extractor. Transient API errors
// are retried up to maxRetries times.
func NewOpenAIProvider(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries int) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		chatClient: newChatClient("openai", baseURL, model, temperature, timeout, maxRetries),
		apiKey:     cfg.APIKey,
	}
}

// ExtractMethods asks the model which vocabulary methods the abstract uses.
func (p *OpenAIProvider) ExtractMethods(ctx context.Context, abstract string, vocabulary []string) (string, error) {
	system, user := BuildMethodPrompt(abstract, vocabulary)
	req := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: p.temperature,
		MaxTokens:   defaultOpenAIMaxTokens,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	var resp chatResponse
	err := p.withRetry(ctx, func() error {
		return p.postJSON(ctx, "/chat/completions", header, req, &resp, parseOpenAIAPIError)
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func parseOpenAIAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{Provider: "openai", StatusCode: statusCode, Message: string(body)}

	var errResp openAIErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
		apiErr.Type = errResp.Error.Type
		apiErr.Code = errResp.Error.Code
	}
	return apiErr
}
