package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIVersion     = "2023-06-01"
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultMaxTok  = 1024
)

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// AnthropicProvider talks to the Anthropic Messages API directly; there
// is no official Go SDK to wrap.
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewAnthropicProvider creates an Anthropic provider client. baseURL
// may be empty to use the public endpoint.
func NewAnthropicProvider(apiKey, baseURL string, timeout time.Duration) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicProvider{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate implements Provider.
func (p *AnthropicProvider) Generate(ctx context.Context, model string, req GenerateRequest) (*GenerateResult, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTok
	}

	payload := anthropicRequest{
		Model:     model,
		System:    req.SystemPrompt,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.Temperature > 0 {
		payload.Temperature = &req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindBadResponse,
			Message:  fmt.Sprintf("marshaling request: %v", err),
			Err:      err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindBadResponse,
			Message:  fmt.Sprintf("creating request: %v", err),
			Err:      err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindNetwork,
			Message:  err.Error(),
			Err:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindNetwork,
			Message:  fmt.Sprintf("reading response: %v", err),
			Err:      err,
		}
	}

	var parsed anthropicResponse
	if resp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			message = parsed.Error.Message
		}
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     kindFromStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  message,
		}
	}

	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindBadResponse,
			Status:   resp.StatusCode,
			Message:  fmt.Sprintf("parsing response: %v", err),
			Err:      err,
		}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindBadResponse,
			Status:   resp.StatusCode,
			Message:  "response contained no text blocks",
		}
	}

	return &GenerateResult{
		Text:         text.String(),
		Model:        parsed.Model,
		TokensUsed:   parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		FinishReason: parsed.StopReason,
	}, nil
}

var _ Provider = (*AnthropicProvider)(nil)
