package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider wraps the go-openai chat completion client.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider client.
func NewOpenAIProvider(apiKey string, timeout time.Duration) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate implements Provider.
func (p *OpenAIProvider) Generate(ctx context.Context, model string, req GenerateRequest) (*GenerateResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = req.Temperature
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &ProviderError{
			Provider: p.Name(),
			Kind:     KindBadResponse,
			Message:  "response contained no choices",
		}
	}

	choice := resp.Choices[0]
	return &GenerateResult{
		Text:         choice.Message.Content,
		Model:        resp.Model,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// classify maps go-openai errors onto the ProviderError taxonomy.
func (p *OpenAIProvider) classify(err error) *ProviderError {
	status := 0
	message := err.Error()

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
		message = apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	return &ProviderError{
		Provider: p.Name(),
		Kind:     kindFromStatus(status),
		Status:   status,
		Message:  message,
		Err:      err,
	}
}

// kindFromStatus derives the error kind from an HTTP status code.
// Status 0 means the request never completed (network failure).
func kindFromStatus(status int) ErrorKind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500:
		return KindOverloaded
	default:
		return KindBadResponse
	}
}

var _ Provider = (*OpenAIProvider)(nil)
