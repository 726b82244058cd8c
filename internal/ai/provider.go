// Package ai contains the upstream AI provider clients and the typed
// error taxonomy the circuit breaker discriminates on.
package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FlapBoard/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrorKind classifies a provider failure. The breaker only
// special-cases KindAuth (threshold override to 1); every other kind
// counts toward the normal failure threshold.
type ErrorKind string

// Provider error kinds.
const (
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindOverloaded  ErrorKind = "overloaded"
	KindNetwork     ErrorKind = "network"
	KindBadResponse ErrorKind = "bad_response"
)

// ProviderError is the typed error returned by every provider client.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int // HTTP status when available, 0 otherwise
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err is a provider authentication failure.
// A bad or revoked API key will not self-heal by retrying, so the
// breaker trips on the first occurrence.
func IsAuthError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindAuth
}

// ErrorKindOf extracts the error kind from err, or KindBadResponse if
// err is not a ProviderError.
func ErrorKindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindBadResponse
}

// GenerateRequest carries the resolved prompt pair for one attempt.
type GenerateRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// GenerateResult is the provider's answer to a GenerateRequest.
type GenerateResult struct {
	Text         string
	Model        string
	TokensUsed   int
	FinishReason string
}

// Provider is a single upstream AI vendor.
type Provider interface {
	// Name returns the provider identifier ("openai", "anthropic").
	Name() string
	// Generate runs one completion against the given model. Failures
	// are returned as *ProviderError.
	Generate(ctx context.Context, model string, req GenerateRequest) (*GenerateResult, error)
}

// Factory constructs and caches provider clients from the configured
// API-key map. A missing key is a configuration error surfaced
// immediately; it is never retried.
type Factory struct {
	cfg     *conf.AI
	logger  *log.Helper
	mu      sync.Mutex
	clients map[string]Provider
}

// NewFactory creates a provider factory from configuration.
func NewFactory(cfg *conf.AI, logger log.Logger) *Factory {
	return &Factory{
		cfg:     cfg,
		logger:  log.NewHelper(logger),
		clients: make(map[string]Provider),
	}
}

// Provider returns the client for the named provider, building it on
// first use.
func (f *Factory) Provider(name string) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.clients[name]; ok {
		return p, nil
	}

	timeout := f.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var p Provider
	switch name {
	case "openai":
		key := f.cfg.OpenAIAPIKey
		if key == "" {
			return nil, fmt.Errorf("no API key configured for provider %q", name)
		}
		p = NewOpenAIProvider(key, timeout)
	case "anthropic":
		key := f.cfg.AnthropicAPIKey
		if key == "" {
			return nil, fmt.Errorf("no API key configured for provider %q", name)
		}
		p = NewAnthropicProvider(key, f.cfg.AnthropicBaseURL, timeout)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}

	f.logger.Infow("provider client initialized", "provider", name)
	f.clients[name] = p
	return p, nil
}
