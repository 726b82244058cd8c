package biz

import (
	"context"

	"FlapBoard/internal/ai"
	"FlapBoard/internal/model"
)

// FrameRepo persists generated frames. Implementation is in data layer
// (data.FrameRepo).
type FrameRepo interface {
	// Save stores a new frame.
	Save(ctx context.Context, frame *model.Frame) error
	// Latest returns the most recently generated frame, or (nil, nil)
	// when no frame exists yet.
	Latest(ctx context.Context) (*model.Frame, error)
	// ListRecent returns up to limit frames, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.Frame, error)
}

// PromptLoader resolves prompt template text with per-call variables.
// Implementation is in internal/prompt.
type PromptLoader interface {
	// LoadPromptWithVariables loads the named template for a generator
	// kind and substitutes the given variables.
	LoadPromptWithVariables(kind, filename string, vars map[string]any) (string, error)
}

// ProviderFactory builds AI provider clients from configured credentials.
// A missing API key is a configuration error returned immediately.
// Implementation is ai.Factory.
type ProviderFactory interface {
	Provider(name string) (ai.Provider, error)
}
