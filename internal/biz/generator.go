package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FlapBoard/internal/ai"
	"FlapBoard/internal/board"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Generator is a thin content generator: a prompt template pair, a model
// tier, and an output mode. All generators share the same failover-aware
// generation engine below.
type Generator struct {
	Kind           string
	SystemTemplate string
	UserTemplate   string
	Tier           model.ModelTier
	OutputMode     model.OutputMode
	MaxTokens      int
	Temperature    float32
	// Vars produces the per-cycle template variables (date, topic, ...).
	Vars func(now time.Time) map[string]any
}

// ConfigError marks a configuration failure (missing API key, unknown
// generator) that must fail fast: it is surfaced to the caller directly
// and never triggers failover or breaker bookkeeping.
type ConfigError struct {
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// GeneratorUsecase orchestrates frame generation: select a model for the
// generator's tier, attempt the preferred provider, fail over once to an
// alternate provider, and feed every attempt's outcome into the circuit
// breaker. The two attempts are strictly sequential; the preferred
// attempt always completes before the alternate begins.
type GeneratorUsecase struct {
	breaker    *CircuitBreakerUsecase
	selector   *ModelSelector
	providers  ProviderFactory
	prompts    PromptLoader
	frames     FrameRepo
	events     EventLogger
	layout     *board.Layout
	generators []Generator
	mu         sync.Mutex
	cycleIdx   int
	logger     *log.Helper
}

// NewGeneratorUsecase creates the generation use case with the built-in
// generator roster.
func NewGeneratorUsecase(
	breaker *CircuitBreakerUsecase,
	selector *ModelSelector,
	providers ProviderFactory,
	prompts PromptLoader,
	frames FrameRepo,
	events EventLogger,
	layout *board.Layout,
	logger log.Logger,
) *GeneratorUsecase {
	return &GeneratorUsecase{
		breaker:    breaker,
		selector:   selector,
		providers:  providers,
		prompts:    prompts,
		frames:     frames,
		events:     events,
		layout:     layout,
		generators: BuiltinGenerators(),
		logger:     log.NewHelper(logger),
	}
}

// Generate runs one failover-aware generation for the given generator.
//
// The preferred provider is skipped without an attempt when its circuit
// is open; the alternate is consulted the same way. The only errors that
// escape are configuration errors and the aggregated all-providers-failed
// error; breaker bookkeeping never blocks or fails a generation.
func (uc *GeneratorUsecase) Generate(ctx context.Context, gen Generator) (*model.GeneratedContent, error) {
	vars := map[string]any{}
	if gen.Vars != nil {
		vars = gen.Vars(time.Now())
	}

	systemPrompt, err := uc.prompts.LoadPromptWithVariables(gen.Kind, gen.SystemTemplate, vars)
	if err != nil {
		return nil, fmt.Errorf("loading system prompt for %s: %w", gen.Kind, err)
	}
	userPrompt, err := uc.prompts.LoadPromptWithVariables(gen.Kind, gen.UserTemplate, vars)
	if err != nil {
		return nil, fmt.Errorf("loading user prompt for %s: %w", gen.Kind, err)
	}

	sel, err := uc.selector.Select(gen.Tier)
	if err != nil {
		return nil, err
	}

	attemptID := uuid.New().String()[:8]

	var primaryErr error
	if uc.providerBlocked(ctx, sel.Provider) {
		primaryErr = fmt.Errorf("provider %s circuit is open", sel.Provider)
		uc.logger.Warnw("skipping preferred provider",
			"attempt_id", attemptID,
			"generator", gen.Kind,
			"provider", sel.Provider)
	} else {
		res, err := uc.attempt(ctx, sel, systemPrompt, userPrompt, gen)
		if err == nil {
			return buildContent(gen, sel, res, false, nil), nil
		}
		var ce *ConfigError
		if errors.As(err, &ce) {
			return nil, err
		}
		primaryErr = err
		uc.logger.Warnw("preferred provider attempt failed",
			"attempt_id", attemptID,
			"generator", gen.Kind,
			"provider", sel.Provider,
			"model", sel.Model,
			"error", err)
	}

	lastErr := primaryErr
	if alt := uc.selector.Alternate(sel); alt != nil {
		if uc.providerBlocked(ctx, alt.Provider) {
			uc.logger.Warnw("skipping alternate provider",
				"attempt_id", attemptID,
				"generator", gen.Kind,
				"provider", alt.Provider)
		} else {
			res, err := uc.attempt(ctx, alt, systemPrompt, userPrompt, gen)
			if err == nil {
				uc.logger.Infow("generation failed over to alternate provider",
					"attempt_id", attemptID,
					"generator", gen.Kind,
					"provider", alt.Provider,
					"model", alt.Model)
				return buildContent(gen, alt, res, true, primaryErr), nil
			}
			var ce *ConfigError
			if errors.As(err, &ce) {
				return nil, err
			}
			lastErr = err
		}
	}

	return nil, fmt.Errorf("All AI providers failed for tier %s: %v", gen.Tier, lastErr)
}

// providerBlocked consults the breaker before an attempt. Providers
// without a registered circuit are never blocked.
func (uc *GeneratorUsecase) providerBlocked(ctx context.Context, provider string) bool {
	circuitID := model.ProviderCircuitID(provider)
	return circuitID != "" && !uc.breaker.IsProviderAvailable(ctx, circuitID)
}

// attempt runs one provider call and feeds the outcome into the breaker.
func (uc *GeneratorUsecase) attempt(ctx context.Context, sel *model.ModelSelection, systemPrompt, userPrompt string, gen Generator) (*ai.GenerateResult, error) {
	provider, err := uc.providers.Provider(sel.Provider)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	res, err := provider.Generate(ctx, sel.Model, ai.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    gen.MaxTokens,
		Temperature:  gen.Temperature,
	})

	circuitID := model.ProviderCircuitID(sel.Provider)
	if err != nil {
		if circuitID != "" {
			uc.breaker.RecordProviderFailure(ctx, circuitID, err)
		}
		return nil, err
	}
	if circuitID != "" {
		uc.breaker.RecordProviderSuccess(ctx, circuitID)
	}
	return res, nil
}

// buildContent assembles the generation result and its metadata.
func buildContent(gen Generator, sel *model.ModelSelection, res *ai.GenerateResult, failedOver bool, primaryErr error) *model.GeneratedContent {
	usedModel := res.Model
	if usedModel == "" {
		usedModel = sel.Model
	}
	meta := model.GenerationMetadata{
		Provider:   sel.Provider,
		Model:      usedModel,
		Tier:       sel.Tier,
		TokensUsed: res.TokensUsed,
		FailedOver: failedOver,
	}
	if primaryErr != nil {
		meta.PrimaryError = primaryErr.Error()
	}
	return &model.GeneratedContent{
		Text:       res.Text,
		OutputMode: gen.OutputMode,
		Metadata:   meta,
	}
}

// generateAndStore runs one generation, lays the text out on the board
// grid, and persists the frame.
func (uc *GeneratorUsecase) generateAndStore(ctx context.Context, gen Generator) (*model.Frame, error) {
	content, err := uc.Generate(ctx, gen)
	if err != nil {
		uc.events.LogGenerationFailed(ctx, gen.Kind, gen.Tier, err.Error())
		return nil, err
	}

	text := content.Text
	if content.OutputMode == model.OutputModeText {
		text = uc.layout.Fit(text)
	}

	frame := &model.Frame{
		Generator:  gen.Kind,
		Text:       text,
		OutputMode: content.OutputMode,
		Provider:   content.Metadata.Provider,
		Model:      content.Metadata.Model,
		Tier:       content.Metadata.Tier,
		FailedOver: content.Metadata.FailedOver,
		TokensUsed: content.Metadata.TokensUsed,
	}
	if err := uc.frames.Save(ctx, frame); err != nil {
		return nil, fmt.Errorf("saving frame: %w", err)
	}

	uc.events.LogFrameGenerated(ctx, model.FrameGeneratedEvent{
		Generator:  gen.Kind,
		Provider:   content.Metadata.Provider,
		Model:      content.Metadata.Model,
		Tier:       string(content.Metadata.Tier),
		FailedOver: content.Metadata.FailedOver,
		TokensUsed: content.Metadata.TokensUsed,
	})
	return frame, nil
}

// RunCycle runs one scheduled generation: honor the kill switches, pick
// the next generator in rotation, generate, and store the frame. Returns
// (nil, nil) when generation is suppressed by a kill switch.
func (uc *GeneratorUsecase) RunCycle(ctx context.Context) (*model.Frame, error) {
	if uc.breaker.IsCircuitOpen(ctx, model.CircuitMaster) {
		uc.logger.Infow("generation suppressed", "reason", "master kill switch is off")
		return nil, nil
	}
	// SLEEP_MODE polarity is inverted: the switch being ON suppresses
	// output.
	if rec := uc.breaker.GetCircuitStatus(ctx, model.CircuitSleepMode); rec != nil && rec.State == model.CircuitOn {
		uc.logger.Infow("generation suppressed", "reason", "sleep mode is on")
		return nil, nil
	}

	gen := uc.nextGenerator()
	return uc.generateAndStore(ctx, gen)
}

// GenerateByKind runs one on-demand generation for the named generator.
func (uc *GeneratorUsecase) GenerateByKind(ctx context.Context, kind string) (*model.Frame, error) {
	for _, gen := range uc.generators {
		if gen.Kind == kind {
			return uc.generateAndStore(ctx, gen)
		}
	}
	return nil, &ConfigError{Err: fmt.Errorf("unknown generator %q", kind)}
}

// GeneratorKinds lists the registered generator kinds in rotation order.
func (uc *GeneratorUsecase) GeneratorKinds() []string {
	kinds := make([]string, len(uc.generators))
	for i, gen := range uc.generators {
		kinds[i] = gen.Kind
	}
	return kinds
}

// LatestFrame returns the most recently stored frame, or (nil, nil) when
// none exists yet.
func (uc *GeneratorUsecase) LatestFrame(ctx context.Context) (*model.Frame, error) {
	return uc.frames.Latest(ctx)
}

// RecentFrames returns up to limit frames, newest first.
func (uc *GeneratorUsecase) RecentFrames(ctx context.Context, limit int) ([]model.Frame, error) {
	return uc.frames.ListRecent(ctx, limit)
}

// nextGenerator advances the round-robin rotation.
func (uc *GeneratorUsecase) nextGenerator() Generator {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	gen := uc.generators[uc.cycleIdx%len(uc.generators)]
	uc.cycleIdx++
	return gen
}
