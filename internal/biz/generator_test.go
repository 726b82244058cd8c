package biz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"FlapBoard/internal/ai"
	"FlapBoard/internal/board"
	"FlapBoard/internal/conf"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubProvider is a canned AI provider.
type stubProvider struct {
	name  string
	res   *ai.GenerateResult
	err   error
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(ctx context.Context, model string, req ai.GenerateRequest) (*ai.GenerateResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.res, nil
}

// stubFactory hands out stub providers; unknown names surface the
// missing-key configuration error.
type stubFactory struct {
	providers map[string]*stubProvider
}

func (f *stubFactory) Provider(name string) (ai.Provider, error) {
	p, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("no API key configured for provider %q", name)
	}
	return p, nil
}

// stubPrompts renders every template to a fixed string.
type stubPrompts struct{}

func (stubPrompts) LoadPromptWithVariables(kind, filename string, vars map[string]any) (string, error) {
	return "prompt for " + kind, nil
}

// memFrameRepo keeps frames in memory, newest last.
type memFrameRepo struct {
	frames []model.Frame
}

func (r *memFrameRepo) Save(ctx context.Context, frame *model.Frame) error {
	frame.ID = int64(len(r.frames) + 1)
	r.frames = append(r.frames, *frame)
	return nil
}

func (r *memFrameRepo) Latest(ctx context.Context) (*model.Frame, error) {
	if len(r.frames) == 0 {
		return nil, nil
	}
	f := r.frames[len(r.frames)-1]
	return &f, nil
}

func (r *memFrameRepo) ListRecent(ctx context.Context, limit int) ([]model.Frame, error) {
	out := make([]model.Frame, 0, limit)
	for i := len(r.frames) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.frames[i])
	}
	return out, nil
}

type generatorFixture struct {
	uc      *GeneratorUsecase
	repo    *MockCircuitRepo
	events  *recordingEvents
	frames  *memFrameRepo
	openai  *stubProvider
	claude  *stubProvider
	factory *stubFactory
}

func testTiers() *conf.AI {
	return &conf.AI{
		Tiers: map[string][]conf.TierModel{
			"light": {
				{Provider: "openai", Model: "gpt-4o-mini"},
				{Provider: "anthropic", Model: "claude-3-5-haiku-latest"},
			},
			"solo": {
				{Provider: "openai", Model: "gpt-4o-mini"},
			},
		},
	}
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()
	logger := log.NewStdLogger(os.Stdout)

	repo := new(MockCircuitRepo)
	events := &recordingEvents{}
	breaker := NewCircuitBreakerUsecase(repo, events, &recordingNotifier{}, nil, logger)

	openai := &stubProvider{name: "openai", res: &ai.GenerateResult{Text: "HELLO", TokensUsed: 10}}
	claude := &stubProvider{name: "anthropic", res: &ai.GenerateResult{Text: "WORLD", TokensUsed: 12}}
	factory := &stubFactory{providers: map[string]*stubProvider{
		"openai": openai, "anthropic": claude,
	}}

	frames := &memFrameRepo{}
	uc := NewGeneratorUsecase(
		breaker,
		NewModelSelector(testTiers(), logger),
		factory,
		stubPrompts{},
		frames,
		events,
		board.NewLayout(6, 22),
		logger,
	)
	return &generatorFixture{
		uc: uc, repo: repo, events: events, frames: frames,
		openai: openai, claude: claude, factory: factory,
	}
}

// allowBreakerTraffic wires the circuit repo so every circuit reads as
// on and counter updates succeed.
func (f *generatorFixture) allowBreakerTraffic() {
	f.repo.On("GetState", mock.Anything, mock.Anything).Return(providerRecord(model.CircuitOn), nil)
	f.repo.On("RecordFailure", mock.Anything, mock.Anything).Return(1, nil)
	f.repo.On("RecordSuccess", mock.Anything, mock.Anything).Return(1, nil)
}

func lightGenerator() Generator {
	return Generator{
		Kind:           "haiku",
		SystemTemplate: "haiku_system.tmpl",
		UserTemplate:   "haiku_user.tmpl",
		Tier:           model.TierLight,
		OutputMode:     model.OutputModeText,
		MaxTokens:      120,
	}
}

func TestGenerate_PreferredProviderSucceeds(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()

	content, err := f.uc.Generate(context.Background(), lightGenerator())
	require.NoError(t, err)

	assert.Equal(t, "HELLO", content.Text)
	assert.Equal(t, "openai", content.Metadata.Provider)
	assert.False(t, content.Metadata.FailedOver)
	assert.Empty(t, content.Metadata.PrimaryError)
	assert.Equal(t, 0, f.claude.calls)
	f.repo.AssertCalled(t, "RecordSuccess", mock.Anything, model.CircuitProviderOpenAI)
}

func TestGenerate_FailsOverToAlternate(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()
	f.openai.err = &ai.ProviderError{Provider: "openai", Kind: ai.KindOverloaded, Status: 503, Message: "overloaded"}

	content, err := f.uc.Generate(context.Background(), lightGenerator())
	require.NoError(t, err)

	assert.Equal(t, "WORLD", content.Text)
	assert.Equal(t, "anthropic", content.Metadata.Provider)
	assert.True(t, content.Metadata.FailedOver)
	assert.Contains(t, content.Metadata.PrimaryError, "overloaded")
	assert.Equal(t, 1, f.openai.calls)
	assert.Equal(t, 1, f.claude.calls)
	f.repo.AssertCalled(t, "RecordFailure", mock.Anything, model.CircuitProviderOpenAI)
	f.repo.AssertCalled(t, "RecordSuccess", mock.Anything, model.CircuitProviderAnthropic)
}

func TestGenerate_BothProvidersFail(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()
	f.openai.err = errors.New("openai timeout")
	f.claude.err = errors.New("anthropic overloaded")

	_, err := f.uc.Generate(context.Background(), lightGenerator())
	require.Error(t, err)

	// The aggregated error carries the alternate's (last) failure.
	assert.Contains(t, err.Error(), "All AI providers failed for tier LIGHT")
	assert.Contains(t, err.Error(), "anthropic overloaded")
	assert.NotContains(t, err.Error(), "openai timeout")
}

func TestGenerate_NoAlternateConfigured(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()
	f.openai.err = errors.New("openai down")

	gen := lightGenerator()
	gen.Tier = model.ModelTier("SOLO")

	_, err := f.uc.Generate(context.Background(), gen)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "All AI providers failed for tier SOLO")
	assert.Contains(t, err.Error(), "openai down")
	assert.Equal(t, 1, f.openai.calls)
	assert.Equal(t, 0, f.claude.calls)
}

func TestGenerate_MissingKeyFailsFastWithoutFailover(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()
	delete(f.factory.providers, "openai")

	_, err := f.uc.Generate(context.Background(), lightGenerator())
	require.Error(t, err)

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "no API key configured")
	// Configuration errors never reach the alternate or the breaker.
	assert.Equal(t, 0, f.claude.calls)
	f.repo.AssertNotCalled(t, "RecordFailure", mock.Anything, mock.Anything)
}

func TestGenerate_OpenCircuitSkipsPreferredWithoutAttempt(t *testing.T) {
	f := newGeneratorFixture(t)

	open := providerRecord(model.CircuitOff)
	f.repo.On("GetState", mock.Anything, model.CircuitProviderOpenAI).Return(open, nil)
	f.repo.On("GetState", mock.Anything, model.CircuitProviderAnthropic).
		Return(providerRecord(model.CircuitOn), nil)
	f.repo.On("RecordSuccess", mock.Anything, mock.Anything).Return(1, nil)

	content, err := f.uc.Generate(context.Background(), lightGenerator())
	require.NoError(t, err)

	assert.Equal(t, 0, f.openai.calls)
	assert.Equal(t, "anthropic", content.Metadata.Provider)
	assert.True(t, content.Metadata.FailedOver)
	assert.Contains(t, content.Metadata.PrimaryError, "circuit is open")
}

func TestGenerate_BothCircuitsOpen(t *testing.T) {
	f := newGeneratorFixture(t)
	f.repo.On("GetState", mock.Anything, mock.Anything).Return(providerRecord(model.CircuitOff), nil)

	_, err := f.uc.Generate(context.Background(), lightGenerator())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "All AI providers failed for tier LIGHT")
	assert.Zero(t, f.openai.calls)
	assert.Zero(t, f.claude.calls)
}

func TestGenerateByKind_UnknownGenerator(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.uc.GenerateByKind(context.Background(), "weather")
	require.Error(t, err)

	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
	require.Len(t, f.events.failed, 0)
}

func TestGenerateByKind_StoresFittedFrame(t *testing.T) {
	f := newGeneratorFixture(t)
	f.allowBreakerTraffic()
	f.openai.res = &ai.GenerateResult{Text: "hello board", TokensUsed: 7}

	frame, err := f.uc.GenerateByKind(context.Background(), "haiku")
	require.NoError(t, err)
	require.NotNil(t, frame)

	// Stored text is laid out on the 6x22 grid: uppercased and centered.
	assert.Contains(t, frame.Text, "HELLO BOARD")
	assert.Equal(t, "haiku", frame.Generator)
	require.Len(t, f.events.generated, 1)
	assert.Equal(t, "haiku", f.events.generated[0].Generator)

	latest, err := f.uc.LatestFrame(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, frame.ID, latest.ID)
}

func TestRunCycle_MasterOffSuppressesGeneration(t *testing.T) {
	f := newGeneratorFixture(t)

	f.repo.On("GetState", mock.Anything, model.CircuitMaster).Return(&model.CircuitRecord{
		CircuitID: model.CircuitMaster,
		State:     model.CircuitOff,
	}, nil)

	frame, err := f.uc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Zero(t, f.openai.calls)
}

func TestRunCycle_SleepModeSuppressesGeneration(t *testing.T) {
	f := newGeneratorFixture(t)

	f.repo.On("GetState", mock.Anything, model.CircuitMaster).Return(&model.CircuitRecord{
		CircuitID: model.CircuitMaster,
		State:     model.CircuitOn,
	}, nil)
	// Sleep mode has inverted polarity: on means suppress.
	f.repo.On("GetState", mock.Anything, model.CircuitSleepMode).Return(&model.CircuitRecord{
		CircuitID: model.CircuitSleepMode,
		State:     model.CircuitOn,
	}, nil)

	frame, err := f.uc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Zero(t, f.openai.calls)
}

func TestGeneratorKinds_RotationRoster(t *testing.T) {
	f := newGeneratorFixture(t)
	assert.Equal(t, []string{"haiku", "fortune", "wordoftheday"}, f.uc.GeneratorKinds())
}
