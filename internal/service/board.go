package service

import (
	"context"
	"time"

	"FlapBoard/internal/biz"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// BoardService exposes the frame surface over HTTP: the latest frame,
// recent history, and manual generation triggers.
type BoardService struct {
	generator *biz.GeneratorUsecase
	logger    *log.Helper
}

// NewBoardService creates a new board service.
func NewBoardService(generator *biz.GeneratorUsecase, logger log.Logger) *BoardService {
	return &BoardService{
		generator: generator,
		logger:    log.NewHelper(logger),
	}
}

// FrameView is the wire representation of one frame.
type FrameView struct {
	ID         int64     `json:"id"`
	Generator  string    `json:"generator"`
	Text       string    `json:"text"`
	OutputMode string    `json:"output_mode"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Tier       string    `json:"tier"`
	FailedOver bool      `json:"failed_over"`
	TokensUsed int       `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
}

func frameView(f model.Frame) FrameView {
	return FrameView{
		ID:         f.ID,
		Generator:  f.Generator,
		Text:       f.Text,
		OutputMode: string(f.OutputMode),
		Provider:   f.Provider,
		Model:      f.Model,
		Tier:       string(f.Tier),
		FailedOver: f.FailedOver,
		TokensUsed: f.TokensUsed,
		CreatedAt:  f.CreatedAt,
	}
}

// LatestFrame returns the most recently generated frame.
func (s *BoardService) LatestFrame(ctx context.Context) (*FrameView, error) {
	frame, err := s.generator.LatestFrame(ctx)
	if err != nil {
		return nil, errors.InternalServer("FRAME_QUERY_FAILED", err.Error())
	}
	if frame == nil {
		return nil, errors.NotFound("NO_FRAMES", "no frames have been generated yet")
	}
	view := frameView(*frame)
	return &view, nil
}

// ListFramesReply wraps the frame history response.
type ListFramesReply struct {
	Frames []FrameView `json:"frames"`
}

// RecentFrames returns up to limit frames, newest first.
func (s *BoardService) RecentFrames(ctx context.Context, limit int) (*ListFramesReply, error) {
	frames, err := s.generator.RecentFrames(ctx, limit)
	if err != nil {
		return nil, errors.InternalServer("FRAME_QUERY_FAILED", err.Error())
	}
	reply := &ListFramesReply{Frames: make([]FrameView, 0, len(frames))}
	for _, f := range frames {
		reply.Frames = append(reply.Frames, frameView(f))
	}
	return reply, nil
}

// ListGeneratorsReply wraps the generator kinds response.
type ListGeneratorsReply struct {
	Generators []string `json:"generators"`
}

// ListGenerators returns the registered generator kinds.
func (s *BoardService) ListGenerators(ctx context.Context) (*ListGeneratorsReply, error) {
	return &ListGeneratorsReply{Generators: s.generator.GeneratorKinds()}, nil
}

// GenerateFrame runs one generation for the named generator kind and
// returns the stored frame. The manual trigger bypasses the cron
// schedule and the kill switches, but not the provider circuits.
func (s *BoardService) GenerateFrame(ctx context.Context, kind string) (*FrameView, error) {
	frame, err := s.generator.GenerateByKind(ctx, kind)
	if err != nil {
		var cfgErr *biz.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, errors.BadRequest("GENERATION_MISCONFIGURED", err.Error())
		}
		return nil, errors.InternalServer("GENERATION_FAILED", err.Error())
	}

	s.logger.Infow("frame generated via admin trigger",
		"generator", kind,
		"provider", frame.Provider,
		"failed_over", frame.FailedOver)
	view := frameView(*frame)
	return &view, nil
}
