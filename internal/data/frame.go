package data

import (
	"context"
	"errors"
	"fmt"

	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// FrameRepo implements biz.FrameRepo over MySQL.
type FrameRepo struct {
	data   *Data
	logger *log.Helper
}

// NewFrameRepo creates a new frame repository.
func NewFrameRepo(data *Data, logger log.Logger) *FrameRepo {
	return &FrameRepo{
		data:   data,
		logger: log.NewHelper(logger),
	}
}

// Save stores a new frame.
func (r *FrameRepo) Save(ctx context.Context, frame *model.Frame) error {
	if err := r.data.db.WithContext(ctx).Create(frame).Error; err != nil {
		return fmt.Errorf("failed to save frame: %w", err)
	}
	return nil
}

// Latest returns the most recently generated frame, or (nil, nil) when
// the table is empty.
func (r *FrameRepo) Latest(ctx context.Context) (*model.Frame, error) {
	var frame model.Frame
	err := r.data.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		First(&frame).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest frame: %w", err)
	}
	return &frame, nil
}

// ListRecent returns up to limit frames, newest first.
func (r *FrameRepo) ListRecent(ctx context.Context, limit int) ([]model.Frame, error) {
	if limit <= 0 {
		limit = 20
	}
	var frames []model.Frame
	err := r.data.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&frames).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	return frames, nil
}
