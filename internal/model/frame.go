package model

import "time"

// OutputMode describes how a frame is rendered on the board.
type OutputMode string

// Output mode constants.
const (
	// OutputModeText is plain text laid out on the character grid.
	OutputModeText OutputMode = "text"
	// OutputModeGraphic is a raw character-code layout (color chips etc.).
	OutputModeGraphic OutputMode = "graphic"
)

// ModelTier is the cost/quality class of an AI model. A generator picks
// its tier once at construction time, not per call.
type ModelTier string

// Model tier constants.
const (
	TierLight  ModelTier = "LIGHT"
	TierMedium ModelTier = "MEDIUM"
	TierHeavy  ModelTier = "HEAVY"
)

// ModelSelection is the (provider, model) pair chosen for one generation
// attempt. Transient; never persisted.
type ModelSelection struct {
	Provider string
	Model    string
	Tier     ModelTier
}

// GenerationMetadata describes how a frame was produced.
type GenerationMetadata struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Tier         ModelTier `json:"tier"`
	TokensUsed   int       `json:"tokens_used"`
	FailedOver   bool      `json:"failed_over,omitempty"`
	PrimaryError string    `json:"primary_error,omitempty"`
}

// GeneratedContent is the result of one generation call.
type GeneratedContent struct {
	Text       string
	OutputMode OutputMode
	Metadata   GenerationMetadata
}

// Frame is the GORM model for the frames table: one persisted board frame.
type Frame struct {
	ID         int64      `gorm:"primaryKey;column:id"`
	Generator  string     `gorm:"column:generator;size:50;not null;index"`
	Text       string     `gorm:"column:text;type:text;not null"`
	OutputMode OutputMode `gorm:"column:output_mode;type:enum('text','graphic');not null"`
	Provider   string     `gorm:"column:provider;size:50;not null"`
	Model      string     `gorm:"column:model;size:100;not null"`
	Tier       ModelTier  `gorm:"column:tier;size:10;not null"`
	FailedOver bool       `gorm:"column:failed_over;not null;default:false"`
	TokensUsed int        `gorm:"column:tokens_used;not null;default:0"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM.
func (Frame) TableName() string {
	return "frames"
}
