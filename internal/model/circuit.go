package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// CircuitType represents the database ENUM type for circuit kind.
type CircuitType string

// Circuit type constants. Manual circuits change state only through
// administrative action; provider circuits are driven by the
// failure/success recording protocol.
const (
	CircuitTypeManual   CircuitType = "manual"
	CircuitTypeProvider CircuitType = "provider"
)

// Scan implements sql.Scanner for reading the ENUM column.
func (t *CircuitType) Scan(value interface{}) error {
	if value == nil {
		*t = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*t = CircuitType(v)
	case []byte:
		*t = CircuitType(v)
	default:
		return fmt.Errorf("cannot scan %T into CircuitType", value)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM column.
func (t CircuitType) Value() (driver.Value, error) {
	return string(t), nil
}

// CircuitState represents the database ENUM type for circuit state.
//
// Polarity note: this service follows the classic circuit-breaker
// vocabulary where an OPEN breaker blocks traffic. CircuitOff is the
// "open" breaker state; IsCircuitOpen reports true exactly when the
// stored state is CircuitOff.
type CircuitState string

// Circuit state constants.
const (
	CircuitOn       CircuitState = "on"        // closed breaker, traffic flows
	CircuitOff      CircuitState = "off"       // open breaker, traffic blocked
	CircuitHalfOpen CircuitState = "half_open" // probation, limited traffic
)

// Scan implements sql.Scanner for reading the ENUM column.
func (s *CircuitState) Scan(value interface{}) error {
	if value == nil {
		*s = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*s = CircuitState(v)
	case []byte:
		*s = CircuitState(v)
	default:
		return fmt.Errorf("cannot scan %T into CircuitState", value)
	}
	return nil
}

// Value implements driver.Valuer for writing the ENUM column.
func (s CircuitState) Value() (driver.Value, error) {
	return string(s), nil
}

// Valid reports whether s is one of the three known states.
func (s CircuitState) Valid() bool {
	switch s {
	case CircuitOn, CircuitOff, CircuitHalfOpen:
		return true
	}
	return false
}

// Well-known circuit IDs.
const (
	// CircuitMaster is the global kill switch: off blocks all generation.
	CircuitMaster = "MASTER"
	// CircuitSleepMode suppresses output while ON. Its polarity is
	// inverted relative to MASTER: sleep mode active means no frames.
	CircuitSleepMode = "SLEEP_MODE"
	// Provider circuits, auto-managed by the breaker protocol.
	CircuitProviderOpenAI    = "PROVIDER_OPENAI"
	CircuitProviderAnthropic = "PROVIDER_ANTHROPIC"
)

// Circuit breaker tuning constants.
const (
	// DefaultFailureThreshold is the consecutive-failure count that trips
	// a provider circuit from on to off.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout is how long a tripped circuit stays off before
	// the recovery sweeper moves it to half_open.
	DefaultResetTimeout = 5 * time.Minute
	// DefaultHalfOpenAttempts is the number of consecutive successes in
	// half_open required to close the circuit again.
	DefaultHalfOpenAttempts = 2
)

// CircuitDefinition is the static configuration for one circuit.
// Definitions are seeded into the store once; the persisted row is the
// source of truth afterwards.
type CircuitDefinition struct {
	CircuitID        string
	CircuitType      CircuitType
	DefaultState     CircuitState
	Description      string
	FailureThreshold int // only meaningful for provider circuits
}

// CircuitRegistry returns the full set of circuit definitions: the two
// manual kill switches plus one provider circuit per upstream AI vendor.
func CircuitRegistry() []CircuitDefinition {
	return []CircuitDefinition{
		{
			CircuitID:    CircuitMaster,
			CircuitType:  CircuitTypeManual,
			DefaultState: CircuitOn,
			Description:  "Global kill switch; off blocks all generation",
		},
		{
			CircuitID:    CircuitSleepMode,
			CircuitType:  CircuitTypeManual,
			DefaultState: CircuitOff,
			Description:  "Sleep mode; on suppresses frame generation",
		},
		{
			CircuitID:        CircuitProviderOpenAI,
			CircuitType:      CircuitTypeProvider,
			DefaultState:     CircuitOn,
			Description:      "OpenAI availability circuit",
			FailureThreshold: DefaultFailureThreshold,
		},
		{
			CircuitID:        CircuitProviderAnthropic,
			CircuitType:      CircuitTypeProvider,
			DefaultState:     CircuitOn,
			Description:      "Anthropic availability circuit",
			FailureThreshold: DefaultFailureThreshold,
		},
	}
}

// ProviderCircuitID maps an AI provider name to its circuit ID.
// Returns an empty string for unknown providers.
func ProviderCircuitID(provider string) string {
	switch provider {
	case "openai":
		return CircuitProviderOpenAI
	case "anthropic":
		return CircuitProviderAnthropic
	}
	return ""
}

// CircuitRecord is the GORM model for the circuit_breaker_states table,
// one row per circuit ID.
type CircuitRecord struct {
	CircuitID        string       `gorm:"primaryKey;column:circuit_id;size:64"`
	CircuitType      CircuitType  `gorm:"column:circuit_type;type:enum('manual','provider');not null"`
	State            CircuitState `gorm:"column:state;type:enum('on','off','half_open');not null"`
	FailureCount     int          `gorm:"column:failure_count;not null;default:0"`
	SuccessCount     int          `gorm:"column:success_count;not null;default:0"`
	FailureThreshold int          `gorm:"column:failure_threshold;not null;default:5"`
	LastFailureAt    *time.Time   `gorm:"column:last_failure_at"`
	LastSuccessAt    *time.Time   `gorm:"column:last_success_at"`
	StateChangedAt   time.Time    `gorm:"column:state_changed_at;not null"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (CircuitRecord) TableName() string {
	return "circuit_breaker_states"
}

// ProviderCircuitStatus projects a provider circuit's record plus the
// derived attempt gate for display and diagnostics.
type ProviderCircuitStatus struct {
	CircuitID      string        `json:"circuit_id"`
	State          CircuitState  `json:"state"`
	FailureCount   int           `json:"failure_count"`
	SuccessCount   int           `json:"success_count"`
	Threshold      int           `json:"threshold"`
	LastFailureAt  *time.Time    `json:"last_failure_at,omitempty"`
	LastSuccessAt  *time.Time    `json:"last_success_at,omitempty"`
	StateChangedAt time.Time     `json:"state_changed_at"`
	CanAttempt     bool          `json:"can_attempt"`
	ResetTimeout   time.Duration `json:"reset_timeout"`
}
