package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FlapBoard/internal/biz"
	"FlapBoard/internal/data"
	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// CircuitService exposes circuit administration over HTTP: listing
// state, flipping the manual kill switches, resetting provider
// circuits, and the event history view.
type CircuitService struct {
	breaker *biz.CircuitBreakerUsecase
	events  *data.EventLoggerImpl
	logger  *log.Helper
}

// NewCircuitService creates a new circuit service.
func NewCircuitService(breaker *biz.CircuitBreakerUsecase, events *data.EventLoggerImpl, logger log.Logger) *CircuitService {
	return &CircuitService{
		breaker: breaker,
		events:  events,
		logger:  log.NewHelper(logger),
	}
}

// CircuitView is the wire representation of one circuit.
type CircuitView struct {
	CircuitID      string     `json:"circuit_id"`
	CircuitType    string     `json:"circuit_type"`
	State          string     `json:"state"`
	FailureCount   int        `json:"failure_count"`
	SuccessCount   int        `json:"success_count"`
	Threshold      int        `json:"threshold"`
	LastFailureAt  *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	StateChangedAt time.Time  `json:"state_changed_at"`
}

func circuitView(rec model.CircuitRecord) CircuitView {
	return CircuitView{
		CircuitID:      rec.CircuitID,
		CircuitType:    string(rec.CircuitType),
		State:          string(rec.State),
		FailureCount:   rec.FailureCount,
		SuccessCount:   rec.SuccessCount,
		Threshold:      rec.FailureThreshold,
		LastFailureAt:  rec.LastFailureAt,
		LastSuccessAt:  rec.LastSuccessAt,
		StateChangedAt: rec.StateChangedAt,
	}
}

// ListCircuitsReply wraps the circuit list response.
type ListCircuitsReply struct {
	Circuits []CircuitView `json:"circuits"`
}

// ListCircuits returns all circuits, optionally filtered by type
// ("manual" or "provider").
func (s *CircuitService) ListCircuits(ctx context.Context, circuitType string) (*ListCircuitsReply, error) {
	var records []model.CircuitRecord
	switch circuitType {
	case "":
		records = s.breaker.GetAllCircuits(ctx)
	case string(model.CircuitTypeManual), string(model.CircuitTypeProvider):
		records = s.breaker.GetCircuitsByType(ctx, model.CircuitType(circuitType))
	default:
		return nil, errors.BadRequest("INVALID_CIRCUIT_TYPE",
			fmt.Sprintf("unknown circuit type %q", circuitType))
	}

	reply := &ListCircuitsReply{Circuits: make([]CircuitView, 0, len(records))}
	for _, rec := range records {
		reply.Circuits = append(reply.Circuits, circuitView(rec))
	}
	return reply, nil
}

// GetCircuit returns one circuit by ID.
func (s *CircuitService) GetCircuit(ctx context.Context, circuitID string) (*CircuitView, error) {
	rec := s.breaker.GetCircuitStatus(ctx, circuitID)
	if rec == nil {
		return nil, errors.NotFound("CIRCUIT_NOT_FOUND",
			fmt.Sprintf("circuit %q not found", circuitID))
	}
	view := circuitView(*rec)
	return &view, nil
}

// SetCircuitStateRequest is the body of the set-state endpoint.
type SetCircuitStateRequest struct {
	State string `json:"state"`
}

// SetCircuitState moves a circuit to the requested state. Any circuit
// may be moved to any state; this is the administrative override.
func (s *CircuitService) SetCircuitState(ctx context.Context, circuitID string, req *SetCircuitStateRequest) (*CircuitView, error) {
	state := model.CircuitState(req.State)
	if !state.Valid() {
		return nil, errors.BadRequest("INVALID_CIRCUIT_STATE",
			fmt.Sprintf("unknown circuit state %q", req.State))
	}
	if s.breaker.GetCircuitStatus(ctx, circuitID) == nil {
		return nil, errors.NotFound("CIRCUIT_NOT_FOUND",
			fmt.Sprintf("circuit %q not found", circuitID))
	}

	s.breaker.SetCircuitState(ctx, circuitID, state)
	return s.GetCircuit(ctx, circuitID)
}

// ResetCircuit force-closes a provider circuit and zeroes its counters.
func (s *CircuitService) ResetCircuit(ctx context.Context, circuitID string) (*CircuitView, error) {
	rec := s.breaker.GetCircuitStatus(ctx, circuitID)
	if rec == nil {
		return nil, errors.NotFound("CIRCUIT_NOT_FOUND",
			fmt.Sprintf("circuit %q not found", circuitID))
	}
	if rec.CircuitType != model.CircuitTypeProvider {
		return nil, errors.BadRequest("NOT_A_PROVIDER_CIRCUIT",
			fmt.Sprintf("circuit %q is not a provider circuit", circuitID))
	}

	s.breaker.ResetProviderCircuit(ctx, circuitID)
	return s.GetCircuit(ctx, circuitID)
}

// GetProviderStatus returns the derived availability view for one
// provider circuit.
func (s *CircuitService) GetProviderStatus(ctx context.Context, provider string) (*model.ProviderCircuitStatus, error) {
	circuitID := model.ProviderCircuitID(provider)
	if circuitID == "" {
		return nil, errors.BadRequest("UNKNOWN_PROVIDER",
			fmt.Sprintf("unknown provider %q", provider))
	}
	status := s.breaker.GetProviderStatus(ctx, circuitID)
	if status == nil {
		return nil, errors.NotFound("CIRCUIT_NOT_FOUND",
			fmt.Sprintf("circuit %q not found", circuitID))
	}
	return status, nil
}

// EventView is the wire representation of one event log entry.
type EventView struct {
	ID        uint64          `json:"id"`
	EventType string          `json:"event_type"`
	CircuitID string          `json:"circuit_id,omitempty"`
	Generator string          `json:"generator,omitempty"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListEventsReply wraps the event history response.
type ListEventsReply struct {
	Events []EventView `json:"events"`
}

// ListEvents returns the newest circuit and generation events.
func (s *CircuitService) ListEvents(ctx context.Context, limit int) (*ListEventsReply, error) {
	events, err := s.events.ListRecent(ctx, limit)
	if err != nil {
		return nil, errors.InternalServer("EVENT_QUERY_FAILED", err.Error())
	}

	reply := &ListEventsReply{Events: make([]EventView, 0, len(events))}
	for _, ev := range events {
		details := json.RawMessage(ev.Details)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}
		reply.Events = append(reply.Events, EventView{
			ID:        ev.ID,
			EventType: ev.EventType,
			CircuitID: ev.CircuitID,
			Generator: ev.Generator,
			Details:   details,
			CreatedAt: ev.CreatedAt,
		})
	}
	return reply, nil
}
