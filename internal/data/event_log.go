package data

import (
	"context"
	"encoding/json"
	"time"

	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// EventLog is the persisted form of a circuit or generation event.
type EventLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	EventType string    `gorm:"type:varchar(64);not null;index:idx_event_type"`
	CircuitID string    `gorm:"type:varchar(64);index:idx_circuit_id"`
	Generator string    `gorm:"type:varchar(64)"`
	Details   string    `gorm:"type:json"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_created_at"`
}

// TableName returns the table name for the EventLog model.
func (EventLog) TableName() string {
	return "event_logs"
}

const eventQueueSize = 1000

// EventLoggerImpl implements biz.EventLogger with an asynchronous
// buffered writer. Log calls enqueue and return immediately; a single
// background goroutine drains the queue into MySQL. When the queue is
// full the event is dropped with a warning rather than blocking the
// generation path.
type EventLoggerImpl struct {
	data   *Data
	queue  chan *EventLog
	logger *log.Helper
}

// NewEventLogger creates the event logger and starts its writer
// goroutine.
func NewEventLogger(data *Data, logger log.Logger) *EventLoggerImpl {
	l := &EventLoggerImpl{
		data:   data,
		queue:  make(chan *EventLog, eventQueueSize),
		logger: log.NewHelper(logger),
	}
	go l.run()
	return l
}

func (l *EventLoggerImpl) run() {
	for entry := range l.queue {
		if err := l.data.db.Create(entry).Error; err != nil {
			l.logger.Errorw("failed to persist event log",
				"event_type", entry.EventType,
				"circuit_id", entry.CircuitID,
				"error", err)
		}
	}
}

// enqueue adds an entry to the write queue, dropping it when full.
func (l *EventLoggerImpl) enqueue(entry *EventLog) {
	select {
	case l.queue <- entry:
	default:
		l.logger.Warnw("event log queue full, dropping event",
			"event_type", entry.EventType,
			"circuit_id", entry.CircuitID)
	}
}

// marshalDetails serializes event payloads. A marshal failure yields an
// empty details column, never a dropped event.
func (l *EventLoggerImpl) marshalDetails(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		l.logger.Warnw("failed to marshal event details", "error", err)
		return "{}"
	}
	return string(raw)
}

func (l *EventLoggerImpl) LogCircuitTripped(ctx context.Context, ev model.CircuitTrippedEvent) {
	l.enqueue(&EventLog{
		EventType: model.EventCircuitTripped,
		CircuitID: ev.CircuitID,
		Details:   l.marshalDetails(ev),
	})
}

func (l *EventLoggerImpl) LogCircuitRecovered(ctx context.Context, ev model.CircuitRecoveredEvent) {
	l.enqueue(&EventLog{
		EventType: model.EventCircuitRecovered,
		CircuitID: ev.CircuitID,
		Details:   l.marshalDetails(ev),
	})
}

func (l *EventLoggerImpl) LogCircuitSetState(ctx context.Context, circuitID string, state model.CircuitState) {
	l.enqueue(&EventLog{
		EventType: model.EventCircuitSetState,
		CircuitID: circuitID,
		Details:   l.marshalDetails(map[string]string{"state": string(state)}),
	})
}

func (l *EventLoggerImpl) LogCircuitReset(ctx context.Context, circuitID string) {
	l.enqueue(&EventLog{
		EventType: model.EventCircuitReset,
		CircuitID: circuitID,
		Details:   "{}",
	})
}

func (l *EventLoggerImpl) LogFrameGenerated(ctx context.Context, ev model.FrameGeneratedEvent) {
	l.enqueue(&EventLog{
		EventType: model.EventFrameGenerated,
		Generator: ev.Generator,
		Details:   l.marshalDetails(ev),
	})
}

func (l *EventLoggerImpl) LogGenerationFailed(ctx context.Context, generator string, tier model.ModelTier, reason string) {
	l.enqueue(&EventLog{
		EventType: model.EventGenerationFailed,
		Generator: generator,
		Details: l.marshalDetails(map[string]string{
			"tier":   string(tier),
			"reason": reason,
		}),
	})
}

// ListRecent returns the newest events, for the admin history view.
func (l *EventLoggerImpl) ListRecent(ctx context.Context, limit int) ([]EventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []EventLog
	err := l.data.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
