package biz

import (
	"context"

	"FlapBoard/internal/model"
)

// Notifier pushes circuit trip/recover notifications to an external
// channel (webhook, chat, pager). The default wiring is a noop; errors
// from a real implementation are logged by the caller and never affect
// breaker behavior.
type Notifier interface {
	NotifyCircuitTripped(ctx context.Context, ev model.CircuitTrippedEvent) error
	NotifyCircuitRecovered(ctx context.Context, ev model.CircuitRecoveredEvent) error
}
