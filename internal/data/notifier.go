package data

import (
	"context"

	"FlapBoard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// NoopNotifier implements biz.Notifier by logging the notification.
// Deployments without an alerting channel keep the breaker's notify
// hooks wired without sending anything anywhere.
type NoopNotifier struct {
	logger *log.Helper
}

// NewNoopNotifier creates the logging-only notifier.
func NewNoopNotifier(logger log.Logger) *NoopNotifier {
	return &NoopNotifier{logger: log.NewHelper(logger)}
}

func (n *NoopNotifier) NotifyCircuitTripped(ctx context.Context, ev model.CircuitTrippedEvent) error {
	n.logger.Warnw("circuit tripped",
		"circuit_id", ev.CircuitID,
		"failure_count", ev.FailureCount,
		"threshold", ev.Threshold,
		"auth_failure", ev.AuthFailure)
	return nil
}

func (n *NoopNotifier) NotifyCircuitRecovered(ctx context.Context, ev model.CircuitRecoveredEvent) error {
	n.logger.Infow("circuit recovered",
		"circuit_id", ev.CircuitID,
		"success_count", ev.SuccessCount)
	return nil
}
