package main

import (
	"context"
	"time"

	"FlapBoard/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// StartGenerationCron starts the scheduled frame generation job. Each
// tick runs one full generation cycle: kill switch checks, generator
// rotation, provider failover and frame persistence.
func StartGenerationCron(spec string, generator *biz.GeneratorUsecase, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		frame, err := generator.RunCycle(ctx)
		switch {
		case err != nil:
			helper.Errorw("generation cycle failed", "error", err)
		case frame == nil:
			helper.Debug("generation cycle skipped")
		default:
			helper.Infow("generation cycle completed",
				"generator", frame.Generator,
				"provider", frame.Provider,
				"failed_over", frame.FailedOver)
		}
	})
	if err != nil {
		helper.Errorw("failed to register generation cron job", "spec", spec, "error", err)
		return nil
	}

	c.Start()
	helper.Infow("generation cron job started", "spec", spec)
	return c
}

// StartRecoveryCron starts the circuit recovery sweeper. Each tick moves
// provider circuits that have served their cooldown from off to
// half_open probation; the next generation attempts decide whether they
// recover or re-trip.
func StartRecoveryCron(spec string, breaker *biz.CircuitBreakerUsecase, logger log.Logger) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if moved := breaker.SweepTrippedCircuits(ctx); moved > 0 {
			helper.Infow("recovery sweep moved circuits to half-open", "count", moved)
		}
	})
	if err != nil {
		helper.Errorw("failed to register recovery cron job", "spec", spec, "error", err)
		return nil
	}

	c.Start()
	helper.Infow("recovery cron job started",
		"spec", spec,
		"reset_timeout", breaker.ResetTimeout())
	return c
}
