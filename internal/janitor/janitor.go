// Package janitor periodically returns actions stuck in processing back to
// the pending state so the external worker can pick them up again.
package janitor

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/and161185/actionsync/internal/service"
)

// Janitor runs a scheduled sweep over stuck offline actions.
type Janitor struct {
	actions  service.ActionService
	log      *zap.Logger
	staleFor time.Duration
	schedule string
	cron     *cron.Cron
}

// New constructs a janitor. schedule is a cron spec (e.g. "@every 1m");
// staleFor is how long an action may sit in processing before it is
// considered abandoned.
func New(actions service.ActionService, log *zap.Logger, schedule string, staleFor time.Duration) *Janitor {
	return &Janitor{actions: actions, log: log, schedule: schedule, staleFor: staleFor}
}

// Start schedules the sweep. The passed context bounds each individual run.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.Sweep(ctx) }); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep performs one requeue pass.
func (j *Janitor) Sweep(ctx context.Context) {
	n, err := j.actions.RequeueStale(ctx, j.staleFor)
	if err != nil {
		j.log.Error("janitor sweep", zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("requeued stale actions", zap.Int64("count", n))
	}
}
