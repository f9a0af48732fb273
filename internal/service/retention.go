package service

import (
	"context"
	"fmt"
	"time"

	"agrismart/internal/logger"

	"github.com/robfig/cron/v3"
)

const pruneTimeout = time.Minute

// Retention prunes the event log on a cron schedule.
type Retention struct {
	events EventLog
	keep   time.Duration
	log    *logger.Logger
	cron   *cron.Cron
}

// NewRetention keeps days of history. Zero days disables pruning.
func NewRetention(events EventLog, days int, log *logger.Logger) *Retention {
	return &Retention{
		events: events,
		keep:   time.Duration(days) * 24 * time.Hour,
		log:    log,
		cron:   cron.New(),
	}
}

// Start schedules the prune job with a standard cron spec or descriptor
// such as "@daily".
func (r *Retention) Start(spec string) error {
	if r.keep <= 0 {
		r.log.Infow("retention_disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(spec, r.runOnce); err != nil {
		return fmt.Errorf("schedule retention %q: %w", spec, err)
	}
	r.cron.Start()
	r.log.Infow("retention_scheduled", "spec", spec, "keep", r.keep)
	return nil
}

// Stop waits for a running prune to finish.
func (r *Retention) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Retention) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	if _, err := r.Prune(ctx); err != nil {
		r.log.Errorw("retention_prune_failed", "err", err)
	}
}

// Prune deletes events older than the retention window.
func (r *Retention) Prune(ctx context.Context) (int64, error) {
	n, err := r.events.Prune(ctx, r.keep)
	if err != nil {
		return 0, err
	}
	r.log.Infow("retention_pruned", "deleted", n)
	return n, nil
}
