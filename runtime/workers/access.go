package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatekeeper/contract"
	"gatekeeper/domain"
	"gatekeeper/schedule"
)

// AccessWorker fires the daily access transitions. Each rule runs on
// its own timer, decoupled from the message stream; overlapping
// triggers are tolerated because the batch only issues idempotent
// adapter calls.
type AccessWorker struct {
	log      *slog.Logger
	clock    contract.Clock
	location *time.Location
	rules    []domain.ScheduleRule
	session  contract.Session
	batch    *schedule.Batch
}

func NewAccessWorker(
	log *slog.Logger,
	clock contract.Clock,
	location *time.Location,
	rules []domain.ScheduleRule,
	session contract.Session,
	batch *schedule.Batch,
) *AccessWorker {
	return &AccessWorker{
		log:      log,
		clock:    clock,
		location: location,
		rules:    rules,
		session:  session,
		batch:    batch,
	}
}

func (w *AccessWorker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, rule := range w.rules {
		wg.Add(1)
		go func(rule domain.ScheduleRule) {
			defer wg.Done()
			w.runRule(ctx, rule)
		}(rule)
	}
	wg.Wait()
	return ctx.Err()
}

func (w *AccessWorker) runRule(ctx context.Context, rule domain.ScheduleRule) {
	for {
		now := w.clock.Now()
		next := rule.NextAfter(now, w.location)
		w.log.Info("Access trigger armed",
			"action", rule.Action.String(), "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(next.Sub(now)):
		}

		// A session that is not ready suspends the trigger for this
		// firing; the rule re-arms for the next day.
		if !w.session.Ready() {
			w.log.Info("Session not ready, access trigger skipped", "action", rule.Action.String())
			continue
		}
		w.batch.Apply(ctx, rule.Action)
	}
}
