// Package syncer drains the local durable queue against the remote data
// gateway whenever connectivity is available.
package syncer

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
)

//go:generate mockgen -source=processor.go -destination=processor_mock.go -package=syncer

// Applier replays a queued operation against the remote store.
type Applier interface {
	Apply(ctx context.Context, op queue.PendingOperation) error
}

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	Online() bool
}

// MaxRetries is how many failed attempts a record gets before the repair
// and abandonment path.
const MaxRetries = 5

type Processor struct {
	queue   *queue.Queue
	applier Applier
	conn    Connectivity
	repairs []RepairRule

	group singleflight.Group
}

func New(q *queue.Queue, applier Applier, conn Connectivity) *Processor {
	return &Processor{
		queue:   q,
		applier: applier,
		conn:    conn,
		repairs: defaultRepairs(),
	}
}

// RegisterRepair appends a repair rule evaluated before abandonment.
func (p *Processor) RegisterRepair(rule RepairRule) {
	p.repairs = append(p.repairs, rule)
}

// Run processes every queued operation in FIFO order and returns how many
// were applied. It is a no-op while offline. Concurrent calls coalesce into
// a single in-flight run; the late caller shares the first run's result.
func (p *Processor) Run(ctx context.Context) (int, error) {
	if !p.conn.Online() {
		return 0, nil
	}

	synced, err, _ := p.group.Do("run", func() (any, error) {
		return p.run(ctx)
	})
	if err != nil {
		return 0, err
	}

	return synced.(int), nil
}

func (p *Processor) run(ctx context.Context) (int, error) {
	ops, err := p.queue.DequeueAllOrdered(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0

	for _, op := range ops {
		err := p.applier.Apply(ctx, op)
		if err == nil {
			if err := p.queue.Remove(ctx, op.ID); err != nil {
				return synced, err
			}

			synced++

			continue
		}

		op.RetryCount++
		op.LastError = err.Error()

		// Transient failures stay queued for the next run; no immediate
		// re-attempt, so a backend outage cannot become a tight loop.
		if !ledger.Terminal(err) && op.RetryCount < MaxRetries {
			if err := p.queue.UpdateRetry(ctx, op.ID, op.RetryCount, op.LastError); err != nil {
				return synced, err
			}

			continue
		}

		// Record the failure durably before the repair and abandonment
		// path; a crash between here and Remove leaves the error on the
		// record instead of losing it.
		if err := p.queue.UpdateRetry(ctx, op.ID, op.RetryCount, op.LastError); err != nil {
			return synced, err
		}

		if p.retryRepaired(ctx, op) {
			if err := p.queue.Remove(ctx, op.ID); err != nil {
				return synced, err
			}

			synced++

			continue
		}

		slog.Error("abandoning queued operation",
			"queue_id", op.ID,
			"kind", op.Kind,
			"collection", op.Collection,
			"document_id", op.DocumentID,
			"retry_count", op.RetryCount,
			"last_error", op.LastError,
		)

		if err := p.queue.Remove(ctx, op.ID); err != nil {
			return synced, err
		}
	}

	return synced, nil
}

// retryRepaired gives a known-recoverable payload shape one repaired
// attempt before the record is abandoned. Returns true when the repaired
// attempt succeeded.
func (p *Processor) retryRepaired(ctx context.Context, op queue.PendingOperation) bool {
	for _, rule := range p.repairs {
		if !rule.Applies(op) {
			continue
		}

		repaired := rule.Repair(op)
		repaired.RetryCount = 0

		slog.Info("retrying repaired operation",
			"queue_id", op.ID, "repair", rule.Name)

		if err := p.applier.Apply(ctx, repaired); err != nil {
			slog.Warn("repaired attempt failed",
				"queue_id", op.ID, "repair", rule.Name, "error", err)

			return false
		}

		return true
	}

	return false
}
