package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"go.uber.org/zap"

	"formvault/internal/config"
	"formvault/internal/docstore"
	"formvault/internal/model"
	"formvault/internal/repository"
)

// Relay moves committed outbox events into the external document store.
//
// Each cycle reclaims abandoned claims, claims a batch of due pending events
// and applies them in created_at order. Appliers are idempotent, so the
// at-least-once delivery the claim protocol gives still converges to the
// relational state. Multiple relay instances can run against the same table;
// the skip-locked claim partitions the backlog between them.
type Relay struct {
	db      repository.Querier
	events  repository.OutboxRepository
	reg     *Registry
	cfg     config.RelayConfig
	log     *zap.Logger
	metrics *Metrics
}

// NewRelay creates a Relay. metrics may be nil.
func NewRelay(db repository.Querier, events repository.OutboxRepository, reg *Registry, cfg config.RelayConfig, log *zap.Logger, metrics *Metrics) *Relay {
	return &Relay{
		db:      db,
		events:  events,
		reg:     reg,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}

// Run polls until ctx is cancelled. The batch in flight when cancellation
// arrives is finished before Run returns, so no claim is left behind longer
// than one apply timeout.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("outbox relay started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Int("max_attempts", r.cfg.MaxAttempts),
	)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(context.WithoutCancel(ctx)); err != nil {
				r.log.Error("relay cycle failed", zap.Error(err))
			}
		}
	}
}

// RunOnce executes a single relay cycle and returns the number of events it
// marked processed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	released, err := r.events.ReleaseStuck(ctx, r.db, now.Add(-r.cfg.ClaimTimeout))
	if err != nil {
		return 0, err
	}
	if released > 0 {
		r.log.Warn("released stuck outbox claims", zap.Int64("count", released))
	}

	batch, err := r.events.ClaimBatch(ctx, r.db, r.cfg.BatchSize, now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, e := range batch {
		if r.processEvent(ctx, e) {
			processed++
		}
	}

	if depth, err := r.events.CountPending(ctx, r.db); err == nil {
		r.metrics.setPendingDepth(depth)
	}
	return processed, nil
}

// processEvent applies one claimed event and settles its status. Returns
// true when the event reached processed.
func (r *Relay) processEvent(ctx context.Context, e model.OutboxEvent) bool {
	applyCtx, cancel := context.WithTimeout(ctx, r.cfg.ApplyTimeout)
	start := time.Now()
	applyErr := r.reg.Apply(applyCtx, e)
	elapsed := time.Since(start)
	cancel()

	if applyErr == nil {
		if err := r.events.MarkProcessed(ctx, r.db, e.ID, time.Now().UTC()); err != nil {
			// Lost the claim while applying; the other worker's apply of the
			// same idempotent event settles the status.
			r.log.Warn("mark processed failed", zap.String("event_id", e.ID), zap.Error(err))
			return false
		}
		r.metrics.observeAttempt(e.EventType, outcomeProcessed, elapsed.Seconds())
		r.log.Debug("event applied",
			zap.String("event_id", e.ID),
			zap.String("event_type", e.EventType),
			zap.Int("attempts", e.Attempts),
		)
		return true
	}

	retryable := docstore.IsTransient(applyErr) || errors.Is(applyErr, context.DeadlineExceeded)
	switch {
	case !retryable:
		r.fail(ctx, e, applyErr, "permanent apply error")
		r.metrics.observeAttempt(e.EventType, outcomeFailed, elapsed.Seconds())
	case e.Attempts >= r.cfg.MaxAttempts:
		r.fail(ctx, e, applyErr, "attempt budget exhausted")
		r.metrics.observeAttempt(e.EventType, outcomeFailed, elapsed.Seconds())
	default:
		next := time.Now().UTC().Add(backoff.ExponentialWithJitter(r.cfg.BaseBackoff, e.Attempts))
		if err := r.events.Reschedule(ctx, r.db, e.ID, next, applyErr.Error()); err != nil {
			r.log.Warn("reschedule failed", zap.String("event_id", e.ID), zap.Error(err))
			return false
		}
		r.metrics.observeAttempt(e.EventType, outcomeRescheduled, elapsed.Seconds())
		r.log.Info("event rescheduled",
			zap.String("event_id", e.ID),
			zap.String("event_type", e.EventType),
			zap.Int("attempts", e.Attempts),
			zap.Time("next_attempt_at", next),
			zap.Error(applyErr),
		)
	}
	return false
}

func (r *Relay) fail(ctx context.Context, e model.OutboxEvent, applyErr error, reason string) {
	if err := r.events.MarkFailed(ctx, r.db, e.ID, applyErr.Error()); err != nil {
		r.log.Warn("mark failed failed", zap.String("event_id", e.ID), zap.Error(err))
		return
	}
	// failed events need an operator: surfaced via ListFailed and the
	// requeue endpoint.
	r.log.Error("event parked as failed",
		zap.String("event_id", e.ID),
		zap.String("event_type", e.EventType),
		zap.String("aggregate_id", e.AggregateID),
		zap.Int("attempts", e.Attempts),
		zap.String("reason", reason),
		zap.Error(applyErr),
	)
}
