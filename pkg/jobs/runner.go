package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Runner drains the propagation queue. Each work item runs in its own unit of
// work; a failed item rolls back without touching the committed data that
// produced it.
type Runner struct {
	engine *engine.Engine
	queue  *MemoryQueue
	logger zerolog.Logger
}

// NewRunner creates a runner over the given engine and queue.
func NewRunner(eng *engine.Engine, queue *MemoryQueue, logger zerolog.Logger) *Runner {
	return &Runner{
		engine: eng,
		queue:  queue,
		logger: logger.With().Str("component", "job_runner").Logger(),
	}
}

// ProcessNext dequeues and executes one coalesced work item. Returns false
// when the queue was empty.
func (r *Runner) ProcessNext(ctx context.Context) (bool, error) {
	update, ok := r.queue.Dequeue()
	if !ok {
		return false, nil
	}

	start := time.Now()
	err := r.engine.WithUnit(ctx, func(u *engine.Unit) error {
		return u.ProcessDependentValues(ctx, update.RootAttributeValueIDs)
	})
	if err != nil {
		r.logger.Error().Err(err).
			Str("update_id", update.ID).
			Int("roots", len(update.RootAttributeValueIDs)).
			Msg("dependent values update failed")
		return true, err
	}

	r.logger.Debug().
		Str("update_id", update.ID).
		Int("roots", len(update.RootAttributeValueIDs)).
		Dur("duration", time.Since(start)).
		Msg("dependent values update processed")
	return true, nil
}

// Drain processes work items until the queue is empty or ctx is done.
// Processing never enqueues new items itself, so drain terminates.
func (r *Runner) Drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		processed, err := r.ProcessNext(ctx)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
	}
}

// Run polls the queue until ctx is cancelled. Interval controls how often an
// empty queue is re-checked.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		processed, err := r.ProcessNext(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("work item failed; continuing")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
