package jobs

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
)

// MemoryQueue is an in-process FIFO of propagation work items. It implements
// engine.JobQueue. Dequeue coalesces everything pending into a single item;
// recomputation is idempotent, so merging roots only saves work.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []engine.DependentValuesUpdate
	logger  zerolog.Logger
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue(logger zerolog.Logger) *MemoryQueue {
	return &MemoryQueue{
		logger: logger.With().Str("component", "job_queue").Logger(),
	}
}

// Enqueue appends a work item.
func (q *MemoryQueue) Enqueue(ctx context.Context, update engine.DependentValuesUpdate) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, update)
	q.logger.Debug().
		Str("update_id", update.ID).
		Int("roots", len(update.RootAttributeValueIDs)).
		Msg("dependent values update enqueued")
	return nil
}

// Dequeue merges everything pending into one work item and returns it. The
// merged item keeps the first item's id and enqueue time; roots are deduped
// in arrival order. Returns false when the queue is empty.
func (q *MemoryQueue) Dequeue() (engine.DependentValuesUpdate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return engine.DependentValuesUpdate{}, false
	}

	merged := engine.DependentValuesUpdate{
		ID:         q.pending[0].ID,
		EnqueuedAt: q.pending[0].EnqueuedAt,
	}
	seen := make(map[engine.AttributeValueID]struct{})
	for _, update := range q.pending {
		for _, id := range update.RootAttributeValueIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged.RootAttributeValueIDs = append(merged.RootAttributeValueIDs, id)
		}
	}
	q.pending = q.pending[:0]
	return merged, true
}

// Len returns the number of pending work items.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
