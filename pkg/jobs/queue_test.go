package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
)

func TestMemoryQueue_EmptyDequeue(t *testing.T) {
	q := NewMemoryQueue(zerolog.Nop())

	if _, ok := q.Dequeue(); ok {
		t.Error("Expected dequeue on an empty queue to return false")
	}
	if q.Len() != 0 {
		t.Errorf("Expected length 0, got %d", q.Len())
	}
}

func TestMemoryQueue_CoalescesPending(t *testing.T) {
	q := NewMemoryQueue(zerolog.Nop())
	ctx := context.Background()

	first := engine.DependentValuesUpdate{
		ID:                    "update-1",
		RootAttributeValueIDs: []engine.AttributeValueID{"a", "b"},
		EnqueuedAt:            time.Now().UTC(),
	}
	second := engine.DependentValuesUpdate{
		ID:                    "update-2",
		RootAttributeValueIDs: []engine.AttributeValueID{"b", "c"},
		EnqueuedAt:            time.Now().UTC(),
	}
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("Expected enqueue to succeed, got: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("Expected enqueue to succeed, got: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Expected 2 pending items, got %d", q.Len())
	}

	merged, ok := q.Dequeue()
	if !ok {
		t.Fatal("Expected a merged work item, got none")
	}
	if merged.ID != "update-1" {
		t.Errorf("Expected the merged item to keep the first id, got %s", merged.ID)
	}
	if !merged.EnqueuedAt.Equal(first.EnqueuedAt) {
		t.Errorf("Expected the merged item to keep the first enqueue time, got %v", merged.EnqueuedAt)
	}

	want := []engine.AttributeValueID{"a", "b", "c"}
	if len(merged.RootAttributeValueIDs) != len(want) {
		t.Fatalf("Expected roots %v, got %v", want, merged.RootAttributeValueIDs)
	}
	for i, id := range want {
		if merged.RootAttributeValueIDs[i] != id {
			t.Errorf("Expected root %s at position %d, got %s", id, i, merged.RootAttributeValueIDs[i])
		}
	}

	if q.Len() != 0 {
		t.Errorf("Expected the queue to be empty after dequeue, got %d pending", q.Len())
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Expected a second dequeue to return false")
	}
}

func TestMemoryQueue_DedupesWithinOneItem(t *testing.T) {
	q := NewMemoryQueue(zerolog.Nop())
	ctx := context.Background()

	update := engine.DependentValuesUpdate{
		ID:                    "update-1",
		RootAttributeValueIDs: []engine.AttributeValueID{"a", "a", "b", "a"},
	}
	if err := q.Enqueue(ctx, update); err != nil {
		t.Fatalf("Expected enqueue to succeed, got: %v", err)
	}

	merged, ok := q.Dequeue()
	if !ok {
		t.Fatal("Expected a work item, got none")
	}
	if len(merged.RootAttributeValueIDs) != 2 {
		t.Fatalf("Expected 2 deduped roots, got %v", merged.RootAttributeValueIDs)
	}
	if merged.RootAttributeValueIDs[0] != "a" || merged.RootAttributeValueIDs[1] != "b" {
		t.Errorf("Expected roots [a b], got %v", merged.RootAttributeValueIDs)
	}
}
