package stores

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/propgraph/propgraph/pkg/engine"
)

func testSchema(id string) *engine.Schema {
	return &engine.Schema{
		ID:        engine.SchemaID(id),
		Name:      "schema-" + id,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStore_CommitMakesWritesVisible(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	if err := tx.CreateSchema(ctx, testSchema("s1")); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}

	tx2, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx2.Rollback(ctx)
	got, err := tx2.GetSchema(ctx, "s1")
	if err != nil {
		t.Fatalf("Expected committed schema to be visible, got: %v", err)
	}
	if got.Name != "schema-s1" {
		t.Errorf("Expected name schema-s1, got %s", got.Name)
	}
}

func TestMemoryStore_SnapshotIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	writer, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	reader, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer reader.Rollback(ctx)

	if err := writer.CreateSchema(ctx, testSchema("s1")); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}

	// Uncommitted writes stay invisible to the concurrent snapshot.
	if _, err := reader.GetSchema(ctx, "s1"); err == nil {
		t.Error("Expected the uncommitted schema to be invisible")
	}
	if err := writer.Commit(ctx); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}
	// The snapshot was taken before the commit, too.
	if _, err := reader.GetSchema(ctx, "s1"); err == nil {
		t.Error("Expected the schema to stay invisible to the older snapshot")
	}
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	if err := tx.CreateSchema(ctx, testSchema("s1")); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Expected rollback to succeed, got: %v", err)
	}

	tx2, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx2.Rollback(ctx)
	if _, err := tx2.GetSchema(ctx, "s1"); err == nil {
		t.Error("Expected the rolled-back schema to be gone")
	}
}

func TestMemoryStore_DoubleCommitFails(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}
	if err := tx.Commit(ctx); err == nil {
		t.Error("Expected a second commit to fail")
	}
}

func TestMemoryStore_DuplicateCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx.Rollback(ctx)
	if err := tx.CreateSchema(ctx, testSchema("s1")); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	if err := tx.CreateSchema(ctx, testSchema("s1")); err == nil {
		t.Error("Expected a duplicate create to fail")
	}
}

func TestMemoryStore_ListOrderFollowsInsertion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx.Rollback(ctx)

	// Identical timestamps; only the insertion sequence can order these.
	now := time.Now().UTC()
	variantID := engine.SchemaVariantID("v1")
	for i := 0; i < 10; i++ {
		prop := &engine.Prop{
			ID:              engine.PropID(fmt.Sprintf("p%02d", i)),
			SchemaVariantID: variantID,
			Name:            fmt.Sprintf("prop-%02d", i),
			Kind:            engine.PropKindString,
			CreatedAt:       now,
		}
		if err := tx.CreateProp(ctx, prop); err != nil {
			t.Fatalf("Expected create to succeed, got: %v", err)
		}
	}

	props, err := tx.ListProps(ctx, engine.PropFilter{SchemaVariantID: &variantID})
	if err != nil {
		t.Fatalf("Expected list to succeed, got: %v", err)
	}
	if len(props) != 10 {
		t.Fatalf("Expected 10 props, got %d", len(props))
	}
	for i, p := range props {
		want := engine.PropID(fmt.Sprintf("p%02d", i))
		if p.ID != want {
			t.Errorf("Expected prop %s at position %d, got %s", want, i, p.ID)
		}
	}
}

func TestMemoryStore_ValueRoundTripIsIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx.Rollback(ctx)

	value := &engine.AttributeValue{
		ID:        "av1",
		IndexMap:  engine.NewIndexMap(),
		CreatedAt: time.Now().UTC(),
	}
	value.IndexMap.Push("k1")
	if err := tx.CreateValue(ctx, value); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	value.IndexMap.Push("k2")
	got, err := tx.GetValue(ctx, "av1")
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if got.IndexMap.Len() != 1 {
		t.Errorf("Expected the stored index map to keep 1 key, got %d", got.IndexMap.Len())
	}

	// And mutating a loaded copy must not change the store either.
	got.IndexMap.Push("k3")
	again, err := tx.GetValue(ctx, "av1")
	if err != nil {
		t.Fatalf("Expected get to succeed, got: %v", err)
	}
	if again.IndexMap.Len() != 1 {
		t.Errorf("Expected the stored index map to keep 1 key, got %d", again.IndexMap.Len())
	}
}

func TestMemoryStore_DeleteValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("Expected begin to succeed, got: %v", err)
	}
	defer tx.Rollback(ctx)

	value := &engine.AttributeValue{ID: "av1", CreatedAt: time.Now().UTC()}
	if err := tx.CreateValue(ctx, value); err != nil {
		t.Fatalf("Expected create to succeed, got: %v", err)
	}
	if err := tx.DeleteValue(ctx, "av1"); err != nil {
		t.Fatalf("Expected delete to succeed, got: %v", err)
	}
	if _, err := tx.GetValue(ctx, "av1"); err == nil {
		t.Error("Expected the deleted value to be gone")
	}
	if err := tx.DeleteValue(ctx, "av1"); err == nil {
		t.Error("Expected deleting a missing value to fail")
	}
}
