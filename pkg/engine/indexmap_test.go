package engine_test

import (
	"testing"

	"github.com/propgraph/propgraph/pkg/engine"
)

func TestIndexMap_PushPreservesOrder(t *testing.T) {
	m := engine.NewIndexMap()
	m.Push("b")
	m.Push("a")
	m.Push("c")

	keys := m.Keys()
	want := []string{"b", "a", "c"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(keys))
	}
	for i, key := range want {
		if keys[i] != key {
			t.Errorf("Expected key %q at position %d, got %q", key, i, keys[i])
		}
	}
}

func TestIndexMap_DeleteKeepsRemainingOrder(t *testing.T) {
	m := engine.NewIndexMap()
	m.Push("a")
	m.Push("b")
	m.Push("c")
	m.Delete("b")

	if m.Has("b") {
		t.Error("Expected deleted key to be gone")
	}
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("Expected [a c] after delete, got %v", keys)
	}
}

func TestIndexMap_CloneIsIndependent(t *testing.T) {
	m := engine.NewIndexMap()
	m.Push("a")

	clone := m.Clone()
	clone.Push("b")

	if m.Len() != 1 {
		t.Errorf("Expected original to keep 1 key, got %d", m.Len())
	}
	if clone.Len() != 2 {
		t.Errorf("Expected clone to have 2 keys, got %d", clone.Len())
	}
}
