package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/funcs"
	"github.com/propgraph/propgraph/pkg/jobs"
	"github.com/propgraph/propgraph/pkg/stores"
)

type recordingNotifier struct {
	valueChanged []engine.AttributeValueID
	changeSets   int
	frames       int
}

func (n *recordingNotifier) ValueChanged(_ context.Context, id engine.AttributeValueID) {
	n.valueChanged = append(n.valueChanged, id)
}

func (n *recordingNotifier) ChangeSetWritten(_ context.Context, _ string, _ []engine.AttributeValueID) {
	n.changeSets++
}

func (n *recordingNotifier) FrameConnected(_ context.Context, _, _ engine.ComponentID) {
	n.frames++
}

func TestUnit_NotificationsHeldUntilCommit(t *testing.T) {
	notifier := &recordingNotifier{}
	queue := jobs.NewMemoryQueue(zerolog.Nop())
	eng := engine.New(stores.NewMemoryStore(), queue, funcs.NewRegistry(),
		engine.WithNotifier(notifier))
	ctx := context.Background()

	u := begin(t, eng)
	f := buildVariant(t, u, "service")
	nameID := f.name.ID
	value := findValue(t, u, engine.AttributeReadContext{PropID: &nameID})
	if err := u.SetValue(ctx, value.ID, json.RawMessage(`"edited"`)); err != nil {
		t.Fatalf("Expected set to succeed, got: %v", err)
	}
	if len(notifier.valueChanged) != 0 {
		t.Fatalf("Expected no notifications before commit, got %d", len(notifier.valueChanged))
	}
	commit(t, u)
	if len(notifier.valueChanged) == 0 {
		t.Error("Expected value-changed notifications after commit, got none")
	}
	if notifier.changeSets != 1 {
		t.Errorf("Expected 1 change-set notification, got %d", notifier.changeSets)
	}
}

func TestUnit_RollbackEmitsNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	queue := jobs.NewMemoryQueue(zerolog.Nop())
	eng := engine.New(stores.NewMemoryStore(), queue, funcs.NewRegistry(),
		engine.WithNotifier(notifier))
	ctx := context.Background()

	u := begin(t, eng)
	f := buildVariant(t, u, "service")
	nameID := f.name.ID
	value := findValue(t, u, engine.AttributeReadContext{PropID: &nameID})
	if err := u.SetValue(ctx, value.ID, json.RawMessage(`"edited"`)); err != nil {
		t.Fatalf("Expected set to succeed, got: %v", err)
	}
	if err := u.Rollback(ctx); err != nil {
		t.Fatalf("Expected rollback to succeed, got: %v", err)
	}
	if len(notifier.valueChanged) != 0 || notifier.changeSets != 0 || notifier.frames != 0 {
		t.Errorf("Expected no notifications from a rolled-back unit, got %+v", notifier)
	}
}
