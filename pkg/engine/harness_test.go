package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
	"github.com/propgraph/propgraph/pkg/funcs"
	"github.com/propgraph/propgraph/pkg/jobs"
	"github.com/propgraph/propgraph/pkg/stores"
)

func newTestEngine(t *testing.T) (*engine.Engine, *jobs.MemoryQueue) {
	t.Helper()
	queue := jobs.NewMemoryQueue(zerolog.Nop())
	eng := engine.New(stores.NewMemoryStore(), queue, funcs.NewRegistry())
	return eng, queue
}

func begin(t *testing.T, eng *engine.Engine) *engine.Unit {
	t.Helper()
	u, err := eng.Begin(context.Background())
	if err != nil {
		t.Fatalf("Expected unit to begin, got: %v", err)
	}
	return u
}

func commit(t *testing.T, u *engine.Unit) {
	t.Helper()
	if err := u.Commit(context.Background()); err != nil {
		t.Fatalf("Expected commit to succeed, got: %v", err)
	}
}

// variantFixture is a minimal variant with a three-prop tree:
// domain (object) -> name (string), tags (array).
type variantFixture struct {
	schema  *engine.Schema
	variant *engine.SchemaVariant
	domain  *engine.Prop
	name    *engine.Prop
	tags    *engine.Prop
}

func buildVariant(t *testing.T, u *engine.Unit, schemaName string) *variantFixture {
	t.Helper()
	ctx := context.Background()

	schema, err := u.CreateSchema(ctx, schemaName)
	if err != nil {
		t.Fatalf("Expected schema creation to succeed, got: %v", err)
	}
	variant, err := u.CreateSchemaVariant(ctx, schema.ID, "v0")
	if err != nil {
		t.Fatalf("Expected variant creation to succeed, got: %v", err)
	}
	domain, err := u.CreateProp(ctx, variant.ID, engine.NonePropID, "domain", engine.PropKindObject)
	if err != nil {
		t.Fatalf("Expected domain prop creation to succeed, got: %v", err)
	}
	name, err := u.CreateProp(ctx, variant.ID, domain.ID, "name", engine.PropKindString)
	if err != nil {
		t.Fatalf("Expected name prop creation to succeed, got: %v", err)
	}
	tags, err := u.CreateProp(ctx, variant.ID, domain.ID, "tags", engine.PropKindArray)
	if err != nil {
		t.Fatalf("Expected tags prop creation to succeed, got: %v", err)
	}
	return &variantFixture{
		schema:  schema,
		variant: variant,
		domain:  domain,
		name:    name,
		tags:    tags,
	}
}

func propContext(t *testing.T, f *variantFixture, propID engine.PropID, componentID engine.ComponentID) engine.AttributeContext {
	t.Helper()
	b := engine.NewContextBuilder().
		SetPropID(propID).
		SetSchemaID(f.schema.ID).
		SetSchemaVariantID(f.variant.ID)
	if componentID != engine.NoneComponentID {
		b = b.SetComponentID(componentID)
	}
	avCtx, err := b.ToContext()
	if err != nil {
		t.Fatalf("Expected context to build, got: %v", err)
	}
	return avCtx
}

func findValue(t *testing.T, u *engine.Unit, read engine.AttributeReadContext) *engine.AttributeValue {
	t.Helper()
	value, err := u.FindValueForContext(context.Background(), read)
	if err != nil {
		t.Fatalf("Expected value for read context, got: %v", err)
	}
	return value
}

func resolve(t *testing.T, u *engine.Unit, id engine.AttributeValueID) string {
	t.Helper()
	raw, err := u.ResolveValue(context.Background(), id)
	if err != nil {
		t.Fatalf("Expected value to resolve, got: %v", err)
	}
	return string(raw)
}

func errCode(err error) string {
	var e *engine.Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
