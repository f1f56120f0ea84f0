package engine

import (
	"errors"
	"testing"
)

func TestValidatePrototypeContext(t *testing.T) {
	base, err := NewContextBuilder().
		SetPropID(PropID("prop-1")).
		SetSchemaID(SchemaID("schema-1")).
		SetSchemaVariantID(SchemaVariantID("variant-1")).
		ToContext()
	if err != nil {
		t.Fatalf("Expected context to build, got: %v", err)
	}
	scoped := base
	scoped.ComponentID = ComponentID("component-1")

	prototype := &AttributePrototype{Context: base}
	if err := validatePrototypeContext(prototype, &AttributeValue{Context: base}); err != nil {
		t.Fatalf("Expected matching contexts to validate, got: %v", err)
	}

	err = validatePrototypeContext(prototype, &AttributeValue{Context: scoped})
	if err == nil {
		t.Fatal("Expected mismatched contexts to be rejected, got nil")
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("Expected a classified error, got: %v", err)
	}
	if e.Code != ErrCodePrototypeContextMismatch {
		t.Errorf("Expected code %s, got %s", ErrCodePrototypeContextMismatch, e.Code)
	}
}
