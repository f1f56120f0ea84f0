package engine_test

import (
	"testing"

	"github.com/propgraph/propgraph/pkg/engine"
)

func TestContextBuilder_MultipleDiscriminators(t *testing.T) {
	_, err := engine.NewContextBuilder().
		SetPropID("prop-1").
		SetInternalProviderID("provider-1").
		ToContext()

	if err == nil {
		t.Fatal("Expected error for multiple discriminators, got nil")
	}
	if code := errCode(err); code != engine.ErrCodeMultipleDiscriminators {
		t.Errorf("Expected code %s, got %s", engine.ErrCodeMultipleDiscriminators, code)
	}
}

func TestContextBuilder_NoDiscriminator(t *testing.T) {
	avCtx, err := engine.NewContextBuilder().
		SetSchemaID("schema-1").
		ToContext()

	if err != nil {
		t.Fatalf("Expected no error for base context, got: %v", err)
	}
	if avCtx.Discriminator.Kind != engine.DiscriminatorNone {
		t.Errorf("Expected none discriminator, got %s", avCtx.Discriminator.Kind)
	}
}

func TestContext_Level(t *testing.T) {
	tests := []struct {
		name string
		ctx  engine.AttributeContext
		want engine.SpecificityLevel
	}{
		{
			name: "global",
			ctx:  engine.AttributeContext{Discriminator: engine.PropDiscriminator("p")},
			want: engine.SpecificityGlobal,
		},
		{
			name: "schema",
			ctx: engine.AttributeContext{
				Discriminator: engine.PropDiscriminator("p"),
				SchemaID:      "s",
			},
			want: engine.SpecificitySchema,
		},
		{
			name: "variant",
			ctx: engine.AttributeContext{
				Discriminator:   engine.PropDiscriminator("p"),
				SchemaID:        "s",
				SchemaVariantID: "v",
			},
			want: engine.SpecificitySchemaVariant,
		},
		{
			name: "component",
			ctx: engine.AttributeContext{
				Discriminator:   engine.PropDiscriminator("p"),
				SchemaID:        "s",
				SchemaVariantID: "v",
				ComponentID:     "c",
			},
			want: engine.SpecificityComponent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Level(); got != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, got)
			}
		})
	}
}

func TestContext_MoreSpecificThan(t *testing.T) {
	variant := engine.AttributeContext{
		Discriminator:   engine.PropDiscriminator("p"),
		SchemaID:        "s",
		SchemaVariantID: "v",
	}
	component := variant
	component.ComponentID = "c"

	if !component.MoreSpecificThan(variant) {
		t.Error("Expected component context to be more specific than variant context")
	}
	if variant.MoreSpecificThan(component) {
		t.Error("Expected variant context not to be more specific than component context")
	}
	if variant.MoreSpecificThan(variant) {
		t.Error("Expected equal contexts not to be strictly more specific")
	}
}

func TestReadContext_NilFieldsMatchAnything(t *testing.T) {
	read := engine.AttributeReadContext{}

	ctx := engine.AttributeContext{
		Discriminator:   engine.PropDiscriminator("p"),
		SchemaID:        "s",
		SchemaVariantID: "v",
		ComponentID:     "c",
	}
	if !read.Matches(ctx) {
		t.Error("Expected empty read context to match any stored context")
	}
}

func TestReadContext_PinnedDiscriminatorMatchesExactly(t *testing.T) {
	propID := engine.PropID("p")
	read := engine.AttributeReadContext{PropID: &propID}

	propCtx := engine.AttributeContext{Discriminator: engine.PropDiscriminator("p")}
	otherProp := engine.AttributeContext{Discriminator: engine.PropDiscriminator("q")}
	providerCtx := engine.AttributeContext{Discriminator: engine.InternalProviderDiscriminator("ip")}

	if !read.Matches(propCtx) {
		t.Error("Expected pinned prop to match the same prop")
	}
	if read.Matches(otherProp) {
		t.Error("Expected pinned prop not to match a different prop")
	}
	if read.Matches(providerCtx) {
		t.Error("Expected pinned prop not to match a provider carrier")
	}
}

func TestReadContext_SentinelPinExcludesCarrierKind(t *testing.T) {
	none := engine.NonePropID
	read := engine.AttributeReadContext{PropID: &none}

	propCtx := engine.AttributeContext{Discriminator: engine.PropDiscriminator("p")}
	providerCtx := engine.AttributeContext{Discriminator: engine.InternalProviderDiscriminator("ip")}

	if read.Matches(propCtx) {
		t.Error("Expected sentinel prop pin to exclude prop-carrier values")
	}
	if !read.Matches(providerCtx) {
		t.Error("Expected sentinel prop pin to match non-prop carriers")
	}
}

func TestReadContext_ScopeFallback(t *testing.T) {
	componentID := engine.ComponentID("c")
	read := engine.AttributeReadContext{ComponentID: &componentID}

	variantLevel := engine.AttributeContext{
		Discriminator:   engine.PropDiscriminator("p"),
		SchemaID:        "s",
		SchemaVariantID: "v",
	}
	sameComponent := variantLevel
	sameComponent.ComponentID = "c"
	otherComponent := variantLevel
	otherComponent.ComponentID = "other"

	if !read.Matches(sameComponent) {
		t.Error("Expected component pin to match values at that component")
	}
	if !read.Matches(variantLevel) {
		t.Error("Expected component pin to fall back to unscoped values")
	}
	if read.Matches(otherComponent) {
		t.Error("Expected component pin not to match another component's values")
	}
}

func TestReadContext_SentinelScopePinExcludesScopedValues(t *testing.T) {
	none := engine.NoneComponentID
	read := engine.AttributeReadContext{ComponentID: &none}

	variantLevel := engine.AttributeContext{
		Discriminator:   engine.PropDiscriminator("p"),
		SchemaVariantID: "v",
	}
	componentLevel := variantLevel
	componentLevel.ComponentID = "c"

	if !read.Matches(variantLevel) {
		t.Error("Expected sentinel component pin to match unscoped values")
	}
	if read.Matches(componentLevel) {
		t.Error("Expected sentinel component pin to exclude component-scoped values")
	}
}
