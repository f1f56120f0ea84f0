package engine

import (
	"fmt"
)

// DiscriminatorKind selects which kind of attribute carrier a context
// addresses. At most one discriminator is concrete per context.
type DiscriminatorKind string

const (
	// DiscriminatorNone addresses no carrier; contexts carrying it are "base"
	// contexts used for range queries.
	DiscriminatorNone DiscriminatorKind = "none"

	// DiscriminatorProp addresses a prop value.
	DiscriminatorProp DiscriminatorKind = "prop"

	// DiscriminatorInternalProvider addresses an internal provider value.
	DiscriminatorInternalProvider DiscriminatorKind = "internalProvider"

	// DiscriminatorExternalProvider addresses an external provider value.
	DiscriminatorExternalProvider DiscriminatorKind = "externalProvider"
)

// Discriminator is the tagged carrier reference of an AttributeContext. Only
// the field matching Kind is ever set; construct through the helpers so the
// invariant holds by construction.
type Discriminator struct {
	Kind               DiscriminatorKind  `json:"kind"`
	PropID             PropID             `json:"prop_id,omitempty"`
	InternalProviderID InternalProviderID `json:"internal_provider_id,omitempty"`
	ExternalProviderID ExternalProviderID `json:"external_provider_id,omitempty"`
}

// NoDiscriminator returns the empty carrier reference.
func NoDiscriminator() Discriminator {
	return Discriminator{Kind: DiscriminatorNone}
}

// PropDiscriminator returns a carrier reference addressing a prop.
func PropDiscriminator(id PropID) Discriminator {
	return Discriminator{Kind: DiscriminatorProp, PropID: id}
}

// InternalProviderDiscriminator returns a carrier reference addressing an
// internal provider.
func InternalProviderDiscriminator(id InternalProviderID) Discriminator {
	return Discriminator{Kind: DiscriminatorInternalProvider, InternalProviderID: id}
}

// ExternalProviderDiscriminator returns a carrier reference addressing an
// external provider.
func ExternalProviderDiscriminator(id ExternalProviderID) Discriminator {
	return Discriminator{Kind: DiscriminatorExternalProvider, ExternalProviderID: id}
}

// String renders the discriminator for error messages.
func (d Discriminator) String() string {
	switch d.Kind {
	case DiscriminatorProp:
		return fmt.Sprintf("prop=%s", d.PropID)
	case DiscriminatorInternalProvider:
		return fmt.Sprintf("internalProvider=%s", d.InternalProviderID)
	case DiscriminatorExternalProvider:
		return fmt.Sprintf("externalProvider=%s", d.ExternalProviderID)
	default:
		return "none"
	}
}

// SpecificityLevel orders contexts from least to most specific.
type SpecificityLevel int

const (
	// SpecificityGlobal applies everywhere.
	SpecificityGlobal SpecificityLevel = iota

	// SpecificitySchema applies to every variant of one schema.
	SpecificitySchema

	// SpecificitySchemaVariant applies to every component of one variant.
	SpecificitySchemaVariant

	// SpecificityComponent applies to exactly one component.
	SpecificityComponent
)

// String returns the level name.
func (l SpecificityLevel) String() string {
	switch l {
	case SpecificitySchema:
		return "schema"
	case SpecificitySchemaVariant:
		return "schemaVariant"
	case SpecificityComponent:
		return "component"
	default:
		return "global"
	}
}

// AttributeContext is the specificity key selecting which stored value or
// prototype applies for a given carrier. Equality is structural.
type AttributeContext struct {
	// Discriminator addresses the carrier: a prop, an internal provider, an
	// external provider, or none for base contexts.
	Discriminator Discriminator `json:"discriminator"`

	// SchemaID, SchemaVariantID and ComponentID scope the context. Each may
	// be the unset sentinel; a set ComponentID implies the value applies to
	// that component only.
	SchemaID        SchemaID        `json:"schema_id,omitempty"`
	SchemaVariantID SchemaVariantID `json:"schema_variant_id,omitempty"`
	ComponentID     ComponentID     `json:"component_id,omitempty"`
}

// PropID returns the carrier prop, or NonePropID when the context does not
// address a prop.
func (c AttributeContext) PropID() PropID {
	if c.Discriminator.Kind == DiscriminatorProp {
		return c.Discriminator.PropID
	}
	return NonePropID
}

// InternalProviderID returns the carrier internal provider, or the unset
// sentinel.
func (c AttributeContext) InternalProviderID() InternalProviderID {
	if c.Discriminator.Kind == DiscriminatorInternalProvider {
		return c.Discriminator.InternalProviderID
	}
	return NoneInternalProviderID
}

// ExternalProviderID returns the carrier external provider, or the unset
// sentinel.
func (c AttributeContext) ExternalProviderID() ExternalProviderID {
	if c.Discriminator.Kind == DiscriminatorExternalProvider {
		return c.Discriminator.ExternalProviderID
	}
	return NoneExternalProviderID
}

// Level returns the scope specificity of the context.
func (c AttributeContext) Level() SpecificityLevel {
	switch {
	case c.ComponentID != NoneComponentID:
		return SpecificityComponent
	case c.SchemaVariantID != NoneSchemaVariantID:
		return SpecificitySchemaVariant
	case c.SchemaID != NoneSchemaID:
		return SpecificitySchema
	default:
		return SpecificityGlobal
	}
}

// IsLeastSpecific reports whether the context carries no scoping at all.
func (c AttributeContext) IsLeastSpecific() bool {
	return c.Level() == SpecificityGlobal
}

// MoreSpecificThan reports whether c's scope is strictly more specific than
// other's.
func (c AttributeContext) MoreSpecificThan(other AttributeContext) bool {
	return c.Level() > other.Level()
}

// String renders the context for error messages.
func (c AttributeContext) String() string {
	return fmt.Sprintf("{%s schema=%s variant=%s component=%s}",
		c.Discriminator, orNone(string(c.SchemaID)), orNone(string(c.SchemaVariantID)), orNone(string(c.ComponentID)))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// AttributeContextBuilder assembles and validates an AttributeContext.
// Unlike the context itself, the builder accepts any combination of fields so
// callers performing request translation get a single validation point.
type AttributeContextBuilder struct {
	propID             PropID
	internalProviderID InternalProviderID
	externalProviderID ExternalProviderID
	schemaID           SchemaID
	schemaVariantID    SchemaVariantID
	componentID        ComponentID
}

// NewContextBuilder returns an empty builder.
func NewContextBuilder() *AttributeContextBuilder {
	return &AttributeContextBuilder{}
}

// SetPropID sets the prop discriminator field.
func (b *AttributeContextBuilder) SetPropID(id PropID) *AttributeContextBuilder {
	b.propID = id
	return b
}

// SetInternalProviderID sets the internal provider discriminator field.
func (b *AttributeContextBuilder) SetInternalProviderID(id InternalProviderID) *AttributeContextBuilder {
	b.internalProviderID = id
	return b
}

// SetExternalProviderID sets the external provider discriminator field.
func (b *AttributeContextBuilder) SetExternalProviderID(id ExternalProviderID) *AttributeContextBuilder {
	b.externalProviderID = id
	return b
}

// SetSchemaID sets the schema scope.
func (b *AttributeContextBuilder) SetSchemaID(id SchemaID) *AttributeContextBuilder {
	b.schemaID = id
	return b
}

// SetSchemaVariantID sets the variant scope.
func (b *AttributeContextBuilder) SetSchemaVariantID(id SchemaVariantID) *AttributeContextBuilder {
	b.schemaVariantID = id
	return b
}

// SetComponentID sets the component scope.
func (b *AttributeContextBuilder) SetComponentID(id ComponentID) *AttributeContextBuilder {
	b.componentID = id
	return b
}

// ToContext validates the builder and produces a context. It fails unless
// zero or exactly one discriminator field is set.
func (b *AttributeContextBuilder) ToContext() (AttributeContext, error) {
	var set []string
	if b.propID != NonePropID {
		set = append(set, "prop_id")
	}
	if b.internalProviderID != NoneInternalProviderID {
		set = append(set, "internal_provider_id")
	}
	if b.externalProviderID != NoneExternalProviderID {
		set = append(set, "external_provider_id")
	}
	if len(set) > 1 {
		return AttributeContext{}, NewValidationError("attribute context addresses more than one carrier", nil).
			WithCode(ErrCodeMultipleDiscriminators).
			WithDetail("fields", set)
	}

	d := NoDiscriminator()
	switch {
	case b.propID != NonePropID:
		d = PropDiscriminator(b.propID)
	case b.internalProviderID != NoneInternalProviderID:
		d = InternalProviderDiscriminator(b.internalProviderID)
	case b.externalProviderID != NoneExternalProviderID:
		d = ExternalProviderDiscriminator(b.externalProviderID)
	}

	return AttributeContext{
		Discriminator:   d,
		SchemaID:        b.schemaID,
		SchemaVariantID: b.schemaVariantID,
		ComponentID:     b.componentID,
	}, nil
}

// AttributeReadContext widens an AttributeContext for queries. A nil field
// matches anything. A pinned discriminator field matches exactly, including
// pinning to an unset sentinel to exclude that carrier kind. A pinned scope
// field matches the id or the unset sentinel, so a component-pinned read falls
// back through variant- and schema-level values; the most specific match wins
// at resolution time. Pinning a scope field to the sentinel matches only
// less-specific values, never leaking component-level state upward.
type AttributeReadContext struct {
	PropID             *PropID
	InternalProviderID *InternalProviderID
	ExternalProviderID *ExternalProviderID
	SchemaID           *SchemaID
	SchemaVariantID    *SchemaVariantID
	ComponentID        *ComponentID
}

// ReadContextFromContext pins every field of c exactly, including unset
// sentinels. The resulting read context matches c and nothing else.
func ReadContextFromContext(c AttributeContext) AttributeReadContext {
	propID := c.PropID()
	internalID := c.InternalProviderID()
	externalID := c.ExternalProviderID()
	schemaID := c.SchemaID
	variantID := c.SchemaVariantID
	componentID := c.ComponentID
	return AttributeReadContext{
		PropID:             &propID,
		InternalProviderID: &internalID,
		ExternalProviderID: &externalID,
		SchemaID:           &schemaID,
		SchemaVariantID:    &variantID,
		ComponentID:        &componentID,
	}
}

// Matches reports whether a value stored at context c is visible to this read
// context.
func (r AttributeReadContext) Matches(c AttributeContext) bool {
	if r.PropID != nil && *r.PropID != c.PropID() {
		return false
	}
	if r.InternalProviderID != nil && *r.InternalProviderID != c.InternalProviderID() {
		return false
	}
	if r.ExternalProviderID != nil && *r.ExternalProviderID != c.ExternalProviderID() {
		return false
	}
	if !scopeMatches(r.SchemaID, c.SchemaID, NoneSchemaID) {
		return false
	}
	if !scopeMatches(r.SchemaVariantID, c.SchemaVariantID, NoneSchemaVariantID) {
		return false
	}
	if !scopeMatches(r.ComponentID, c.ComponentID, NoneComponentID) {
		return false
	}
	return true
}

// scopeMatches implements the fallback rule for scope fields: a pinned id
// also matches values stored without that scope.
func scopeMatches[T comparable](pin *T, got, none T) bool {
	if pin == nil {
		return true
	}
	if got == none {
		return true
	}
	return got == *pin
}

// String renders the read context for error messages.
func (r AttributeReadContext) String() string {
	render := func(name string, v any, set bool) string {
		if !set {
			return name + "=any"
		}
		return fmt.Sprintf("%s=%v", name, v)
	}
	parts := []string{
		render("prop", deref(r.PropID), r.PropID != nil),
		render("internalProvider", deref(r.InternalProviderID), r.InternalProviderID != nil),
		render("externalProvider", deref(r.ExternalProviderID), r.ExternalProviderID != nil),
		render("schema", deref(r.SchemaID), r.SchemaID != nil),
		render("variant", deref(r.SchemaVariantID), r.SchemaVariantID != nil),
		render("component", deref(r.ComponentID), r.ComponentID != nil),
	}
	return fmt.Sprintf("{%s %s %s %s %s %s}", parts[0], parts[1], parts[2], parts[3], parts[4], parts[5])
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
