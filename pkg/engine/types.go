package engine

import (
	"encoding/json"
	"time"
)

// SchemaID identifies a Schema.
type SchemaID string

// SchemaVariantID identifies a SchemaVariant.
type SchemaVariantID string

// PropID identifies a Prop.
type PropID string

// ComponentID identifies a Component.
type ComponentID string

// NodeID identifies a diagram Node.
type NodeID string

// SocketID identifies a Socket.
type SocketID string

// EdgeID identifies an Edge.
type EdgeID string

// ConnectionID identifies a Connection.
type ConnectionID string

// InternalProviderID identifies an InternalProvider.
type InternalProviderID string

// ExternalProviderID identifies an ExternalProvider.
type ExternalProviderID string

// AttributeValueID identifies an AttributeValue.
type AttributeValueID string

// AttributePrototypeID identifies an AttributePrototype.
type AttributePrototypeID string

// AttributePrototypeArgumentID identifies an AttributePrototypeArgument.
type AttributePrototypeArgumentID string

// FuncBindingReturnValueID identifies a FuncBindingReturnValue.
type FuncBindingReturnValueID string

// FuncID names a registered function in the func registry.
type FuncID string

// Unset identifier sentinels. A context field holding one of these addresses
// "no entity" rather than "any entity"; read contexts distinguish the two.
const (
	NoneSchemaID                 SchemaID                 = ""
	NoneSchemaVariantID          SchemaVariantID          = ""
	NonePropID                   PropID                   = ""
	NoneComponentID              ComponentID              = ""
	NoneInternalProviderID       InternalProviderID       = ""
	NoneExternalProviderID       ExternalProviderID       = ""
	NoneAttributeValueID         AttributeValueID         = ""
	NoneAttributePrototypeID     AttributePrototypeID     = ""
	NoneFuncBindingReturnValueID FuncBindingReturnValueID = ""
)

// Well-known function identifiers. The registry supplied at engine
// construction must provide at least these.
const (
	// FuncIdentity passes its "value" argument through unchanged. It is the
	// default pass-through used for socket-to-prop and provider wiring.
	FuncIdentity FuncID = "attr:identity"

	// FuncUnset produces a null value. Newly scaffolded values that have no
	// configured source are bound to it.
	FuncUnset FuncID = "attr:unset"

	// FuncSetValue returns its static arguments verbatim. Installed when an
	// editor directly overrides a value.
	FuncSetValue FuncID = "attr:setValue"
)

// PropKind is the type of a schema property node.
type PropKind string

const (
	PropKindString  PropKind = "string"
	PropKindInteger PropKind = "integer"
	PropKindBoolean PropKind = "boolean"
	PropKindObject  PropKind = "object"
	PropKindArray   PropKind = "array"
	PropKindMap     PropKind = "map"
)

// HasChildren reports whether props of this kind may own child props or
// indexed child values.
func (k PropKind) HasChildren() bool {
	switch k {
	case PropKindObject, PropKindArray, PropKindMap:
		return true
	default:
		return false
	}
}

// ComponentType governs how a component's sockets compose with children.
type ComponentType string

const (
	// ComponentTypePlain is an ordinary component; it cannot contain children.
	ComponentTypePlain ComponentType = "component"

	// ComponentTypeConfigurationFrame wires children to the frame by matching
	// provider names one-to-one.
	ComponentTypeConfigurationFrame ComponentType = "configurationFrame"

	// ComponentTypeAggregationFrame fans children in and out of shared
	// aggregation sockets.
	ComponentTypeAggregationFrame ComponentType = "aggregationFrame"
)

// SocketKind distinguishes provider-backed sockets from frame sockets.
type SocketKind string

const (
	SocketKindProvider SocketKind = "provider"
	SocketKindFrame    SocketKind = "frame"
)

// SocketEdgeKind is the direction/class of edges a socket accepts.
type SocketEdgeKind string

const (
	SocketEdgeKindConfigurationInput  SocketEdgeKind = "configurationInput"
	SocketEdgeKindConfigurationOutput SocketEdgeKind = "configurationOutput"
	SocketEdgeKindSystem              SocketEdgeKind = "system"
)

// SocketArity constrains how many connections may terminate on a socket.
// Arity is advisory at the store boundary: callers are expected to check
// capacity before creating a connection.
type SocketArity string

const (
	SocketArityOne  SocketArity = "one"
	SocketArityMany SocketArity = "many"
)

// EdgeKind classifies an edge in the diagram graph.
type EdgeKind string

const (
	// EdgeKindConfiguration is causal data flow between sockets.
	EdgeKindConfiguration EdgeKind = "configuration"

	// EdgeKindSymbolic is structural containment only, e.g. frame membership.
	EdgeKindSymbolic EdgeKind = "symbolic"
)

// Schema is a named resource definition owning one or more variants.
type Schema struct {
	// ID is the unique identifier of the schema.
	ID SchemaID `json:"id"`

	// Name is the resource type name (e.g. "aws.vpc").
	Name string `json:"name"`

	// CreatedAt is when the schema was created.
	CreatedAt time.Time `json:"created_at"`
}

// SchemaVariant is one concrete shape of a schema. It owns the prop tree,
// providers and sockets referenced by values in its contexts.
type SchemaVariant struct {
	// ID is the unique identifier of the variant.
	ID SchemaVariantID `json:"id"`

	// SchemaID is the owning schema.
	SchemaID SchemaID `json:"schema_id"`

	// Name is the variant name (e.g. "v0").
	Name string `json:"name"`

	// RootPropID is the root of the variant's prop tree, when one has been
	// created.
	RootPropID PropID `json:"root_prop_id,omitempty"`

	// CreatedAt is when the variant was created.
	CreatedAt time.Time `json:"created_at"`
}

// Prop is a typed schema node in a resource's property tree. Props are
// immutable once values reference them and are owned by their schema variant.
type Prop struct {
	// ID is the unique identifier of the prop.
	ID PropID `json:"id"`

	// SchemaVariantID is the owning variant.
	SchemaVariantID SchemaVariantID `json:"schema_variant_id"`

	// ParentID is the parent prop, or NonePropID at the root.
	ParentID PropID `json:"parent_id,omitempty"`

	// Name is the prop name; children of an object are keyed by it.
	Name string `json:"name"`

	// Kind is the prop type.
	Kind PropKind `json:"kind"`

	// CreatedAt is when the prop was created.
	CreatedAt time.Time `json:"created_at"`
}

// Component is an instantiated resource on the diagram.
type Component struct {
	// ID is the unique identifier of the component.
	ID ComponentID `json:"id"`

	// Name is the user-facing component name.
	Name string `json:"name"`

	// Type governs frame composition behavior.
	Type ComponentType `json:"type"`

	// SchemaID and SchemaVariantID identify what the component was
	// instantiated from.
	SchemaID        SchemaID        `json:"schema_id"`
	SchemaVariantID SchemaVariantID `json:"schema_variant_id"`

	// CreatedAt is when the component was created.
	CreatedAt time.Time `json:"created_at"`
}

// Node is the diagram-level handle for a component. Edges and connections
// reference nodes, not components.
type Node struct {
	// ID is the unique identifier of the node.
	ID NodeID `json:"id"`

	// ComponentID is the component this node renders.
	ComponentID ComponentID `json:"component_id"`

	// CreatedAt is when the node was created.
	CreatedAt time.Time `json:"created_at"`
}

// InternalProvider is a consumer-facing data-flow endpoint scoped to a schema
// variant. An implicit internal provider is derived from a prop and reads that
// prop's resolved value; an explicit one is backed by its own socket and
// prototype and acts as a component input.
type InternalProvider struct {
	// ID is the unique identifier of the provider.
	ID InternalProviderID `json:"id"`

	// SchemaID and SchemaVariantID scope the provider.
	SchemaID        SchemaID        `json:"schema_id"`
	SchemaVariantID SchemaVariantID `json:"schema_variant_id"`

	// PropID is the backing prop for implicit providers, NonePropID for
	// explicit ones.
	PropID PropID `json:"prop_id,omitempty"`

	// Name is the provider name; configuration frames match on it.
	Name string `json:"name"`

	// AttributePrototypeID is the prototype computing the provider's value.
	AttributePrototypeID AttributePrototypeID `json:"attribute_prototype_id"`

	// CreatedAt is when the provider was created.
	CreatedAt time.Time `json:"created_at"`
}

// IsImplicit reports whether the provider is derived from a prop.
func (p *InternalProvider) IsImplicit() bool { return p.PropID != NonePropID }

// ExternalProvider is a producer-facing data-flow endpoint exposing a computed
// value for consumption by other components.
type ExternalProvider struct {
	// ID is the unique identifier of the provider.
	ID ExternalProviderID `json:"id"`

	// SchemaID and SchemaVariantID scope the provider.
	SchemaID        SchemaID        `json:"schema_id"`
	SchemaVariantID SchemaVariantID `json:"schema_variant_id"`

	// PropID is the prop the exported value is usually derived from, when set.
	PropID PropID `json:"prop_id,omitempty"`

	// Name is the provider name; configuration frames match on it.
	Name string `json:"name"`

	// AttributePrototypeID is the prototype computing the exported value.
	AttributePrototypeID AttributePrototypeID `json:"attribute_prototype_id"`

	// CreatedAt is when the provider was created.
	CreatedAt time.Time `json:"created_at"`
}

// Socket is the diagram-facing wrapper around a provider.
type Socket struct {
	// ID is the unique identifier of the socket.
	ID SocketID `json:"id"`

	// SchemaVariantID is the owning variant; every component of the variant
	// exposes the same sockets.
	SchemaVariantID SchemaVariantID `json:"schema_variant_id"`

	// Name is the socket name, shown on the diagram.
	Name string `json:"name"`

	// Kind distinguishes provider sockets from frame sockets.
	Kind SocketKind `json:"kind"`

	// EdgeKind is the class of edges terminating on this socket.
	EdgeKind SocketEdgeKind `json:"edge_kind"`

	// Arity constrains connection fan-in. Advisory; see SocketHasCapacity.
	Arity SocketArity `json:"arity"`

	// InternalProviderID is set when the socket backs an explicit internal
	// provider.
	InternalProviderID InternalProviderID `json:"internal_provider_id,omitempty"`

	// ExternalProviderID is set when the socket backs an external provider.
	ExternalProviderID ExternalProviderID `json:"external_provider_id,omitempty"`

	// CreatedAt is when the socket was created.
	CreatedAt time.Time `json:"created_at"`
}

// Edge is a directed link between sockets on two nodes at the graph level.
type Edge struct {
	// ID is the unique identifier of the edge.
	ID EdgeID `json:"id"`

	// Kind classifies the edge.
	Kind EdgeKind `json:"kind"`

	// From is the producing endpoint.
	FromNodeID      NodeID      `json:"from_node_id"`
	FromComponentID ComponentID `json:"from_component_id"`
	FromSocketID    SocketID    `json:"from_socket_id"`

	// To is the consuming endpoint.
	ToNodeID      NodeID      `json:"to_node_id"`
	ToComponentID ComponentID `json:"to_component_id"`
	ToSocketID    SocketID    `json:"to_socket_id"`

	// CreatedAt is when the edge was created.
	CreatedAt time.Time `json:"created_at"`
}

// Connection is the user-visible form of an edge. Connections and edges are
// always created together; consistency between the two is by convention, not
// a store-level guarantee.
type Connection struct {
	// ID is the unique identifier of the connection.
	ID ConnectionID `json:"id"`

	// EdgeID is the graph-level edge backing this connection.
	EdgeID EdgeID `json:"edge_id"`

	// Kind classifies the connection, mirroring the edge.
	Kind EdgeKind `json:"kind"`

	// From is the producing endpoint.
	FromNodeID   NodeID   `json:"from_node_id"`
	FromSocketID SocketID `json:"from_socket_id"`

	// To is the consuming endpoint.
	ToNodeID   NodeID   `json:"to_node_id"`
	ToSocketID SocketID `json:"to_socket_id"`

	// CreatedAt is when the connection was created.
	CreatedAt time.Time `json:"created_at"`
}

// FuncBindingReturnValue is the materialized output of one function
// evaluation.
type FuncBindingReturnValue struct {
	// ID is the unique identifier of the return value.
	ID FuncBindingReturnValueID `json:"id"`

	// FuncID is the function that produced the value.
	FuncID FuncID `json:"func_id"`

	// Value is the produced JSON value; null is a legitimate value.
	Value json.RawMessage `json:"value"`

	// CreatedAt is when the value was produced.
	CreatedAt time.Time `json:"created_at"`
}

// AttributeValue is the stored value node for one AttributeContext plus an
// optional map key or ordinal position.
type AttributeValue struct {
	// ID is the unique identifier of the value.
	ID AttributeValueID `json:"id"`

	// Context is the specificity key addressing this value.
	Context AttributeContext `json:"context"`

	// Key is the map-entry key or generated array-entry key, empty for
	// non-indexed values.
	Key string `json:"key,omitempty"`

	// FuncBindingReturnValueID references the computed result of the owning
	// prototype's last evaluation. None means the prototype has not produced
	// a result yet.
	FuncBindingReturnValueID FuncBindingReturnValueID `json:"func_binding_return_value_id,omitempty"`

	// ProxyForAttributeValueID names the less-specific value this one stands
	// in for, when this value is a proxy.
	ProxyForAttributeValueID AttributeValueID `json:"proxy_for_attribute_value_id,omitempty"`

	// SealedProxy, once true, permanently stops this value from re-syncing
	// from its proxied value.
	SealedProxy bool `json:"sealed_proxy"`

	// IndexMap orders child keys when this value represents an array or map.
	IndexMap *IndexMap `json:"index_map,omitempty"`

	// ParentAttributeValueID is the composite parent value, if any.
	ParentAttributeValueID AttributeValueID `json:"parent_attribute_value_id,omitempty"`

	// AttributePrototypeID is the prototype that produces this value.
	AttributePrototypeID AttributePrototypeID `json:"attribute_prototype_id,omitempty"`

	// CreatedAt and UpdatedAt track the row lifecycle.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsProxy reports whether the value stands in for a less-specific one.
func (v *AttributeValue) IsProxy() bool {
	return v.ProxyForAttributeValueID != NoneAttributeValueID
}

// Clone returns a deep copy of the value.
func (v *AttributeValue) Clone() *AttributeValue {
	out := *v
	if v.IndexMap != nil {
		out.IndexMap = v.IndexMap.Clone()
	}
	return &out
}

// AttributePrototype binds a function, its serialized static arguments, and an
// AttributeContext to a computation rule.
type AttributePrototype struct {
	// ID is the unique identifier of the prototype.
	ID AttributePrototypeID `json:"id"`

	// Context is the specificity key the prototype applies at. It must match
	// the context of every value it produces; changing it after creation is
	// unsupported.
	Context AttributeContext `json:"context"`

	// FuncID is the function that computes the value.
	FuncID FuncID `json:"func_id"`

	// StaticArgs is the serialized static argument payload handed to the
	// function on every evaluation.
	StaticArgs json.RawMessage `json:"static_args,omitempty"`

	// Key scopes the prototype to one map entry, mirroring the owning
	// value's key.
	Key string `json:"key,omitempty"`

	// CreatedAt and UpdatedAt track the row lifecycle.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttributePrototypeArgument names one function parameter of a prototype and
// the provider supplying its runtime value. For cross-component consumption
// (aggregation frames), the tail component produces and the head component
// consumes.
type AttributePrototypeArgument struct {
	// ID is the unique identifier of the argument.
	ID AttributePrototypeArgumentID `json:"id"`

	// PrototypeID is the owning prototype.
	PrototypeID AttributePrototypeID `json:"prototype_id"`

	// Name is the function parameter this argument feeds.
	Name string `json:"name"`

	// InternalProviderID or ExternalProviderID is the value source; exactly
	// one is set.
	InternalProviderID InternalProviderID `json:"internal_provider_id,omitempty"`
	ExternalProviderID ExternalProviderID `json:"external_provider_id,omitempty"`

	// TailComponentID and HeadComponentID scope cross-component arguments:
	// the tail component's provider value feeds the head component's
	// prototype. Both are none for same-component arguments.
	TailComponentID ComponentID `json:"tail_component_id,omitempty"`
	HeadComponentID ComponentID `json:"head_component_id,omitempty"`

	// CreatedAt is when the argument was created.
	CreatedAt time.Time `json:"created_at"`
}
