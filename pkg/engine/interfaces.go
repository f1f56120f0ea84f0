package engine

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the transactional backing store the engine runs on. The engine
// treats isolation as an opaque capability: operations within one Tx observe
// each other's writes; other concurrent units do not until commit.
type Store interface {
	// Begin starts a new unit of work.
	Begin(ctx context.Context) (Tx, error)

	// Migrate brings the backing schema up to date.
	Migrate(ctx context.Context) error

	// Close releases the store.
	Close() error
}

// Tx is one transaction against the backing store. All graph mutations run
// inside a single ambient Tx; the engine performs no locking of its own.
type Tx interface {
	CreateSchema(ctx context.Context, schema *Schema) error
	GetSchema(ctx context.Context, id SchemaID) (*Schema, error)

	CreateSchemaVariant(ctx context.Context, variant *SchemaVariant) error
	GetSchemaVariant(ctx context.Context, id SchemaVariantID) (*SchemaVariant, error)
	UpdateSchemaVariant(ctx context.Context, variant *SchemaVariant) error

	CreateProp(ctx context.Context, prop *Prop) error
	GetProp(ctx context.Context, id PropID) (*Prop, error)
	ListProps(ctx context.Context, filter PropFilter) ([]*Prop, error)

	CreateComponent(ctx context.Context, component *Component) error
	GetComponent(ctx context.Context, id ComponentID) (*Component, error)
	UpdateComponent(ctx context.Context, component *Component) error

	CreateNode(ctx context.Context, node *Node) error
	GetNode(ctx context.Context, id NodeID) (*Node, error)

	CreateInternalProvider(ctx context.Context, provider *InternalProvider) error
	GetInternalProvider(ctx context.Context, id InternalProviderID) (*InternalProvider, error)
	ListInternalProviders(ctx context.Context, filter InternalProviderFilter) ([]*InternalProvider, error)

	CreateExternalProvider(ctx context.Context, provider *ExternalProvider) error
	GetExternalProvider(ctx context.Context, id ExternalProviderID) (*ExternalProvider, error)
	ListExternalProviders(ctx context.Context, filter ExternalProviderFilter) ([]*ExternalProvider, error)

	CreateSocket(ctx context.Context, socket *Socket) error
	GetSocket(ctx context.Context, id SocketID) (*Socket, error)
	ListSockets(ctx context.Context, filter SocketFilter) ([]*Socket, error)

	CreateEdge(ctx context.Context, edge *Edge) error
	ListEdges(ctx context.Context, filter EdgeFilter) ([]*Edge, error)

	CreateConnection(ctx context.Context, connection *Connection) error
	ListConnections(ctx context.Context, filter ConnectionFilter) ([]*Connection, error)

	CreateValue(ctx context.Context, value *AttributeValue) error
	GetValue(ctx context.Context, id AttributeValueID) (*AttributeValue, error)
	UpdateValue(ctx context.Context, value *AttributeValue) error
	DeleteValue(ctx context.Context, id AttributeValueID) error
	ListValues(ctx context.Context, filter ValueFilter) ([]*AttributeValue, error)

	CreatePrototype(ctx context.Context, prototype *AttributePrototype) error
	GetPrototype(ctx context.Context, id AttributePrototypeID) (*AttributePrototype, error)
	UpdatePrototype(ctx context.Context, prototype *AttributePrototype) error
	ListPrototypes(ctx context.Context, filter PrototypeFilter) ([]*AttributePrototype, error)

	CreatePrototypeArgument(ctx context.Context, argument *AttributePrototypeArgument) error
	ListPrototypeArguments(ctx context.Context, filter ArgumentFilter) ([]*AttributePrototypeArgument, error)

	CreateReturnValue(ctx context.Context, rv *FuncBindingReturnValue) error
	GetReturnValue(ctx context.Context, id FuncBindingReturnValueID) (*FuncBindingReturnValue, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PropFilter selects props. Nil fields match anything.
type PropFilter struct {
	SchemaVariantID *SchemaVariantID
	ParentID        *PropID
	Name            *string
}

// Match reports whether the prop passes the filter. Stores share this so
// filtering semantics cannot drift between implementations.
func (f PropFilter) Match(p *Prop) bool {
	if f.SchemaVariantID != nil && p.SchemaVariantID != *f.SchemaVariantID {
		return false
	}
	if f.ParentID != nil && p.ParentID != *f.ParentID {
		return false
	}
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	return true
}

// InternalProviderFilter selects internal providers.
type InternalProviderFilter struct {
	SchemaVariantID *SchemaVariantID
	PropID          *PropID
	Name            *string
}

// Match reports whether the provider passes the filter.
func (f InternalProviderFilter) Match(p *InternalProvider) bool {
	if f.SchemaVariantID != nil && p.SchemaVariantID != *f.SchemaVariantID {
		return false
	}
	if f.PropID != nil && p.PropID != *f.PropID {
		return false
	}
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	return true
}

// ExternalProviderFilter selects external providers.
type ExternalProviderFilter struct {
	SchemaVariantID *SchemaVariantID
	Name            *string
}

// Match reports whether the provider passes the filter.
func (f ExternalProviderFilter) Match(p *ExternalProvider) bool {
	if f.SchemaVariantID != nil && p.SchemaVariantID != *f.SchemaVariantID {
		return false
	}
	if f.Name != nil && p.Name != *f.Name {
		return false
	}
	return true
}

// SocketFilter selects sockets.
type SocketFilter struct {
	SchemaVariantID *SchemaVariantID
	Kind            *SocketKind
	EdgeKind        *SocketEdgeKind
}

// Match reports whether the socket passes the filter.
func (f SocketFilter) Match(s *Socket) bool {
	if f.SchemaVariantID != nil && s.SchemaVariantID != *f.SchemaVariantID {
		return false
	}
	if f.Kind != nil && s.Kind != *f.Kind {
		return false
	}
	if f.EdgeKind != nil && s.EdgeKind != *f.EdgeKind {
		return false
	}
	return true
}

// EdgeFilter selects edges.
type EdgeFilter struct {
	Kind         *EdgeKind
	FromNodeID   *NodeID
	ToNodeID     *NodeID
	FromSocketID *SocketID
	ToSocketID   *SocketID
}

// Match reports whether the edge passes the filter.
func (f EdgeFilter) Match(e *Edge) bool {
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if f.FromNodeID != nil && e.FromNodeID != *f.FromNodeID {
		return false
	}
	if f.ToNodeID != nil && e.ToNodeID != *f.ToNodeID {
		return false
	}
	if f.FromSocketID != nil && e.FromSocketID != *f.FromSocketID {
		return false
	}
	if f.ToSocketID != nil && e.ToSocketID != *f.ToSocketID {
		return false
	}
	return true
}

// ConnectionFilter selects connections.
type ConnectionFilter struct {
	FromNodeID   *NodeID
	ToNodeID     *NodeID
	FromSocketID *SocketID
	ToSocketID   *SocketID
}

// Match reports whether the connection passes the filter.
func (f ConnectionFilter) Match(c *Connection) bool {
	if f.FromNodeID != nil && c.FromNodeID != *f.FromNodeID {
		return false
	}
	if f.ToNodeID != nil && c.ToNodeID != *f.ToNodeID {
		return false
	}
	if f.FromSocketID != nil && c.FromSocketID != *f.FromSocketID {
		return false
	}
	if f.ToSocketID != nil && c.ToSocketID != *f.ToSocketID {
		return false
	}
	return true
}

// ValueFilter selects attribute values. Read applies context matching with
// scope fallback; the parent pins distinguish "any parent" (nil, false) from
// "no parent" (ParentNone). A Key pointing at the empty string selects only
// keyless values.
type ValueFilter struct {
	Read        *AttributeReadContext
	Key         *string
	ParentID    *AttributeValueID
	ParentNone  bool
	PrototypeID *AttributePrototypeID
	ProxyFor    *AttributeValueID
}

// Match reports whether the value passes the filter.
func (f ValueFilter) Match(v *AttributeValue) bool {
	if f.Read != nil && !f.Read.Matches(v.Context) {
		return false
	}
	if f.Key != nil && v.Key != *f.Key {
		return false
	}
	if f.ParentNone && v.ParentAttributeValueID != NoneAttributeValueID {
		return false
	}
	if f.ParentID != nil && v.ParentAttributeValueID != *f.ParentID {
		return false
	}
	if f.PrototypeID != nil && v.AttributePrototypeID != *f.PrototypeID {
		return false
	}
	if f.ProxyFor != nil && v.ProxyForAttributeValueID != *f.ProxyFor {
		return false
	}
	return true
}

// PrototypeFilter selects prototypes.
type PrototypeFilter struct {
	Read   *AttributeReadContext
	FuncID *FuncID
}

// Match reports whether the prototype passes the filter.
func (f PrototypeFilter) Match(p *AttributePrototype) bool {
	if f.Read != nil && !f.Read.Matches(p.Context) {
		return false
	}
	if f.FuncID != nil && p.FuncID != *f.FuncID {
		return false
	}
	return true
}

// ArgumentFilter selects prototype arguments.
type ArgumentFilter struct {
	PrototypeID        *AttributePrototypeID
	InternalProviderID *InternalProviderID
	ExternalProviderID *ExternalProviderID
	HeadComponentID    *ComponentID
}

// Match reports whether the argument passes the filter.
func (f ArgumentFilter) Match(a *AttributePrototypeArgument) bool {
	if f.PrototypeID != nil && a.PrototypeID != *f.PrototypeID {
		return false
	}
	if f.InternalProviderID != nil && a.InternalProviderID != *f.InternalProviderID {
		return false
	}
	if f.ExternalProviderID != nil && a.ExternalProviderID != *f.ExternalProviderID {
		return false
	}
	if f.HeadComponentID != nil && a.HeadComponentID != *f.HeadComponentID {
		return false
	}
	return true
}

// DependentValuesUpdate is one propagation work item: the set of root
// attribute values whose downstream dependents must be recomputed. The engine
// guarantees it enqueues a superset of the affected ids; over-enqueuing is
// acceptable because recomputation is idempotent.
type DependentValuesUpdate struct {
	// ID is the unique identifier of the work item.
	ID string `json:"id"`

	// RootAttributeValueIDs are the propagation roots.
	RootAttributeValueIDs []AttributeValueID `json:"root_attribute_value_ids"`

	// EnqueuedAt is when the item was enqueued.
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobQueue receives propagation work items after a unit commits. The executor
// behind it owns graph traversal, coalescing and retries.
type JobQueue interface {
	Enqueue(ctx context.Context, update DependentValuesUpdate) error
}

// FuncEvaluator executes a bound function. The engine treats evaluation as an
// opaque capability; implementations dispatch on funcID.
type FuncEvaluator interface {
	// Evaluate runs funcID with its serialized static arguments and resolved
	// provider argument values, returning the computed JSON value.
	Evaluate(ctx context.Context, funcID FuncID, staticArgs json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error)
}

// Notifier receives change notifications produced by the engine. All methods
// are fire-and-forget; failures must not abort the mutation that triggered
// them.
type Notifier interface {
	// ValueChanged reports that a value's materialized result changed.
	ValueChanged(ctx context.Context, id AttributeValueID)

	// ChangeSetWritten reports that a unit of work committed, with the
	// propagation roots it enqueued.
	ChangeSetWritten(ctx context.Context, unitID string, roots []AttributeValueID)

	// FrameConnected reports that a child component was wired into a frame.
	FrameConnected(ctx context.Context, parent, child ComponentID)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// ValueChanged implements Notifier.
func (NopNotifier) ValueChanged(context.Context, AttributeValueID) {}

// ChangeSetWritten implements Notifier.
func (NopNotifier) ChangeSetWritten(context.Context, string, []AttributeValueID) {}

// FrameConnected implements Notifier.
func (NopNotifier) FrameConnected(context.Context, ComponentID, ComponentID) {}
