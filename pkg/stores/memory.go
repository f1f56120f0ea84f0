package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/propgraph/propgraph/pkg/engine"
)

// MemoryStore is an in-memory engine.Store. Begin snapshots the whole state;
// Commit swaps the snapshot back in, so a unit of work sees its own writes
// and nothing else does until commit. Last committed unit wins on overlap.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	schemas      map[engine.SchemaID]*engine.Schema
	variants     map[engine.SchemaVariantID]*engine.SchemaVariant
	props        map[engine.PropID]*engine.Prop
	components   map[engine.ComponentID]*engine.Component
	nodes        map[engine.NodeID]*engine.Node
	internals    map[engine.InternalProviderID]*engine.InternalProvider
	externals    map[engine.ExternalProviderID]*engine.ExternalProvider
	sockets      map[engine.SocketID]*engine.Socket
	edges        map[engine.EdgeID]*engine.Edge
	connections  map[engine.ConnectionID]*engine.Connection
	values       map[engine.AttributeValueID]*engine.AttributeValue
	prototypes   map[engine.AttributePrototypeID]*engine.AttributePrototype
	arguments    map[engine.AttributePrototypeArgumentID]*engine.AttributePrototypeArgument
	returnValues map[engine.FuncBindingReturnValueID]*engine.FuncBindingReturnValue

	// order records insertion sequence per row id so list results are
	// deterministic even when timestamps collide.
	order   map[string]uint64
	nextSeq uint64
}

func newMemState() *memState {
	return &memState{
		schemas:      make(map[engine.SchemaID]*engine.Schema),
		variants:     make(map[engine.SchemaVariantID]*engine.SchemaVariant),
		props:        make(map[engine.PropID]*engine.Prop),
		components:   make(map[engine.ComponentID]*engine.Component),
		nodes:        make(map[engine.NodeID]*engine.Node),
		internals:    make(map[engine.InternalProviderID]*engine.InternalProvider),
		externals:    make(map[engine.ExternalProviderID]*engine.ExternalProvider),
		sockets:      make(map[engine.SocketID]*engine.Socket),
		edges:        make(map[engine.EdgeID]*engine.Edge),
		connections:  make(map[engine.ConnectionID]*engine.Connection),
		values:       make(map[engine.AttributeValueID]*engine.AttributeValue),
		prototypes:   make(map[engine.AttributePrototypeID]*engine.AttributePrototype),
		arguments:    make(map[engine.AttributePrototypeArgumentID]*engine.AttributePrototypeArgument),
		returnValues: make(map[engine.FuncBindingReturnValueID]*engine.FuncBindingReturnValue),
		order:        make(map[string]uint64),
	}
}

func (s *memState) track(id string) {
	s.nextSeq++
	s.order[id] = s.nextSeq
}

func (s *memState) clone() *memState {
	out := newMemState()
	for id, v := range s.schemas {
		c := *v
		out.schemas[id] = &c
	}
	for id, v := range s.variants {
		c := *v
		out.variants[id] = &c
	}
	for id, v := range s.props {
		c := *v
		out.props[id] = &c
	}
	for id, v := range s.components {
		c := *v
		out.components[id] = &c
	}
	for id, v := range s.nodes {
		c := *v
		out.nodes[id] = &c
	}
	for id, v := range s.internals {
		c := *v
		out.internals[id] = &c
	}
	for id, v := range s.externals {
		c := *v
		out.externals[id] = &c
	}
	for id, v := range s.sockets {
		c := *v
		out.sockets[id] = &c
	}
	for id, v := range s.edges {
		c := *v
		out.edges[id] = &c
	}
	for id, v := range s.connections {
		c := *v
		out.connections[id] = &c
	}
	for id, v := range s.values {
		out.values[id] = v.Clone()
	}
	for id, v := range s.prototypes {
		c := *v
		out.prototypes[id] = &c
	}
	for id, v := range s.arguments {
		c := *v
		out.arguments[id] = &c
	}
	for id, v := range s.returnValues {
		c := *v
		out.returnValues[id] = &c
	}
	for id, seq := range s.order {
		out.order[id] = seq
	}
	out.nextSeq = s.nextSeq
	return out
}

// sortByInsertion orders list results by row insertion sequence.
func sortByInsertion[T any](items []*T, order map[string]uint64, id func(*T) string) {
	sort.Slice(items, func(i, j int) bool {
		return order[id(items[i])] < order[id(items[j])]
	})
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Begin implements engine.Store.
func (s *MemoryStore) Begin(_ context.Context) (engine.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{store: s, state: s.state.clone()}, nil
}

// Migrate implements engine.Store. The in-memory store has no schema.
func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

// Close implements engine.Store.
func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	store *MemoryStore
	state *memState
	done  bool
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.store.mu.Lock()
	t.store.state = t.state
	t.store.mu.Unlock()
	t.done = true
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	t.done = true
	return nil
}

func (t *memTx) CreateSchema(_ context.Context, schema *engine.Schema) error {
	if _, ok := t.state.schemas[schema.ID]; ok {
		return fmt.Errorf("schema already exists: %s", schema.ID)
	}
	c := *schema
	t.state.schemas[schema.ID] = &c
	t.state.track(string(schema.ID))
	return nil
}

func (t *memTx) GetSchema(_ context.Context, id engine.SchemaID) (*engine.Schema, error) {
	s, ok := t.state.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema not found: %s", id)
	}
	c := *s
	return &c, nil
}

func (t *memTx) CreateSchemaVariant(_ context.Context, variant *engine.SchemaVariant) error {
	if _, ok := t.state.variants[variant.ID]; ok {
		return fmt.Errorf("schema variant already exists: %s", variant.ID)
	}
	c := *variant
	t.state.variants[variant.ID] = &c
	t.state.track(string(variant.ID))
	return nil
}

func (t *memTx) GetSchemaVariant(_ context.Context, id engine.SchemaVariantID) (*engine.SchemaVariant, error) {
	v, ok := t.state.variants[id]
	if !ok {
		return nil, fmt.Errorf("schema variant not found: %s", id)
	}
	c := *v
	return &c, nil
}

func (t *memTx) UpdateSchemaVariant(_ context.Context, variant *engine.SchemaVariant) error {
	if _, ok := t.state.variants[variant.ID]; !ok {
		return fmt.Errorf("schema variant not found: %s", variant.ID)
	}
	c := *variant
	t.state.variants[variant.ID] = &c
	return nil
}

func (t *memTx) CreateProp(_ context.Context, prop *engine.Prop) error {
	if _, ok := t.state.props[prop.ID]; ok {
		return fmt.Errorf("prop already exists: %s", prop.ID)
	}
	c := *prop
	t.state.props[prop.ID] = &c
	t.state.track(string(prop.ID))
	return nil
}

func (t *memTx) GetProp(_ context.Context, id engine.PropID) (*engine.Prop, error) {
	p, ok := t.state.props[id]
	if !ok {
		return nil, fmt.Errorf("prop not found: %s", id)
	}
	c := *p
	return &c, nil
}

func (t *memTx) ListProps(_ context.Context, filter engine.PropFilter) ([]*engine.Prop, error) {
	var out []*engine.Prop
	for _, p := range t.state.props {
		if filter.Match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(p *engine.Prop) string { return string(p.ID) })
	return out, nil
}

func (t *memTx) CreateComponent(_ context.Context, component *engine.Component) error {
	if _, ok := t.state.components[component.ID]; ok {
		return fmt.Errorf("component already exists: %s", component.ID)
	}
	c := *component
	t.state.components[component.ID] = &c
	t.state.track(string(component.ID))
	return nil
}

func (t *memTx) GetComponent(_ context.Context, id engine.ComponentID) (*engine.Component, error) {
	v, ok := t.state.components[id]
	if !ok {
		return nil, fmt.Errorf("component not found: %s", id)
	}
	c := *v
	return &c, nil
}

func (t *memTx) UpdateComponent(_ context.Context, component *engine.Component) error {
	if _, ok := t.state.components[component.ID]; !ok {
		return fmt.Errorf("component not found: %s", component.ID)
	}
	c := *component
	t.state.components[component.ID] = &c
	return nil
}

func (t *memTx) CreateNode(_ context.Context, node *engine.Node) error {
	if _, ok := t.state.nodes[node.ID]; ok {
		return fmt.Errorf("node already exists: %s", node.ID)
	}
	c := *node
	t.state.nodes[node.ID] = &c
	t.state.track(string(node.ID))
	return nil
}

func (t *memTx) GetNode(_ context.Context, id engine.NodeID) (*engine.Node, error) {
	n, ok := t.state.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	c := *n
	return &c, nil
}

func (t *memTx) CreateInternalProvider(_ context.Context, provider *engine.InternalProvider) error {
	if _, ok := t.state.internals[provider.ID]; ok {
		return fmt.Errorf("internal provider already exists: %s", provider.ID)
	}
	c := *provider
	t.state.internals[provider.ID] = &c
	t.state.track(string(provider.ID))
	return nil
}

func (t *memTx) GetInternalProvider(_ context.Context, id engine.InternalProviderID) (*engine.InternalProvider, error) {
	p, ok := t.state.internals[id]
	if !ok {
		return nil, fmt.Errorf("internal provider not found: %s", id)
	}
	c := *p
	return &c, nil
}

func (t *memTx) ListInternalProviders(_ context.Context, filter engine.InternalProviderFilter) ([]*engine.InternalProvider, error) {
	var out []*engine.InternalProvider
	for _, p := range t.state.internals {
		if filter.Match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(p *engine.InternalProvider) string { return string(p.ID) })
	return out, nil
}

func (t *memTx) CreateExternalProvider(_ context.Context, provider *engine.ExternalProvider) error {
	if _, ok := t.state.externals[provider.ID]; ok {
		return fmt.Errorf("external provider already exists: %s", provider.ID)
	}
	c := *provider
	t.state.externals[provider.ID] = &c
	t.state.track(string(provider.ID))
	return nil
}

func (t *memTx) GetExternalProvider(_ context.Context, id engine.ExternalProviderID) (*engine.ExternalProvider, error) {
	p, ok := t.state.externals[id]
	if !ok {
		return nil, fmt.Errorf("external provider not found: %s", id)
	}
	c := *p
	return &c, nil
}

func (t *memTx) ListExternalProviders(_ context.Context, filter engine.ExternalProviderFilter) ([]*engine.ExternalProvider, error) {
	var out []*engine.ExternalProvider
	for _, p := range t.state.externals {
		if filter.Match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(p *engine.ExternalProvider) string { return string(p.ID) })
	return out, nil
}

func (t *memTx) CreateSocket(_ context.Context, socket *engine.Socket) error {
	if _, ok := t.state.sockets[socket.ID]; ok {
		return fmt.Errorf("socket already exists: %s", socket.ID)
	}
	c := *socket
	t.state.sockets[socket.ID] = &c
	t.state.track(string(socket.ID))
	return nil
}

func (t *memTx) GetSocket(_ context.Context, id engine.SocketID) (*engine.Socket, error) {
	s, ok := t.state.sockets[id]
	if !ok {
		return nil, fmt.Errorf("socket not found: %s", id)
	}
	c := *s
	return &c, nil
}

func (t *memTx) ListSockets(_ context.Context, filter engine.SocketFilter) ([]*engine.Socket, error) {
	var out []*engine.Socket
	for _, s := range t.state.sockets {
		if filter.Match(s) {
			c := *s
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(s *engine.Socket) string { return string(s.ID) })
	return out, nil
}

func (t *memTx) CreateEdge(_ context.Context, edge *engine.Edge) error {
	if _, ok := t.state.edges[edge.ID]; ok {
		return fmt.Errorf("edge already exists: %s", edge.ID)
	}
	c := *edge
	t.state.edges[edge.ID] = &c
	t.state.track(string(edge.ID))
	return nil
}

func (t *memTx) ListEdges(_ context.Context, filter engine.EdgeFilter) ([]*engine.Edge, error) {
	var out []*engine.Edge
	for _, e := range t.state.edges {
		if filter.Match(e) {
			c := *e
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(e *engine.Edge) string { return string(e.ID) })
	return out, nil
}

func (t *memTx) CreateConnection(_ context.Context, connection *engine.Connection) error {
	if _, ok := t.state.connections[connection.ID]; ok {
		return fmt.Errorf("connection already exists: %s", connection.ID)
	}
	c := *connection
	t.state.connections[connection.ID] = &c
	t.state.track(string(connection.ID))
	return nil
}

func (t *memTx) ListConnections(_ context.Context, filter engine.ConnectionFilter) ([]*engine.Connection, error) {
	var out []*engine.Connection
	for _, c := range t.state.connections {
		if filter.Match(c) {
			cc := *c
			out = append(out, &cc)
		}
	}
	sortByInsertion(out, t.state.order, func(c *engine.Connection) string { return string(c.ID) })
	return out, nil
}

func (t *memTx) CreateValue(_ context.Context, value *engine.AttributeValue) error {
	if _, ok := t.state.values[value.ID]; ok {
		return fmt.Errorf("attribute value already exists: %s", value.ID)
	}
	t.state.values[value.ID] = value.Clone()
	t.state.track(string(value.ID))
	return nil
}

func (t *memTx) GetValue(_ context.Context, id engine.AttributeValueID) (*engine.AttributeValue, error) {
	v, ok := t.state.values[id]
	if !ok {
		return nil, fmt.Errorf("attribute value not found: %s", id)
	}
	return v.Clone(), nil
}

func (t *memTx) UpdateValue(_ context.Context, value *engine.AttributeValue) error {
	if _, ok := t.state.values[value.ID]; !ok {
		return fmt.Errorf("attribute value not found: %s", value.ID)
	}
	t.state.values[value.ID] = value.Clone()
	return nil
}

func (t *memTx) DeleteValue(_ context.Context, id engine.AttributeValueID) error {
	if _, ok := t.state.values[id]; !ok {
		return fmt.Errorf("attribute value not found: %s", id)
	}
	delete(t.state.values, id)
	delete(t.state.order, string(id))
	return nil
}

func (t *memTx) ListValues(_ context.Context, filter engine.ValueFilter) ([]*engine.AttributeValue, error) {
	var out []*engine.AttributeValue
	for _, v := range t.state.values {
		if filter.Match(v) {
			out = append(out, v.Clone())
		}
	}
	sortByInsertion(out, t.state.order, func(v *engine.AttributeValue) string { return string(v.ID) })
	return out, nil
}

func (t *memTx) CreatePrototype(_ context.Context, prototype *engine.AttributePrototype) error {
	if _, ok := t.state.prototypes[prototype.ID]; ok {
		return fmt.Errorf("attribute prototype already exists: %s", prototype.ID)
	}
	c := *prototype
	t.state.prototypes[prototype.ID] = &c
	t.state.track(string(prototype.ID))
	return nil
}

func (t *memTx) GetPrototype(_ context.Context, id engine.AttributePrototypeID) (*engine.AttributePrototype, error) {
	p, ok := t.state.prototypes[id]
	if !ok {
		return nil, fmt.Errorf("attribute prototype not found: %s", id)
	}
	c := *p
	return &c, nil
}

func (t *memTx) UpdatePrototype(_ context.Context, prototype *engine.AttributePrototype) error {
	if _, ok := t.state.prototypes[prototype.ID]; !ok {
		return fmt.Errorf("attribute prototype not found: %s", prototype.ID)
	}
	c := *prototype
	t.state.prototypes[prototype.ID] = &c
	return nil
}

func (t *memTx) ListPrototypes(_ context.Context, filter engine.PrototypeFilter) ([]*engine.AttributePrototype, error) {
	var out []*engine.AttributePrototype
	for _, p := range t.state.prototypes {
		if filter.Match(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(p *engine.AttributePrototype) string { return string(p.ID) })
	return out, nil
}

func (t *memTx) CreatePrototypeArgument(_ context.Context, argument *engine.AttributePrototypeArgument) error {
	if _, ok := t.state.arguments[argument.ID]; ok {
		return fmt.Errorf("prototype argument already exists: %s", argument.ID)
	}
	c := *argument
	t.state.arguments[argument.ID] = &c
	t.state.track(string(argument.ID))
	return nil
}

func (t *memTx) ListPrototypeArguments(_ context.Context, filter engine.ArgumentFilter) ([]*engine.AttributePrototypeArgument, error) {
	var out []*engine.AttributePrototypeArgument
	for _, a := range t.state.arguments {
		if filter.Match(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sortByInsertion(out, t.state.order, func(a *engine.AttributePrototypeArgument) string { return string(a.ID) })
	return out, nil
}

func (t *memTx) CreateReturnValue(_ context.Context, rv *engine.FuncBindingReturnValue) error {
	if _, ok := t.state.returnValues[rv.ID]; ok {
		return fmt.Errorf("return value already exists: %s", rv.ID)
	}
	c := *rv
	t.state.returnValues[rv.ID] = &c
	t.state.track(string(rv.ID))
	return nil
}

func (t *memTx) GetReturnValue(_ context.Context, id engine.FuncBindingReturnValueID) (*engine.FuncBindingReturnValue, error) {
	rv, ok := t.state.returnValues[id]
	if !ok {
		return nil, fmt.Errorf("return value not found: %s", id)
	}
	c := *rv
	return &c, nil
}
