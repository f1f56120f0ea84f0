package engine

import (
	"context"
)

// CreateConnection wires the from socket of one node into the to socket of
// another, creating the backing edge and the user-visible connection
// together. For configuration connections the head component's explicit
// internal provider prototype gains an inter-component argument fed by the
// tail component's external provider, and the head's provider value is
// enqueued as a propagation root. Symbolic connections carry no data flow and
// skip provider wiring.
func (u *Unit) CreateConnection(ctx context.Context, fromNodeID NodeID, fromSocketID SocketID, toNodeID NodeID, toSocketID SocketID, kind EdgeKind) (*Connection, error) {
	fromComponent, err := u.GetComponentForNode(ctx, fromNodeID)
	if err != nil {
		return nil, err
	}
	toComponent, err := u.GetComponentForNode(ctx, toNodeID)
	if err != nil {
		return nil, err
	}

	ok, err := u.SocketHasCapacity(ctx, toNodeID, toSocketID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NewConflictError("socket arity exhausted", nil).
			WithDetail("to_node_id", toNodeID).
			WithDetail("to_socket_id", toSocketID)
	}

	connection, err := u.createEdgeWithConnection(ctx, kind, fromNodeID, fromComponent.ID, fromSocketID, toNodeID, toComponent.ID, toSocketID)
	if err != nil {
		return nil, err
	}

	if kind == EdgeKindConfiguration {
		tailProvider, err := u.FindExternalProviderForSocket(ctx, fromSocketID)
		if err != nil {
			return nil, err
		}
		headProvider, err := u.FindExplicitInternalProviderForSocket(ctx, toSocketID)
		if err != nil {
			return nil, err
		}
		if err := u.connectProviders(ctx, tailProvider.ID, headProvider.ID, fromComponent.ID, toComponent.ID); err != nil {
			return nil, err
		}
	}
	return connection, nil
}

func (u *Unit) createEdgeWithConnection(ctx context.Context, kind EdgeKind, fromNodeID NodeID, fromComponentID ComponentID, fromSocketID SocketID, toNodeID NodeID, toComponentID ComponentID, toSocketID SocketID) (*Connection, error) {
	edge := &Edge{
		ID:              EdgeID(newID()),
		Kind:            kind,
		FromNodeID:      fromNodeID,
		FromComponentID: fromComponentID,
		FromSocketID:    fromSocketID,
		ToNodeID:        toNodeID,
		ToComponentID:   toComponentID,
		ToSocketID:      toSocketID,
		CreatedAt:       u.now(),
	}
	if err := u.tx.CreateEdge(ctx, edge); err != nil {
		return nil, NewStoreError("failed to create edge", err)
	}
	connection := &Connection{
		ID:           ConnectionID(newID()),
		EdgeID:       edge.ID,
		Kind:         kind,
		FromNodeID:   fromNodeID,
		FromSocketID: fromSocketID,
		ToNodeID:     toNodeID,
		ToSocketID:   toSocketID,
		CreatedAt:    u.now(),
	}
	if err := u.tx.CreateConnection(ctx, connection); err != nil {
		return nil, NewStoreError("failed to create connection", err)
	}
	return connection, nil
}

// connectProviders binds the head component's internal provider prototype to
// the tail component's external provider and enqueues the head provider value
// for recomputation.
func (u *Unit) connectProviders(ctx context.Context, tailProviderID ExternalProviderID, headProviderID InternalProviderID, tailComponentID, headComponentID ComponentID) error {
	headValue, err := u.providerValueForComponent(ctx, headProviderID, NoneExternalProviderID, headComponentID)
	if err != nil {
		return err
	}
	prototype, err := u.tx.GetPrototype(ctx, headValue.AttributePrototypeID)
	if err != nil {
		return NewIntegrityError("attribute prototype not found for provider value", err).
			WithCode(ErrCodeNotFound).
			WithDetail("attribute_value_id", headValue.ID)
	}
	if _, err := u.bindArgument(ctx, prototype.ID, "value", NoneInternalProviderID, tailProviderID, tailComponentID, headComponentID); err != nil {
		return err
	}
	u.EnqueueRoot(headValue.ID)
	return nil
}

// ConnectInternalProvidersForComponents feeds the head component's copy of an
// internal provider from the tail component's copy of the same provider. This
// is the fan-in edge of aggregation frames: each attached child adds one more
// argument to the frame's provider prototype.
func (u *Unit) ConnectInternalProvidersForComponents(ctx context.Context, providerID InternalProviderID, tailComponentID, headComponentID ComponentID) error {
	headValue, err := u.providerValueForComponent(ctx, providerID, NoneExternalProviderID, headComponentID)
	if err != nil {
		return err
	}
	prototype, err := u.tx.GetPrototype(ctx, headValue.AttributePrototypeID)
	if err != nil {
		return NewIntegrityError("attribute prototype not found for provider value", err).
			WithCode(ErrCodeNotFound).
			WithDetail("attribute_value_id", headValue.ID)
	}
	_, err = u.bindArgument(ctx, prototype.ID, "value", providerID, NoneExternalProviderID, tailComponentID, headComponentID)
	return err
}

// ConnectExternalProvidersForComponents feeds the head component's copy of an
// external provider from the tail component's copy of the same provider. This
// is the fan-out edge of aggregation frames: the frame's output is replicated
// to each attached child.
func (u *Unit) ConnectExternalProvidersForComponents(ctx context.Context, providerID ExternalProviderID, tailComponentID, headComponentID ComponentID) error {
	headValue, err := u.providerValueForComponent(ctx, NoneInternalProviderID, providerID, headComponentID)
	if err != nil {
		return err
	}
	prototype, err := u.tx.GetPrototype(ctx, headValue.AttributePrototypeID)
	if err != nil {
		return NewIntegrityError("attribute prototype not found for provider value", err).
			WithCode(ErrCodeNotFound).
			WithDetail("attribute_value_id", headValue.ID)
	}
	_, err = u.bindArgument(ctx, prototype.ID, "value", NoneInternalProviderID, providerID, tailComponentID, headComponentID)
	return err
}

// providerValueForComponent resolves the most specific value a component sees
// for a provider. Exactly one of the provider ids must be set.
func (u *Unit) providerValueForComponent(ctx context.Context, internalProviderID InternalProviderID, externalProviderID ExternalProviderID, componentID ComponentID) (*AttributeValue, error) {
	read := AttributeReadContext{
		ComponentID: &componentID,
	}
	if internalProviderID != NoneInternalProviderID {
		read.InternalProviderID = &internalProviderID
	} else {
		read.ExternalProviderID = &externalProviderID
	}
	return u.FindValueForContext(ctx, read)
}

// ListConnectionsForNode returns every connection terminating on either side
// of the node.
func (u *Unit) ListConnectionsForNode(ctx context.Context, nodeID NodeID) ([]*Connection, error) {
	from, err := u.tx.ListConnections(ctx, ConnectionFilter{FromNodeID: &nodeID})
	if err != nil {
		return nil, NewStoreError("failed to list connections", err)
	}
	to, err := u.tx.ListConnections(ctx, ConnectionFilter{ToNodeID: &nodeID})
	if err != nil {
		return nil, NewStoreError("failed to list connections", err)
	}
	return append(from, to...), nil
}
