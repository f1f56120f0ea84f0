package engine

import (
	"context"
)

func (u *Unit) createSocket(ctx context.Context, variantID SchemaVariantID, name string, kind SocketKind, edgeKind SocketEdgeKind, arity SocketArity, internalProviderID InternalProviderID, externalProviderID ExternalProviderID) (*Socket, error) {
	socket := &Socket{
		ID:                 SocketID(newID()),
		SchemaVariantID:    variantID,
		Name:               name,
		Kind:               kind,
		EdgeKind:           edgeKind,
		Arity:              arity,
		InternalProviderID: internalProviderID,
		ExternalProviderID: externalProviderID,
		CreatedAt:          u.now(),
	}
	if err := u.tx.CreateSocket(ctx, socket); err != nil {
		return nil, NewStoreError("failed to create socket", err)
	}
	return socket, nil
}

// CreateFrameSocket adds the frame socket a variant needs before its
// components can participate in frame composition. Frame sockets carry
// symbolic edges only and never touch data flow.
func (u *Unit) CreateFrameSocket(ctx context.Context, variantID SchemaVariantID, edgeKind SocketEdgeKind) (*Socket, error) {
	if _, err := u.GetSchemaVariant(ctx, variantID); err != nil {
		return nil, err
	}
	return u.createSocket(ctx, variantID, "Frame", SocketKindFrame, edgeKind, SocketArityMany, NoneInternalProviderID, NoneExternalProviderID)
}

// ListSocketsForVariant lists every socket declared on a variant.
func (u *Unit) ListSocketsForVariant(ctx context.Context, variantID SchemaVariantID) ([]*Socket, error) {
	sockets, err := u.tx.ListSockets(ctx, SocketFilter{SchemaVariantID: &variantID})
	if err != nil {
		return nil, NewStoreError("failed to list sockets", err)
	}
	return sockets, nil
}

func (u *Unit) getSocket(ctx context.Context, id SocketID) (*Socket, error) {
	socket, err := u.tx.GetSocket(ctx, id)
	if err != nil {
		return nil, NewIntegrityError("socket not found", err).
			WithCode(ErrCodeSocketNotFound).
			WithDetail("socket_id", id)
	}
	return socket, nil
}

// FindFrameSocketForNode returns the node's frame socket with the given edge
// kind.
func (u *Unit) FindFrameSocketForNode(ctx context.Context, nodeID NodeID, edgeKind SocketEdgeKind) (*Socket, error) {
	component, err := u.GetComponentForNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	kind := SocketKindFrame
	sockets, err := u.tx.ListSockets(ctx, SocketFilter{
		SchemaVariantID: &component.SchemaVariantID,
		Kind:            &kind,
		EdgeKind:        &edgeKind,
	})
	if err != nil {
		return nil, NewStoreError("failed to list sockets", err)
	}
	if len(sockets) == 0 {
		return nil, NewIntegrityError("frame socket not found for node", nil).
			WithCode(ErrCodeSocketNotFound).
			WithDetail("node_id", nodeID).
			WithDetail("edge_kind", edgeKind)
	}
	return sockets[0], nil
}

// SocketHasCapacity reports whether another connection can terminate on the
// socket of the given node. Arity is advisory: callers decide whether to
// refuse or replace when a one-arity socket is already occupied.
func (u *Unit) SocketHasCapacity(ctx context.Context, nodeID NodeID, socketID SocketID) (bool, error) {
	socket, err := u.getSocket(ctx, socketID)
	if err != nil {
		return false, err
	}
	if socket.Arity == SocketArityMany {
		return true, nil
	}
	connections, err := u.tx.ListConnections(ctx, ConnectionFilter{
		ToNodeID:   &nodeID,
		ToSocketID: &socketID,
	})
	if err != nil {
		return false, NewStoreError("failed to list connections", err)
	}
	return len(connections) == 0, nil
}
