package engine

import (
	"context"
)

// AttachComponentToFrame nests the child node inside the parent frame. The
// two are joined by a symbolic connection between their frame sockets, then
// every data-flow connection the frame type implies is created in the same
// unit of work. An error leaves nothing behind once the unit rolls back.
func (u *Unit) AttachComponentToFrame(ctx context.Context, childNodeID, parentNodeID NodeID) (*Connection, error) {
	fromSocket, err := u.FindFrameSocketForNode(ctx, childNodeID, SocketEdgeKindConfigurationOutput)
	if err != nil {
		return nil, err
	}
	toSocket, err := u.FindFrameSocketForNode(ctx, parentNodeID, SocketEdgeKindConfigurationInput)
	if err != nil {
		return nil, err
	}

	connection, err := u.CreateConnection(ctx, childNodeID, fromSocket.ID, parentNodeID, toSocket.ID, EdgeKindSymbolic)
	if err != nil {
		return nil, err
	}

	if err := u.connectComponentSocketsToFrame(ctx, parentNodeID, childNodeID); err != nil {
		return nil, err
	}
	return connection, nil
}

// connectComponentSocketsToFrame creates all valid connections between parent
// and child sockets.
//
// Aggregation frames wire every provider socket of the frame to the child:
// input sockets gain a fan-in argument from the child, output sockets fan the
// frame's result out to the child. Configuration frames instead connect the
// frame's outputs to identically named child inputs.
func (u *Unit) connectComponentSocketsToFrame(ctx context.Context, parentNodeID, childNodeID NodeID) error {
	parentComponent, err := u.GetComponentForNode(ctx, parentNodeID)
	if err != nil {
		return err
	}
	childComponent, err := u.GetComponentForNode(ctx, childNodeID)
	if err != nil {
		return err
	}

	var aggregation bool
	switch parentComponent.Type {
	case ComponentTypeAggregationFrame:
		aggregation = true
	case ComponentTypeConfigurationFrame:
		aggregation = false
	default:
		return NewValidationError("component type cannot own frame children", nil).
			WithCode(ErrCodeInvalidComponentTypeForFrame).
			WithDetail("component_id", parentComponent.ID).
			WithDetail("component_type", parentComponent.Type)
	}

	parentSockets, err := u.tx.ListSockets(ctx, SocketFilter{SchemaVariantID: &parentComponent.SchemaVariantID})
	if err != nil {
		return NewStoreError("failed to list parent sockets", err)
	}
	childSockets, err := u.tx.ListSockets(ctx, SocketFilter{SchemaVariantID: &childComponent.SchemaVariantID})
	if err != nil {
		return NewStoreError("failed to list child sockets", err)
	}

	for _, parentSocket := range parentSockets {
		if parentSocket.Kind == SocketKindFrame {
			continue
		}

		if aggregation {
			switch parentSocket.EdgeKind {
			case SocketEdgeKindConfigurationInput:
				provider, err := u.FindExplicitInternalProviderForSocket(ctx, parentSocket.ID)
				if err != nil {
					return err
				}
				if err := u.ConnectInternalProvidersForComponents(ctx, provider.ID, childComponent.ID, parentComponent.ID); err != nil {
					return err
				}
				if _, err := u.createEdgeWithConnection(ctx, EdgeKindConfiguration, childNodeID, childComponent.ID, parentSocket.ID, parentNodeID, parentComponent.ID, parentSocket.ID); err != nil {
					return err
				}
				value, err := u.providerValueForComponent(ctx, provider.ID, NoneExternalProviderID, parentComponent.ID)
				if err != nil {
					return err
				}
				u.EnqueueRoot(value.ID)
			case SocketEdgeKindConfigurationOutput:
				provider, err := u.FindExternalProviderForSocket(ctx, parentSocket.ID)
				if err != nil {
					return err
				}
				if err := u.ConnectExternalProvidersForComponents(ctx, provider.ID, parentComponent.ID, childComponent.ID); err != nil {
					return err
				}
				if _, err := u.createEdgeWithConnection(ctx, EdgeKindConfiguration, parentNodeID, parentComponent.ID, parentSocket.ID, childNodeID, childComponent.ID, parentSocket.ID); err != nil {
					return err
				}
				value, err := u.providerValueForComponent(ctx, NoneInternalProviderID, provider.ID, childComponent.ID)
				if err != nil {
					return err
				}
				u.EnqueueRoot(value.ID)
			}
			continue
		}

		if parentSocket.ExternalProviderID == NoneExternalProviderID {
			continue
		}
		parentProvider, err := u.tx.GetExternalProvider(ctx, parentSocket.ExternalProviderID)
		if err != nil {
			return NewIntegrityError("external provider not found for socket", err).
				WithCode(ErrCodeExternalProviderNotFoundForSocket).
				WithDetail("socket_id", parentSocket.ID)
		}

		for _, childSocket := range childSockets {
			if childSocket.Kind == SocketKindFrame {
				continue
			}
			if childSocket.InternalProviderID == NoneInternalProviderID {
				continue
			}
			childProvider, err := u.tx.GetInternalProvider(ctx, childSocket.InternalProviderID)
			if err != nil {
				return NewIntegrityError("internal provider not found for socket", err).
					WithCode(ErrCodeInternalProviderNotFoundForSocket).
					WithDetail("socket_id", childSocket.ID)
			}
			// Providers carry no type definitions; names are the contract.
			if parentProvider.Name != childProvider.Name {
				continue
			}

			if _, err := u.CreateConnection(ctx, parentNodeID, parentSocket.ID, childNodeID, childSocket.ID, EdgeKindConfiguration); err != nil {
				return err
			}

			noProp := NonePropID
			noInternal := NoneInternalProviderID
			read := AttributeReadContext{
				PropID:             &noProp,
				InternalProviderID: &noInternal,
				ExternalProviderID: &parentProvider.ID,
				ComponentID:        &parentComponent.ID,
			}
			value, err := u.FindValueForContext(ctx, read)
			if err != nil {
				return err
			}
			u.EnqueueRoot(value.ID)
		}
	}

	u.notifyFrameConnected(parentComponent.ID, childComponent.ID)
	return nil
}
