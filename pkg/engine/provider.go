package engine

import (
	"context"
)

// createImplicitInternalProvider derives an internal provider from a prop so
// the prop's resolved value can be read from elsewhere in the graph. The
// provider's prototype is bound to the identity function and gets a
// variant-level value of its own.
func (u *Unit) createImplicitInternalProvider(ctx context.Context, variant *SchemaVariant, prop *Prop) (*InternalProvider, error) {
	provider := &InternalProvider{
		ID:              InternalProviderID(newID()),
		SchemaID:        variant.SchemaID,
		SchemaVariantID: variant.ID,
		PropID:          prop.ID,
		Name:            prop.Name,
		CreatedAt:       u.now(),
	}

	avCtx, err := NewContextBuilder().
		SetInternalProviderID(provider.ID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return nil, err
	}
	prototype, _, err := u.createPrototypeWithValue(ctx, avCtx, FuncIdentity, nil, "", NoneAttributeValueID)
	if err != nil {
		return nil, err
	}
	provider.AttributePrototypeID = prototype.ID
	if err := u.tx.CreateInternalProvider(ctx, provider); err != nil {
		return nil, NewStoreError("failed to create internal provider", err)
	}
	return provider, nil
}

// NewExplicitInternalProviderWithSocket atomically creates a consumer-facing
// provider, its backing identity prototype, and its diagram socket. The
// returned provider and socket let the caller bind the provider into
// prop-level prototypes.
func (u *Unit) NewExplicitInternalProviderWithSocket(ctx context.Context, variantID SchemaVariantID, name string, arity SocketArity) (*InternalProvider, *Socket, error) {
	if name == "" {
		return nil, nil, NewValidationError("provider name is required", nil)
	}
	variant, err := u.GetSchemaVariant(ctx, variantID)
	if err != nil {
		return nil, nil, err
	}

	provider := &InternalProvider{
		ID:              InternalProviderID(newID()),
		SchemaID:        variant.SchemaID,
		SchemaVariantID: variant.ID,
		Name:            name,
		CreatedAt:       u.now(),
	}
	avCtx, err := NewContextBuilder().
		SetInternalProviderID(provider.ID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return nil, nil, err
	}
	prototype, _, err := u.createPrototypeWithValue(ctx, avCtx, FuncIdentity, nil, "", NoneAttributeValueID)
	if err != nil {
		return nil, nil, err
	}
	provider.AttributePrototypeID = prototype.ID
	if err := u.tx.CreateInternalProvider(ctx, provider); err != nil {
		return nil, nil, NewStoreError("failed to create internal provider", err)
	}

	socket, err := u.createSocket(ctx, variant.ID, name, SocketKindProvider, SocketEdgeKindConfigurationInput, arity, provider.ID, NoneExternalProviderID)
	if err != nil {
		return nil, nil, err
	}
	return provider, socket, nil
}

// NewExternalProviderWithSocket atomically creates a producer-facing
// provider, its backing identity prototype, and its diagram socket. When
// propID is set the provider exports that prop's resolved value: the identity
// prototype is fed from the prop's implicit internal provider.
func (u *Unit) NewExternalProviderWithSocket(ctx context.Context, variantID SchemaVariantID, name string, propID PropID, arity SocketArity) (*ExternalProvider, *Socket, error) {
	if name == "" {
		return nil, nil, NewValidationError("provider name is required", nil)
	}
	variant, err := u.GetSchemaVariant(ctx, variantID)
	if err != nil {
		return nil, nil, err
	}

	provider := &ExternalProvider{
		ID:              ExternalProviderID(newID()),
		SchemaID:        variant.SchemaID,
		SchemaVariantID: variant.ID,
		PropID:          propID,
		Name:            name,
		CreatedAt:       u.now(),
	}
	avCtx, err := NewContextBuilder().
		SetExternalProviderID(provider.ID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return nil, nil, err
	}
	prototype, _, err := u.createPrototypeWithValue(ctx, avCtx, FuncIdentity, nil, "", NoneAttributeValueID)
	if err != nil {
		return nil, nil, err
	}
	provider.AttributePrototypeID = prototype.ID

	if propID != NonePropID {
		implicit, err := u.findImplicitProviderForProp(ctx, variant.ID, propID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := u.BindPrototypeArgument(ctx, prototype.ID, "value", implicit.ID, NoneExternalProviderID); err != nil {
			return nil, nil, err
		}
	}

	if err := u.tx.CreateExternalProvider(ctx, provider); err != nil {
		return nil, nil, NewStoreError("failed to create external provider", err)
	}

	socket, err := u.createSocket(ctx, variant.ID, name, SocketKindProvider, SocketEdgeKindConfigurationOutput, arity, NoneInternalProviderID, provider.ID)
	if err != nil {
		return nil, nil, err
	}
	return provider, socket, nil
}

// findImplicitProviderForProp returns the implicit internal provider backing
// a prop.
func (u *Unit) findImplicitProviderForProp(ctx context.Context, variantID SchemaVariantID, propID PropID) (*InternalProvider, error) {
	providers, err := u.tx.ListInternalProviders(ctx, InternalProviderFilter{
		SchemaVariantID: &variantID,
		PropID:          &propID,
	})
	if err != nil {
		return nil, NewStoreError("failed to list internal providers", err)
	}
	if len(providers) == 0 {
		return nil, NewIntegrityError("no implicit internal provider for prop", nil).
			WithCode(ErrCodeNotFound).
			WithDetail("prop_id", propID)
	}
	return providers[0], nil
}

// FindExplicitInternalProviderForSocket resolves the explicit internal
// provider a socket is backed by.
func (u *Unit) FindExplicitInternalProviderForSocket(ctx context.Context, socketID SocketID) (*InternalProvider, error) {
	socket, err := u.getSocket(ctx, socketID)
	if err != nil {
		return nil, err
	}
	if socket.InternalProviderID == NoneInternalProviderID {
		return nil, NewIntegrityError("internal provider not found for socket", nil).
			WithCode(ErrCodeInternalProviderNotFoundForSocket).
			WithDetail("socket_id", socketID)
	}
	provider, err := u.tx.GetInternalProvider(ctx, socket.InternalProviderID)
	if err != nil {
		return nil, NewIntegrityError("internal provider not found for socket", err).
			WithCode(ErrCodeInternalProviderNotFoundForSocket).
			WithDetail("socket_id", socketID)
	}
	return provider, nil
}

// FindExternalProviderForSocket resolves the external provider a socket is
// backed by.
func (u *Unit) FindExternalProviderForSocket(ctx context.Context, socketID SocketID) (*ExternalProvider, error) {
	socket, err := u.getSocket(ctx, socketID)
	if err != nil {
		return nil, err
	}
	if socket.ExternalProviderID == NoneExternalProviderID {
		return nil, NewIntegrityError("external provider not found for socket", nil).
			WithCode(ErrCodeExternalProviderNotFoundForSocket).
			WithDetail("socket_id", socketID)
	}
	provider, err := u.tx.GetExternalProvider(ctx, socket.ExternalProviderID)
	if err != nil {
		return nil, NewIntegrityError("external provider not found for socket", err).
			WithCode(ErrCodeExternalProviderNotFoundForSocket).
			WithDetail("socket_id", socketID)
	}
	return provider, nil
}
