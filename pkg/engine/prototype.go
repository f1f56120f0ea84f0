package engine

import (
	"context"
	"encoding/json"
)

// CreateAttributePrototype binds funcID and its static arguments to avCtx and
// scaffolds the attribute value produced at that context. This is the only
// way values come into being at a fresh context: once a prototype is
// attached, a value exists at least at the prototype's level, which is what
// lets FindValueForContext treat misses as integrity errors.
func (u *Unit) CreateAttributePrototype(ctx context.Context, avCtx AttributeContext, funcID FuncID, staticArgs json.RawMessage) (*AttributePrototype, *AttributeValue, error) {
	return u.createPrototypeWithValue(ctx, avCtx, funcID, staticArgs, "", NoneAttributeValueID)
}

func (u *Unit) createPrototypeWithValue(ctx context.Context, avCtx AttributeContext, funcID FuncID, staticArgs json.RawMessage, key string, parentValueID AttributeValueID) (*AttributePrototype, *AttributeValue, error) {
	prototype := &AttributePrototype{
		ID:         AttributePrototypeID(newID()),
		Context:    avCtx,
		FuncID:     funcID,
		StaticArgs: staticArgs,
		Key:        key,
		CreatedAt:  u.now(),
		UpdatedAt:  u.now(),
	}
	if err := u.tx.CreatePrototype(ctx, prototype); err != nil {
		return nil, nil, NewStoreError("failed to create attribute prototype", err)
	}

	rvID, err := u.evaluatePrototype(ctx, prototype, nil)
	if err != nil {
		return nil, nil, err
	}

	value, err := u.createAttributeValue(ctx, avCtx, key, parentValueID, rvID)
	if err != nil {
		return nil, nil, err
	}
	value.AttributePrototypeID = prototype.ID
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return nil, nil, NewStoreError("failed to attach value to prototype", err)
	}
	return prototype, value, nil
}

// evaluatePrototype runs the prototype's function with the resolved argument
// values and materializes the result as a FuncBindingReturnValue.
func (u *Unit) evaluatePrototype(ctx context.Context, prototype *AttributePrototype, args map[string]json.RawMessage) (FuncBindingReturnValueID, error) {
	result, err := u.engine.funcs.Evaluate(ctx, prototype.FuncID, prototype.StaticArgs, args)
	if err != nil {
		return NoneFuncBindingReturnValueID, NewIntegrityError("function evaluation failed", err).
			WithDetail("func_id", prototype.FuncID).
			WithDetail("prototype_id", prototype.ID)
	}
	rv := &FuncBindingReturnValue{
		ID:        FuncBindingReturnValueID(newID()),
		FuncID:    prototype.FuncID,
		Value:     result,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateReturnValue(ctx, rv); err != nil {
		return NoneFuncBindingReturnValueID, NewStoreError("failed to store function return value", err)
	}
	return rv.ID, nil
}

// SetPrototypeFunc rebinds what computes the prototype's values and enqueues
// those values as propagation roots. Combined with BindPrototypeArgument this
// is the sole mechanism for wiring "prop X takes its value from provider Y".
func (u *Unit) SetPrototypeFunc(ctx context.Context, prototypeID AttributePrototypeID, funcID FuncID, staticArgs json.RawMessage) error {
	prototype, err := u.tx.GetPrototype(ctx, prototypeID)
	if err != nil {
		return NewIntegrityError("attribute prototype not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("prototype_id", prototypeID)
	}
	values, err := u.tx.ListValues(ctx, ValueFilter{PrototypeID: &prototypeID})
	if err != nil {
		return NewStoreError("failed to list values for prototype", err)
	}
	for _, v := range values {
		// Proxies reference the producing prototype from a more specific
		// context; only directly-owned values must match it exactly.
		if v.ProxyForAttributeValueID != NoneAttributeValueID {
			continue
		}
		if err := validatePrototypeContext(prototype, v); err != nil {
			return err
		}
	}

	prototype.FuncID = funcID
	prototype.StaticArgs = staticArgs
	prototype.UpdatedAt = u.now()
	if err := u.tx.UpdatePrototype(ctx, prototype); err != nil {
		return NewStoreError("failed to update attribute prototype", err)
	}

	for _, v := range values {
		u.EnqueueRoot(v.ID)
	}
	return nil
}

// BindPrototypeArgument names a function parameter of the prototype and the
// provider supplying its runtime value. Exactly one provider reference must
// be set. Multiple arguments may be bound to one prototype; duplicate names
// are legal for aggregation fan-in, where the evaluator receives them as a
// collection.
func (u *Unit) BindPrototypeArgument(ctx context.Context, prototypeID AttributePrototypeID, name string, internalProviderID InternalProviderID, externalProviderID ExternalProviderID) (*AttributePrototypeArgument, error) {
	return u.bindArgument(ctx, prototypeID, name, internalProviderID, externalProviderID, NoneComponentID, NoneComponentID)
}

func (u *Unit) bindArgument(ctx context.Context, prototypeID AttributePrototypeID, name string, internalProviderID InternalProviderID, externalProviderID ExternalProviderID, tail, head ComponentID) (*AttributePrototypeArgument, error) {
	if name == "" {
		return nil, NewValidationError("prototype argument name is required", nil).
			WithDetail("prototype_id", prototypeID)
	}
	hasInternal := internalProviderID != NoneInternalProviderID
	hasExternal := externalProviderID != NoneExternalProviderID
	if hasInternal == hasExternal {
		return nil, NewValidationError("prototype argument requires exactly one source provider", nil).
			WithDetail("prototype_id", prototypeID).
			WithDetail("name", name)
	}
	if _, err := u.tx.GetPrototype(ctx, prototypeID); err != nil {
		return nil, NewIntegrityError("attribute prototype not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("prototype_id", prototypeID)
	}

	argument := &AttributePrototypeArgument{
		ID:                 AttributePrototypeArgumentID(newID()),
		PrototypeID:        prototypeID,
		Name:               name,
		InternalProviderID: internalProviderID,
		ExternalProviderID: externalProviderID,
		TailComponentID:    tail,
		HeadComponentID:    head,
		CreatedAt:          u.now(),
	}
	if err := u.tx.CreatePrototypeArgument(ctx, argument); err != nil {
		return nil, NewStoreError("failed to create prototype argument", err)
	}
	return argument, nil
}

// validatePrototypeContext enforces the invariant that a prototype's context
// and its owning value's context match exactly.
func validatePrototypeContext(prototype *AttributePrototype, value *AttributeValue) error {
	if prototype.Context != value.Context {
		return NewValidationError("prototype context does not match value context", nil).
			WithCode(ErrCodePrototypeContextMismatch).
			WithDetail("prototype_context", prototype.Context.String()).
			WithDetail("value_context", value.Context.String())
	}
	return nil
}
