package engine

import (
	"context"
	"encoding/json"
)

// ProcessDependentValues recomputes everything downstream of the given roots
// inside this unit: unsealed proxies re-sync, implicit providers re-read
// their props, and every prototype consuming an affected provider is
// re-evaluated. Traversal is breadth-first with deduplication, so cycles in
// the wiring terminate. Recomputed values are reported through the notifier
// but are not re-enqueued; the caller's commit sees no new roots.
func (u *Unit) ProcessDependentValues(ctx context.Context, roots []AttributeValueID) error {
	queue := make([]AttributeValueID, 0, len(roots))
	visited := make(map[AttributeValueID]struct{}, len(roots))
	push := func(id AttributeValueID) {
		if id == NoneAttributeValueID {
			return
		}
		if _, ok := visited[id]; ok {
			return
		}
		visited[id] = struct{}{}
		queue = append(queue, id)
	}
	for _, id := range roots {
		push(id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		value, err := u.tx.GetValue(ctx, id)
		if err != nil {
			// Roots may over-approximate; a value deleted since enqueue is
			// not an error.
			continue
		}

		if err := u.RefreshProxies(ctx, value.ID); err != nil {
			return err
		}
		proxies, err := u.tx.ListValues(ctx, ValueFilter{ProxyFor: &value.ID})
		if err != nil {
			return NewStoreError("failed to list proxies for value", err)
		}
		for _, proxy := range proxies {
			if !proxy.SealedProxy {
				push(proxy.ID)
			}
		}

		if value.Context.Discriminator.Kind == DiscriminatorProp {
			refreshed, err := u.refreshImplicitProviderValue(ctx, value)
			if err != nil {
				return err
			}
			if refreshed != nil {
				push(refreshed.ID)
			}
		}

		consumers, err := u.consumersOf(ctx, value)
		if err != nil {
			return err
		}
		for _, consumer := range consumers {
			if err := u.reevaluateValue(ctx, consumer); err != nil {
				return err
			}
			push(consumer.ID)
		}

		push(value.ParentAttributeValueID)
	}
	return nil
}

// refreshImplicitProviderValue copies a prop value's current result through
// the prop's implicit internal provider at the same scope. Returns nil when
// the provider has no value at that scope.
func (u *Unit) refreshImplicitProviderValue(ctx context.Context, propValue *AttributeValue) (*AttributeValue, error) {
	propID := propValue.Context.PropID()
	providers, err := u.tx.ListInternalProviders(ctx, InternalProviderFilter{PropID: &propID})
	if err != nil {
		return nil, NewStoreError("failed to list internal providers", err)
	}
	if len(providers) == 0 {
		return nil, nil
	}
	provider := providers[0]

	avCtx := AttributeContext{
		Discriminator:   InternalProviderDiscriminator(provider.ID),
		SchemaID:        provider.SchemaID,
		SchemaVariantID: provider.SchemaVariantID,
		ComponentID:     propValue.Context.ComponentID,
	}
	read := ReadContextFromContext(avCtx)
	target, err := u.FindValueForContext(ctx, read)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	raw, err := u.ResolveValue(ctx, propValue.ID)
	if err != nil {
		return nil, err
	}
	result, err := u.engine.funcs.Evaluate(ctx, FuncIdentity, nil, map[string]json.RawMessage{"value": raw})
	if err != nil {
		return nil, NewIntegrityError("function evaluation failed", err).
			WithDetail("func_id", FuncIdentity)
	}
	if err := u.storeResult(ctx, target, FuncIdentity, result); err != nil {
		return nil, err
	}
	return target, nil
}

// consumersOf finds the values whose prototypes take an argument from the
// provider this value carries. Arguments scoped to components apply only when
// the tail matches the value's component and the head matches the consumer's.
func (u *Unit) consumersOf(ctx context.Context, value *AttributeValue) ([]*AttributeValue, error) {
	var args []*AttributePrototypeArgument
	switch value.Context.Discriminator.Kind {
	case DiscriminatorInternalProvider:
		id := value.Context.InternalProviderID()
		var err error
		args, err = u.tx.ListPrototypeArguments(ctx, ArgumentFilter{InternalProviderID: &id})
		if err != nil {
			return nil, NewStoreError("failed to list prototype arguments", err)
		}
	case DiscriminatorExternalProvider:
		id := value.Context.ExternalProviderID()
		var err error
		args, err = u.tx.ListPrototypeArguments(ctx, ArgumentFilter{ExternalProviderID: &id})
		if err != nil {
			return nil, NewStoreError("failed to list prototype arguments", err)
		}
	default:
		return nil, nil
	}

	var out []*AttributeValue
	seen := make(map[AttributeValueID]struct{})
	for _, arg := range args {
		values, err := u.tx.ListValues(ctx, ValueFilter{PrototypeID: &arg.PrototypeID})
		if err != nil {
			return nil, NewStoreError("failed to list values for prototype", err)
		}
		for _, candidate := range values {
			if arg.HeadComponentID != NoneComponentID {
				if candidate.Context.ComponentID != arg.HeadComponentID {
					continue
				}
				if arg.TailComponentID != value.Context.ComponentID {
					continue
				}
			} else if candidate.Context.ComponentID != value.Context.ComponentID {
				continue
			}
			if _, ok := seen[candidate.ID]; ok {
				continue
			}
			seen[candidate.ID] = struct{}{}
			out = append(out, candidate)
		}
	}
	return out, nil
}

// reevaluateValue runs the value's prototype with freshly resolved provider
// arguments and stores the result.
func (u *Unit) reevaluateValue(ctx context.Context, value *AttributeValue) error {
	if value.AttributePrototypeID == NoneAttributePrototypeID {
		return nil
	}
	prototype, err := u.tx.GetPrototype(ctx, value.AttributePrototypeID)
	if err != nil {
		return NewIntegrityError("attribute prototype not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("prototype_id", value.AttributePrototypeID)
	}

	args, err := u.resolvePrototypeArgs(ctx, prototype, value)
	if err != nil {
		return err
	}
	result, err := u.engine.funcs.Evaluate(ctx, prototype.FuncID, prototype.StaticArgs, args)
	if err != nil {
		return NewIntegrityError("function evaluation failed", err).
			WithDetail("func_id", prototype.FuncID).
			WithDetail("prototype_id", prototype.ID)
	}
	return u.storeResult(ctx, value, prototype.FuncID, result)
}

// resolvePrototypeArgs materializes the prototype's provider arguments as
// seen by the given value. Duplicate argument names aggregate into a JSON
// array in binding order.
func (u *Unit) resolvePrototypeArgs(ctx context.Context, prototype *AttributePrototype, value *AttributeValue) (map[string]json.RawMessage, error) {
	protoArgs, err := u.tx.ListPrototypeArguments(ctx, ArgumentFilter{PrototypeID: &prototype.ID})
	if err != nil {
		return nil, NewStoreError("failed to list prototype arguments", err)
	}
	if len(protoArgs) == 0 {
		return nil, nil
	}

	collected := make(map[string][]json.RawMessage)
	var names []string
	for _, arg := range protoArgs {
		if arg.HeadComponentID != NoneComponentID && arg.HeadComponentID != value.Context.ComponentID {
			continue
		}
		tail := arg.TailComponentID
		if tail == NoneComponentID {
			tail = value.Context.ComponentID
		}

		read := AttributeReadContext{ComponentID: &tail}
		if arg.InternalProviderID != NoneInternalProviderID {
			id := arg.InternalProviderID
			read.InternalProviderID = &id
		} else {
			id := arg.ExternalProviderID
			read.ExternalProviderID = &id
		}
		source, err := u.FindValueForContext(ctx, read)
		if err != nil {
			return nil, err
		}
		raw, err := u.ResolveValue(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		if _, ok := collected[arg.Name]; !ok {
			names = append(names, arg.Name)
		}
		collected[arg.Name] = append(collected[arg.Name], raw)
	}

	out := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		vals := collected[name]
		if len(vals) == 1 {
			out[name] = vals[0]
			continue
		}
		arr, err := json.Marshal(vals)
		if err != nil {
			return nil, NewStoreError("failed to aggregate argument values", err)
		}
		out[name] = arr
	}
	return out, nil
}

// storeResult materializes a computed result on the value. An unsealed proxy
// is sealed first: resolution follows unsealed proxies to their target, and a
// recomputed result is scope-specific state the value must carry itself.
func (u *Unit) storeResult(ctx context.Context, value *AttributeValue, funcID FuncID, result json.RawMessage) error {
	rv := &FuncBindingReturnValue{
		ID:        FuncBindingReturnValueID(newID()),
		FuncID:    funcID,
		Value:     result,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateReturnValue(ctx, rv); err != nil {
		return NewStoreError("failed to store function return value", err)
	}
	if value.IsProxy() && !value.SealedProxy {
		value.SealedProxy = true
	}
	value.FuncBindingReturnValueID = rv.ID
	value.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return NewStoreError("failed to update attribute value", err)
	}
	u.notifyValueChanged(value.ID)
	return nil
}
