package engine

import (
	"context"
	"encoding/json"
	"sort"
)

// CreateAttributeValue allocates a new parentless value row at avCtx with an
// optional map-entry key and an optional initial return value. It fails with
// a conflict when an equivalent (context, key, parent) triple already exists:
// two values at the same coordinates would make every later lookup ambiguous.
func (u *Unit) CreateAttributeValue(ctx context.Context, avCtx AttributeContext, key string, returnValueID FuncBindingReturnValueID) (*AttributeValue, error) {
	return u.createAttributeValue(ctx, avCtx, key, NoneAttributeValueID, returnValueID)
}

// createAttributeValue is the parent-aware allocation path. Uniqueness is
// scoped to the (context, key, parent) triple, so the same key may live under
// two different map-entry parents at one context.
func (u *Unit) createAttributeValue(ctx context.Context, avCtx AttributeContext, key string, parentID AttributeValueID, returnValueID FuncBindingReturnValueID) (*AttributeValue, error) {
	read := ReadContextFromContext(avCtx)
	filter := ValueFilter{Read: &read, Key: &key}
	if parentID == NoneAttributeValueID {
		filter.ParentNone = true
	} else {
		filter.ParentID = &parentID
	}
	existing, err := u.tx.ListValues(ctx, filter)
	if err != nil {
		return nil, NewStoreError("failed to probe for existing value", err)
	}
	for _, candidate := range existing {
		if candidate.Context == avCtx {
			return nil, NewConflictError("attribute value already exists for context", nil).
				WithCode(ErrCodeAlreadyExists).
				WithDetail("context", avCtx.String()).
				WithDetail("key", key).
				WithDetail("parent_attribute_value_id", parentID).
				WithDetail("existing_id", candidate.ID)
		}
	}

	value := &AttributeValue{
		ID:                       AttributeValueID(newID()),
		Context:                  avCtx,
		Key:                      key,
		ParentAttributeValueID:   parentID,
		FuncBindingReturnValueID: returnValueID,
		CreatedAt:                u.now(),
		UpdatedAt:                u.now(),
	}
	if avCtx.Discriminator.Kind == DiscriminatorProp {
		prop, err := u.tx.GetProp(ctx, avCtx.PropID())
		if err != nil {
			return nil, NewIntegrityError("prop not found for value context", err).
				WithCode(ErrCodeNotFound).
				WithDetail("prop_id", avCtx.PropID())
		}
		if prop.Kind == PropKindArray || prop.Kind == PropKindMap {
			value.IndexMap = NewIndexMap()
		}
	}
	if err := u.tx.CreateValue(ctx, value); err != nil {
		return nil, NewStoreError("failed to create attribute value", err)
	}
	return value, nil
}

// FindValueForContext returns the single most specific value visible to the
// read context. A miss is always a programmer or integrity error, never a
// normal empty state: scaffolding guarantees a value exists at least at the
// prototype's own level once a prototype is attached.
func (u *Unit) FindValueForContext(ctx context.Context, read AttributeReadContext) (*AttributeValue, error) {
	values, err := u.tx.ListValues(ctx, ValueFilter{Read: &read})
	if err != nil {
		return nil, NewStoreError("failed to list values for context", err)
	}
	if len(values) == 0 {
		return nil, NewIntegrityError("attribute value not found for context", nil).
			WithCode(ErrCodeValueNotFoundForContext).
			WithDetail("read_context", read.String())
	}
	sort.SliceStable(values, func(i, j int) bool {
		li, lj := values[i].Context.Level(), values[j].Context.Level()
		if li != lj {
			return li > lj
		}
		return values[i].CreatedAt.Before(values[j].CreatedAt)
	})
	return values[0], nil
}

// GetAttributeValue loads a value by id.
func (u *Unit) GetAttributeValue(ctx context.Context, id AttributeValueID) (*AttributeValue, error) {
	value, err := u.tx.GetValue(ctx, id)
	if err != nil {
		return nil, NewIntegrityError("attribute value not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("attribute_value_id", id)
	}
	return value, nil
}

// ListValuesForComponent lists the values stored at the component's own
// scope, excluding the variant-level values it falls back to.
func (u *Unit) ListValuesForComponent(ctx context.Context, componentID ComponentID) ([]*AttributeValue, error) {
	read := AttributeReadContext{ComponentID: &componentID}
	values, err := u.tx.ListValues(ctx, ValueFilter{Read: &read})
	if err != nil {
		return nil, NewStoreError("failed to list values for component", err)
	}
	scoped := make([]*AttributeValue, 0, len(values))
	for _, v := range values {
		if v.Context.ComponentID == componentID {
			scoped = append(scoped, v)
		}
	}
	return scoped, nil
}

// InsertValueForContext inserts a new ordered or keyed child under a map,
// array or object parent value, appending the key to the parent's index map
// where one is kept. Arrays generate an entry key when none is supplied; maps
// and objects require one. The parent is enqueued as a propagation root.
func (u *Unit) InsertValueForContext(ctx context.Context, avCtx AttributeContext, parentID AttributeValueID, key string, returnValueID FuncBindingReturnValueID) (*AttributeValue, error) {
	parent, err := u.GetAttributeValue(ctx, parentID)
	if err != nil {
		return nil, err
	}
	parentProp, err := u.parentPropForChildren(ctx, parent)
	if err != nil {
		return nil, err
	}

	switch parentProp.Kind {
	case PropKindArray:
		if key == "" {
			key = newID()
		}
	case PropKindMap, PropKindObject:
		if key == "" {
			return nil, NewValidationError("child key is required for map and object parents", nil).
				WithCode(ErrCodeKeyRequired).
				WithDetail("parent_attribute_value_id", parentID)
		}
	}

	value, err := u.createAttributeValue(ctx, avCtx, key, parent.ID, returnValueID)
	if err != nil {
		return nil, err
	}

	if parent.IndexMap != nil {
		parent.IndexMap.Push(key)
		parent.UpdatedAt = u.now()
		if err := u.tx.UpdateValue(ctx, parent); err != nil {
			return nil, NewStoreError("failed to update parent index map", err)
		}
	}

	u.EnqueueRoot(parent.ID)
	return value, nil
}

// RemoveChildValue removes the child stored under key from the parent value
// and drops the key from the parent's index map. Unsealed proxy descendants
// of the child are removed with it.
func (u *Unit) RemoveChildValue(ctx context.Context, parentID AttributeValueID, key string) error {
	parent, err := u.GetAttributeValue(ctx, parentID)
	if err != nil {
		return err
	}
	children, err := u.tx.ListValues(ctx, ValueFilter{ParentID: &parentID, Key: &key})
	if err != nil {
		return NewStoreError("failed to list children for parent", err)
	}
	if len(children) == 0 {
		return NewIntegrityError("child value not found for key", nil).
			WithCode(ErrCodeNotFound).
			WithDetail("parent_attribute_value_id", parentID).
			WithDetail("key", key)
	}
	for _, child := range children {
		if err := u.deleteValueTree(ctx, child.ID); err != nil {
			return err
		}
	}

	if parent.IndexMap != nil {
		parent.IndexMap.Delete(key)
		parent.UpdatedAt = u.now()
		if err := u.tx.UpdateValue(ctx, parent); err != nil {
			return NewStoreError("failed to update parent index map", err)
		}
	}
	u.EnqueueRoot(parent.ID)
	return nil
}

// deleteValueTree removes a value and its descendants.
func (u *Unit) deleteValueTree(ctx context.Context, id AttributeValueID) error {
	children, err := u.tx.ListValues(ctx, ValueFilter{ParentID: &id})
	if err != nil {
		return NewStoreError("failed to list children for value", err)
	}
	for _, child := range children {
		if err := u.deleteValueTree(ctx, child.ID); err != nil {
			return err
		}
	}
	if err := u.tx.DeleteValue(ctx, id); err != nil {
		return NewStoreError("failed to delete value", err)
	}
	return nil
}

// parentPropForChildren resolves the prop of a would-be parent value and
// rejects kinds that cannot own indexed children.
func (u *Unit) parentPropForChildren(ctx context.Context, parent *AttributeValue) (*Prop, error) {
	if parent.Context.Discriminator.Kind != DiscriminatorProp {
		return nil, NewValidationError("parent value does not address a prop", nil).
			WithCode(ErrCodeParentNotAllowed).
			WithDetail("parent_attribute_value_id", parent.ID)
	}
	prop, err := u.tx.GetProp(ctx, parent.Context.PropID())
	if err != nil {
		return nil, NewIntegrityError("prop not found for parent value", err).
			WithCode(ErrCodeNotFound).
			WithDetail("prop_id", parent.Context.PropID())
	}
	if !prop.Kind.HasChildren() {
		return nil, NewValidationError("parent prop kind cannot own children", nil).
			WithCode(ErrCodeParentNotAllowed).
			WithDetail("parent_attribute_value_id", parent.ID).
			WithDetail("prop_kind", prop.Kind)
	}
	return prop, nil
}

// ResolveValue materializes the JSON result a reader sees for the value:
// an unsealed proxy reflects the current computed result of the value it
// proxies; a sealed proxy and a plain value return their own stored result.
// A value whose prototype has not produced a result yet resolves to null.
func (u *Unit) ResolveValue(ctx context.Context, id AttributeValueID) (json.RawMessage, error) {
	value, err := u.GetAttributeValue(ctx, id)
	if err != nil {
		return nil, err
	}
	for value.IsProxy() && !value.SealedProxy {
		value, err = u.GetAttributeValue(ctx, value.ProxyForAttributeValueID)
		if err != nil {
			return nil, err
		}
	}
	if value.FuncBindingReturnValueID == NoneFuncBindingReturnValueID {
		return json.RawMessage("null"), nil
	}
	rv, err := u.tx.GetReturnValue(ctx, value.FuncBindingReturnValueID)
	if err != nil {
		return nil, NewIntegrityError("function return value not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("func_binding_return_value_id", value.FuncBindingReturnValueID)
	}
	return rv.Value, nil
}

// SetProxyFor makes value a stand-in for the less specific target. The
// value's context must be strictly more specific than the target's.
func (u *Unit) SetProxyFor(ctx context.Context, valueID, targetID AttributeValueID) error {
	value, err := u.GetAttributeValue(ctx, valueID)
	if err != nil {
		return err
	}
	target, err := u.GetAttributeValue(ctx, targetID)
	if err != nil {
		return err
	}
	if !value.Context.MoreSpecificThan(target.Context) {
		return NewValidationError("proxy must be more specific than its target", nil).
			WithDetail("value_context", value.Context.String()).
			WithDetail("target_context", target.Context.String())
	}
	value.ProxyForAttributeValueID = target.ID
	value.FuncBindingReturnValueID = target.FuncBindingReturnValueID
	value.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return NewStoreError("failed to set proxy target", err)
	}
	return nil
}

// SealProxy permanently stops the value from re-syncing from its proxied
// value. Sealing is one-directional: there is no unseal.
func (u *Unit) SealProxy(ctx context.Context, valueID AttributeValueID) error {
	value, err := u.GetAttributeValue(ctx, valueID)
	if err != nil {
		return err
	}
	if !value.IsProxy() {
		return NewValidationError("value is not a proxy", nil).
			WithCode(ErrCodeNotAProxy).
			WithDetail("attribute_value_id", valueID)
	}
	if value.SealedProxy {
		return nil
	}
	value.SealedProxy = true
	value.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return NewStoreError("failed to seal proxy", err)
	}
	return nil
}

// SetValue installs value as the materialized result of the attribute value.
// If the value is a live proxy, the write seals it first: a direct edit is a
// permanent override. Proxies of this value re-sync and the value is
// enqueued as a propagation root.
func (u *Unit) SetValue(ctx context.Context, valueID AttributeValueID, raw json.RawMessage) error {
	value, err := u.GetAttributeValue(ctx, valueID)
	if err != nil {
		return err
	}
	if value.IsProxy() && !value.SealedProxy {
		value.SealedProxy = true
	}

	rv := &FuncBindingReturnValue{
		ID:        FuncBindingReturnValueID(newID()),
		FuncID:    FuncSetValue,
		Value:     raw,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateReturnValue(ctx, rv); err != nil {
		return NewStoreError("failed to store function return value", err)
	}
	value.FuncBindingReturnValueID = rv.ID
	value.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return NewStoreError("failed to update attribute value", err)
	}

	if value.AttributePrototypeID != "" {
		prototype, err := u.tx.GetPrototype(ctx, value.AttributePrototypeID)
		if err == nil && prototype.Context == value.Context {
			prototype.FuncID = FuncSetValue
			prototype.StaticArgs = raw
			prototype.UpdatedAt = u.now()
			if err := u.tx.UpdatePrototype(ctx, prototype); err != nil {
				return NewStoreError("failed to update attribute prototype", err)
			}
		}
	}

	if err := u.RefreshProxies(ctx, value.ID); err != nil {
		return err
	}
	u.EnqueueRoot(value.ID)
	u.notifyValueChanged(value.ID)
	return nil
}

// SetValueForContext writes raw at exactly avCtx. When the most specific
// existing value sits at a less specific context, a sealed-proxy override is
// created at avCtx, backed by its own prototype; the less specific value is
// left untouched. The override attaches under the counterpart parent at
// avCtx when the existing value has a parent; a missing counterpart is an
// integrity error, because component instantiation scaffolds the full tree
// before overrides are legal.
func (u *Unit) SetValueForContext(ctx context.Context, avCtx AttributeContext, raw json.RawMessage) (*AttributeValue, error) {
	read := ReadContextFromContext(avCtx)
	existing, err := u.FindValueForContext(ctx, read)
	if err != nil {
		return nil, err
	}

	if existing.Context == avCtx {
		if err := u.SetValue(ctx, existing.ID, raw); err != nil {
			return nil, err
		}
		return u.GetAttributeValue(ctx, existing.ID)
	}

	prototype := &AttributePrototype{
		ID:         AttributePrototypeID(newID()),
		Context:    avCtx,
		FuncID:     FuncSetValue,
		StaticArgs: raw,
		Key:        existing.Key,
		CreatedAt:  u.now(),
		UpdatedAt:  u.now(),
	}
	if err := u.tx.CreatePrototype(ctx, prototype); err != nil {
		return nil, NewStoreError("failed to create override prototype", err)
	}

	rv := &FuncBindingReturnValue{
		ID:        FuncBindingReturnValueID(newID()),
		FuncID:    FuncSetValue,
		Value:     raw,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateReturnValue(ctx, rv); err != nil {
		return nil, NewStoreError("failed to store function return value", err)
	}

	value, err := u.CreateAttributeValue(ctx, avCtx, existing.Key, rv.ID)
	if err != nil {
		return nil, err
	}
	value.AttributePrototypeID = prototype.ID
	value.ProxyForAttributeValueID = existing.ID
	value.SealedProxy = true

	if existing.ParentAttributeValueID != NoneAttributeValueID {
		parentID, err := u.counterpartParent(ctx, existing, avCtx)
		if err != nil {
			return nil, err
		}
		value.ParentAttributeValueID = parentID
	}
	value.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, value); err != nil {
		return nil, NewStoreError("failed to update attribute value", err)
	}

	u.EnqueueRoot(value.ID)
	u.notifyValueChanged(value.ID)
	return value, nil
}

// counterpartParent finds the value at avCtx's scope standing in for the
// existing value's parent.
func (u *Unit) counterpartParent(ctx context.Context, existing *AttributeValue, avCtx AttributeContext) (AttributeValueID, error) {
	parent, err := u.GetAttributeValue(ctx, existing.ParentAttributeValueID)
	if err != nil {
		return NoneAttributeValueID, err
	}
	parentCtx := parent.Context
	parentCtx.SchemaID = avCtx.SchemaID
	parentCtx.SchemaVariantID = avCtx.SchemaVariantID
	parentCtx.ComponentID = avCtx.ComponentID
	read := ReadContextFromContext(parentCtx)
	counterpart, err := u.FindValueForContext(ctx, read)
	if err != nil {
		return NoneAttributeValueID, NewIntegrityError("no parent value exists at the override context", err).
			WithCode(ErrCodeValueNotFoundForContext).
			WithDetail("parent_context", parentCtx.String())
	}
	if counterpart.Context != parentCtx {
		return NoneAttributeValueID, NewIntegrityError("no parent value exists at the override context", nil).
			WithCode(ErrCodeValueNotFoundForContext).
			WithDetail("parent_context", parentCtx.String())
	}
	return counterpart.ID, nil
}

// RefreshProxies re-syncs every unsealed proxy of target, recursively. The
// scalar result is copied through, and proxy subtrees under composite values
// are re-derived from scratch: unsealed proxy children are dropped and
// rebuilt from the target's current children, so structural edits (new or
// removed array/map entries) propagate. Sealed proxies and their subtrees
// are never touched.
func (u *Unit) RefreshProxies(ctx context.Context, targetID AttributeValueID) error {
	target, err := u.GetAttributeValue(ctx, targetID)
	if err != nil {
		return err
	}
	proxies, err := u.tx.ListValues(ctx, ValueFilter{ProxyFor: &targetID})
	if err != nil {
		return NewStoreError("failed to list proxies for value", err)
	}
	for _, proxy := range proxies {
		if proxy.SealedProxy {
			continue
		}
		proxy.FuncBindingReturnValueID = target.FuncBindingReturnValueID
		if err := u.rederiveProxyChildren(ctx, proxy, target); err != nil {
			return err
		}
		proxy.UpdatedAt = u.now()
		if err := u.tx.UpdateValue(ctx, proxy); err != nil {
			return NewStoreError("failed to refresh proxy", err)
		}
		u.notifyValueChanged(proxy.ID)
		if err := u.RefreshProxies(ctx, proxy.ID); err != nil {
			return err
		}
	}
	return nil
}

// rederiveProxyChildren rebuilds proxy's child values from target's current
// children. Sealed child proxies survive; their keys are re-appended after
// the target's ordering when the target no longer carries them.
func (u *Unit) rederiveProxyChildren(ctx context.Context, proxy, target *AttributeValue) error {
	if target.IndexMap == nil && proxy.IndexMap == nil {
		return nil
	}

	children, err := u.tx.ListValues(ctx, ValueFilter{ParentID: &proxy.ID})
	if err != nil {
		return NewStoreError("failed to list proxy children", err)
	}
	sealed := make(map[string]*AttributeValue)
	for _, child := range children {
		if child.SealedProxy {
			sealed[child.Key] = child
			continue
		}
		if err := u.deleteValueTree(ctx, child.ID); err != nil {
			return err
		}
	}

	proxy.IndexMap = NewIndexMap()
	if target.IndexMap != nil {
		for _, key := range target.IndexMap.Keys() {
			if _, ok := sealed[key]; ok {
				proxy.IndexMap.Push(key)
				continue
			}
			targetChildren, err := u.tx.ListValues(ctx, ValueFilter{ParentID: &target.ID, Key: &key})
			if err != nil {
				return NewStoreError("failed to list target children", err)
			}
			for _, targetChild := range targetChildren {
				childCtx := targetChild.Context
				childCtx.SchemaID = proxy.Context.SchemaID
				childCtx.SchemaVariantID = proxy.Context.SchemaVariantID
				childCtx.ComponentID = proxy.Context.ComponentID
				child, err := u.createAttributeValue(ctx, childCtx, key, proxy.ID, targetChild.FuncBindingReturnValueID)
				if err != nil {
					return err
				}
				child.ProxyForAttributeValueID = targetChild.ID
				child.AttributePrototypeID = targetChild.AttributePrototypeID
				child.UpdatedAt = u.now()
				if err := u.tx.UpdateValue(ctx, child); err != nil {
					return NewStoreError("failed to create proxy child", err)
				}
				if err := u.rederiveProxyChildren(ctx, child, targetChild); err != nil {
					return err
				}
			}
			proxy.IndexMap.Push(key)
		}
	}
	for _, child := range children {
		if child.SealedProxy && !proxy.IndexMap.Has(child.Key) {
			proxy.IndexMap.Push(child.Key)
		}
	}
	if err := u.tx.UpdateValue(ctx, proxy); err != nil {
		return NewStoreError("failed to update proxy index map", err)
	}
	return nil
}
