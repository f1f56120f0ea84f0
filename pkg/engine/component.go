package engine

import (
	"context"
	"sort"
)

// CreateComponentWithNode instantiates a component of the given variant
// together with its diagram node, and scaffolds the component-level value
// tree: every variant-level value gets an unsealed component-level proxy, so
// reads at component scope resolve immediately and later writes have an
// override site. Parent links and entry ordering carry over from the variant
// tree.
func (u *Unit) CreateComponentWithNode(ctx context.Context, variantID SchemaVariantID, name string) (*Component, *Node, error) {
	if name == "" {
		return nil, nil, NewValidationError("component name is required", nil)
	}
	variant, err := u.GetSchemaVariant(ctx, variantID)
	if err != nil {
		return nil, nil, err
	}

	component := &Component{
		ID:              ComponentID(newID()),
		Name:            name,
		Type:            ComponentTypePlain,
		SchemaID:        variant.SchemaID,
		SchemaVariantID: variant.ID,
		CreatedAt:       u.now(),
	}
	if err := u.tx.CreateComponent(ctx, component); err != nil {
		return nil, nil, NewStoreError("failed to create component", err)
	}
	node := &Node{
		ID:          NodeID(newID()),
		ComponentID: component.ID,
		CreatedAt:   u.now(),
	}
	if err := u.tx.CreateNode(ctx, node); err != nil {
		return nil, nil, NewStoreError("failed to create node", err)
	}

	if err := u.scaffoldComponentValues(ctx, variant, component); err != nil {
		return nil, nil, err
	}

	u.engine.logger.Debug().
		Str("component_id", string(component.ID)).
		Str("node_id", string(node.ID)).
		Str("schema_variant_id", string(variant.ID)).
		Msg("component instantiated")
	return component, node, nil
}

// scaffoldComponentValues mirrors every variant-level value into an unsealed
// component-level proxy. Parents are processed before their children so the
// parent link of each proxy can point at the proxy of the original's parent.
func (u *Unit) scaffoldComponentValues(ctx context.Context, variant *SchemaVariant, component *Component) error {
	noComponent := NoneComponentID
	read := AttributeReadContext{
		SchemaVariantID: &variant.ID,
		ComponentID:     &noComponent,
	}
	candidates, err := u.tx.ListValues(ctx, ValueFilter{Read: &read})
	if err != nil {
		return NewStoreError("failed to list variant values", err)
	}
	var originals []*AttributeValue
	for _, v := range candidates {
		if v.Context.SchemaVariantID == variant.ID {
			originals = append(originals, v)
		}
	}
	sort.SliceStable(originals, func(i, j int) bool {
		return originals[i].CreatedAt.Before(originals[j].CreatedAt)
	})

	proxyFor := make(map[AttributeValueID]AttributeValueID, len(originals))
	pending := originals
	for len(pending) > 0 {
		var next []*AttributeValue
		progressed := false
		for _, original := range pending {
			if original.ParentAttributeValueID != NoneAttributeValueID {
				if _, ok := proxyFor[original.ParentAttributeValueID]; !ok {
					next = append(next, original)
					continue
				}
			}
			proxy, err := u.createScaffoldProxy(ctx, component, original, proxyFor[original.ParentAttributeValueID])
			if err != nil {
				return err
			}
			proxyFor[original.ID] = proxy.ID
			progressed = true
		}
		if !progressed {
			return NewIntegrityError("variant value tree has an unreachable parent", nil).
				WithDetail("schema_variant_id", variant.ID)
		}
		pending = next
	}
	return nil
}

func (u *Unit) createScaffoldProxy(ctx context.Context, component *Component, original *AttributeValue, parentID AttributeValueID) (*AttributeValue, error) {
	avCtx := original.Context
	avCtx.ComponentID = component.ID

	proxy, err := u.createAttributeValue(ctx, avCtx, original.Key, parentID, original.FuncBindingReturnValueID)
	if err != nil {
		return nil, err
	}
	proxy.ProxyForAttributeValueID = original.ID
	proxy.AttributePrototypeID = original.AttributePrototypeID
	if original.IndexMap != nil {
		proxy.IndexMap = original.IndexMap.Clone()
	}
	proxy.UpdatedAt = u.now()
	if err := u.tx.UpdateValue(ctx, proxy); err != nil {
		return nil, NewStoreError("failed to link scaffolded proxy", err)
	}
	return proxy, nil
}

// GetComponent loads a component by id.
func (u *Unit) GetComponent(ctx context.Context, id ComponentID) (*Component, error) {
	component, err := u.tx.GetComponent(ctx, id)
	if err != nil {
		return nil, NewIntegrityError("component not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("component_id", id)
	}
	return component, nil
}

// GetComponentForNode resolves the component behind a diagram node.
func (u *Unit) GetComponentForNode(ctx context.Context, nodeID NodeID) (*Component, error) {
	node, err := u.tx.GetNode(ctx, nodeID)
	if err != nil {
		return nil, NewIntegrityError("node not found", err).
			WithCode(ErrCodeNodeNotFound).
			WithDetail("node_id", nodeID)
	}
	return u.GetComponent(ctx, node.ComponentID)
}

// SetComponentType changes how the component participates in frame
// composition. Type changes do not rewire existing frame children.
func (u *Unit) SetComponentType(ctx context.Context, id ComponentID, t ComponentType) error {
	component, err := u.GetComponent(ctx, id)
	if err != nil {
		return err
	}
	if component.Type == t {
		return nil
	}
	component.Type = t
	if err := u.tx.UpdateComponent(ctx, component); err != nil {
		return NewStoreError("failed to update component", err)
	}
	return nil
}
