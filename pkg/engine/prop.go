package engine

import (
	"context"
)

// CreateProp adds a typed node to a variant's prop tree and scaffolds its
// variant-level prototype and value. A parentless prop becomes the variant's
// root. Every prop also gets an implicit internal provider so the rest of
// the graph can read its resolved value.
func (u *Unit) CreateProp(ctx context.Context, variantID SchemaVariantID, parentID PropID, name string, kind PropKind) (*Prop, error) {
	if name == "" {
		return nil, NewValidationError("prop name is required", nil)
	}
	variant, err := u.GetSchemaVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	var parentValueID AttributeValueID
	if parentID != NonePropID {
		parent, err := u.tx.GetProp(ctx, parentID)
		if err != nil {
			return nil, NewIntegrityError("parent prop not found", err).
				WithCode(ErrCodeNotFound).
				WithDetail("prop_id", parentID)
		}
		if parent.SchemaVariantID != variantID {
			return nil, NewValidationError("parent prop belongs to a different schema variant", nil).
				WithDetail("prop_id", parentID).
				WithDetail("schema_variant_id", variantID)
		}
		if !parent.Kind.HasChildren() {
			return nil, NewValidationError("parent prop kind cannot own children", nil).
				WithCode(ErrCodeParentNotAllowed).
				WithDetail("prop_id", parentID).
				WithDetail("prop_kind", parent.Kind)
		}
		parentValue, err := u.variantValueForProp(ctx, variant, parentID)
		if err != nil {
			return nil, err
		}
		parentValueID = parentValue.ID
	}

	prop := &Prop{
		ID:              PropID(newID()),
		SchemaVariantID: variantID,
		ParentID:        parentID,
		Name:            name,
		Kind:            kind,
		CreatedAt:       u.now(),
	}
	if err := u.tx.CreateProp(ctx, prop); err != nil {
		return nil, NewStoreError("failed to create prop", err)
	}

	avCtx, err := NewContextBuilder().
		SetPropID(prop.ID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return nil, err
	}
	if _, _, err := u.createPrototypeWithValue(ctx, avCtx, FuncUnset, nil, "", parentValueID); err != nil {
		return nil, err
	}

	if _, err := u.createImplicitInternalProvider(ctx, variant, prop); err != nil {
		return nil, err
	}

	if parentID == NonePropID {
		variant.RootPropID = prop.ID
		if err := u.tx.UpdateSchemaVariant(ctx, variant); err != nil {
			return nil, NewStoreError("failed to set variant root prop", err)
		}
	}
	return prop, nil
}

// ListPropsForVariant lists every prop in a variant's tree.
func (u *Unit) ListPropsForVariant(ctx context.Context, variantID SchemaVariantID) ([]*Prop, error) {
	props, err := u.tx.ListProps(ctx, PropFilter{SchemaVariantID: &variantID})
	if err != nil {
		return nil, NewStoreError("failed to list props", err)
	}
	return props, nil
}

// variantValueForProp finds the variant-level value scaffolded for a prop.
func (u *Unit) variantValueForProp(ctx context.Context, variant *SchemaVariant, propID PropID) (*AttributeValue, error) {
	avCtx, err := NewContextBuilder().
		SetPropID(propID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return nil, err
	}
	read := ReadContextFromContext(avCtx)
	return u.FindValueForContext(ctx, read)
}
