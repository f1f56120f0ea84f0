package engine

import (
	"context"
)

// CreateSchema creates a named schema.
func (u *Unit) CreateSchema(ctx context.Context, name string) (*Schema, error) {
	if name == "" {
		return nil, NewValidationError("schema name is required", nil)
	}
	schema := &Schema{
		ID:        SchemaID(newID()),
		Name:      name,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateSchema(ctx, schema); err != nil {
		return nil, NewStoreError("failed to create schema", err)
	}
	return schema, nil
}

// CreateSchemaVariant creates a variant under schema. The variant's prop
// tree, providers and sockets are added afterwards through CreateProp and the
// provider constructors.
func (u *Unit) CreateSchemaVariant(ctx context.Context, schemaID SchemaID, name string) (*SchemaVariant, error) {
	if name == "" {
		return nil, NewValidationError("schema variant name is required", nil)
	}
	if _, err := u.tx.GetSchema(ctx, schemaID); err != nil {
		return nil, NewIntegrityError("schema not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("schema_id", schemaID)
	}
	variant := &SchemaVariant{
		ID:        SchemaVariantID(newID()),
		SchemaID:  schemaID,
		Name:      name,
		CreatedAt: u.now(),
	}
	if err := u.tx.CreateSchemaVariant(ctx, variant); err != nil {
		return nil, NewStoreError("failed to create schema variant", err)
	}
	return variant, nil
}

// GetSchema loads a schema by id.
func (u *Unit) GetSchema(ctx context.Context, id SchemaID) (*Schema, error) {
	schema, err := u.tx.GetSchema(ctx, id)
	if err != nil {
		return nil, NewIntegrityError("schema not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("schema_id", id)
	}
	return schema, nil
}

// GetSchemaVariant loads a variant by id.
func (u *Unit) GetSchemaVariant(ctx context.Context, id SchemaVariantID) (*SchemaVariant, error) {
	variant, err := u.tx.GetSchemaVariant(ctx, id)
	if err != nil {
		return nil, NewIntegrityError("schema variant not found", err).
			WithCode(ErrCodeNotFound).
			WithDetail("schema_variant_id", id)
	}
	return variant, nil
}
