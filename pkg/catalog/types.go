package catalog

import (
	"time"

	"github.com/propgraph/propgraph/pkg/engine"
)

// SchemaDef describes a schema and its variants as declared in a CUE catalog.
type SchemaDef struct {
	// Name is the schema name.
	Name string `json:"name" validate:"required"`

	// Variants are the schema variants to create.
	Variants []VariantDef `json:"variants" validate:"required,min=1,dive"`
}

// VariantDef describes one variant of a schema.
type VariantDef struct {
	// Name is the variant name.
	Name string `json:"name" validate:"required"`

	// Props is the property tree rooted under the variant's implicit root.
	Props []PropDef `json:"props" validate:"dive"`

	// Sockets declares the variant's provider-backed sockets.
	Sockets []SocketDef `json:"sockets" validate:"dive"`

	// FrameInput adds a frame socket accepting child components.
	FrameInput bool `json:"frameInput"`

	// FrameOutput adds a frame socket for attaching to parent frames.
	FrameOutput bool `json:"frameOutput"`
}

// PropDef describes a property node. Object, array, and map props carry
// children.
type PropDef struct {
	// Name is the property name.
	Name string `json:"name" validate:"required"`

	// Kind is the property value kind.
	Kind string `json:"kind" validate:"required,oneof=string integer boolean object array map"`

	// Default is an optional default value set at the variant level.
	Default interface{} `json:"default,omitempty"`

	// Children are the nested properties of object, array, and map props.
	Children []PropDef `json:"children,omitempty" validate:"dive"`
}

// SocketDef describes a provider-backed socket on a variant.
type SocketDef struct {
	// Name is the socket and provider name.
	Name string `json:"name" validate:"required"`

	// Direction is either input or output.
	Direction string `json:"direction" validate:"required,oneof=input output"`

	// Prop is the dotted path of the property an output socket emits.
	// Ignored for input sockets.
	Prop string `json:"prop,omitempty"`

	// Arity is one or many. Defaults to one for inputs and many for outputs.
	Arity string `json:"arity,omitempty" validate:"omitempty,oneof=one many"`
}

// ValidationError describes a single catalog validation failure.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Path     string `json:"path,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ParsedCatalog is the result of parsing a set of CUE sources.
type ParsedCatalog struct {
	SourceFiles []string          `json:"source_files"`
	ParsedAt    time.Time         `json:"parsed_at"`
	Schemas     []SchemaDef       `json:"schemas"`
	Errors      []ValidationError `json:"errors,omitempty"`
}

// LoadedVariant records the engine IDs created for one variant.
type LoadedVariant struct {
	ID    engine.SchemaVariantID `json:"id"`
	Name  string                 `json:"name"`
	Props int                    `json:"props"`
}

// LoadedSchema records the engine IDs created for one schema.
type LoadedSchema struct {
	ID       engine.SchemaID `json:"id"`
	Name     string          `json:"name"`
	Variants []LoadedVariant `json:"variants"`
}

// LoadResult summarizes a catalog load.
type LoadResult struct {
	Schemas  []LoadedSchema `json:"schemas"`
	LoadedAt time.Time      `json:"loaded_at"`
}
