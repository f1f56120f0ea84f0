package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
)

// Parser parses and validates CUE schema catalogs.
type Parser struct {
	ctx       *cue.Context
	validator *validator.Validate
}

// NewParser creates a new catalog parser.
func NewParser() *Parser {
	return &Parser{
		ctx:       cuecontext.New(),
		validator: validator.New(),
	}
}

// Parse parses CUE catalog sources. Each source is a file or a directory; all
// sources are unified into a single value before extraction.
func (p *Parser) Parse(ctx context.Context, sources []string) (*ParsedCatalog, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		if info.IsDir() {
			val, files, errs := p.loadDirectory(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs := p.loadFile(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, source)
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedCatalog{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	if err := cueValue.Err(); err != nil {
		parseErrors = append(parseErrors, p.convertCUEErrors(err)...)
		return &ParsedCatalog{
			SourceFiles: sourceFiles,
			ParsedAt:    time.Now(),
			Errors:      parseErrors,
		}, nil
	}

	return p.extractCatalog(cueValue, sourceFiles)
}

// ParseInline parses inline CUE content.
func (p *Parser) ParseInline(ctx context.Context, content string) (*ParsedCatalog, error) {
	val := p.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedCatalog{
			SourceFiles: []string{"inline"},
			ParsedAt:    time.Now(),
			Errors:      p.convertCUEErrors(err),
		}, nil
	}
	return p.extractCatalog(val, []string{"inline"})
}

// loadDirectory loads a directory as a CUE package.
func (p *Parser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, p.convertCUEErrors(inst.Err)
	}

	val := p.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, p.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (p *Parser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := p.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, p.convertCUEErrors(err)
	}

	return val, nil
}

// extractCatalog extracts schema definitions from a unified CUE value.
// Schemas can be declared as a map keyed by name or as a list.
func (p *Parser) extractCatalog(val cue.Value, sourceFiles []string) (*ParsedCatalog, error) {
	catalog := &ParsedCatalog{
		SourceFiles: sourceFiles,
		ParsedAt:    time.Now(),
	}

	schemasVal := val.LookupPath(cue.ParsePath("schemas"))
	if !schemasVal.Exists() {
		catalog.Errors = append(catalog.Errors, ValidationError{
			Path:     "schemas",
			Message:  "catalog has no schemas field",
			Severity: "error",
		})
		return catalog, nil
	}

	switch schemasVal.Kind() {
	case cue.StructKind:
		iter, err := schemasVal.Fields(cue.All())
		if err != nil {
			catalog.Errors = append(catalog.Errors, ValidationError{
				Path:     "schemas",
				Message:  fmt.Sprintf("failed to iterate schemas: %v", err),
				Severity: "error",
			})
			return catalog, nil
		}
		for iter.Next() {
			name := iter.Selector().String()
			schema, err := p.extractSchema(name, iter.Value())
			if err != nil {
				catalog.Errors = append(catalog.Errors, ValidationError{
					Path:     fmt.Sprintf("schemas.%s", name),
					Message:  err.Error(),
					Severity: "error",
				})
				continue
			}
			catalog.Schemas = append(catalog.Schemas, schema)
		}
	case cue.ListKind:
		list, err := schemasVal.List()
		if err != nil {
			catalog.Errors = append(catalog.Errors, ValidationError{
				Path:     "schemas",
				Message:  fmt.Sprintf("failed to list schemas: %v", err),
				Severity: "error",
			})
			return catalog, nil
		}
		idx := 0
		for list.Next() {
			schema, err := p.extractSchema("", list.Value())
			if err != nil {
				catalog.Errors = append(catalog.Errors, ValidationError{
					Path:     fmt.Sprintf("schemas[%d]", idx),
					Message:  err.Error(),
					Severity: "error",
				})
				idx++
				continue
			}
			catalog.Schemas = append(catalog.Schemas, schema)
			idx++
		}
	default:
		catalog.Errors = append(catalog.Errors, ValidationError{
			Path:     "schemas",
			Message:  "schemas must be a struct or a list",
			Severity: "error",
		})
	}

	return catalog, nil
}

// extractSchema decodes and validates a single schema definition.
func (p *Parser) extractSchema(name string, val cue.Value) (SchemaDef, error) {
	var schema SchemaDef
	if err := val.Decode(&schema); err != nil {
		return schema, fmt.Errorf("failed to decode schema: %w", err)
	}

	// The map key names the schema when the body does not.
	if schema.Name == "" && name != "" {
		schema.Name = name
	}

	if err := p.validator.Struct(schema); err != nil {
		return schema, fmt.Errorf("validation failed: %w", err)
	}

	return schema, nil
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func (p *Parser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}
