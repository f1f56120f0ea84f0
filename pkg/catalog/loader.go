package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Loader parses CUE catalogs and materializes them as schemas, variants,
// prop trees, providers, and sockets in the engine.
type Loader struct {
	mu      sync.Mutex
	engine  *engine.Engine
	parser  *Parser
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewLoader creates a new catalog loader.
func NewLoader(eng *engine.Engine, logger zerolog.Logger) *Loader {
	return &Loader{
		engine: eng,
		parser: NewParser(),
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

// Load parses the sources and creates everything they declare in a single
// unit of work. Validation errors abort the load before the engine is
// touched.
func (l *Loader) Load(ctx context.Context, sources []string) (*LoadResult, error) {
	parsed, err := l.parser.Parse(ctx, sources)
	if err != nil {
		return nil, err
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("catalog has %d validation errors, first: %s", len(parsed.Errors), parsed.Errors[0].Message)
	}

	result := &LoadResult{LoadedAt: time.Now()}
	err = l.engine.WithUnit(ctx, func(u *engine.Unit) error {
		for i := range parsed.Schemas {
			loaded, err := l.loadSchema(ctx, u, &parsed.Schemas[i])
			if err != nil {
				return fmt.Errorf("failed to load schema %s: %w", parsed.Schemas[i].Name, err)
			}
			result.Schemas = append(result.Schemas, loaded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Int("schemas", len(result.Schemas)).
		Strs("sources", parsed.SourceFiles).
		Msg("Catalog loaded")
	return result, nil
}

// loadSchema creates one schema and all of its variants.
func (l *Loader) loadSchema(ctx context.Context, u *engine.Unit, def *SchemaDef) (LoadedSchema, error) {
	schema, err := u.CreateSchema(ctx, def.Name)
	if err != nil {
		return LoadedSchema{}, err
	}

	loaded := LoadedSchema{ID: schema.ID, Name: def.Name}
	for i := range def.Variants {
		variant, err := l.loadVariant(ctx, u, schema, &def.Variants[i])
		if err != nil {
			return LoadedSchema{}, fmt.Errorf("variant %s: %w", def.Variants[i].Name, err)
		}
		loaded.Variants = append(loaded.Variants, variant)
	}
	return loaded, nil
}

// loadVariant creates a variant, its prop tree under a synthetic root, the
// frame sockets, and the provider-backed sockets.
func (l *Loader) loadVariant(ctx context.Context, u *engine.Unit, schema *engine.Schema, def *VariantDef) (LoadedVariant, error) {
	variant, err := u.CreateSchemaVariant(ctx, schema.ID, def.Name)
	if err != nil {
		return LoadedVariant{}, err
	}

	// Declared props hang under a synthetic object root so a variant can
	// declare several top-level props. Socket prop paths are relative to
	// this root.
	root, err := u.CreateProp(ctx, variant.ID, engine.NonePropID, "root", engine.PropKindObject)
	if err != nil {
		return LoadedVariant{}, err
	}

	propsByPath := make(map[string]engine.PropID)
	count := 0
	for i := range def.Props {
		n, err := l.createProps(ctx, u, variant, root.ID, "", &def.Props[i], propsByPath)
		if err != nil {
			return LoadedVariant{}, err
		}
		count += n
	}

	if def.FrameInput {
		if _, err := u.CreateFrameSocket(ctx, variant.ID, engine.SocketEdgeKindConfigurationInput); err != nil {
			return LoadedVariant{}, err
		}
	}
	if def.FrameOutput {
		if _, err := u.CreateFrameSocket(ctx, variant.ID, engine.SocketEdgeKindConfigurationOutput); err != nil {
			return LoadedVariant{}, err
		}
	}

	for _, socket := range def.Sockets {
		if err := l.createSocket(ctx, u, variant, &socket, propsByPath); err != nil {
			return LoadedVariant{}, fmt.Errorf("socket %s: %w", socket.Name, err)
		}
	}

	return LoadedVariant{ID: variant.ID, Name: def.Name, Props: count}, nil
}

// createProps creates a prop and its children, recording IDs by dotted path.
func (l *Loader) createProps(ctx context.Context, u *engine.Unit, variant *engine.SchemaVariant, parentID engine.PropID, prefix string, def *PropDef, propsByPath map[string]engine.PropID) (int, error) {
	prop, err := u.CreateProp(ctx, variant.ID, parentID, def.Name, engine.PropKind(def.Kind))
	if err != nil {
		return 0, err
	}

	path := def.Name
	if prefix != "" {
		path = prefix + "." + def.Name
	}
	propsByPath[path] = prop.ID

	if def.Default != nil {
		if err := l.setDefault(ctx, u, variant, prop.ID, def.Default); err != nil {
			return 0, fmt.Errorf("prop %s default: %w", path, err)
		}
	}

	count := 1
	for i := range def.Children {
		n, err := l.createProps(ctx, u, variant, prop.ID, path, &def.Children[i], propsByPath)
		if err != nil {
			return 0, err
		}
		count += n
	}
	return count, nil
}

// setDefault writes a default value on the variant-level value of a prop.
func (l *Loader) setDefault(ctx context.Context, u *engine.Unit, variant *engine.SchemaVariant, propID engine.PropID, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal default: %w", err)
	}

	avCtx, err := engine.NewContextBuilder().
		SetPropID(propID).
		SetSchemaID(variant.SchemaID).
		SetSchemaVariantID(variant.ID).
		ToContext()
	if err != nil {
		return err
	}

	_, err = u.SetValueForContext(ctx, avCtx, raw)
	return err
}

// createSocket creates one provider-backed socket on the variant.
func (l *Loader) createSocket(ctx context.Context, u *engine.Unit, variant *engine.SchemaVariant, def *SocketDef, propsByPath map[string]engine.PropID) error {
	switch def.Direction {
	case "input":
		arity := engine.SocketArityOne
		if def.Arity == "many" {
			arity = engine.SocketArityMany
		}
		_, _, err := u.NewExplicitInternalProviderWithSocket(ctx, variant.ID, def.Name, arity)
		return err
	case "output":
		propID := engine.NonePropID
		if def.Prop != "" {
			id, ok := propsByPath[def.Prop]
			if !ok {
				return fmt.Errorf("unknown prop path %q", def.Prop)
			}
			propID = id
		}
		arity := engine.SocketArityMany
		if def.Arity == "one" {
			arity = engine.SocketArityOne
		}
		_, _, err := u.NewExternalProviderWithSocket(ctx, variant.ID, def.Name, propID, arity)
		return err
	default:
		return fmt.Errorf("unknown socket direction %q", def.Direction)
	}
}

// Watch reloads the catalog whenever a source file changes. The callback
// receives each successful load result.
func (l *Loader) Watch(ctx context.Context, sources []string, callback func(*LoadResult)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		return fmt.Errorf("loader is already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, source := range sources {
		if err := watcher.Add(source); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch source %s: %w", source, err)
		}
	}

	l.watcher = watcher
	l.stopCh = make(chan struct{})

	go l.processEvents(ctx, sources, callback)

	l.logger.Info().Strs("sources", sources).Msg("Watching catalog sources for changes")
	return nil
}

// processEvents handles filesystem events with debouncing.
func (l *Loader) processEvents(ctx context.Context, sources []string, callback func(*LoadResult)) {
	const debounce = 500 * time.Millisecond

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".cue" {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerCh = timer.C
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		case <-timerCh:
			timerCh = nil
			result, err := l.Load(ctx, sources)
			if err != nil {
				l.logger.Error().Err(err).Msg("Catalog reload failed")
				continue
			}
			if callback != nil {
				callback(result)
			}
		}
	}
}

// StopWatching stops the filesystem watcher.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher == nil {
		return nil
	}

	close(l.stopCh)
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
