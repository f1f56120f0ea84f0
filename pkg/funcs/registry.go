package funcs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/propgraph/propgraph/pkg/engine"
)

// Func computes one attribute value from serialized static arguments and
// resolved provider argument values.
type Func func(ctx context.Context, staticArgs json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error)

// Registry maps function ids to implementations. It implements
// engine.FuncEvaluator. The zero value is not usable; construct with
// NewRegistry, which preloads the built-ins the engine requires.
type Registry struct {
	mu    sync.RWMutex
	funcs map[engine.FuncID]Func
}

// NewRegistry creates a registry with the built-in functions installed.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[engine.FuncID]Func)}
	r.Register(engine.FuncIdentity, Identity)
	r.Register(engine.FuncUnset, Unset)
	r.Register(engine.FuncSetValue, SetValue)
	return r
}

// Register installs or replaces a function.
func (r *Registry) Register(id engine.FuncID, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[id] = fn
}

// Evaluate implements engine.FuncEvaluator.
func (r *Registry) Evaluate(ctx context.Context, funcID engine.FuncID, staticArgs json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.funcs[funcID]
	r.mu.RUnlock()
	if !ok {
		return nil, engine.NewIntegrityError("function not registered", nil).
			WithCode(engine.ErrCodeFuncNotFound).
			WithDetail("func_id", funcID)
	}
	return fn(ctx, staticArgs, args)
}
