package funcs

import (
	"context"
	"encoding/json"
)

var nullValue = json.RawMessage("null")

// Identity returns its "value" argument unchanged, or null when the argument
// was not supplied. It is the pass-through behind provider wiring.
func Identity(_ context.Context, _ json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error) {
	if v, ok := args["value"]; ok && v != nil {
		return v, nil
	}
	return nullValue, nil
}

// Unset always returns null. Freshly scaffolded values with no configured
// source are bound to it.
func Unset(_ context.Context, _ json.RawMessage, _ map[string]json.RawMessage) (json.RawMessage, error) {
	return nullValue, nil
}

// SetValue returns its static arguments verbatim. Direct value overrides are
// installed as prototypes bound to it, so re-evaluation reproduces the
// override.
func SetValue(_ context.Context, staticArgs json.RawMessage, _ map[string]json.RawMessage) (json.RawMessage, error) {
	if staticArgs == nil {
		return nullValue, nil
	}
	return staticArgs, nil
}
