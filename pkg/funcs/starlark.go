package funcs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

// StarlarkFunc compiles a Starlark script into a registry Func. The script
// sees its static arguments as the global "static" and the resolved provider
// arguments as the global "args", and must assign the computed result to a
// global named "value".
func StarlarkFunc(script string, timeout time.Duration) Func {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return func(ctx context.Context, staticArgs json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error) {
		evalCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		thread := &starlark.Thread{
			Name: "propgraph",
			Print: func(_ *starlark.Thread, _ string) {
				// Suppress print for security
			},
		}

		type result struct {
			value json.RawMessage
			err   error
		}
		ch := make(chan result, 1)
		go func() {
			v, err := runStarlark(thread, script, staticArgs, args)
			ch <- result{value: v, err: err}
		}()

		select {
		case <-evalCtx.Done():
			// Stop the evaluation loop so the goroutine does not spin on.
			thread.Cancel("timeout")
			return nil, fmt.Errorf("starlark execution timeout after %v", timeout)
		case r := <-ch:
			return r.value, r.err
		}
	}
}

// scriptOptions allows loops and conditionals at top level, so short scripts
// do not have to wrap everything in a function.
var scriptOptions = &syntax.FileOptions{
	TopLevelControl: true,
	While:           true,
	Set:             true,
}

func runStarlark(thread *starlark.Thread, script string, staticArgs json.RawMessage, args map[string]json.RawMessage) (json.RawMessage, error) {
	static, err := rawToStarlark(staticArgs)
	if err != nil {
		return nil, fmt.Errorf("failed to convert static arguments: %w", err)
	}
	argDict := starlark.NewDict(len(args))
	for name, raw := range args {
		v, err := rawToStarlark(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert argument %s: %w", name, err)
		}
		if err := argDict.SetKey(starlark.String(name), v); err != nil {
			return nil, err
		}
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"static": static,
		"args":   argDict,
	}

	globals, err := starlark.ExecFileOptions(scriptOptions, thread, "func.star", script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	out, ok := globals["value"]
	if !ok {
		return nil, fmt.Errorf("script did not assign a \"value\" global")
	}
	goVal, err := fromStarlarkValue(out)
	if err != nil {
		return nil, fmt.Errorf("failed to convert result: %w", err)
	}
	raw, err := json.Marshal(goVal)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return raw, nil
}

func rawToStarlark(raw json.RawMessage) (starlark.Value, error) {
	if raw == nil {
		return starlark.None, nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return toStarlarkValue(v)
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
