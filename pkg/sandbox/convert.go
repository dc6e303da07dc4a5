package sandbox

import (
	"encoding/json"
	"fmt"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
)

var (
	jsonEncode = starlarkjson.Module.Members["encode"]
	jsonDecode = starlarkjson.Module.Members["decode"]
)

// Values cross the Go/Starlark boundary as JSON, so routines exchange plain data only.
func toValue(thread *starlark.Thread, v any) (starlark.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return starlark.Call(thread, jsonDecode, starlark.Tuple{starlark.String(b)}, nil)
}

func fromValue(thread *starlark.Thread, v starlark.Value) (any, error) {
	enc, err := starlark.Call(thread, jsonEncode, starlark.Tuple{v}, nil)
	if err != nil {
		return nil, err
	}
	s, ok := starlark.AsString(enc)
	if !ok {
		return nil, fmt.Errorf("unexpected %s from json.encode", enc.Type())
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}

// toResult maps a routine's return value to a result mapping: a dict is kept,
// None becomes empty and anything else is wrapped under "value".
func toResult(thread *starlark.Thread, v starlark.Value) (map[string]any, error) {
	if v == nil || v == starlark.None {
		return map[string]any{}, nil
	}
	out, err := fromValue(thread, v)
	if err != nil {
		return nil, err
	}
	switch o := out.(type) {
	case map[string]any:
		return o, nil
	case nil:
		return map[string]any{}, nil
	default:
		return map[string]any{"value": o}, nil
	}
}

// ToGo converts a Starlark value to plain Go data.
func ToGo(thread *starlark.Thread, v starlark.Value) (any, error) {
	return fromValue(thread, v)
}

// FromGo converts plain Go data to a Starlark value.
func FromGo(thread *starlark.Thread, v any) (starlark.Value, error) {
	return toValue(thread, v)
}
