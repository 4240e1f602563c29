package wpl

import (
	"encoding/json"
	"fmt"

	"github.com/wp-labs/wp-motor/internal/value"
)

// ParseJSONField decodes content as a JSON value and wraps it under name,
// recursing into objects/arrays (§4.2.3's "json" protocol descriptor).
// Sub-fields are named by their bare key or index ("[0]"); the parent
// name is not prepended.
func ParseJSONField(name, content string) (value.Field, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return value.Field{}, fmt.Errorf("json protocol: %w", err)
	}
	return value.NewField(name, jsonToValue(raw)), nil
}

func jsonToValue(raw interface{}) value.Value {
	switch t := raw.(type) {
	case nil:
		return value.NewIgnore()
	case bool:
		return value.NewBool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.NewDigit(int64(t))
		}
		return value.NewFloat(t)
	case string:
		return value.NewChars(t)
	case []interface{}:
		items := make([]value.Field, len(t))
		for i, e := range t {
			items[i] = value.NewField(fmt.Sprintf("[%d]", i), jsonToValue(e))
		}
		return value.NewArray(items)
	case map[string]interface{}:
		fields := make([]value.Field, 0, len(t))
		for k, v := range t {
			fields = append(fields, value.NewField(k, jsonToValue(v)))
		}
		return value.NewObj(fields)
	default:
		return value.NewIgnore()
	}
}

// ParseKeyValue is the plain key-value protocol descriptor. It delegates to
// ParseKvarr, so it accepts the same pair grammar, bracketed values
// included; sep is not used, and pairs are split on whitespace and ','
// only.
func ParseKeyValue(content, sep string, specs []KvarrFieldSpec) ([]value.Field, error) {
	return ParseKvarr(content, specs)
}

// ParseRaw wraps content verbatim as a single chars field (the "raw"
// protocol descriptor: pass the whole segment through untouched).
func ParseRaw(name, content string) value.Field {
	return value.NewField(name, value.NewChars(content))
}
