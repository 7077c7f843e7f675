package gateway

import (
	"bytes"
	"encoding/json"

	"telecom-console/internal/model"
)

// Body is a successfully parsed JSON response.
type Body json.RawMessage

var emptyObject = Body("{}")

// MarshalJSON embeds the body verbatim; an empty body encodes as null.
func (b Body) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return []byte("null"), nil
	}
	return b, nil
}

// Decode unmarshals the body into v.
func (b Body) Decode(v interface{}) error {
	if len(b) == 0 {
		return json.Unmarshal(emptyObject, v)
	}
	return json.Unmarshal(b, v)
}

// IsArray reports whether the top-level value is a JSON array.
func (b Body) IsArray() bool {
	trimmed := bytes.TrimSpace(b)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Object returns the top-level members, or false if the body is not an object.
func (b Body) Object() (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// Field returns a top-level member, or nil when absent or null.
func (b Body) Field(name string) json.RawMessage {
	obj, ok := b.Object()
	if !ok {
		return nil
	}
	raw, ok := obj[name]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	return raw
}

// Has reports whether the body is an object carrying name, even as null.
func (b Body) Has(name string) bool {
	obj, ok := b.Object()
	if !ok {
		return false
	}
	_, ok = obj[name]
	return ok
}

// MessageOf picks the first truthy of message, error and msg.
func MessageOf(b Body) string {
	obj, ok := b.Object()
	if !ok {
		return ""
	}
	for _, key := range []string{"message", "error", "msg"} {
		if text := Truthy(obj[key]); text != "" {
			return text
		}
	}
	return ""
}

// Truthy renders a JSON value as text when it is truthy: non-empty strings,
// non-zero numbers, true, objects and arrays. Falsy values render as "".
func Truthy(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't':
		return "true"
	case 'f', 'n':
		return ""
	case '{', '[':
		return string(raw)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f == 0 {
		return ""
	}
	return model.FormatNumber(f)
}
