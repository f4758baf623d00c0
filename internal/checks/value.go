package checks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindBool Kind = iota
	KindString
)

// Value is a check outcome: a boolean for pass/fail checks or a short string for
// value-extraction checks such as the STP mode.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// AsBool returns the boolean payload and whether v is boolean.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Interface returns the payload as bool or string, for sinks that take untyped cell values.
func (v Value) Interface() any {
	if v.kind == KindString {
		return v.s
	}
	return v.b
}

func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return strconv.FormatBool(v.b)
}

// MarshalJSON encodes the payload as a JSON bool or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a JSON bool or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*v = Bool(true)
	case bytes.Equal(data, []byte("false")):
		*v = Bool(false)
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("check value must be a bool or string: %w", err)
		}
		*v = String(s)
	}
	return nil
}
