package checks

import (
	"bytes"
	"encoding/json"
)

// Results maps check names to values and remembers insertion order. The zero value is
// ready to use. Results is not safe for concurrent mutation; each audit owns its own.
type Results struct {
	keys   []string
	values map[string]Value
}

// Set records a value. Re-setting an existing name keeps its original position.
func (r *Results) Set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

// Get returns the value recorded for name.
func (r *Results) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Keys returns check names in insertion order.
func (r *Results) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of recorded checks.
func (r *Results) Len() int {
	return len(r.keys)
}

// Merge appends every entry of other, in other's order.
func (r *Results) Merge(other Results) {
	for _, k := range other.keys {
		r.Set(k, other.values[k])
	}
}

// MarshalJSON encodes the results as a JSON object with keys in insertion order.
func (r Results) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InterfaceResults maps an interface declaration line to that interface's Results,
// in the order the interfaces appear in the configuration.
type InterfaceResults struct {
	names   []string
	results map[string]*Results
}

// For returns the Results for iface, creating an empty entry on first use.
func (ir *InterfaceResults) For(iface string) *Results {
	if ir.results == nil {
		ir.results = make(map[string]*Results)
	}
	r, ok := ir.results[iface]
	if !ok {
		r = &Results{}
		ir.results[iface] = r
		ir.names = append(ir.names, iface)
	}
	return r
}

// Get returns the Results for iface.
func (ir *InterfaceResults) Get(iface string) (*Results, bool) {
	r, ok := ir.results[iface]
	return r, ok
}

// Interfaces returns interface names in configuration order.
func (ir *InterfaceResults) Interfaces() []string {
	out := make([]string, len(ir.names))
	copy(out, ir.names)
	return out
}

// Len returns the number of interfaces.
func (ir *InterfaceResults) Len() int {
	return len(ir.names)
}

// MarshalJSON encodes the interfaces as an ordered JSON object.
func (ir InterfaceResults) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range ir.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(ir.results[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
