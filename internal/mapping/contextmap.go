package mapping

import (
	"encoding/json"
	"sort"
)

// ContextMap is an insertion-ordered association of context keys to values.
// Serialization flattens it to a plain map; ToMap/FromMap are the two ends of
// that round trip.
type ContextMap struct {
	keys   []string
	values map[string]string
}

// NewContextMap returns an empty ordered association.
func NewContextMap() *ContextMap {
	return &ContextMap{values: make(map[string]string)}
}

// Set inserts or updates a key. New keys keep insertion order.
func (m *ContextMap) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it exists.
func (m *ContextMap) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *ContextMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of associations.
func (m *ContextMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// ToMap flattens the association for transport. Order is not representable
// in a plain JSON object and is dropped here.
func (m *ContextMap) ToMap() map[string]string {
	if m == nil || len(m.keys) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.keys))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON serializes the flattened form, so the associations survive the
// API surface even though the fields backing the order are unexported.
func (m *ContextMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.ToMap())
}

// UnmarshalJSON rebuilds the association from the flattened form, keys
// sorted, same as ContextMapFromMap.
func (m *ContextMap) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	restored := ContextMapFromMap(flat)
	if restored == nil {
		*m = ContextMap{values: make(map[string]string)}
		return nil
	}
	*m = *restored
	return nil
}

// ContextMapFromMap rebuilds the ordered form from a flattened map. The
// original order is gone, so keys are restored sorted for determinism.
func ContextMapFromMap(flat map[string]string) *ContextMap {
	if len(flat) == 0 {
		return nil
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := NewContextMap()
	for _, k := range keys {
		m.Set(k, flat[k])
	}
	return m
}
