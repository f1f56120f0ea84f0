package engine

import "encoding/json"

// IndexMap is the ordered sequence of child keys owned by an array- or
// map-typed attribute value. Iteration order and map-entry identity survive
// edits: arrays keep insertion order, maps keep last-write order.
type IndexMap struct {
	keys []string
}

// NewIndexMap returns an empty index map.
func NewIndexMap() *IndexMap {
	return &IndexMap{}
}

// Push appends key. If the key is already present it is moved to the end,
// giving maps their last-write ordering.
func (m *IndexMap) Push(key string) {
	m.Delete(key)
	m.keys = append(m.keys, key)
}

// Delete removes key, preserving the order of the remaining keys.
func (m *IndexMap) Delete(key string) {
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			return
		}
	}
}

// Has reports whether key is present.
func (m *IndexMap) Has(key string) bool {
	for _, k := range m.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Keys returns the keys in order. The returned slice is a copy.
func (m *IndexMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *IndexMap) Len() int {
	return len(m.keys)
}

// Clone returns a deep copy.
func (m *IndexMap) Clone() *IndexMap {
	if m == nil {
		return nil
	}
	return &IndexMap{keys: m.Keys()}
}

// MarshalJSON encodes the map as a JSON array of keys.
func (m *IndexMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.keys)
}

// UnmarshalJSON decodes a JSON array of keys.
func (m *IndexMap) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	m.keys = keys
	return nil
}
