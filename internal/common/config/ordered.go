package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-keyed mapping that remembers declaration order.
// Response selection and "first template wins" depend on that order, which
// plain Go maps do not keep.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

// NewOrderedMap builds an OrderedMap holding values in the order given by keys
func NewOrderedMap[V any](keys []string, values map[string]V) OrderedMap[V] {
	var m OrderedMap[V]
	for _, k := range keys {
		if v, ok := values[k]; ok {
			m.Set(k, v)
		}
	}
	return m
}

// Set inserts or replaces a value, keeping the original position on replace
func (m *OrderedMap[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key
func (m OrderedMap[V]) Get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in declaration order
func (m OrderedMap[V]) Keys() []string {
	return m.keys
}

// Len returns the number of entries
func (m OrderedMap[V]) Len() int {
	return len(m.keys)
}

// First returns the first declared entry
func (m OrderedMap[V]) First() (string, V, bool) {
	var zero V
	if len(m.keys) == 0 {
		return "", zero, false
	}
	k := m.keys[0]
	return k, m.values[k], true
}

// UnmarshalYAML decodes a YAML mapping node preserving key order
func (m *OrderedMap[V]) UnmarshalYAML(node *yaml.Node) error {
	m.keys = nil
	m.values = nil
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var v V
		if err := node.Content[i+1].Decode(&v); err != nil {
			return err
		}
		m.Set(node.Content[i].Value, v)
	}
	return nil
}

// UnmarshalJSON decodes a JSON object preserving key order
func (m *OrderedMap[V]) UnmarshalJSON(data []byte) error {
	m.keys = nil
	m.values = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected a string key, got %v", tok)
		}
		var v V
		if err := dec.Decode(&v); err != nil {
			return err
		}
		m.Set(key, v)
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the mapping with keys in declaration order
func (m OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
