package template

import (
	"bytes"
	"encoding/json"
	"io"
)

// Kind tags a RenderedValue
type Kind int

const (
	// KindAbsent means the leaf rendered to "undefined" and is dropped
	KindAbsent Kind = iota
	KindNull
	KindBool
	// KindString is raw text that did not parse as a truthy JSON value
	KindString
	// KindJSON is a parsed JSON value: object, array, number or string
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// RenderedValue is the re-typed result of rendering one template leaf
type RenderedValue struct {
	Kind Kind
	Bool bool
	Text string
	JSON any
}

// ParseRendered re-types rendered text. "undefined", "null", "true" and
// "false" map to their literal meaning; anything else is parsed as JSON.
// Text that fails to parse, or parses to a falsy value such as 0 or "",
// stays a raw string.
func ParseRendered(text string) RenderedValue {
	switch text {
	case "undefined":
		return RenderedValue{Kind: KindAbsent}
	case "null":
		return RenderedValue{Kind: KindNull}
	case "true":
		return RenderedValue{Kind: KindBool, Bool: true}
	case "false":
		return RenderedValue{Kind: KindBool, Bool: false}
	}

	if v, ok := parseJSON(text); ok && truthy(v) {
		return RenderedValue{Kind: KindJSON, JSON: v}
	}
	return RenderedValue{Kind: KindString, Text: text}
}

// Value returns the Go value and whether it is present at all
func (v RenderedValue) Value() (any, bool) {
	switch v.Kind {
	case KindAbsent:
		return nil, false
	case KindNull:
		return nil, true
	case KindBool:
		return v.Bool, true
	case KindString:
		return v.Text, true
	default:
		return v.JSON, true
	}
}

// parseJSON decodes exactly one JSON value, keeping numbers as json.Number
// so integers survive a round trip.
func parseJSON(text string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
