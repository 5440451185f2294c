package template

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

type (
	segmentKind int

	// segment is one step of a JSONPath expression
	segment struct {
		kind segmentKind
		name string
		// descend applies the step to every descendant, as in $..id
		descend bool
	}
)

const (
	segmentName segmentKind = iota
	segmentIndex
	segmentWildcard
)

// Query evaluates a JSONPath expression against doc and returns the matched
// value, or nil when nothing matches. A single match is returned bare and
// several matches as a slice.
// Supported forms: $, $.a.b, $['a'], $.a[0], $.a[*], $.a[*].b, $.* and $..a.
func Query(doc any, expr string) any {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "$" {
		return doc
	}

	segments, ok := parsePath(expr)
	if !ok {
		return nil
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	root := gjson.ParseBytes(data)
	if !root.Exists() {
		return nil
	}

	matches := []gjson.Result{root}
	definite := true
	for _, seg := range segments {
		if seg.descend || seg.kind == segmentWildcard {
			definite = false
		}
		matches = step(matches, seg)
		if len(matches) == 0 {
			return nil
		}
	}

	if definite || len(matches) == 1 {
		return matches[0].Value()
	}
	values := make([]any, len(matches))
	for i, m := range matches {
		values[i] = m.Value()
	}
	return values
}

func step(in []gjson.Result, seg segment) []gjson.Result {
	var out []gjson.Result
	for _, r := range in {
		if seg.descend {
			for _, d := range descendants(r) {
				out = append(out, child(d, seg)...)
			}
			continue
		}
		out = append(out, child(r, seg)...)
	}
	return out
}

// child applies one non-recursive step to r
func child(r gjson.Result, seg segment) []gjson.Result {
	switch seg.kind {
	case segmentWildcard:
		if !r.IsArray() && !r.IsObject() {
			return nil
		}
		var out []gjson.Result
		r.ForEach(func(_, value gjson.Result) bool {
			out = append(out, value)
			return true
		})
		return out

	case segmentIndex:
		if !r.IsArray() {
			return nil
		}
		if v := r.Get(seg.name); v.Exists() {
			return []gjson.Result{v}
		}
		return nil

	default:
		if !r.IsObject() {
			return nil
		}
		if v := r.Get(escapeGJSON(seg.name)); v.Exists() {
			return []gjson.Result{v}
		}
		return nil
	}
}

// descendants returns r and everything below it in document order
func descendants(r gjson.Result) []gjson.Result {
	out := []gjson.Result{r}
	if r.IsArray() || r.IsObject() {
		r.ForEach(func(_, value gjson.Result) bool {
			out = append(out, descendants(value)...)
			return true
		})
	}
	return out
}

// parsePath splits a JSONPath expression into steps. It reports false for
// constructs it does not support, such as filters and slices.
func parsePath(expr string) ([]segment, bool) {
	expr = strings.TrimPrefix(expr, "$")
	var segments []segment
	for len(expr) > 0 {
		descend := false
		switch {
		case strings.HasPrefix(expr, ".."):
			descend = true
			expr = expr[2:]
			if strings.HasPrefix(expr, "[") {
				break
			}
			fallthrough

		case expr[0] == '.':
			if !descend {
				expr = expr[1:]
			}
			end := strings.IndexAny(expr, ".[")
			if end < 0 {
				end = len(expr)
			}
			name := expr[:end]
			expr = expr[end:]
			switch name {
			case "":
				return nil, false
			case "*":
				segments = append(segments, segment{kind: segmentWildcard, descend: descend})
			default:
				segments = append(segments, segment{kind: segmentName, name: name, descend: descend})
			}
			continue

		case expr[0] != '[':
			// bare leading name, e.g. "a.b"
			end := strings.IndexAny(expr, ".[")
			if end < 0 {
				end = len(expr)
			}
			segments = append(segments, segment{kind: segmentName, name: expr[:end]})
			expr = expr[end:]
			continue
		}

		// bracket step, possibly after ".."
		if len(expr) == 0 || expr[0] != '[' {
			return nil, false
		}
		end := strings.IndexByte(expr, ']')
		if end < 0 {
			return nil, false
		}
		inner := strings.TrimSpace(expr[1:end])
		expr = expr[end+1:]
		switch {
		case inner == "*":
			segments = append(segments, segment{kind: segmentWildcard, descend: descend})
		case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0]:
			segments = append(segments, segment{kind: segmentName, name: inner[1 : len(inner)-1], descend: descend})
		case isIndex(inner):
			segments = append(segments, segment{kind: segmentIndex, name: inner, descend: descend})
		default:
			return nil, false
		}
	}
	return segments, true
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func escapeGJSON(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
