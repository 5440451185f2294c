package template

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"
)

// Util is the $util namespace. All methods are pure.
type Util struct{}

// EscapeJavaScript escapes s for embedding inside a quoted JavaScript string
func (Util) EscapeJavaScript(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '"', '\'', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\u2028':
			b.WriteString(`\u2028`)
		case '\u2029':
			b.WriteString(`\u2029`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// URLEncode percent-encodes s the way encodeURI does: URI structure
// characters are left alone.
func (Util) URLEncode(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnescaped(c) || strings.IndexByte(uriReserved, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// URLDecode reverses URLEncode. Escapes that decode to a URI structure
// character are kept verbatim, like decodeURI.
func (Util) URLDecode(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("URI malformed: %q", s)
		}
		v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", fmt.Errorf("URI malformed: %q", s)
		}
		if v < utf8.RuneSelf && strings.IndexByte(uriReserved, byte(v)) >= 0 {
			b.WriteString(s[i : i+3])
		} else {
			b.WriteByte(byte(v))
		}
		i += 2
	}
	out := b.String()
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("URI malformed: %q", s)
	}
	return out, nil
}

// Base64Encode encodes s with the standard alphabet
func (Util) Base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// Base64Decode decodes s, tolerating whitespace and missing padding
func (Util) Base64Decode(s string) (string, error) {
	s = strings.Join(strings.Fields(s), "")
	out, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return "", fmt.Errorf("invalid base64 input: %w", err)
	}
	return string(out), nil
}

const uriReserved = ";/?:@&=+$,#"

func isURIUnescaped(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// funcMap is sprig plus the few helpers templates need for dashed keys
func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["toJSON"] = toJSON
	fm["safeGet"] = safeGet
	fm["safeGetOr"] = safeGetOr
	fm[orEmptyFunc] = orEmpty
	return fm
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// safeGet returns the value at a dot-separated path from a nested structure,
// or nil when any step is missing.
//
// Struct fields match either the Go field name or the json tag name, so
// both of these work:
//
//	{{ safeGet "Context.Identity.SourceIP" . }}
//	{{ safeGet "context.identity.sourceIp" . }}
//
// Maps are indexed by string key, falling back to a case-insensitive match,
// and slices by numeric segment.
func safeGet(path string, data any) any {
	val := reflect.ValueOf(data)

	for _, p := range strings.Split(path, ".") {
		val = indirect(val)
		if !val.IsValid() {
			return nil
		}

		switch val.Kind() {
		case reflect.Struct:
			fv := structField(val, p)
			if !fv.IsValid() {
				return nil
			}
			val = fv

		case reflect.Map:
			if val.Type().Key().Kind() != reflect.String {
				return nil
			}
			mv := val.MapIndex(reflect.ValueOf(p).Convert(val.Type().Key()))
			if !mv.IsValid() {
				mv = mapKeyFold(val, p)
			}
			if !mv.IsValid() {
				return nil
			}
			val = mv

		case reflect.Slice, reflect.Array:
			idx, err := strconv.Atoi(p)
			if err != nil || idx < 0 || idx >= val.Len() {
				return nil
			}
			val = val.Index(idx)

		default:
			return nil
		}
	}

	val = indirect(val)
	if !val.IsValid() || !val.CanInterface() {
		return nil
	}
	return val.Interface()
}

// safeGetOr is like safeGet but returns def if the result is nil
func safeGetOr(path string, data any, def any) any {
	if v := safeGet(path, data); v != nil {
		return v
	}
	return def
}

func indirect(val reflect.Value) reflect.Value {
	for val.IsValid() && (val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface) {
		if val.IsNil() {
			return reflect.Value{}
		}
		val = val.Elem()
	}
	return val
}

// mapKeyFold looks a key up ignoring case, so json style paths also reach
// the template view of the context.
func mapKeyFold(m reflect.Value, name string) reflect.Value {
	iter := m.MapRange()
	for iter.Next() {
		if strings.EqualFold(iter.Key().String(), name) {
			return iter.Value()
		}
	}
	return reflect.Value{}
}

func structField(val reflect.Value, name string) reflect.Value {
	if fv := val.FieldByName(name); fv.IsValid() {
		return fv
	}
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if tag != "" && tag != "-" && tag == name {
			return val.Field(i)
		}
	}
	return reflect.Value{}
}
