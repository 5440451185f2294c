package template

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestContext() *Context {
	return BuildContext(Request{
		Method:     "POST",
		Path:       "/users/{id}",
		RemoteAddr: "127.0.0.1",
		Params:     map[string]string{"id": "42"},
		Headers:    map[string]string{"User-Agent": "test"},
	}, &Options{Stage: "dev", StageVariables: map[string]string{"table": "users"}},
		map[string]any{"user": map[string]any{"id": 7, "name": "Ada"}})
}

func TestGenerateTemplateNameDeterministic(t *testing.T) {
	a := generateTemplateName("{{ .Input.Body }}")
	b := generateTemplateName("{{ .Input.Body }}")
	c := generateTemplateName("{{ .Util }}")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRenderLiteralRetyping(t *testing.T) {
	r := NewRenderer(zap.NewNop())
	out, err := r.Render(map[string]any{
		"a": "true",
		"b": map[string]any{"c": "null"},
		"d": "undefined",
		"e": 5,
	}, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": true,
		"b": map[string]any{"c": nil},
		"e": 5,
	}, out)
}

func TestRenderBareJSONStringMatchesMapping(t *testing.T) {
	r := NewRenderer(nil)
	ctx := newTestContext()

	fromString, err := r.Render(`{"x": "1"}`, ctx)
	require.NoError(t, err)
	fromMap, err := r.Render(map[string]any{"x": "1"}, ctx)
	require.NoError(t, err)
	assert.Equal(t, fromMap, fromString)
	assert.Equal(t, map[string]any{"x": json.Number("1")}, fromMap)
}

func TestRenderExpressions(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.Render(map[string]any{
		"id":       "{{ .Input.Params `id` }}",
		"userId":   `{{ .Input.Path "$.user.id" }}`,
		"user":     `{{ .Input.JSON "$.user" }}`,
		"name":     `{{ .Input.Path "$.user.name" | upper }}`,
		"method":   "{{ .Context.HTTPMethod }}",
		"stage":    "{{ .Context.Stage }}",
		"table":    "{{ .StageVariables.table }}",
		"missing":  "{{ .StageVariables.nope }}",
		"nothing":  "{{ .Input.Params `nope` }}",
		"encoded":  `{{ .Util.Base64Encode "hi" }}`,
		"sourceIp": `{{ safeGet "context.identity.sourceIp" . }}`,
		"html":     "<b>&</b>",
	}, newTestContext())
	require.NoError(t, err)

	assert.Equal(t, json.Number("42"), out["id"])
	assert.Equal(t, json.Number("7"), out["userId"])
	assert.Equal(t, map[string]any{"id": json.Number("7"), "name": "Ada"}, out["user"])
	assert.Equal(t, "ADA", out["name"])
	assert.Equal(t, "POST", out["method"])
	assert.Equal(t, "dev", out["stage"])
	assert.Equal(t, "users", out["table"])
	assert.Equal(t, "", out["missing"])
	assert.Equal(t, "", out["nothing"])
	assert.Equal(t, "aGk=", out["encoded"])
	assert.Equal(t, "127.0.0.1", out["sourceIp"])
	assert.Equal(t, "<b>&</b>", out["html"])
}

func TestRenderBareStringExpression(t *testing.T) {
	r := NewRenderer(nil)
	ctx := newTestContext()

	out, err := r.Render(`{{ .Input.JSON "$" }}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user": map[string]any{"id": json.Number("7"), "name": "Ada"},
	}, out)

	out, err = r.Render(`{"id": "{{ .Input.Params `+"`id`"+` }}"}`, ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": json.Number("42")}, out)

	out, err = r.Render("plain text", ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)

	out, err = r.Render("[1, 2]", ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)

	out, err = r.Render(nil, ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)
}

func TestRenderMalformedExpressionPropagates(t *testing.T) {
	r := NewRenderer(nil)
	ctx := newTestContext()

	_, err := r.Render(map[string]any{"a": "{{ .Input.Path "}, ctx)
	require.Error(t, err)
	var renderErr *RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "{{ .Input.Path ", renderErr.Template)

	_, err = r.Render(map[string]any{"a": map[string]any{"b": "{{ .Input.NoSuchMethod }}"}}, ctx)
	assert.True(t, errors.As(err, &renderErr))

	_, err = r.Render("{{ if }}", ctx)
	assert.Error(t, err)
}

func TestRenderMissingReferencesAreEmpty(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.Render(map[string]any{
		"top":      "{{ .Nope }}",
		"nested":   "{{ .Context.Identity.Nope }}",
		"deep":     "{{ .Context.Nope.Deeper }}",
		"inline":   "id={{ .Context.Authorizer.Claims }};",
		"inRange":  "{{ range $k, $v := .Input.Params }}{{ $v.nope }}{{ end }}",
		"withElse": "{{ with .StageVariables.nope }}{{ . }}{{ else }}{{ .Nope }}{{ end }}",
	}, newTestContext())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"top":      "",
		"nested":   "",
		"deep":     "",
		"inline":   "id=;",
		"inRange":  "",
		"withElse": "",
	}, out)
}

func TestRenderKeepsNoValueText(t *testing.T) {
	r := NewRenderer(nil)
	ctx := BuildContext(Request{}, &Options{StageVariables: map[string]string{"note": "<no value>"}}, nil)
	out, err := r.RenderString("{{ .StageVariables.note }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "<no value>", out)
}

func TestRendererCachesTemplates(t *testing.T) {
	r := NewRenderer(nil)
	ctx := newTestContext()
	for i := 0; i < 3; i++ {
		_, err := r.RenderString("{{ .Context.Stage }}", ctx)
		require.NoError(t, err)
	}
	assert.Len(t, r.templates, 1)
}
