package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const projectYAML = `
name: demo
stages:
  dev:
    vars:
      tableName: users-dev
    regions:
      eu-west-1: {}
      us-east-1: {}
  prod:
    vars:
      tableName: users
functions:
  - name: users-create
    runtime: go
    handler: users/handler.create
    timeout: 2
    environment:
      TABLE: ${X_TABLE:users}
    endpoints:
      - path: users/{id}
        method: post
        requestTemplates:
          application/json:
            id: "{{ .Input.Params \"id\" }}"
        responses:
          "NotFound.*":
            selectionPattern: "NotFound.*"
            statusCode: 404
          default:
            statusCode: 201
            responseParameters:
              method.response.header.Location: integration.response.body.location
            responseTemplates:
              application/json: "{{ .Input.JSON \"$\" }}"
              text/plain: ""
`

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serverless.yaml")
	require.NoError(t, os.WriteFile(path, []byte(projectYAML), 0o644))

	cfg, err := NewLoader(zap.NewNop()).LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.DefaultStage())
	stage, _ := cfg.Stages.Get("dev")
	assert.Equal(t, "users-dev", stage.Vars["tableName"])
	assert.Equal(t, "eu-west-1", stage.DefaultRegion())

	require.Len(t, cfg.Functions, 1)
	fn := cfg.Functions[0]
	assert.Equal(t, cnst.RuntimeGo, fn.Runtime)
	assert.Equal(t, 2*time.Second, fn.TimeoutDuration())
	assert.Equal(t, map[string]any{"TABLE": "users"}, fn.Environment)

	ep := fn.Endpoints[0]
	assert.Equal(t, []string{"NotFound.*", "default"}, ep.Responses.Keys())
	def, _ := ep.Responses.Get("default")
	assert.Equal(t, 201, def.StatusCode)
	name, _, _ := def.ResponseTemplates.First()
	assert.Equal(t, "application/json", name)
	loc, _ := def.ResponseParameters.Get("method.response.header.Location")
	assert.Equal(t, "integration.response.body.location", loc)
	assert.IsType(t, map[string]any{}, ep.RequestTemplates["application/json"])
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	data := `{"name":"j","stages":{"b":{},"a":{}},"functions":[{"name":"f","runtime":"process","handler":"bin/f.main",
"endpoints":[{"path":"/x","method":"GET","responses":{"Err":{"statusCode":500},"default":{"statusCode":200}}}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := NewLoader(zap.NewNop()).LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.DefaultStage())
	assert.Equal(t, []string{"Err", "default"}, cfg.Functions[0].Endpoints[0].Responses.Keys())
	assert.Equal(t, 6*time.Second, cfg.Functions[0].TimeoutDuration())
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := NewLoader(zap.NewNop()).LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidateProject(t *testing.T) {
	t.Run("no stage", func(t *testing.T) {
		err := ValidateProject(&ProjectConfig{})
		assert.ErrorIs(t, err, cnst.ErrNoStage)
	})

	t.Run("missing default response and duplicates", func(t *testing.T) {
		cfg, err := ParseProject([]byte(`
stages: {dev: {}}
functions:
  - name: a
    endpoints:
      - {path: /x, method: GET, responses: {Err: {statusCode: 500}}}
  - name: a
    endpoints:
      - {path: /x, method: get, responses: {default: {}}}
`), false)
		require.NoError(t, err)
		err = ValidateProject(cfg)
		assert.ErrorIs(t, err, cnst.ErrNoDefaultResponse)
		assert.ErrorIs(t, err, cnst.ErrDuplicateFunctionName)
		assert.ErrorIs(t, err, cnst.ErrDuplicateRoute)
		assert.Contains(t, err.Error(), "--> a GET /x")
	})

	t.Run("valid", func(t *testing.T) {
		cfg, err := ParseProject([]byte(projectYAML), false)
		require.NoError(t, err)
		assert.NoError(t, ValidateProject(cfg))
	})
}

func TestParseProjectDefaultsRuntime(t *testing.T) {
	cfg, err := ParseProject([]byte(`
stages:
  dev: {}
functions:
  - name: ping
    handler: ping.handler
`), false)
	require.NoError(t, err)
	assert.Equal(t, cnst.RuntimeGo, cfg.Functions[0].Runtime)
}
