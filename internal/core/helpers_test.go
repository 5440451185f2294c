package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/function"
	"github.com/daffinity/serverless-offline/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*Server
	store *storage.MemoryStore
	sends atomic.Int32
}

func parseProject(t *testing.T, yaml string) *config.ProjectConfig {
	t.Helper()
	project, err := config.ParseProject([]byte(yaml), false)
	require.NoError(t, err)
	return project
}

// newTestServer builds a server for project whose "hello" module exports
// the given handlers.
func newTestServer(t *testing.T, yaml string, exports function.Module) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := function.NewRegistry(zap.NewNop())
	registry.RegisterModule("hello", exports)

	store := storage.NewMemoryStore(parseProject(t, yaml))
	cfg := config.DefaultConfig()
	ts := &testServer{store: store}
	ts.Server = NewServer(zap.NewNop(), cfg, store, function.NewResolver(registry, t.TempDir(), zap.NewNop()))
	ts.send = func(c *gin.Context, r Reply) {
		ts.sends.Add(1)
		writeReply(c, r)
	}
	require.NoError(t, ts.RegisterRoutes(context.Background()))
	t.Cleanup(ts.envs.Reset)
	return ts
}

func (ts *testServer) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func (ts *testServer) endpoint(t *testing.T, method, path string) *Endpoint {
	t.Helper()
	for _, ep := range ts.Endpoints() {
		if ep.Method == method && ep.Path == path {
			return ep
		}
	}
	t.Fatalf("endpoint %s %s not found", method, path)
	return nil
}

func echo(_ context.Context, event function.Event) (any, error) {
	return event, nil
}

var _ http.Handler = (*Server)(nil)
