package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocationMetrics(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "offline"})

	m.InvokeStart("getUser")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invokeInfl.WithLabelValues("getUser")))

	m.InvokeDone("getUser", time.Now().Add(-time.Millisecond), OutcomeTimeout)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.invokeInfl.WithLabelValues("getUser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invokeCnt.WithLabelValues("getUser", OutcomeTimeout)))

	m.RenderError("getUser", "response")
	m.LateResult("getUser")
	m.Reload(nil)
	m.Reload(errors.New("bad yaml"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderErrs.WithLabelValues("getUser", "response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lateResults.WithLabelValues("getUser")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloadCnt.WithLabelValues("error")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "offline"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/users/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/users/7", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", "/users/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpReqCnt.WithLabelValues("GET", unmatchedRoute, "404")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), "offline_http_requests_total")
}
