package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	r := httptest.NewRequest(http.MethodPost, "/hello?q=1", strings.NewReader(`{"a":1}`))
	r.Header.Set("x-api-key", "secret")
	r.Header.Add("Accept", "text/plain")
	r.Header.Add("Accept", "application/json")
	// set directly, as an HTTP/2 transport would hand it over
	r.Header["x-lower"] = []string{"raw"}
	c.Request = r

	req, payload, err := parseRequest(c, &Endpoint{Path: "/hello"}, "application/json")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": json.Number("1")}, payload)

	assert.Equal(t, "secret", req.Headers["X-Api-Key"])
	assert.NotContains(t, req.Headers, "x-api-key")
	assert.Equal(t, "text/plain", req.Headers["Accept"], "first value wins")
	assert.Equal(t, "raw", req.Headers["x-lower"])
	assert.Equal(t, "1", req.Query["q"])
	assert.Equal(t, "/hello", req.Path)
}
