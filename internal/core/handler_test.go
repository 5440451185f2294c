package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/function"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const responsesProject = `name: demo
stages:
  dev: {}
functions:
  - name: hello
    handler: hello.handle
    endpoints:
      - path: /hello
        method: get
        responses:
          default:
            statusCode: 200
            responseParameters:
              method.response.header.X: integration.response.body.y
              method.response.header.X-Literal: "'static'"
              method.response.header.X-Whole: integration.response.body
              method.request.header.Ignored: "'nope'"
          Error.*:
            selectionPattern: Error.*
            statusCode: 400
          NotFound:
            statusCode: 404
`

func decodeBody(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestHandleSuccessRewritesHeaders(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event, lc *function.Context) {
			lc.Succeed(map[string]any{"y": 42})
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Header().Get("X"))
	assert.Equal(t, "'static'", w.Header().Get("X-Literal"))
	assert.Equal(t, `{"y":42}`, w.Header().Get("X-Whole"))
	assert.Empty(t, w.Header().Get("Ignored"))
	assert.JSONEq(t, `{"y":42}`, w.Body.String())
	assert.EqualValues(t, 1, ts.sends.Load())
}

func TestRewriteHeadersLiteralIsVerbatim(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{"handle": echo})

	params := config.NewOrderedMap([]string{
		"method.response.header.X",
		"method.response.header.Plain",
	}, map[string]string{
		"method.response.header.X":     "'static'",
		"method.response.header.Plain": "no-cache",
	})
	assert.Equal(t, []Header{
		{Name: "X", Value: "'static'"},
		{Name: "Plain", Value: "no-cache"},
	}, ts.rewriteHeaders("hello", params, map[string]any{"y": 1}))
}

func TestHandleFailureSelectsResponse(t *testing.T) {
	tests := []struct {
		name    string
		message string
		status  int
	}{
		{name: "pattern matches at start", message: "Error: boom", status: http.StatusBadRequest},
		{name: "pattern must match at start", message: "Fatal Error: boom", status: http.StatusOK},
		{name: "name is the pattern", message: "NotFound: user 7", status: http.StatusNotFound},
		{name: "prefix match is enough", message: "NotFoundish", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, responsesProject, function.Module{
				"handle": func(_ context.Context, _ function.Event, lc *function.Context) {
					lc.Fail(errors.New(tt.message))
				},
			})

			w := ts.do(http.MethodGet, "/hello", "", "")
			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w.Body.Bytes())
			assert.Equal(t, tt.message, body["errorMessage"])
			assert.Equal(t, "Error", body["errorType"])
			assert.Contains(t, body, "stackTrace")
			assert.EqualValues(t, 1, ts.sends.Load())
		})
	}
}

func TestHandleAsyncFailure(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event) (any, error) {
			return nil, &function.InvocationError{Message: "Error: denied", Type: "AccessDenied"}
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w.Body.Bytes())
	assert.Equal(t, "Error: denied", body["errorMessage"])
	assert.Equal(t, "AccessDenied", body["errorType"])
}

func TestHandleTimeout(t *testing.T) {
	late := make(chan *function.Context, 1)
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event, lc *function.Context) {
			late <- lc
		},
	})
	ts.endpoint(t, http.MethodGet, "/hello").Timeout = 50 * time.Millisecond

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "hello")
	assert.Contains(t, w.Body.String(), "50ms")

	// a late completion changes nothing
	(<-late).Succeed(map[string]any{"y": 1})
	assert.EqualValues(t, 1, ts.sends.Load())
}

func TestHandleTimeoutRace(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event, lc *function.Context) {
			go func() {
				time.Sleep(time.Millisecond)
				lc.Succeed(map[string]any{"y": 1})
			}()
		},
	})
	ts.endpoint(t, http.MethodGet, "/hello").Timeout = time.Millisecond

	const requests = 50
	var wg sync.WaitGroup
	codes := make(chan int, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- ts.do(http.MethodGet, "/hello", "", "").Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, code)
	}
	assert.EqualValues(t, requests, ts.sends.Load())
}

func TestHandleLoadError(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w.Body.Bytes())
	assert.Equal(t, "Error while loading hello", body["errorMessage"])
	assert.Equal(t, offlineInfo, body["offlineInfo"])
	assert.EqualValues(t, 1, ts.sends.Load())
}

func TestHandleUncaughtPanic(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event, _ *function.Context) {
			panic("kaboom")
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w.Body.Bytes())
	assert.Equal(t, "Uncaught error in your handler", body["errorMessage"])
	assert.NotNil(t, body["stackTrace"])
	assert.EqualValues(t, 1, ts.sends.Load())
}

func TestHandleRequestTemplateError(t *testing.T) {
	ts := newTestServer(t, `name: demo
stages:
  dev: {}
functions:
  - name: hello
    handler: hello.handle
    endpoints:
      - path: /hello
        method: post
        requestTemplates:
          application/json:
            broken: '{{ .Input.Nope }}'
        responses:
          default:
            statusCode: 200
`, function.Module{"handle": echo})

	w := ts.do(http.MethodPost, "/hello", "application/json", `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w.Body.Bytes())
	assert.Equal(t, `Error while parsing template "application/json" for hello`, body["errorMessage"])
	assert.Equal(t, offlineInfo, body["offlineInfo"])
}

func TestHandleResponseTemplate(t *testing.T) {
	ts := newTestServer(t, `name: demo
stages:
  dev: {}
functions:
  - name: hello
    handler: hello.handle
    endpoints:
      - path: /hello
        method: get
        responses:
          default:
            responseTemplates:
              text/plain: '{{ .Input.Path "$.greeting" }}'
              application/json: '{{ .Input.JSON "$" }}'
`, function.Module{
		"handle": func(_ context.Context, _ function.Event) (any, error) {
			return map[string]any{"greeting": "hi there"}, nil
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	// no statusCode declared
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "hi there", w.Body.String())
}

func TestHandleResponseTemplateErrorKeepsResult(t *testing.T) {
	ts := newTestServer(t, `name: demo
stages:
  dev: {}
functions:
  - name: hello
    handler: hello.handle
    endpoints:
      - path: /hello
        method: get
        responses:
          default:
            statusCode: 200
            responseTemplates:
              application/json: '{{ .Input.Nope }}'
`, function.Module{
		"handle": func(_ context.Context, _ function.Event) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestHandleNilResult(t *testing.T) {
	ts := newTestServer(t, responsesProject, function.Module{
		"handle": func(_ context.Context, _ function.Event, lc *function.Context) {
			lc.Succeed(nil)
		},
	})

	w := ts.do(http.MethodGet, "/hello", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
