package core

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/template"

	"github.com/gin-gonic/gin"
)

// errInvalidJSON is reported to callers sending a malformed JSON body
const errInvalidJSON = "Invalid request payload JSON format"

// requestContentType returns the media type of the request, defaulting to
// JSON when the caller did not declare one.
func requestContentType(c *gin.Context) string {
	header := c.GetHeader("Content-Type")
	if header == "" {
		return cnst.DefaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(header, ";")[0]))
	}
	return mediaType
}

// parseRequest extracts the template view of the request and decodes its
// body according to contentType.
func parseRequest(c *gin.Context, ep *Endpoint, contentType string) (template.Request, any, error) {
	req := template.Request{
		Method:     c.Request.Method,
		Path:       ep.Path,
		RemoteAddr: c.RemoteIP(),
		Headers:    make(map[string]string, len(c.Request.Header)),
		Query:      make(map[string]string),
		Params:     make(map[string]string, len(c.Params)),
	}
	// net/http canonicalizes header names while parsing (x-api-key arrives as
	// X-Api-Key), so the received spelling is not recoverable. Keys are kept
	// as the server holds them and lookups through the template fold case.
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			req.Headers[name] = values[0]
		}
	}
	for name, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			req.Query[name] = values[0]
		}
	}
	for _, p := range c.Params {
		req.Params[p.Key] = strings.TrimPrefix(p.Value, "/")
	}

	payload, err := parseBody(c.Request.Body, contentType)
	return req, payload, err
}

func parseBody(body io.Reader, contentType string) (any, error) {
	if body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	switch {
	case contentType == "application/json" || strings.HasSuffix(contentType, "+json"):
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case contentType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, err
		}
		form := make(map[string]any, len(values))
		for k, v := range values {
			if len(v) > 0 {
				form[k] = v[0]
			}
		}
		return form, nil
	default:
		return string(data), nil
	}
}
