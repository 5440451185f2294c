package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/function"
	"github.com/daffinity/serverless-offline/internal/template"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type (
	// Reply is the final HTTP response of one request
	Reply struct {
		StatusCode  int
		ContentType string
		Headers     []Header
		Body        any
	}

	Header struct {
		Name  string
		Value string
	}
)

// selectResponse picks the response variant for an outcome. Success always
// uses the default variant; a failure uses the first variant whose pattern
// matches the start of the error message.
func selectResponse(ep *Endpoint, err error) (string, config.ResponseConfig) {
	if err != nil {
		msg := err.Error()
		for _, sel := range ep.selectors {
			if sel.pattern.MatchString(msg) {
				resp, _ := ep.Config.Responses.Get(sel.name)
				return sel.name, resp
			}
		}
	}
	resp, _ := ep.Config.Responses.Get(cnst.DefaultResponseName)
	return cnst.DefaultResponseName, resp
}

// failureEnvelope is the body returned for a handler failure
func failureEnvelope(err error) map[string]any {
	var stack any
	if st := function.StackTrace(err); st != nil {
		stack = st
	}
	return map[string]any{
		"errorMessage": err.Error(),
		"errorType":    function.ErrorType(err),
		"stackTrace":   stack,
	}
}

// rewriteHeaders maps responseParameters onto response headers. Only
// method.response.header.<name> keys are honoured.
func (s *Server) rewriteHeaders(fn string, params config.OrderedMap[string], body any) []Header {
	var headers []Header
	for _, key := range params.Keys() {
		value, _ := params.Get(key)
		keyParts := strings.Split(key, ".")
		if len(keyParts) < 4 || keyParts[0] != "method" || keyParts[1] != "response" || keyParts[2] != "header" || keyParts[3] == "" {
			s.logger.Warn("unsupported response parameter, only method.response.header.<name> is supported",
				zap.String("function", fn), zap.String("key", key))
			continue
		}
		name := strings.Join(keyParts[3:], ".")

		if !strings.HasPrefix(value, "integration.response") {
			// literals are assigned verbatim, quotes included
			headers = append(headers, Header{Name: name, Value: value})
			continue
		}

		valueParts := strings.Split(value, ".")
		if len(valueParts) < 3 || valueParts[2] != "body" {
			s.logger.Warn("unsupported response parameter value, only integration.response.body is supported",
				zap.String("function", fn), zap.String("key", key), zap.String("value", value))
			continue
		}

		extracted := body
		if rest := valueParts[3:]; len(rest) > 0 {
			extracted = template.Query(body, "$."+strings.Join(rest, "."))
			if extracted == nil {
				s.logger.Warn("response parameter matched nothing in the result",
					zap.String("function", fn), zap.String("key", key), zap.String("value", value))
				continue
			}
		}
		data, err := json.Marshal(extracted)
		if err != nil {
			s.logger.Warn("failed to serialize response parameter",
				zap.String("function", fn), zap.String("key", key), zap.Error(err))
			continue
		}
		headers = append(headers, Header{Name: name, Value: string(data)})
	}
	return headers
}

// renderResponseTemplate applies the first declared response template. A
// render failure is logged and the body is returned unchanged.
func (s *Server) renderResponseTemplate(ep *Endpoint, resp config.ResponseConfig, req template.Request, requestID string, body any) (string, any) {
	contentType, tmpl, ok := resp.ResponseTemplates.First()
	if !ok {
		return cnst.DefaultContentType, body
	}
	if str, isStr := tmpl.(string); tmpl == nil || (isStr && str == "") {
		return contentType, body
	}

	opts := ep.Options
	opts.RequestID = requestID
	ctx := template.BuildContext(req, &opts, body)
	out, err := s.renderer.Render(map[string]any{"root": tmpl}, ctx)
	if err != nil {
		s.metrics.RenderError(ep.Name(), "response")
		s.logger.Error("error while parsing response template",
			zap.String("function", ep.Name()),
			zap.String("content_type", contentType),
			zap.Error(err))
		return contentType, body
	}
	return contentType, out["root"]
}

// buildReply turns a handler outcome into the reply for ep
func (s *Server) buildReply(ep *Endpoint, req template.Request, requestID string, err error, result any) Reply {
	body := result
	if err != nil {
		body = failureEnvelope(err)
		s.logger.Info("failure", zap.String("function", ep.Name()), zap.String("message", err.Error()))
	}

	name, resp := selectResponse(ep, err)
	reply := Reply{Headers: s.rewriteHeaders(ep.Name(), resp.ResponseParameters, body)}
	reply.ContentType, reply.Body = s.renderResponseTemplate(ep, resp, req, requestID, body)

	reply.StatusCode = resp.StatusCode
	if reply.StatusCode == 0 {
		s.logger.Warn("no statusCode found for response, using 200",
			zap.String("function", ep.Name()), zap.String("response", name))
		reply.StatusCode = http.StatusOK
	}

	if err != nil {
		s.logger.Info(fmt.Sprintf("Replying %d", reply.StatusCode), zap.String("request_id", requestID))
	} else {
		data, _ := json.Marshal(reply.Body)
		s.logger.Info(fmt.Sprintf("[%d] %s", reply.StatusCode, data), zap.String("request_id", requestID))
	}
	return reply
}

// failureReply reports an error raised before or around the handler. The
// status stays 200 as the platform does for logical failures.
func (s *Server) failureReply(message string, err error) Reply {
	env := failureEnvelope(err)
	env["errorMessage"] = message
	env["offlineInfo"] = offlineInfo
	s.logger.Error(message, zap.Error(err), zap.Strings("stack", function.StackTrace(err)))
	return Reply{
		StatusCode:  http.StatusOK,
		ContentType: cnst.DefaultContentType,
		Body:        env,
	}
}

func (s *Server) timeoutReply(err *TimeoutError) Reply {
	s.logger.Warn("replying timeout", zap.String("function", err.Function), zap.Int64("timeout_ms", err.Timeout.Milliseconds()))
	return Reply{
		StatusCode:  http.StatusServiceUnavailable,
		ContentType: "text/plain; charset=utf-8",
		Body:        err.Error(),
	}
}

// writeReply sends r. Strings are written verbatim and everything else is
// serialized as JSON.
func writeReply(c *gin.Context, r Reply) {
	for _, h := range r.Headers {
		c.Header(h.Name, h.Value)
	}

	var data []byte
	switch b := r.Body.(type) {
	case nil:
	case string:
		data = []byte(b)
	case []byte:
		data = b
	default:
		var err error
		if data, err = json.Marshal(b); err != nil {
			c.String(http.StatusInternalServerError, "failed to serialize response: %v", err)
			return
		}
	}
	c.Data(r.StatusCode, r.ContentType, data)
}
