package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/function"
	"github.com/daffinity/serverless-offline/internal/template"
	"github.com/daffinity/serverless-offline/pkg/metrics"
	"github.com/daffinity/serverless-offline/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// completion is what the handler hands back through its invocation context
type completion struct {
	err    error
	result any
}

// handleEndpoint returns the gin handler serving ep
func (s *Server) handleEndpoint(ep *Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		fn := ep.Name()
		if ep.called.CompareAndSwap(false, true) {
			s.logger.Info("first call, handler will be loaded", zap.String("function", fn))
		}

		requestID := uuid.NewString()
		contentType := requestContentType(c)
		req, payload, err := parseRequest(c, ep, contentType)
		if err != nil {
			s.logger.Warn("failed to parse request body",
				zap.String("function", fn),
				zap.String("content_type", contentType),
				zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{
				"statusCode": http.StatusBadRequest,
				"error":      "Bad Request",
				"message":    errInvalidJSON,
			})
			return
		}

		// the lease stays held after the reply, handlers may still read the
		// environment from background work; the next Enter or Shutdown releases it
		lease := s.envs.Enter(ep.Env)
		if !s.cfg.SkipCacheInvalidation {
			s.resolver.Invalidate()
		}

		scope := trace.Tracer(cnst.TraceCore).Start(c.Request.Context(), cnst.SpanInvoke)
		scope.WithAttrs(
			attribute.String(cnst.AttrFunctionName, fn),
			attribute.String(cnst.AttrContentType, contentType),
			attribute.String(cnst.AttrClientAddr, req.RemoteAddr),
			attribute.Int(cnst.AttrEnvCount, len(lease.Vars())),
		)
		defer scope.End()

		start := time.Now()
		s.metrics.InvokeStart(fn)
		reply, outcome := s.invoke(scope.Ctx, ep, req, payload, contentType, requestID)
		s.metrics.InvokeDone(fn, start, outcome)

		scope.WithAttrs(
			attribute.String(cnst.AttrOutcome, outcome),
			attribute.Int(cnst.AttrHTTPStatusCode, reply.StatusCode),
		)
		s.send(c, reply)
	}
}

// invoke runs the request through the handler and returns exactly one reply
// together with the outcome label it was produced by.
func (s *Server) invoke(ctx context.Context, ep *Endpoint, req template.Request, payload any, contentType, requestID string) (Reply, string) {
	fn := ep.Name()

	handler, err := s.resolver.Resolve(ep.Function.Runtime, ep.Function.Handler)
	if err != nil {
		return s.failureReply(fmt.Sprintf("Error while loading %s", fn), err), metrics.OutcomeLoadError
	}

	event, err := s.buildEvent(ctx, ep, req, payload, contentType, requestID)
	if err != nil {
		s.metrics.RenderError(fn, "request")
		return s.failureReply(fmt.Sprintf("Error while parsing template %q for %s", contentType, fn), err), metrics.OutcomeRenderError
	}

	// The timer and the completion callback race to claim the reply. The
	// loser is discarded.
	var claimed atomic.Bool
	done := make(chan completion, 1)
	lc := function.NewContext(fn, requestID, ep.Timeout, func(err error, result any) {
		if !claimed.CompareAndSwap(false, true) {
			s.metrics.LateResult(fn)
			s.logger.Debug("discarding late handler result",
				zap.String("function", fn),
				zap.String("request_id", requestID))
			return
		}
		done <- completion{err: err, result: result}
	})

	timer := time.NewTimer(ep.Timeout)
	defer timer.Stop()

	s.logger.Debug("invoking handler",
		zap.String("function", fn),
		zap.String("request_id", requestID),
		zap.Duration("timeout", ep.Timeout))
	if perr := callHandler(context.WithoutCancel(ctx), handler, event, lc); perr != nil {
		if claimed.CompareAndSwap(false, true) {
			return s.failureReply("Uncaught error in your handler", perr), metrics.OutcomePanic
		}
		s.logger.Warn("handler panicked after completing",
			zap.String("function", fn), zap.Error(perr))
	}

	select {
	case res := <-done:
		return s.complete(ctx, ep, req, requestID, res)
	case <-timer.C:
		if claimed.CompareAndSwap(false, true) {
			return s.timeoutReply(&TimeoutError{Function: fn, Timeout: ep.Timeout}), metrics.OutcomeTimeout
		}
		// completion won the claim while the timer fired
		return s.complete(ctx, ep, req, requestID, <-done)
	}
}

// buildEvent renders the request template registered for contentType. An
// endpoint without one receives an empty event.
func (s *Server) buildEvent(ctx context.Context, ep *Endpoint, req template.Request, payload any, contentType, requestID string) (function.Event, error) {
	tmpl, ok := ep.Config.RequestTemplates[contentType]
	if !ok {
		s.logger.Warn(fmt.Sprintf("no template found for '%s' content-type.", contentType),
			zap.String("function", ep.Name()))
		return function.Event{"isOffline": true}, nil
	}

	scope := trace.Tracer(cnst.TraceCore).Start(ctx, cnst.SpanRequestTemplate)
	defer scope.End()

	opts := ep.Options
	opts.RequestID = requestID
	event, err := s.renderer.Render(tmpl, template.BuildContext(req, &opts, payload))
	if err != nil {
		scope.RecordError(err)
		return nil, err
	}
	event["isOffline"] = true

	if capture := s.cfg.Tracing.Capture.Event; capture.Enabled {
		if data, err := json.Marshal(event); err == nil {
			scope.WithAttrs(attribute.String("offline.event", trace.Truncate(string(data), capture.MaxBodyLength)))
		}
	}
	return event, nil
}

func (s *Server) complete(ctx context.Context, ep *Endpoint, req template.Request, requestID string, res completion) (Reply, string) {
	outcome := metrics.OutcomeSuccess
	if res.err != nil {
		outcome = metrics.OutcomeFailure
	}

	scope := trace.Tracer(cnst.TraceCore).Start(ctx, cnst.SpanResponseTemplate)
	defer scope.End()
	name, _ := selectResponse(ep, res.err)
	scope.WithAttrs(attribute.String(cnst.AttrResponseName, name))
	if res.err != nil {
		scope.WithAttrs(attribute.String(cnst.AttrErrorReason, function.ErrorType(res.err)))
		scope.RecordError(res.err)
	}

	reply := s.buildReply(ep, req, requestID, res.err, res.result)
	if capture := s.cfg.Tracing.Capture.Result; capture.Enabled {
		if data, err := json.Marshal(reply.Body); err == nil {
			scope.WithAttrs(attribute.String("offline.result", trace.Truncate(string(data), capture.MaxBodyLength)))
		}
	}
	return reply, outcome
}

// callHandler invokes h and turns a panic raised on the calling goroutine
// into an error.
func callHandler(ctx context.Context, h function.Handler, event function.Event, lc *function.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &function.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	h.Invoke(ctx, event, lc)
	return nil
}
