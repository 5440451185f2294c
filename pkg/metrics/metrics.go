package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation outcomes used as the "outcome" label.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeTimeout     = "timeout"
	OutcomeLoadError   = "load_error"
	OutcomeRenderError = "render_error"
	OutcomePanic       = "panic"
)

const unmatchedRoute = "unmatched"

type Metrics struct {
	registry    *prometheus.Registry
	namespace   string
	httpReqCnt  *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	httpInfl    *prometheus.GaugeVec
	invokeCnt   *prometheus.CounterVec
	invokeDur   *prometheus.HistogramVec
	invokeInfl  *prometheus.GaugeVec
	renderErrs  *prometheus.CounterVec
	reloadCnt   *prometheus.CounterVec
	lateResults *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	invokeCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "function_invocations_total"}, []string{"function", "outcome"})
	invokeDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "function_invocation_duration_seconds", Buckets: cfg.Buckets}, []string{"function", "outcome"})
	invokeInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "function_invocations_inflight"}, []string{"function"})
	r.MustRegister(invokeCnt, invokeDur, invokeInfl)

	renderErrs := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "template_render_errors_total"}, []string{"function", "phase"})
	reloadCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "project_reloads_total"}, []string{"status"})
	lateResults := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "function_late_results_total"}, []string{"function"})
	r.MustRegister(renderErrs, reloadCnt, lateResults)

	return &Metrics{
		registry:    r,
		namespace:   ns,
		httpReqCnt:  httpReqCnt,
		httpDur:     httpDur,
		httpInfl:    httpInfl,
		invokeCnt:   invokeCnt,
		invokeDur:   invokeDur,
		invokeInfl:  invokeInfl,
		renderErrs:  renderErrs,
		reloadCnt:   reloadCnt,
		lateResults: lateResults,
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) InvokeStart(function string) {
	m.invokeInfl.WithLabelValues(function).Inc()
}

func (m *Metrics) InvokeDone(function string, since time.Time, outcome string) {
	m.invokeCnt.WithLabelValues(function, outcome).Inc()
	m.invokeDur.WithLabelValues(function, outcome).Observe(time.Since(since).Seconds())
	m.invokeInfl.WithLabelValues(function).Dec()
}

// RenderError counts template failures; phase is "request" or "response".
func (m *Metrics) RenderError(function, phase string) {
	m.renderErrs.WithLabelValues(function, phase).Inc()
}

// LateResult counts completions that arrived after a response was sent.
func (m *Metrics) LateResult(function string) {
	m.lateResults.WithLabelValues(function).Inc()
}

func (m *Metrics) Reload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.reloadCnt.WithLabelValues(status).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string { return strconv.Itoa(code) }
