package core

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/envscope"
	"github.com/daffinity/serverless-offline/internal/template"
	"github.com/daffinity/serverless-offline/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type (
	// State is the read-only routing table built from one project load
	State struct {
		project   *config.ProjectConfig
		stage     string
		region    string
		endpoints []*Endpoint
		router    *gin.Engine
	}

	// Endpoint is one HTTP route bound to a function
	Endpoint struct {
		Function *config.FunctionConfig
		Config   *config.EndpointConfig
		Method   string
		// Path is the public path, e.g. /users/{id}
		Path string
		// Route is the gin pattern for Path, e.g. /users/:id
		Route   string
		Timeout time.Duration
		Env     map[string]string
		Options template.Options

		selectors []responseSelector
		called    atomic.Bool
	}

	responseSelector struct {
		name    string
		pattern *regexp.Regexp
	}
)

// Name returns the function the endpoint invokes
func (e *Endpoint) Name() string {
	return e.Function.Name
}

// Endpoints returns the routes of the state
func (st *State) Endpoints() []*Endpoint {
	return st.endpoints
}

// Stage returns the stage the state was built for
func (st *State) Stage() string {
	return st.stage
}

// buildState turns a project into endpoints and a router serving them
func (s *Server) buildState(project *config.ProjectConfig) (st *State, err error) {
	stage := utils.FirstNonEmpty(s.cfg.Stage, project.DefaultStage())
	stageCfg, ok := project.Stages.Get(stage)
	if !ok {
		s.logger.Warn("stage is not declared by the project, stage variables are empty",
			zap.String("stage", stage))
	}
	region := utils.FirstNonEmpty(s.cfg.Region, stageCfg.DefaultRegion())

	opts := template.Options{
		APIID:       project.Context.APIID,
		ResourceID:  project.Context.ResourceID,
		Stage:       stage,
		PrincipalID: project.Context.Authorizer.PrincipalID,
		Identity: template.IdentityOptions{
			AccountID:                     project.Context.Identity.AccountID,
			APIKey:                        project.Context.Identity.APIKey,
			Caller:                        project.Context.Identity.Caller,
			CognitoAuthenticationProvider: project.Context.Identity.CognitoAuthenticationProvider,
			CognitoAuthenticationType:     project.Context.Identity.CognitoAuthenticationType,
			User:                          project.Context.Identity.User,
			UserArn:                       project.Context.Identity.UserArn,
		},
		StageVariables: stageCfg.Vars,
	}

	st = &State{
		project: project,
		stage:   stage,
		region:  region,
	}

	for i := range project.Functions {
		fn := &project.Functions[i]
		if !fn.Runtime.Supported() {
			s.logger.Info("skipping function with unsupported runtime",
				zap.String("function", fn.Name),
				zap.String("runtime", string(fn.Runtime)))
			continue
		}
		s.logger.Info("routes for function", zap.String("function", fn.Name))

		for j := range fn.Endpoints {
			epCfg := &fn.Endpoints[j]
			path := gatewayPath(s.cfg.Prefix, epCfg.Path)
			ep := &Endpoint{
				Function:  fn,
				Config:    epCfg,
				Method:    strings.ToUpper(epCfg.Method),
				Path:      path,
				Route:     ginRoute(path),
				Timeout:   fn.TimeoutDuration(),
				Env:       envscope.FromAny(fn.Environment),
				Options:   opts,
				selectors: s.compileSelectors(fn.Name, epCfg),
			}
			st.endpoints = append(st.endpoints, ep)
			s.logger.Info("route", zap.String("method", ep.Method), zap.String("path", ep.Path))
		}
	}

	// gin panics on conflicting wildcards
	defer func() {
		if r := recover(); r != nil {
			st, err = nil, fmt.Errorf("failed to register routes: %v", r)
		}
	}()
	st.router = s.newRouter(st.endpoints)

	s.logger.Info("project loaded",
		zap.String("project", project.Name),
		zap.String("stage", stage),
		zap.String("region", region),
		zap.Int("routes", len(st.endpoints)))
	return st, nil
}

func (s *Server) newRouter(endpoints []*Endpoint) *gin.Engine {
	r := gin.New()
	r.Use(s.recoveryMiddleware())
	r.Use(s.loggerMiddleware())
	if s.cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(s.cfg.Tracing.ServiceName))
	}
	if s.cfg.Metrics.Enabled {
		r.Use(s.metrics.Middleware())
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
	r.Use(s.corsMiddleware(s.corsHeaders()))

	for _, ep := range endpoints {
		if ep.Method == "ANY" || ep.Method == "*" {
			r.Any(ep.Route, s.handleEndpoint(ep))
			continue
		}
		r.Handle(ep.Method, ep.Route, s.handleEndpoint(ep))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"statusCode": http.StatusNotFound,
			"error":      "Not Found",
		})
	})
	return r
}

// corsHeaders accepts list entries that are themselves comma separated,
// as they are when expanded from a single environment variable.
func (s *Server) corsHeaders() []string {
	var headers []string
	for _, h := range s.cfg.CORSHeaders {
		headers = append(headers, utils.SplitList(h)...)
	}
	if len(headers) == 0 {
		return cnst.DefaultCORSHeaders
	}
	return headers
}

// compileSelectors prepares the error variants in declaration order. A
// pattern only has to match at the start of the error message.
func (s *Server) compileSelectors(function string, ep *config.EndpointConfig) []responseSelector {
	var selectors []responseSelector
	for _, name := range ep.Responses.Keys() {
		if name == cnst.DefaultResponseName {
			continue
		}
		resp, _ := ep.Responses.Get(name)
		pattern := utils.FirstNonEmpty(resp.SelectionPattern, name)
		re, err := regexp.Compile("^" + pattern)
		if err != nil {
			s.logger.Warn("invalid selection pattern, response is never selected",
				zap.String("function", function),
				zap.String("response", name),
				zap.String("pattern", pattern),
				zap.Error(err))
			continue
		}
		selectors = append(selectors, responseSelector{name: name, pattern: re})
	}
	return selectors
}

// gatewayPath joins the prefix and an endpoint path. The result never ends
// with '/' unless it is the root.
func gatewayPath(prefix, path string) string {
	p := prefix + strings.TrimPrefix(path, "/")
	if p != "/" && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// ginRoute rewrites {param} segments as :param and {param+} as *param
func ginRoute(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := seg[1 : len(seg)-1]
		if strings.HasSuffix(name, "+") {
			segments[i] = "*" + strings.TrimSuffix(name, "+")
		} else {
			segments[i] = ":" + name
		}
	}
	return strings.Join(segments, "/")
}
