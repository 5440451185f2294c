package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/internal/envscope"
	"github.com/daffinity/serverless-offline/internal/function"
	"github.com/daffinity/serverless-offline/internal/storage"
	"github.com/daffinity/serverless-offline/internal/template"
	"github.com/daffinity/serverless-offline/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type (
	// Server emulates an API gateway in front of the project functions
	Server struct {
		logger   *zap.Logger
		cfg      *config.OfflineConfig
		store    storage.Store
		resolver *function.Resolver
		envs     *envscope.Manager
		renderer *template.Renderer
		metrics  *metrics.Metrics
		// state contains the routes of the last successful load
		state      atomic.Pointer[State]
		httpServer *http.Server
		// send writes the final reply of a request
		send func(c *gin.Context, r Reply)
	}
)

// NewServer creates a new gateway server
func NewServer(logger *zap.Logger, cfg *config.OfflineConfig, store storage.Store, resolver *function.Resolver) *Server {
	return &Server{
		logger:   logger,
		cfg:      cfg,
		store:    store,
		resolver: resolver,
		envs:     envscope.NewManager(logger),
		renderer: template.NewRenderer(logger),
		metrics:  metrics.New(cfg.Metrics),
		send:     writeReply,
	}
}

// RegisterRoutes loads the project and builds its routes
func (s *Server) RegisterRoutes(ctx context.Context) error {
	st, err := s.loadState(ctx)
	if err != nil {
		s.logger.Error("invalid project during route registration", zap.Error(err))
		return fmt.Errorf("invalid project: %w", err)
	}
	s.state.Store(st)
	return nil
}

// ReloadConfigs reloads the project and swaps the routes. The previous
// routes keep serving when the new project is invalid.
func (s *Server) ReloadConfigs(ctx context.Context) {
	s.logger.Info("reloading project")

	st, err := s.loadState(ctx)
	s.metrics.Reload(err)
	if err != nil {
		s.logger.Error("failed to reload project", zap.Error(err))
		return
	}
	s.state.Store(st)
	s.logger.Info("project reloaded", zap.Int("routes", len(st.endpoints)))
}

func (s *Server) loadState(ctx context.Context) (*State, error) {
	project, err := s.store.Load(ctx)
	if err != nil {
		var validationErrs config.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, ve := range validationErrs {
				s.logger.Error("project validation failed", zap.String("error", ve.Error()))
			}
		}
		return nil, err
	}
	return s.buildState(project)
}

// ServeHTTP dispatches to the router of the current state
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := s.state.Load()
	if st == nil {
		http.Error(w, "no project loaded", http.StatusServiceUnavailable)
		return
	}
	st.router.ServeHTTP(w, r)
}

// Endpoints returns the routes currently served
func (s *Server) Endpoints() []*Endpoint {
	st := s.state.Load()
	if st == nil {
		return nil
	}
	return st.Endpoints()
}

// Metrics exposes the server collectors
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Start starts listening in the background. HTTPS is used when
// cfg.HTTPSProtocol names a directory holding cert.pem and key.pem.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		var err error
		if dir := s.cfg.HTTPSProtocol; dir != "" {
			s.logger.Info("starting https server", zap.Int("port", s.cfg.Port), zap.String("certs", dir))
			err = s.httpServer.ListenAndServeTLS(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
		} else {
			s.logger.Info("starting http server", zap.Int("port", s.cfg.Port))
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to start server", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the server and restores the environment
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	defer s.envs.Reset()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
