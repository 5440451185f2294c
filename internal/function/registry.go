package function

import (
	"strings"
	"sync"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"go.uber.org/zap"
)

// Module maps export names to handlers. Values may be a Handler or a plain
// function with the HandlerFunc or AsyncFunc signature.
type Module map[string]any

// Loader produces a module's exports. It runs again after every
// invalidation, so each load observes fresh state.
type Loader func() (Module, error)

// Registry resolves handler identifiers against registered modules and
// caches loaded modules until the next invalidation.
type Registry struct {
	logger *zap.Logger

	mu      sync.Mutex
	loaders map[string]Loader
	deps    map[string]bool
	cache   map[string]Module
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger.Named("function.registry"),
		loaders: make(map[string]Loader),
		deps:    make(map[string]bool),
		cache:   make(map[string]Module),
	}
}

// Register adds a handler module under name
func (r *Registry) Register(name string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
	delete(r.cache, name)
}

// RegisterModule adds a module whose exports never change
func (r *Registry) RegisterModule(name string, exports Module) {
	r.Register(name, func() (Module, error) { return exports, nil })
}

// RegisterDependency adds a shared module that survives invalidation
func (r *Registry) RegisterDependency(name string, loader Loader) {
	r.Register(name, loader)
	r.mu.Lock()
	r.deps[name] = true
	r.mu.Unlock()
}

// Invalidate drops every cached module that is not a dependency
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name := range r.cache {
		if !r.deps[name] {
			delete(r.cache, name)
		}
	}
}

// Load returns the exports of a module, loading it on first use
func (r *Registry) Load(name string) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.cache[name]; ok {
		return m, nil
	}
	loader, ok := r.loaders[name]
	if !ok {
		return nil, cnst.ErrHandlerNotFound
	}
	m, err := loader()
	if err != nil {
		return nil, err
	}
	r.cache[name] = m
	r.logger.Debug("module loaded", zap.String("module", name), zap.Int("exports", len(m)))
	return m, nil
}

// Resolve turns a "path/module.export" identifier into a Handler
func (r *Registry) Resolve(identifier string) (Handler, error) {
	module, export := ParseIdentifier(identifier)
	m, err := r.Load(module)
	if err != nil {
		return nil, &LoadError{Handler: identifier, Err: err}
	}
	h, ok := asHandler(m[export])
	if !ok {
		return nil, &LoadError{Handler: identifier, Err: cnst.ErrHandlerNotCallable}
	}
	return h, nil
}

// ParseIdentifier splits a handler identifier into module and export. Only
// the last path segment matters: "src/users.get" names export "get" of
// module "users".
func ParseIdentifier(identifier string) (module, export string) {
	last := identifier[strings.LastIndex(identifier, "/")+1:]
	parts := strings.Split(last, ".")
	if len(parts) > 1 {
		export = parts[1]
	}
	return parts[0], export
}
