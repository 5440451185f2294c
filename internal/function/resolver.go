package function

import (
	"os"
	"path/filepath"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/pkg/errors"
	"go.uber.org/zap"
)

// Resolver finds the Handler for a function by its runtime
type Resolver struct {
	registry *Registry
	baseDir  string
	logger   *zap.Logger
}

// NewResolver creates a resolver. Process handlers are looked up relative
// to baseDir, normally the directory of the project file.
func NewResolver(registry *Registry, baseDir string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry: registry,
		baseDir:  baseDir,
		logger:   logger,
	}
}

// Resolve returns the handler named by identifier for runtime
func (r *Resolver) Resolve(runtime cnst.Runtime, identifier string) (Handler, error) {
	switch runtime {
	case cnst.RuntimeGo, "":
		return r.registry.Resolve(identifier)
	case cnst.RuntimeProcess:
		return r.resolveProcess(identifier)
	default:
		return nil, &LoadError{Handler: identifier, Err: errors.ErrUnsupportedRuntime(string(runtime))}
	}
}

// Invalidate clears cached modules before the next resolution
func (r *Resolver) Invalidate() {
	r.registry.Invalidate()
}

func (r *Resolver) resolveProcess(identifier string) (Handler, error) {
	path := identifier
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Handler: identifier, Err: cnst.ErrHandlerNotFound}
		}
		return nil, &LoadError{Handler: identifier, Err: err}
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return nil, &LoadError{Handler: identifier, Err: cnst.ErrHandlerNotCallable}
	}
	return NewProcessHandler(path, r.baseDir, identifier, r.logger), nil
}
