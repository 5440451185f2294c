package storage

import (
	"context"
	"path/filepath"

	"github.com/daffinity/serverless-offline/internal/common/config"

	"go.uber.org/zap"
)

// DiskStore implements Store by reading the project file on every Load
type DiskStore struct {
	logger *zap.Logger
	path   string
	loader *config.Loader
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a store for the project file at path
func NewDiskStore(logger *zap.Logger, path string) (*DiskStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &DiskStore{
		logger: logger,
		path:   abs,
		loader: config.NewLoader(logger),
	}, nil
}

// Path returns the absolute path of the project file
func (s *DiskStore) Path() string {
	return s.path
}

// Dir returns the directory handler paths are resolved against
func (s *DiskStore) Dir() string {
	return filepath.Dir(s.path)
}

// Load reads, parses and validates the project file
func (s *DiskStore) Load(ctx context.Context) (*config.ProjectConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("loading project from disk", zap.String("path", s.path))
	return s.loader.LoadFromFile(s.path)
}
