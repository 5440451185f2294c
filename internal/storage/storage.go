package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/daffinity/serverless-offline/internal/common/config"
)

// Store defines the interface for loading the project being emulated
type Store interface {
	// Load returns the current project definition
	Load(ctx context.Context) (*config.ProjectConfig, error)
}

// MemoryStore holds a project in memory. It backs tests and embedders that
// build the project programmatically.
type MemoryStore struct {
	mu      sync.RWMutex
	project *config.ProjectConfig
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store serving project
func NewMemoryStore(project *config.ProjectConfig) *MemoryStore {
	return &MemoryStore{project: project}
}

// Load validates and returns the stored project
func (s *MemoryStore) Load(_ context.Context) (*config.ProjectConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.project == nil {
		return nil, errors.New("no project loaded")
	}
	if err := config.ValidateProject(s.project); err != nil {
		return nil, err
	}
	return s.project, nil
}

// Set replaces the stored project. Callers reload the server afterwards.
func (s *MemoryStore) Set(project *config.ProjectConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = project
}
