// Package envscope scopes process environment variables to one request.
//
// The environment is process wide, so a Manager keeps track of the keys it
// injected. Entering a new scope first restores whatever those keys held
// before injection, then applies the new mapping. Exiting a scope restores
// the pre-injection values unless a newer scope has already taken over.
package envscope

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type saved struct {
	value string
	set   bool
}

// Manager owns the injected part of the process environment
type Manager struct {
	logger *zap.Logger

	mu      sync.Mutex
	current *Lease
}

// Lease is one applied environment mapping
type Lease struct {
	manager  *Manager
	vars     map[string]string
	previous map[string]saved
	exited   bool
}

// NewManager creates a manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger.Named("envscope")}
}

// Enter clears the previously injected variables and injects vars
func (m *Manager) Enter(vars map[string]string) *Lease {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.restore()
	}

	lease := &Lease{
		manager:  m,
		vars:     vars,
		previous: make(map[string]saved, len(vars)),
	}
	for _, key := range sortedKeys(vars) {
		value, ok := os.LookupEnv(key)
		lease.previous[key] = saved{value: value, set: ok}
		if err := os.Setenv(key, vars[key]); err != nil {
			m.logger.Warn("failed to set environment variable", zap.String("key", key), zap.Error(err))
		}
	}
	m.current = lease
	m.logger.Debug("environment injected", zap.Strings("keys", sortedKeys(vars)))
	return lease
}

// Exit restores the environment if this lease is still the current one
func (l *Lease) Exit() {
	m := l.manager
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.exited {
		return
	}
	if m.current == l {
		l.restore()
		m.current = nil
	}
	l.exited = true
}

// Reset restores the environment held before the current lease
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.restore()
		m.current = nil
	}
}

// Vars returns the mapping the lease applied
func (l *Lease) Vars() map[string]string {
	return l.vars
}

// restore puts back the values the lease overwrote. Caller holds the lock.
func (l *Lease) restore() {
	if l.exited {
		return
	}
	for key, prev := range l.previous {
		if prev.set {
			_ = os.Setenv(key, prev.value)
		} else {
			_ = os.Unsetenv(key)
		}
	}
	l.exited = true
}

// FromAny converts a declared environment into variables. Only plain
// mappings are honoured; anything else yields an empty mapping.
func FromAny(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]any:
		for k, val := range m {
			out[k] = stringify(val)
		}
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
