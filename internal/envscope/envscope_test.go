package envscope

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

func TestEnterReplacesPreviousScope(t *testing.T) {
	t.Setenv("ENVSCOPE_SHARED", "original")
	m := NewManager(zap.NewNop())

	first := m.Enter(map[string]string{"ENVSCOPE_A": "a", "ENVSCOPE_SHARED": "first"})
	assert.Equal(t, "a", os.Getenv("ENVSCOPE_A"))
	assert.Equal(t, "first", os.Getenv("ENVSCOPE_SHARED"))

	second := m.Enter(map[string]string{"ENVSCOPE_B": "b"})
	_, ok := lookup("ENVSCOPE_A")
	assert.False(t, ok, "variables of the previous scope are cleared")
	assert.Equal(t, "original", os.Getenv("ENVSCOPE_SHARED"))
	assert.Equal(t, "b", os.Getenv("ENVSCOPE_B"))

	// exiting a superseded lease leaves the current scope alone
	first.Exit()
	assert.Equal(t, "b", os.Getenv("ENVSCOPE_B"))

	second.Exit()
	_, ok = lookup("ENVSCOPE_B")
	assert.False(t, ok)
	assert.Equal(t, "original", os.Getenv("ENVSCOPE_SHARED"))

	// exit is idempotent
	second.Exit()
	assert.Equal(t, map[string]string{"ENVSCOPE_B": "b"}, second.Vars())
}

func TestReset(t *testing.T) {
	m := NewManager(nil)
	m.Enter(map[string]string{"ENVSCOPE_RESET": "x"})
	assert.Equal(t, "x", os.Getenv("ENVSCOPE_RESET"))

	m.Reset()
	_, ok := lookup("ENVSCOPE_RESET")
	assert.False(t, ok)

	// nothing to reset
	m.Reset()
}

func TestEnterEmpty(t *testing.T) {
	m := NewManager(nil)
	lease := m.Enter(nil)
	assert.Empty(t, lease.Vars())
	lease.Exit()
}

func TestFromAny(t *testing.T) {
	assert.Equal(t, map[string]string{"TABLE": "users", "PORT": "8080", "DEBUG": "true", "EMPTY": ""},
		FromAny(map[string]any{"TABLE": "users", "PORT": 8080, "DEBUG": true, "EMPTY": nil}))
	assert.Equal(t, map[string]string{"A": "1"}, FromAny(map[string]string{"A": "1"}))
	assert.Equal(t, map[string]string{}, FromAny([]any{"A=1"}))
	assert.Equal(t, map[string]string{}, FromAny("A=1"))
	assert.Equal(t, map[string]string{}, FromAny(nil))
}
