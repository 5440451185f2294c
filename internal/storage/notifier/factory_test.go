package notifier

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/daffinity/serverless-offline/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewNotifier_UnknownType(t *testing.T) {
	_, err := NewNotifier(context.Background(), zap.NewNop(), &config.NotifierConfig{Type: "unknown"})
	assert.Error(t, err)
}

func TestNewNotifier_Types(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)

	n, err := NewNotifier(ctx, zap.NewNop(), &config.NotifierConfig{Type: "none"})
	require.NoError(t, err)
	assert.IsType(t, NoopNotifier{}, n)
	assert.False(t, n.CanReceive())
	assert.Error(t, n.NotifyUpdate(ctx, nil))

	n, err = NewNotifier(ctx, zap.NewNop(), &config.NotifierConfig{Type: "signal", Signal: config.SignalConfig{PID: "offline.pid"}})
	require.NoError(t, err)
	assert.IsType(t, &SignalNotifier{}, n)
	assert.True(t, n.CanReceive())

	n, err = NewNotifier(ctx, zap.NewNop(), &config.NotifierConfig{
		Type:  "redis",
		Role:  string(config.RoleSender),
		Redis: config.RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisNotifier{}, n)
	assert.False(t, n.CanReceive())

	n, err = NewNotifier(ctx, zap.NewNop(), &config.NotifierConfig{
		Type:   "composite",
		Role:   string(config.RoleSender),
		Signal: config.SignalConfig{PID: "offline.pid"},
		Redis:  config.RedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	comp, ok := n.(*CompositeNotifier)
	require.True(t, ok)
	assert.Len(t, comp.notifiers, 2)
}
