package notifier

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func redisConfig(addr string) config.RedisConfig {
	return config.RedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        addr,
		Topic:       "offline:reload:test",
	}
}

func TestRedisNotifier_CanSendReceiveByRole(t *testing.T) {
	nRecv := &RedisNotifier{role: config.RoleReceiver}
	assert.True(t, nRecv.CanReceive())
	assert.False(t, nRecv.CanSend())

	nSend := &RedisNotifier{role: config.RoleSender}
	assert.False(t, nSend.CanReceive())
	assert.True(t, nSend.CanSend())

	nBoth := &RedisNotifier{role: config.RoleBoth}
	assert.True(t, nBoth.CanReceive())
	assert.True(t, nBoth.CanSend())
}

func TestRedisNotifier_WatchAndNotify(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := zap.NewNop()

	recv, err := NewRedisNotifier(logger, redisConfig(mr.Addr()), config.RoleReceiver)
	require.NoError(t, err)
	defer recv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := recv.Watch(ctx)
	require.NoError(t, err)

	send, err := NewRedisNotifier(logger, redisConfig(mr.Addr()), config.RoleSender)
	require.NoError(t, err)
	defer send.Close()

	// give the reader time to issue its first XREAD from $
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, send.NotifyUpdate(context.Background(), &ReloadEvent{Project: "serverless.yaml"}))

	select {
	case got := <-ch:
		if assert.NotNil(t, got) {
			assert.Equal(t, "serverless.yaml", got.Project)
			assert.Equal(t, "redis", got.Source)
			assert.False(t, got.Time.IsZero())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for redis stream notification")
	}

	// Cancel and ensure the channel closes (XREAD blocks up to 1s)
	cancel()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatal("watch channel did not close in time")
	}
}

func TestRedisNotifier_DefaultTopic(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := redisConfig(mr.Addr())
	cfg.Topic = ""
	n, err := NewRedisNotifier(zap.NewNop(), cfg, config.RoleSender)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.NotifyUpdate(context.Background(), nil))
	assert.True(t, mr.Exists(DefaultRedisTopic))
}

func TestRedisNotifier_Watch_NotReceiver(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := NewRedisNotifier(zap.NewNop(), redisConfig(mr.Addr()), config.RoleSender)
	require.NoError(t, err)
	defer n.Close()

	ch, werr := n.Watch(context.Background())
	assert.Nil(t, ch)
	assert.ErrorIs(t, werr, cnst.ErrNotReceiver)
}

func TestRedisNotifier_NotifyUpdate_NotSender(t *testing.T) {
	mr := miniredis.RunT(t)

	n, err := NewRedisNotifier(zap.NewNop(), redisConfig(mr.Addr()), config.RoleReceiver)
	require.NoError(t, err)
	defer n.Close()

	err = n.NotifyUpdate(context.Background(), &ReloadEvent{})
	assert.ErrorIs(t, err, cnst.ErrNotSender)
}

func TestNewRedisNotifier_ConnectionError(t *testing.T) {
	// invalid address should cause ping failure
	n, err := NewRedisNotifier(zap.NewNop(), redisConfig("127.0.0.1:0"), config.RoleBoth)
	assert.Nil(t, n)
	assert.Error(t, err)
}
