package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisTopic is the stream used when none is configured
const DefaultRedisTopic = "serverless-offline:reload"

// RedisNotifier implements Notifier using Redis streams, so several
// gateways can reload together.
type RedisNotifier struct {
	logger     *zap.Logger
	client     redis.UniversalClient
	streamName string
	role       config.NotifierRole
}

// NewRedisNotifier creates a new Redis-based notifier
func NewRedisNotifier(logger *zap.Logger, cfg config.RedisConfig, role config.NotifierRole) (*RedisNotifier, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	stream := cfg.Topic
	if stream == "" {
		stream = DefaultRedisTopic
	}
	return &RedisNotifier{
		logger:     logger.Named("notifier.redis"),
		client:     client,
		streamName: stream,
		role:       role,
	}, nil
}

// Watch implements Notifier.Watch
func (r *RedisNotifier) Watch(ctx context.Context) (<-chan *ReloadEvent, error) {
	if !r.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}

	ch := make(chan *ReloadEvent, 10)

	go func() {
		defer close(ch)

		// $ means read only messages added after this point
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
				// XREAD without a group so every gateway sees every message
				streams, err := r.client.XRead(ctx, &redis.XReadArgs{
					Streams: []string{r.streamName, lastID},
					Count:   1,
					Block:   1 * time.Second,
				}).Result()

				if err != nil {
					if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
						r.logger.Error("failed to read from stream", zap.Error(err))
					}
					continue
				}

				for _, stream := range streams {
					for _, message := range stream.Messages {
						lastID = message.ID

						raw, ok := message.Values["event"].(string)
						if !ok {
							continue
						}
						var event ReloadEvent
						if err := json.Unmarshal([]byte(raw), &event); err != nil {
							r.logger.Error("failed to unmarshal reload event", zap.Error(err))
							continue
						}
						select {
						case ch <- &event:
							r.logger.Debug("reload notification sent",
								zap.String("messageID", message.ID))
						case <-ctx.Done():
							return
						}
					}
				}
			}
		}
	}()

	return ch, nil
}

// NotifyUpdate implements Notifier.NotifyUpdate
func (r *RedisNotifier) NotifyUpdate(ctx context.Context, event *ReloadEvent) error {
	if !r.CanSend() {
		return cnst.ErrNotSender
	}
	if event == nil {
		event = &ReloadEvent{}
	}
	event.Source = string(TypeRedis)
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reload event: %w", err)
	}

	// Keep only the latest message
	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.streamName,
		MaxLen: 1,
		Approx: false,
		Values: map[string]interface{}{
			"event":     string(data),
			"timestamp": event.Time.Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}

	return nil
}

// Close releases the Redis connection
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}

// CanReceive returns true if the notifier can receive updates
func (r *RedisNotifier) CanReceive() bool {
	return canReceive(r.role)
}

// CanSend returns true if the notifier can send updates
func (r *RedisNotifier) CanSend() bool {
	return canSend(r.role)
}
