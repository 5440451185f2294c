package notifier

import (
	"context"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	offlineerrors "github.com/daffinity/serverless-offline/pkg/errors"

	"go.uber.org/zap"
)

// Type represents the type of notifier
type Type string

const (
	// TypeNone disables hot reload
	TypeNone Type = "none"
	// TypeSignal represents signal-based notifier
	TypeSignal Type = "signal"
	// TypeAPI represents API-based notifier
	TypeAPI Type = "api"
	// TypeRedis represents Redis-based notifier
	TypeRedis Type = "redis"
	// TypeComposite represents composite notifier
	TypeComposite Type = "composite"
)

// NewNotifier creates a new notifier based on the configuration
func NewNotifier(ctx context.Context, logger *zap.Logger, cfg *config.NotifierConfig) (Notifier, error) {
	role := config.NotifierRole(cfg.Role)
	if role == "" {
		role = config.RoleBoth // Default to both if not specified
	}

	switch Type(cfg.Type) {
	case TypeNone, "":
		return NoopNotifier{}, nil
	case TypeSignal:
		return NewSignalNotifier(ctx, logger, cfg.Signal.PID, role), nil
	case TypeAPI:
		return NewAPINotifier(logger, cfg.API.Port, role, cfg.API.TargetURL), nil
	case TypeRedis:
		return NewRedisNotifier(logger, cfg.Redis, role)
	case TypeComposite:
		notifiers := []Notifier{NewSignalNotifier(ctx, logger, cfg.Signal.PID, role)}
		if cfg.API.Port != 0 || cfg.API.TargetURL != "" {
			notifiers = append(notifiers, NewAPINotifier(logger, cfg.API.Port, role, cfg.API.TargetURL))
		}
		if cfg.Redis.Addr != "" {
			redisNotifier, err := NewRedisNotifier(logger, cfg.Redis, role)
			if err != nil {
				return nil, err
			}
			notifiers = append(notifiers, redisNotifier)
		}
		return NewCompositeNotifier(ctx, logger, notifiers...), nil
	default:
		return nil, offlineerrors.ErrUnknownNotifierType(cfg.Type)
	}
}

// NoopNotifier neither sends nor receives
type NoopNotifier struct{}

func (NoopNotifier) Watch(context.Context) (<-chan *ReloadEvent, error) {
	return nil, cnst.ErrNotReceiver
}

func (NoopNotifier) NotifyUpdate(context.Context, *ReloadEvent) error {
	return cnst.ErrNotSender
}

func (NoopNotifier) CanReceive() bool { return false }
func (NoopNotifier) CanSend() bool    { return false }
