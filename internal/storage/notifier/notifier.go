package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/config"

	"go.uber.org/zap"
)

// ReloadEvent tells watchers that the project changed and must be reloaded
type ReloadEvent struct {
	// Source names the notifier that observed the change
	Source string `json:"source"`
	// Project is the project file the sender reloaded, if known
	Project string    `json:"project,omitempty"`
	Time    time.Time `json:"time"`
}

// Notifier defines the interface for project reload notification
type Notifier interface {
	// Watch returns a channel that receives an event whenever the project should be reloaded
	Watch(ctx context.Context) (<-chan *ReloadEvent, error)

	// NotifyUpdate triggers a reload notification
	NotifyUpdate(ctx context.Context, event *ReloadEvent) error

	// CanReceive returns true if the notifier can receive updates
	CanReceive() bool

	// CanSend returns true if the notifier can send updates
	CanSend() bool
}

func canReceive(role config.NotifierRole) bool {
	return role == config.RoleReceiver || role == config.RoleBoth
}

func canSend(role config.NotifierRole) bool {
	return role == config.RoleSender || role == config.RoleBoth
}

// hub fans reload events out to the channels returned by Watch
type hub struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	watchers map[chan<- *ReloadEvent]struct{}
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		logger:   logger,
		watchers: make(map[chan<- *ReloadEvent]struct{}),
	}
}

// watch registers a channel that is closed once ctx is done
func (h *hub) watch(ctx context.Context) <-chan *ReloadEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *ReloadEvent, 10)
	h.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.watchers, ch)
		close(ch)
	}()

	return ch
}

func (h *hub) broadcast(event *ReloadEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.watchers {
		select {
		case ch <- event:
		default:
			h.logger.Warn("watcher channel is full, skipping notification",
				zap.String("source", event.Source))
		}
	}
}
