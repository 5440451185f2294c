package notifier

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	"github.com/daffinity/serverless-offline/pkg/utils"

	"go.uber.org/zap"
)

// SignalNotifier implements Notifier using SIGHUP. Sending signals the
// process whose PID is stored in the PID file.
type SignalNotifier struct {
	logger *zap.Logger
	hub    *hub
	pid    *utils.PIDManager
	role   config.NotifierRole
}

// NewSignalNotifier creates a new signal-based notifier
func NewSignalNotifier(ctx context.Context, logger *zap.Logger, pidFile string, role config.NotifierRole) *SignalNotifier {
	if logger == nil {
		panic("signal notifier requires a logger")
	}
	if pidFile == "" {
		panic("signal notifier requires a PID file")
	}

	n := &SignalNotifier{
		logger: logger.Named("notifier.signal"),
		pid:    utils.NewPIDManager(pidFile),
		role:   role,
	}
	n.hub = newHub(n.logger)

	if n.CanReceive() {
		go n.handleSignals(ctx)
	}
	return n
}

func (n *SignalNotifier) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			n.logger.Info("received reload signal", zap.String("signal", sig.String()))
			n.notifyWatchers()
		case <-ctx.Done():
			return
		}
	}
}

func (n *SignalNotifier) notifyWatchers() {
	n.hub.broadcast(&ReloadEvent{Source: string(TypeSignal), Time: time.Now()})
}

// Watch implements Notifier.Watch
func (n *SignalNotifier) Watch(ctx context.Context) (<-chan *ReloadEvent, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}
	return n.hub.watch(ctx), nil
}

// NotifyUpdate sends SIGHUP to the running gateway
func (n *SignalNotifier) NotifyUpdate(_ context.Context, _ *ReloadEvent) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}
	return n.pid.Signal(syscall.SIGHUP)
}

// CanReceive returns true if the notifier can receive updates
func (n *SignalNotifier) CanReceive() bool {
	return canReceive(n.role)
}

// CanSend returns true if the notifier can send updates
func (n *SignalNotifier) CanSend() bool {
	return canSend(n.role)
}
