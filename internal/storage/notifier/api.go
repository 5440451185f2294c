package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"github.com/daffinity/serverless-offline/internal/common/config"
	offlineerrors "github.com/daffinity/serverless-offline/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const reloadPath = "/_reload"

// APINotifier implements Notifier over HTTP. Receivers listen for
// POST /_reload and senders call it on targetURL.
type APINotifier struct {
	logger    *zap.Logger
	hub       *hub
	router    *gin.Engine
	server    *http.Server
	client    *http.Client
	role      config.NotifierRole
	targetURL string
}

// NewAPINotifier creates a new API-based notifier
func NewAPINotifier(logger *zap.Logger, port int, role config.NotifierRole, targetURL string) *APINotifier {
	n := &APINotifier{
		logger:    logger.Named("notifier.api"),
		router:    gin.New(),
		client:    &http.Client{Timeout: 10 * time.Second},
		role:      role,
		targetURL: targetURL,
	}
	n.hub = newHub(n.logger)

	if n.CanReceive() {
		n.router.Use(gin.Recovery())
		n.router.POST(reloadPath, n.handleReload)

		n.server = &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           n.router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := n.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				n.logger.Error("failed to start API server", zap.Error(err))
			}
		}()
	}

	return n
}

func (n *APINotifier) handleReload(c *gin.Context) {
	event := &ReloadEvent{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(event); err != nil {
			n.logger.Warn("ignoring malformed reload body", zap.Error(err))
		}
	}
	event.Source = string(TypeAPI)
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	n.hub.broadcast(event)
	c.JSON(http.StatusOK, gin.H{"status": "reload triggered"})
}

// Watch implements Notifier.Watch
func (n *APINotifier) Watch(ctx context.Context) (<-chan *ReloadEvent, error) {
	if !n.CanReceive() {
		return nil, cnst.ErrNotReceiver
	}
	return n.hub.watch(ctx), nil
}

// NotifyUpdate posts the event to the target gateway
func (n *APINotifier) NotifyUpdate(ctx context.Context, event *ReloadEvent) error {
	if !n.CanSend() {
		return cnst.ErrNotSender
	}
	if n.targetURL == "" {
		return offlineerrors.ErrMissingTarget("api notifier")
	}

	url := n.targetURL
	if !strings.HasSuffix(url, reloadPath) {
		url = strings.TrimSuffix(url, "/") + reloadPath
	}

	var body bytes.Buffer
	if event != nil {
		if err := json.NewEncoder(&body).Encode(event); err != nil {
			return fmt.Errorf("failed to marshal reload event: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return offlineerrors.ErrUnexpectedStatus(resp.StatusCode)
	}
	return nil
}

// Handler exposes the receiving router, mostly for tests
func (n *APINotifier) Handler() http.Handler {
	return n.router
}

// Shutdown gracefully shuts down the API server
func (n *APINotifier) Shutdown(ctx context.Context) error {
	if n.server != nil {
		return n.server.Shutdown(ctx)
	}
	return nil
}

// CanReceive returns true if the notifier can receive updates
func (n *APINotifier) CanReceive() bool {
	return canReceive(n.role)
}

// CanSend returns true if the notifier can send updates
func (n *APINotifier) CanSend() bool {
	return canSend(n.role)
}
