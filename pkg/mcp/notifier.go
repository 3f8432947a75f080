package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/pkg/schema"
)

// NotificationMethod is the MCP method used for pushed results.
const NotificationMethod = "notifications/message"

// ClientNotifier sends a notification to one connected client.
// Satisfied by *server.MCPServer.
type ClientNotifier interface {
	SendNotificationToSpecificClient(sessionID, method string, params map[string]any) error
}

// Notifier forwards evaluation events from the hub to watching clients.
type Notifier struct {
	client   ClientNotifier
	watchers *WatcherRegistry
	logger   *slog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(client ClientNotifier, watchers *WatcherRegistry, logger *slog.Logger) *Notifier {
	return &Notifier{client: client, watchers: watchers, logger: logger}
}

// Forward subscribes to outputs.computed and node.failed events of the
// given session and pushes each one to every watcher until ctx ends.
func (n *Notifier) Forward(ctx context.Context, hub streaming.EventHub, sessionID string) error {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{
		SessionID:  sessionID,
		EventTypes: []string{schema.EventOutputsComputed, schema.EventNodeFailed},
	})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			n.Notify(ev)
		}
	}
}

// Notify pushes one event to every watcher. Best-effort: a client whose
// session is gone is dropped from the registry.
func (n *Notifier) Notify(ev streaming.StreamEvent) {
	level := "info"
	if ev.EventType == schema.EventNodeFailed {
		level = "warning"
	}
	params := map[string]any{
		"level":  level,
		"logger": ServerName,
		"data":   ev,
	}
	for _, sid := range n.watchers.Sessions() {
		err := n.client.SendNotificationToSpecificClient(sid, NotificationMethod, params)
		if errors.Is(err, server.ErrSessionNotFound) {
			n.watchers.Remove(sid)
			continue
		}
		if err != nil {
			n.logger.Debug("notify watcher failed", slog.String("mcp_session", sid), slog.String("error", err.Error()))
		}
	}
}
