package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/mindflow/internal/logging"
	"github.com/rendis/mindflow/internal/streaming"
)

// notificationMethod is the MCP logging notification used for change events.
const notificationMethod = "notifications/message"

// clientNotifier is the part of server.MCPServer the notifier needs.
type clientNotifier interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
}

// DiagramNotifier pushes diagram change events to the sessions watching the
// changed diagram.
type DiagramNotifier struct {
	sender   clientNotifier
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewDiagramNotifier creates a notifier that pushes through mcpServer.
func NewDiagramNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry, logger *slog.Logger) *DiagramNotifier {
	return &DiagramNotifier{sender: mcpServer, sessions: sessions, logger: logging.OrDiscard(logger)}
}

// Notify sends ev to every watcher of its diagram. Delivery is best-effort:
// sessions that have gone away are dropped and are not an error.
func (n *DiagramNotifier) Notify(_ context.Context, ev streaming.StreamEvent) error {
	params := map[string]any{
		"level":  "info",
		"logger": "mindflow",
		"data":   ev,
	}

	var errs []error
	for _, sid := range n.sessions.SessionsFor(ev.DiagramID) {
		err := n.sender.SendNotificationToSpecificClient(sid, notificationMethod, params)
		switch {
		case errors.Is(err, server.ErrSessionNotFound):
			n.sessions.Remove(sid)
		case err != nil:
			errs = append(errs, err)
		}
	}
	if ev.EventType == streaming.EventDiagramDeleted {
		n.sessions.Forget(ev.DiagramID)
	}
	return errors.Join(errs...)
}

// Run forwards hub events until ctx is cancelled.
func (n *DiagramNotifier) Run(ctx context.Context, hub streaming.EventHub) error {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.Notify(ctx, ev); err != nil {
				n.logger.Warn("diagram notification failed",
					"diagram_id", ev.DiagramID, "event_type", ev.EventType, "error", err)
			}
		}
	}
}
