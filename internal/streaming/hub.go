// Package streaming fans out editor snapshots and evaluation results to
// preview consumers.
package streaming

import (
	"context"
	"time"
)

// StreamEvent is a notification about a session: a new state snapshot, a
// rejected transition, computed outputs or a failed node.
type StreamEvent struct {
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	NodeID    string    `json:"node_id,omitempty"`
	EventType string    `json:"event_type"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload,omitempty"`
}

// EventFilter selects the events a subscriber receives. Zero values match
// everything.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub is the pub/sub surface used by sessions and consumers.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
