package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/pkg/schema"
)

type sent struct {
	session string
	method  string
	params  map[string]any
}

type fakeClient struct {
	mu    sync.Mutex
	sent  []sent
	gone  map[string]bool
	fails map[string]bool
}

func (f *fakeClient) SendNotificationToSpecificClient(sessionID, method string, params map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[sessionID] {
		return server.ErrSessionNotFound
	}
	if f.fails[sessionID] {
		return errors.New("write failed")
	}
	f.sent = append(f.sent, sent{sessionID, method, params})
	return nil
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestNotifyFansOutAndDropsGoneSessions(t *testing.T) {
	client := &fakeClient{gone: map[string]bool{"gone": true}, fails: map[string]bool{"flaky": true}}
	watchers := NewWatcherRegistry()
	watchers.Register("live")
	watchers.Register("gone")
	watchers.Register("flaky")

	n := NewNotifier(client, watchers, logging.Discard())
	n.Notify(streaming.StreamEvent{EventType: schema.EventNodeFailed, NodeID: "B"})

	require.Len(t, client.sent, 1)
	assert.Equal(t, "live", client.sent[0].session)
	assert.Equal(t, NotificationMethod, client.sent[0].method)
	assert.Equal(t, "warning", client.sent[0].params["level"])
	assert.Equal(t, []string{"flaky", "live"}, watchers.Sessions())
}

func TestForwardFiltersBySessionAndType(t *testing.T) {
	hub := streaming.NewMemoryHub()
	client := &fakeClient{}
	watchers := NewWatcherRegistry()
	watchers.Register("w1")
	n := NewNotifier(client, watchers, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Forward(ctx, hub, "sess-1") }()
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	ctxBg := context.Background()
	require.NoError(t, hub.Publish(ctxBg, streaming.StreamEvent{SessionID: "sess-1", EventType: schema.EventStateChanged}))
	require.NoError(t, hub.Publish(ctxBg, streaming.StreamEvent{SessionID: "other", EventType: schema.EventOutputsComputed}))
	require.NoError(t, hub.Publish(ctxBg, streaming.StreamEvent{SessionID: "sess-1", EventType: schema.EventOutputsComputed}))

	require.Eventually(t, func() bool { return client.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "info", client.sent[0].params["level"])
	ev := client.sent[0].params["data"].(streaming.StreamEvent)
	assert.Equal(t, schema.EventOutputsComputed, ev.EventType)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Forward did not stop")
	}
}
