package panel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rendis/bonsai/internal/streaming"
)

// handleSSE streams the session's events. ?types=a,b narrows the event types.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	filter := streaming.EventFilter{SessionID: s.deps.Session.ID()}
	if types := r.URL.Query().Get("types"); types != "" {
		filter.EventTypes = strings.Split(types, ",")
	}
	s.serveSSE(w, r, filter)
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, filter streaming.EventFilter) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if s.deps.Hub == nil {
		http.Error(w, "event hub not configured", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed", "error", err)
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.deps.Logger.Warn("SSE marshal failed", "event", event.EventType, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Seq, event.EventType, data)
			flusher.Flush()
		}
	}
}
