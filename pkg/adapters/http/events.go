package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aretw0/loom/pkg/domain"
)

// SubscribeEvents handles GET /events (SSE). With ?document=ID only changes
// to that document are sent; library changes are always sent.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	filter := r.URL.Query().Get("document")
	s.Logger.Info("SSE: Client subscribed", "document", filter)

	changes, cancel := s.Editor.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE: Client disconnected")
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if !matches(change, filter) {
				continue
			}
			data, err := json.Marshal(change)
			if err != nil {
				s.Logger.Error("SSE: Failed to encode change", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(change), data)
			flusher.Flush()
		}
	}
}

func matches(c domain.Change, document string) bool {
	return document == "" || c.Library != nil || c.DocumentID == document
}

func eventName(c domain.Change) string {
	if c.Library != nil {
		return "library"
	}
	return "document"
}
