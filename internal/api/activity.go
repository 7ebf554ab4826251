package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"mindmate/internal/auth"
)

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, _ := auth.UserIDFromContext(ctx)
	limit := queryInt(r, "limit", 50)

	if t := r.URL.Query().Get("type"); t != "" {
		events, err := s.log.ByType(ctx, t, limit)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
		// Type queries are global; keep only the caller's events.
		own := events[:0]
		for _, e := range events {
			if e.OwnerID == ownerID {
				own = append(own, e)
			}
		}
		writeJSON(w, 200, own)
		return
	}

	events, err := s.log.ByOwner(ctx, ownerID, limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, events)
}

// handleActivityStream pushes the caller's new events over SSE as they are
// appended, via the in-process bus.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	ownerID, _ := auth.UserIDFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch := s.log.Subscribe()
	defer s.log.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-ch:
			if !open {
				return
			}
			if e.OwnerID != ownerID {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
