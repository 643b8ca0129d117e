package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	applog "scentledger/internal/log"
	"scentledger/internal/store"
)

const eventBuffer = 32

// Events streams mirror changes as server-sent events. Slow clients miss
// changes rather than block writers.
func Events(w http.ResponseWriter, r *http.Request) {
	ws, ok := loaded(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	changes := make(chan store.Change, eventBuffer)
	cancel := ws.Subscribe(func(c store.Change) {
		select {
		case changes <- c:
		default:
			applog.Debug(r.Context(), "dropping change event for slow client", "store", c.Store)
		}
	})
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()
	applog.Debug(r.Context(), "event stream opened")

	for {
		select {
		case <-r.Context().Done():
			applog.Debug(r.Context(), "event stream closed")
			return
		case c := <-changes:
			payload, err := json.Marshal(c)
			if err != nil {
				applog.Error(r.Context(), "failed to encode change event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
