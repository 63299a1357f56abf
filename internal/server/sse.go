package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDeploymentEvents streams a run's log as Server-Sent Events: one
// "log" event per entry, then a final "result" event when the run ends.
func (s *Server) handleDeploymentEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.run(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "Unknown deployment run")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	past, ch := st.log.Tail()
	for _, entry := range past {
		writeSSE(w, "log", entry)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case entry, open := <-ch:
			if !open {
				s.writeResultEvent(w, st)
				flusher.Flush()
				return
			}
			writeSSE(w, "log", entry)
			flusher.Flush()
		case <-st.done:
			// Run finished before this reader subscribed.
			s.writeResultEvent(w, st)
			flusher.Flush()
			return
		}
	}
}

func (s *Server) writeResultEvent(w http.ResponseWriter, st *runState) {
	s.mu.Lock()
	result := st.result
	s.mu.Unlock()
	if result != nil {
		writeSSE(w, "result", result)
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
