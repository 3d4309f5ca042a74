package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MimeLyc/voice-translator/internal/jobs"
	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// snapshotFor returns the job named by id, or the latest job when id is empty.
func (s *Server) snapshotFor(id string) (*jobs.Job, bool) {
	if id == "" {
		return s.pipeline.Registry().Latest()
	}
	return s.pipeline.Registry().Get(id)
}

// handleProgressStream pushes progress as server-sent events. Without a job
// query parameter it follows whichever job is latest.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	jobID := r.URL.Query().Get("job")
	send := func() bool {
		resp := progressResponse{}
		if job, ok := s.snapshotFor(jobID); ok {
			resp = progressOf(job)
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleJobSocket streams one job's progress until it reaches a terminal
// status, then closes the connection normally.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.pipeline.Registry().Get(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed for job %s: %v", id, err)
		return
	}
	defer conn.Close()

	// drain client frames so close messages are noticed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	last := -1
	var lastStatus jobs.Status
	for {
		job, ok := s.pipeline.Registry().Get(id)
		if !ok {
			return
		}
		if job.Progress != last || job.Status != lastStatus {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(progressOf(job)); err != nil {
				return
			}
			last, lastStatus = job.Progress, job.Status
		}
		if job.Status.Terminal() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status))
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
