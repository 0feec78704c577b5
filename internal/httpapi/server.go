// Package httpapi exposes the station's observable state and manual
// triggers over a small local HTTP surface. It is read-mostly: scans come
// from the scanner input path, the API only mirrors state and offers the
// operator the same levers the CLI does.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatecheck/internal/engine"
	"gatecheck/internal/store"
)

// Server serves the local observability and control surface.
type Server struct {
	eng *engine.Engine
}

// NewServer creates a server over a running engine.
func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

// Router builds the chi router for the surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Get("/log", s.handleLog)
	r.Post("/sync", s.handleSync)
	r.Post("/scanner/pause", s.handlePause)
	r.Post("/scanner/resume", s.handleResume)
	r.Post("/scan", s.handleScan)

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status.Get())
}

type logEntryResponse struct {
	PersonName       string    `json:"personName"`
	KoreanName       string    `json:"koreanName,omitempty"`
	ConfirmationCode string    `json:"confirmationCode"`
	Status           string    `json:"status"`
	CheckinType      string    `json:"checkinType"`
	RecordedAt       time.Time `json:"recordedAt"`
	IsOffline        bool      `json:"isOffline"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultLogCap
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = parsed
	}

	entries, err := s.eng.Store.RecentLog(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, logEntryResponse{
			PersonName:       e.PersonName,
			KoreanName:       e.KoreanName,
			ConfirmationCode: e.ConfirmationCode,
			Status:           e.Status,
			CheckinType:      e.CheckinType,
			RecordedAt:       e.RecordedAt,
			IsOffline:        e.IsOffline,
			ErrorMessage:     e.ErrorMessage,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type syncResponse struct {
	Skipped   bool `json:"skipped"`
	Submitted int  `json:"submitted"`
	Accepted  int  `json:"accepted"`
	Failed    int  `json:"failed"`
	Dead      int  `json:"dead"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.eng.Reconciler.Drain(r.Context())
	if err != nil {
		// Rows stay queued; the operator sees an unavailable backend, not a
		// broken station.
		writeError(w, http.StatusBadGateway, "sync_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Skipped:   report.Skipped,
		Submitted: report.Submitted,
		Accepted:  report.Accepted,
		Failed:    report.Failed,
		Dead:      report.Dead,
	})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.eng.Scanner.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.eng.Scanner.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	Processed        bool      `json:"processed"`
	Outcome          string    `json:"outcome,omitempty"`
	PersonName       string    `json:"personName,omitempty"`
	KoreanName       string    `json:"koreanName,omitempty"`
	ConfirmationCode string    `json:"confirmationCode,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Offline          bool      `json:"offline,omitempty"`
	At               time.Time `json:"at,omitzero"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "missing_payload")
		return
	}

	dec, processed := s.eng.Scanner.Scan(r.Context(), req.Payload)
	if !processed {
		// Dropped by the state machine (noise, duplicate, busy, paused).
		writeJSON(w, http.StatusAccepted, scanResponse{Processed: false})
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{
		Processed:        true,
		Outcome:          dec.Outcome,
		PersonName:       dec.PersonName,
		KoreanName:       dec.KoreanName,
		ConfirmationCode: dec.ConfirmationCode,
		Reason:           dec.Reason,
		Offline:          dec.Offline,
		At:               dec.At,
	})
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
