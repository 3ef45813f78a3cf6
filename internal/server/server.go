// Package server exposes the interview engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"profiler/internal/backend"
	"profiler/internal/interview"
	"profiler/internal/logging"
)

// Server routes HTTP requests to the interview coordinator.
type Server struct {
	coord *interview.Coordinator
	http  *http.Server
}

// New builds the server for the given address.
func New(addr string, coord *interview.Coordinator) *Server {
	s := &Server{coord: coord}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleBanner)
	r.Get("/healthz", s.handleHealth)
	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/", s.handleList)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/respond", s.handleRespond)
			r.Get("/report", s.handleReport)
			r.Post("/archive", s.handleArchive)
			r.Delete("/", s.handleAbort)
		})
	})
	return r
}

// ListenAndServe blocks serving HTTP until shutdown.
func (s *Server) ListenAndServe() error {
	logging.API("Listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.APIDebug("Encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interview.ErrSessionComplete),
		errors.Is(err, interview.ErrSessionArchived):
		status = http.StatusConflict
	case errors.Is(err, interview.ErrSessionBusy):
		status = http.StatusTooManyRequests
	case errors.Is(err, backend.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "profiler",
		"docs":    "/interview",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Prompt    string `json:"prompt"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, prompt, err := s.coord.Start(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logging.API("Started session %s", sess.ID)
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID: sess.ID,
		Phase:     s.coord.Machine().Name(sess.PhaseState()),
		Prompt:    prompt,
	})
}

type respondRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	ex, err := s.coord.Respond(r.Context(), sessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.coord.BuildReport(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type sessionSummary struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Phase     string    `json:"phase"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := s.coord.Registry().List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionSummary{
			SessionID: sess.ID,
			Status:    string(sess.Status()),
			Phase:     s.coord.Machine().Name(sess.PhaseState()),
			Turns:     sess.Log.Len(),
			CreatedAt: sess.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": out})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.coord.Registry().Archive(sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": string(interview.StatusArchived)})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.coord.Registry().Abort(sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
