package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"mindmate/internal/auth"
	"mindmate/pkg/activity"
	"mindmate/pkg/escalation"
	"mindmate/pkg/suggest"
	"mindmate/pkg/task"
	"mindmate/pkg/user"
)

// Server is the HTTP API server.
type Server struct {
	tasks   task.Store
	users   user.Store
	engine  *suggest.Engine
	prompts escalation.Store
	log     *activity.Bus
	secret  []byte
	mw      auth.Middleware
	mux     *http.ServeMux
}

// New creates a new Server.
func New(tasks task.Store, users user.Store, engine *suggest.Engine, prompts escalation.Store, log *activity.Bus, secret []byte) *Server {
	s := &Server{
		tasks:   tasks,
		users:   users,
		engine:  engine,
		prompts: prompts,
		log:     log,
		secret:  secret,
		mw:      auth.New(secret),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Public
	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Tasks
	s.mux.HandleFunc("GET /api/tasks", s.mw.Wrap(s.handleTaskList))
	s.mux.HandleFunc("POST /api/tasks", s.mw.Wrap(s.handleTaskCreate))
	s.mux.HandleFunc("GET /api/tasks/{id}", s.mw.Wrap(s.handleTaskGet))
	s.mux.HandleFunc("PATCH /api/tasks/{id}", s.mw.Wrap(s.handleTaskUpdate))
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.mw.Wrap(s.handleTaskDelete))

	// Suggestions
	s.mux.HandleFunc("POST /api/suggest", s.mw.Wrap(s.handleSuggest))
	s.mux.HandleFunc("POST /api/tasks/{id}/accept", s.mw.Wrap(s.handleAccept))
	s.mux.HandleFunc("POST /api/tasks/{id}/reject", s.mw.Wrap(s.handleReject))
	s.mux.HandleFunc("POST /api/tasks/{id}/mute", s.mw.Wrap(s.handleMute))

	// Escalations
	s.mux.HandleFunc("GET /api/escalations", s.mw.Wrap(s.handleEscalationList))
	s.mux.HandleFunc("POST /api/escalations/{id}/resolve", s.mw.Wrap(s.handleEscalationResolve))

	// Activity
	s.mux.HandleFunc("GET /api/activity", s.mw.Wrap(s.handleActivityList))
	s.mux.HandleFunc("GET /api/activity/stream", s.mw.Wrap(s.handleActivityStream))

	// System
	s.mux.HandleFunc("GET /api/status", s.mw.Wrap(s.handleStatus))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, _ := auth.UserIDFromContext(ctx)
	pendingTasks, _ := s.tasks.PendingCount(ctx, ownerID)
	openPrompts, _ := s.prompts.OpenCount(ctx, ownerID)
	eventCount, _ := s.log.Count(ctx)

	writeJSON(w, 200, map[string]any{
		"pending_tasks":    pendingTasks,
		"open_escalations": openPrompts,
		"events":           eventCount,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeStatus maps a store error to an HTTP status.
func storeStatus(err error) int {
	if errors.Is(err, task.ErrNotFound) || errors.Is(err, escalation.ErrNotFound) || errors.Is(err, user.ErrNotFound) {
		return 404
	}
	return 500
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
