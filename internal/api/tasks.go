package api

import (
	"encoding/json"
	"net/http"

	"mindmate/internal/auth"
	"mindmate/pkg/activity"
	"mindmate/pkg/task"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.UserIDFromContext(r.Context())
	tasks, err := s.tasks.ByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.UserIDFromContext(r.Context())

	var t task.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if t.Title == "" {
		writeError(w, 400, "title is required")
		return
	}
	if t.Energy != "" {
		if _, err := task.ParseEnergy(string(t.Energy)); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	}
	// Ownership comes from the token, never from the body.
	t.OwnerID = ownerID

	result, err := s.tasks.Create(r.Context(), &t)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.log.Append(r.Context(), activity.TaskCreated, ownerID, map[string]any{
		"task_id": result.ID,
		"title":   result.Title,
	})
	writeJSON(w, 201, result)
}

// ownedTask loads a task and checks it belongs to the caller. Tasks of other
// users answer 404, not 403, so ids can't be probed.
func (s *Server) ownedTask(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	ownerID, _ := auth.UserIDFromContext(r.Context())
	t, err := s.tasks.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return nil, false
	}
	if t.OwnerID != ownerID {
		writeError(w, 404, "task not found")
		return nil, false
	}
	return t, true
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}

	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if v, ok := updates["energy"].(string); ok {
		if _, err := task.ParseEnergy(v); err != nil {
			writeError(w, 400, err.Error())
			return
		}
	}

	result, err := s.tasks.Update(r.Context(), t.ID, updates)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	writeJSON(w, 200, result)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), t.ID); err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	s.log.Append(r.Context(), activity.TaskDeleted, t.OwnerID, map[string]any{"task_id": t.ID})
	w.WriteHeader(204)
}
