package api

import (
	"encoding/json"
	"net/http"

	"mindmate/internal/auth"
	"mindmate/pkg/task"
)

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Energy string `json:"energy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	energy, err := task.ParseEnergy(req.Energy)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	candidate, err := s.engine.Suggest(r.Context(), ownerID, energy)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	if candidate == nil {
		// All clear: nothing eligible at this energy.
		w.WriteHeader(204)
		return
	}
	writeJSON(w, 200, candidate)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	result, err := s.engine.Accept(r.Context(), t.ID)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	writeJSON(w, 200, result)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	out, err := s.engine.Reject(r.Context(), t.ID)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	writeJSON(w, 200, out)
}

func (s *Server) handleMute(w http.ResponseWriter, r *http.Request) {
	t, ok := s.ownedTask(w, r)
	if !ok {
		return
	}
	result, err := s.engine.Mute(r.Context(), t.ID)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	writeJSON(w, 200, result)
}
