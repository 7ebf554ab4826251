package api

import (
	"encoding/json"
	"net/http"

	"mindmate/internal/auth"
)

func (s *Server) handleEscalationList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, _ := auth.UserIDFromContext(ctx)

	if r.URL.Query().Get("status") == "open" {
		prompts, err := s.prompts.OpenForOwner(ctx, ownerID)
		if err != nil {
			writeError(w, 500, err.Error())
			return
		}
		writeJSON(w, 200, prompts)
		return
	}

	limit := queryInt(r, "limit", 50)
	prompts, err := s.prompts.Recent(ctx, ownerID, limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, prompts)
}

func (s *Server) handleEscalationResolve(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.UserIDFromContext(r.Context())
	id := r.PathValue("id")

	p, err := s.prompts.Get(r.Context(), id)
	if err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	if p.OwnerID != ownerID {
		writeError(w, 404, "escalation prompt not found")
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	resolved, err := s.engine.ResolvePrompt(r.Context(), id, req.Action)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	writeJSON(w, 200, resolved)
}
