package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"mindmate/internal/auth"
	"mindmate/pkg/activity"
	"mindmate/pkg/user"
)

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, 400, "email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}

	u, err := s.users.Create(r.Context(), req.Name, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, 409, "email already registered")
			return
		}
		writeError(w, 500, err.Error())
		return
	}

	s.log.Append(r.Context(), activity.UserRegistered, u.ID, map[string]any{"email": u.Email})

	token, err := auth.GenerateToken(s.secret, u.ID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 201, tokenResponse{Token: token, User: u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}

	u, err := s.users.ByEmail(r.Context(), req.Email)
	if err != nil {
		// Same answer for unknown email and bad password.
		writeError(w, 401, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, 401, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(s.secret, u.ID)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, tokenResponse{Token: token, User: u})
}
