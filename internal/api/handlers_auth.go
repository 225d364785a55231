package api

import (
	"encoding/json"
	"net/http"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login exchanges email and password for a bearer token. Outcomes land in
// the event log either way.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respond.WriteBadRequest(w, "email and password are required")
		return
	}

	tok, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordEvent(r, "login_failed", req.Email, nil)
		writeErr(w, err)
		return
	}
	u, err := s.st.Users().GetByID(r.Context(), tok.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.recordEvent(r, "login", req.Email, &tok.UserID)
	respond.WriteJSON(w, http.StatusOK, loginResponse{Token: tok.Token, User: u})
}

// Logout revokes the presented token.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	p := s.requireUser(w, r)
	if p == nil {
		return
	}
	if err := s.auth.Logout(r.Context(), p.credential); err != nil {
		writeErr(w, err)
		return
	}
	s.recordEvent(r, "logout", p.user.Email, &p.user.ID)
	w.WriteHeader(http.StatusNoContent)
}

type whoamiResponse struct {
	User  *model.User      `json:"user,omitempty"`
	Share *model.ShareLink `json:"share,omitempty"`
}

// Whoami echoes the principal behind the presented credential, so clients
// can tell an operator session from a share grant.
func (s *Server) Whoami(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if p == nil {
		respond.WriteUnauthorized(w, "unauthorized")
		return
	}
	respond.WriteJSON(w, http.StatusOK, whoamiResponse{User: p.user, Share: p.share})
}

func (s *Server) recordEvent(r *http.Request, eventType, details string, userID *int64) {
	e := &model.Event{Type: eventType, UserID: userID, Details: details}
	if err := s.st.Events().Record(r.Context(), e); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to record event")
	}
}
