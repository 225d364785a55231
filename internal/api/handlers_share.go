package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openvault/archivist/internal/api/respond"
)

type createShareRequest struct {
	Entity   string `json:"entity"`
	EntityID int64  `json:"entityId"`
}

// CreateShare mints a share link granting read access to one entity and its
// descendants.
func (s *Server) CreateShare(w http.ResponseWriter, r *http.Request) {
	p := s.requireUser(w, r)
	if p == nil {
		return
	}
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	kind, ok := entityKinds[req.Entity]
	if !ok {
		respond.WriteBadRequest(w, "unknown entity kind")
		return
	}
	link, err := s.shares.Create(r.Context(), p.user.ID, kind, req.EntityID)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.recordEvent(r, "share_created", string(kind), &p.user.ID)
	respond.WriteJSON(w, http.StatusCreated, link)
}

// ListShares returns the links pointing at one entity.
func (s *Server) ListShares(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	kind, ok := entityKinds[r.URL.Query().Get("entity")]
	if !ok {
		respond.WriteBadRequest(w, "unknown entity kind")
		return
	}
	id, err := pathQueryID(r, "entityId")
	if err != nil {
		respond.WriteBadRequest(w, "invalid entity id")
		return
	}
	links, err := s.st.Shares().ListByEntity(r.Context(), kind, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, links)
}

// RevokeShare invalidates a link. Outstanding file URLs sealed with its
// suffix stop verifying as well.
func (s *Server) RevokeShare(w http.ResponseWriter, r *http.Request) {
	p := s.requireUser(w, r)
	if p == nil {
		return
	}
	suffix := mux.Vars(r)["suffix"]
	if err := s.shares.Invalidate(r.Context(), suffix); err != nil {
		writeErr(w, err)
		return
	}
	s.recordEvent(r, "share_revoked", suffix, &p.user.ID)
	w.WriteHeader(http.StatusNoContent)
}
