package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/search"
)

type searchRequest struct {
	Mode   string         `json:"mode"`
	Filter *search.Filter `json:"filter,omitempty"`
	Term   string         `json:"term,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// Search evaluates a structured filter tree or a free-text term over one
// entity table. Filter takes precedence when both are present.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Mode == "" {
		respond.WriteBadRequest(w, "mode is required")
		return
	}

	var (
		rows []map[string]any
		err  error
	)
	if req.Filter != nil {
		rows, err = s.search.Filtered(r.Context(), req.Mode, req.Filter, req.Limit, req.Offset)
	} else {
		rows, err = s.search.Term(r.Context(), req.Mode, req.Term, req.Limit, req.Offset)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rows)
}

// AutocompleteTags suggests tags whose name contains the query.
func (s *Server) AutocompleteTags(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 50 {
		limit = v
	}
	tags, err := s.st.Tags().Autocomplete(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, tags)
}
