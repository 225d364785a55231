package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/services"
)

// entityKinds maps URL path segments onto entity kinds.
var entityKinds = map[string]model.EntityKind{
	"sessions":    model.KindSession,
	"accounts":    model.KindAccount,
	"posts":       model.KindPost,
	"media":       model.KindMedia,
	"media_parts": model.KindMediaPart,
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func pathQueryID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
}

func queryFlag(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func viewOptions(r *http.Request) services.ViewOptions {
	return services.ViewOptions{
		AccountsWithPosts: queryFlag(r, "awp"),
		PostsWithMedia:    queryFlag(r, "pwm"),
		MediaWithFiles:    queryFlag(r, "mwf"),
		LocalFilesOnly:    queryFlag(r, "lfr"),
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// ListSessions returns registered archiving sessions, newest first.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	limit, offset := pagination(r)
	sessions, err := s.browser.Sessions(r.Context(), limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sessions)
}

// GetSession returns one session with the archive rows it contributed.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid session id")
		return
	}
	p := s.authorizeEntity(w, r, model.KindSession, id)
	if p == nil {
		return
	}
	view, err := s.browser.Session(r.Context(), id, viewOptions(r), p.credential)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

// ListAccounts returns canonical accounts.
func (s *Server) ListAccounts(w http.ResponseWriter, r *http.Request) {
	p := s.requireUser(w, r)
	if p == nil {
		return
	}
	limit, offset := pagination(r)
	views, err := s.browser.Accounts(r.Context(), limit, offset, viewOptions(r), p.credential)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, views)
}

// GetAccount returns one account, optionally with its post and media tree.
func (s *Server) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid account id")
		return
	}
	p := s.authorizeEntity(w, r, model.KindAccount, id)
	if p == nil {
		return
	}
	view, err := s.browser.Account(r.Context(), id, viewOptions(r), p.credential)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

// GetPost returns one post, optionally with its media.
func (s *Server) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid post id")
		return
	}
	p := s.authorizeEntity(w, r, model.KindPost, id)
	if p == nil {
		return
	}
	view, err := s.browser.Post(r.Context(), id, viewOptions(r), p.credential)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

// GetMedia returns one media asset with its parts.
func (s *Server) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid media id")
		return
	}
	p := s.authorizeEntity(w, r, model.KindMedia, id)
	if p == nil {
		return
	}
	view, err := s.browser.Media(r.Context(), id, viewOptions(r), p.credential)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

// GetData streams the raw scraped payload of an entity.
func (s *Server) GetData(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityKinds[mux.Vars(r)["kind"]]
	if !ok {
		respond.WriteBadRequest(w, "unknown entity kind")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid entity id")
		return
	}
	if p := s.authorizeEntity(w, r, kind, id); p == nil {
		return
	}
	raw, err := s.browser.Data(r.Context(), kind, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

// ListEntitySessions returns the capture sessions that observed an entity.
func (s *Server) ListEntitySessions(w http.ResponseWriter, r *http.Request) {
	kind, ok := entityKinds[mux.Vars(r)["kind"]]
	if !ok {
		respond.WriteBadRequest(w, "unknown entity kind")
		return
	}
	switch kind {
	case model.KindAccount, model.KindPost, model.KindMedia:
	default:
		respond.WriteBadRequest(w, "entity has no archive rows")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid entity id")
		return
	}
	if p := s.authorizeEntity(w, r, kind, id); p == nil {
		return
	}
	sessions, err := s.browser.SessionsForEntity(r.Context(), kind, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sessions)
}

// Annotate replaces the notes and tags of an entity.
func (s *Server) Annotate(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	kind, ok := entityKinds[mux.Vars(r)["kind"]]
	if !ok {
		respond.WriteBadRequest(w, "unknown entity kind")
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid entity id")
		return
	}
	var ann model.Annotation
	if err := json.NewDecoder(r.Body).Decode(&ann); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := s.browser.Annotate(r.Context(), kind, id, ann); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateMediaPart adds a user-defined excerpt to a media asset.
func (s *Server) CreateMediaPart(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	var part model.MediaPart
	if err := json.NewDecoder(r.Body).Decode(&part); err != nil {
		respond.WriteBadRequest(w, "invalid request body")
		return
	}
	if part.MediaID == 0 {
		respond.WriteBadRequest(w, "mediaId is required")
		return
	}
	created, err := s.browser.CreateMediaPart(r.Context(), &part)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, created)
}

// DeleteMediaPart removes an excerpt.
func (s *Server) DeleteMediaPart(w http.ResponseWriter, r *http.Request) {
	if p := s.requireUser(w, r); p == nil {
		return
	}
	id, err := pathID(r)
	if err != nil {
		respond.WriteBadRequest(w, "invalid media part id")
		return
	}
	if err := s.browser.DeleteMediaPart(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
