package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openvault/archivist/internal/api/recovery"
)

// Router builds the HTTP route table. Health, login and the token-guarded
// file routes sit outside the auth middleware; everything under /api behind
// it.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.CheckHealth).Methods("GET")
	r.HandleFunc("/api/auth/login", s.Login).Methods("POST")

	r.HandleFunc("/archives/{path:.*}", s.ServeArchiveFile).Methods("GET")
	r.HandleFunc("/thumbnails/{path:.*}", s.ServeThumbnail).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/auth/logout", s.Logout).Methods("POST")
	api.HandleFunc("/auth/whoami", s.Whoami).Methods("GET")

	api.HandleFunc("/sessions", s.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id:[0-9]+}", s.GetSession).Methods("GET")
	api.HandleFunc("/accounts", s.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}", s.GetAccount).Methods("GET")
	api.HandleFunc("/posts/{id:[0-9]+}", s.GetPost).Methods("GET")
	api.HandleFunc("/media/{id:[0-9]+}", s.GetMedia).Methods("GET")

	api.HandleFunc("/{kind}/{id:[0-9]+}/data", s.GetData).Methods("GET")
	api.HandleFunc("/{kind}/{id:[0-9]+}/sessions", s.ListEntitySessions).Methods("GET")
	api.HandleFunc("/{kind}/{id:[0-9]+}/annotation", s.Annotate).Methods("PUT")

	api.HandleFunc("/media_parts", s.CreateMediaPart).Methods("POST")
	api.HandleFunc("/media_parts/{id:[0-9]+}", s.DeleteMediaPart).Methods("DELETE")

	api.HandleFunc("/search", s.Search).Methods("POST")
	api.HandleFunc("/tags", s.AutocompleteTags).Methods("GET")

	api.HandleFunc("/shares", s.CreateShare).Methods("POST")
	api.HandleFunc("/shares", s.ListShares).Methods("GET")
	api.HandleFunc("/shares/{suffix}", s.RevokeShare).Methods("DELETE")

	return recovery.Middleware(s.requestLog(r))
}
