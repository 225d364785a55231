// Package api exposes the archive over HTTP: authentication, entity views,
// search, sharing, annotation and signed file delivery.
package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/auth"
	"github.com/openvault/archivist/internal/config"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/paths"
	"github.com/openvault/archivist/internal/search"
	"github.com/openvault/archivist/internal/services"
	"github.com/openvault/archivist/internal/sharing"
	"github.com/openvault/archivist/internal/store"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	cfg     *config.Config
	st      store.Store
	auth    *auth.Service
	shares  *sharing.Service
	search  *search.Service
	browser *services.Browser
	files   *auth.FileTokens
	res     *paths.Resolver
	log     zerolog.Logger
}

// NewServer wires the handler set over an opened store.
func NewServer(cfg *config.Config, st store.Store, log zerolog.Logger) *Server {
	files := auth.NewFileTokens(cfg.FileTokenSecret)
	return &Server{
		cfg:     cfg,
		st:      st,
		auth:    auth.NewService(st, log),
		shares:  sharing.NewService(st, log),
		search:  search.NewService(st, log),
		browser: services.NewBrowser(st, files, cfg.PublicHost, log),
		files:   files,
		res:     &paths.Resolver{ArchivesRoot: cfg.ArchivesRoot, ThumbnailsRoot: cfg.ThumbnailsRoot},
		log:     log,
	}
}

// writeErr maps service errors onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrLocked):
		respond.WriteUnauthorized(w, "unauthorized")
	case errors.Is(err, model.ErrInjectionAttempt):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
