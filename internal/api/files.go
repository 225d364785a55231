package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/paths"
)

// File routes are reached from <img>/<video> tags that cannot carry an
// Authorization header; access is proven by the "t" token instead, which is
// bound to the exact request path and seals the credential that requested it.

// ServeArchiveFile streams a reconstructed asset out of a session directory.
func (s *Server) ServeArchiveFile(w http.ResponseWriter, r *http.Request) {
	s.serveAliased(w, r, paths.ArchivePrefix+mux.Vars(r)["path"])
}

// ServeThumbnail streams a generated thumbnail.
func (s *Server) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	s.serveAliased(w, r, paths.ThumbnailPrefix+mux.Vars(r)["path"])
}

func (s *Server) serveAliased(w http.ResponseWriter, r *http.Request, alias string) {
	tok := r.URL.Query().Get("t")
	if tok == "" {
		s.recordDenied(r, "missing file token")
		respond.WriteUnauthorized(w, "unauthorized")
		return
	}
	credential, err := s.files.Verify(r.URL.Path, tok)
	if err != nil {
		s.recordDenied(r, "invalid file token")
		respond.WriteUnauthorized(w, "unauthorized")
		return
	}
	if !s.credentialStillValid(r, credential) {
		s.recordDenied(r, "revoked credential in file token")
		respond.WriteUnauthorized(w, "unauthorized")
		return
	}

	var local string
	switch {
	case strings.HasPrefix(alias, paths.ArchivePrefix):
		local, err = s.res.Archive(alias)
	default:
		local, err = s.res.ThumbnailFromAlias(alias)
	}
	if err != nil {
		respond.WriteNotFound(w, "no such file")
		return
	}
	http.ServeFile(w, r, local)
}

// credentialStillValid re-checks the credential sealed into a file token, so
// logging out or revoking a share cuts off file URLs already handed out.
func (s *Server) credentialStillValid(r *http.Request, credential string) bool {
	if credential == "dev" {
		return s.cfg.DevAuthBypass
	}
	if suffix, ok := strings.CutPrefix(credential, shareCredentialPrefix); ok {
		_, err := s.shares.Resolve(r.Context(), suffix)
		return err == nil
	}
	_, err := s.auth.Authenticate(r.Context(), credential)
	return err == nil
}
