package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/openvault/archivist/internal/api/respond"
	"github.com/openvault/archivist/internal/model"
)

// shareCredentialPrefix distinguishes share suffixes from login tokens when a
// bearer value is sealed into a file URL.
const shareCredentialPrefix = "share:"

// principal is the authenticated caller: an operator with a login token, or
// an anonymous visitor holding a share link.
type principal struct {
	user       *model.User
	share      *model.ShareLink
	credential string
}

type ctxKey int

const principalKey ctxKey = 0

func principalFrom(r *http.Request) *principal {
	p, _ := r.Context().Value(principalKey).(*principal)
	return p
}

// bearerToken pulls the credential from the Authorization header or, for
// links that cannot carry headers, the "token" query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// authenticate resolves the request credential into a principal. A login
// token takes precedence; a "share" parameter is accepted on its own for
// sessionless access. Failed attempts are recorded in the event log.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.DevAuthBypass {
			p := &principal{user: &model.User{Admin: true}, credential: "dev"}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
			return
		}

		if tok := bearerToken(r); tok != "" {
			u, err := s.auth.Authenticate(r.Context(), tok)
			if err == nil {
				p := &principal{user: u, credential: tok}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
				return
			}
			s.recordDenied(r, "invalid login token")
			respond.WriteUnauthorized(w, "unauthorized")
			return
		}

		if suffix := r.URL.Query().Get("share"); suffix != "" {
			link, err := s.shares.Resolve(r.Context(), suffix)
			if err == nil {
				p := &principal{share: link, credential: shareCredentialPrefix + suffix}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
				return
			}
			s.recordDenied(r, "invalid share link")
			respond.WriteUnauthorized(w, "unauthorized")
			return
		}

		s.recordDenied(r, "no credential")
		respond.WriteUnauthorized(w, "unauthorized")
	})
}

func (s *Server) recordDenied(r *http.Request, reason string) {
	e := &model.Event{
		Type:    "unauthorized_access",
		Details: r.Method + " " + r.URL.Path + ": " + reason,
	}
	if err := s.st.Events().Record(r.Context(), e); err != nil {
		s.log.Warn().Err(err).Msg("failed to record denied access")
	}
}

// requireUser rejects share principals. Mutations and listing endpoints are
// operator-only; share links grant reads on one subtree.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *principal {
	p := principalFrom(r)
	if p == nil || p.user == nil {
		respond.WriteForbidden(w, "login required")
		return nil
	}
	return p
}

// authorizeEntity checks that the principal may read the given entity: users
// see everything, share holders only the shared subtree.
func (s *Server) authorizeEntity(w http.ResponseWriter, r *http.Request, kind model.EntityKind, id int64) *principal {
	p := principalFrom(r)
	if p == nil {
		respond.WriteUnauthorized(w, "unauthorized")
		return nil
	}
	if p.user != nil {
		return p
	}
	if err := s.shares.Authorize(r.Context(), p.share, kind, id); err != nil {
		s.recordDenied(r, "share link does not cover entity")
		respond.WriteForbidden(w, "not covered by share link")
		return nil
	}
	return p
}
