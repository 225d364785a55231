// Package intake persists extracted entities into the dual-table layout: a
// canonical row folding every observation of an entity, plus one archive row
// per session preserving exactly what that session contributed.
package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/entities"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/reconcile"
	"github.com/openvault/archivist/internal/store"
)

// Loader writes one session's entities through a transactional store view.
type Loader struct {
	st        store.Store
	sessionID int64
	log       zerolog.Logger

	// canonical ids resolved so far, keyed by url and platform id
	accountByURL  map[string]int64
	accountByPlat map[string]int64
	postByURL     map[string]int64
	postByPlat    map[string]int64
}

func NewLoader(st store.Store, sessionID int64, log zerolog.Logger) *Loader {
	return &Loader{
		st:            st,
		sessionID:     sessionID,
		log:           log,
		accountByURL:  make(map[string]int64),
		accountByPlat: make(map[string]int64),
		postByURL:     make(map[string]int64),
		postByPlat:    make(map[string]int64),
	}
}

// Run persists accounts first, then posts, then media, so that foreign keys
// resolve against canonical rows created earlier in the same pass.
func (l *Loader) Run(ctx context.Context, ext entities.Extracted) error {
	for i := range ext.Accounts {
		if err := l.loadAccount(ctx, ext.Accounts[i]); err != nil {
			return err
		}
	}
	posts, media := ext.Flatten()
	for i := range posts {
		if err := l.loadPost(ctx, posts[i]); err != nil {
			return err
		}
	}
	for i := range media {
		if err := l.loadMedia(ctx, media[i]); err != nil {
			return err
		}
	}
	l.log.Info().
		Int64("sessionId", l.sessionID).
		Int("accounts", len(ext.Accounts)).
		Int("posts", len(posts)).
		Int("media", len(media)).
		Msg("entities persisted")
	return nil
}

func (l *Loader) loadAccount(ctx context.Context, a model.Account) error {
	repo := l.st.Accounts()

	existing, err := repo.FindCanonical(ctx, a.Identity())
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	merged := reconcile.Account(a, existing)
	canonicalID, err := repo.SaveCanonical(ctx, &merged)
	if err != nil {
		return err
	}

	archived, err := repo.FindArchive(ctx, a.Identity(), l.sessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	arc := reconcile.Account(a, archived)
	arc.SessionID = l.sessionID
	arc.CanonicalID = canonicalID
	if _, err := repo.SaveArchive(ctx, &arc); err != nil {
		return err
	}

	l.accountByURL[merged.URL] = canonicalID
	if merged.PlatformID != nil {
		l.accountByPlat[*merged.PlatformID] = canonicalID
	}
	return nil
}

func (l *Loader) loadPost(ctx context.Context, p model.Post) error {
	accountID, err := l.resolveAccount(ctx, p.AccountURL, p.AccountPlatform)
	if err != nil {
		return fmt.Errorf("post %s: %w", p.URL, err)
	}
	p.AccountID = &accountID

	repo := l.st.Posts()
	existing, err := repo.FindCanonical(ctx, p.Identity())
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	merged := reconcile.Post(p, existing)
	canonicalID, err := repo.SaveCanonical(ctx, &merged)
	if err != nil {
		return err
	}

	archived, err := repo.FindArchive(ctx, p.Identity(), l.sessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	arc := reconcile.Post(p, archived)
	arc.SessionID = l.sessionID
	arc.CanonicalID = canonicalID
	if _, err := repo.SaveArchive(ctx, &arc); err != nil {
		return err
	}

	l.postByURL[merged.URL] = canonicalID
	if merged.PlatformID != nil {
		l.postByPlat[*merged.PlatformID] = canonicalID
	}
	return nil
}

func (l *Loader) loadMedia(ctx context.Context, m model.Media) error {
	postID, err := l.resolvePost(ctx, m.PostURL, m.PostPlatform)
	if err != nil {
		return fmt.Errorf("media %s: %w", m.URL, err)
	}
	m.PostID = &postID

	repo := l.st.Media()
	existing, err := repo.FindCanonical(ctx, m.Identity())
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	merged := reconcile.Media(m, existing)
	canonicalID, err := repo.SaveCanonical(ctx, &merged)
	if err != nil {
		return err
	}

	archived, err := repo.FindArchive(ctx, m.Identity(), l.sessionID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	arc := reconcile.Media(m, archived)
	arc.SessionID = l.sessionID
	arc.CanonicalID = canonicalID
	_, err = repo.SaveArchive(ctx, &arc)
	return err
}

// resolveAccount returns the canonical account id for a post's parent,
// preferring ids resolved earlier in this pass. Entities arrive parent-first,
// so a miss here means the archive referenced an account it never described.
func (l *Loader) resolveAccount(ctx context.Context, url, platformID *string) (int64, error) {
	if url != nil {
		if id, ok := l.accountByURL[*url]; ok {
			return id, nil
		}
	}
	if platformID != nil {
		if id, ok := l.accountByPlat[*platformID]; ok {
			return id, nil
		}
	}
	if url == nil && platformID == nil {
		return 0, fmt.Errorf("no account reference")
	}
	ident := model.Identity{PlatformID: platformID}
	if url != nil {
		ident.URL = *url
	}
	a, err := l.st.Accounts().FindCanonical(ctx, ident)
	if err != nil {
		return 0, fmt.Errorf("resolve account: %w", err)
	}
	return a.ID, nil
}

func (l *Loader) resolvePost(ctx context.Context, url, platformID *string) (int64, error) {
	if url != nil {
		if id, ok := l.postByURL[*url]; ok {
			return id, nil
		}
	}
	if platformID != nil {
		if id, ok := l.postByPlat[*platformID]; ok {
			return id, nil
		}
	}
	if url == nil && platformID == nil {
		return 0, fmt.Errorf("no post reference")
	}
	ident := model.Identity{PlatformID: platformID}
	if url != nil {
		ident.URL = *url
	}
	p, err := l.st.Posts().FindCanonical(ctx, ident)
	if err != nil {
		return 0, fmt.Errorf("resolve post: %w", err)
	}
	return p.ID, nil
}
