// Package sharing issues and checks share links: unguessable URLs granting
// sessionless read access to one entity and everything beneath it.
package sharing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
)

const (
	suffixLength   = 24
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Service manages share links.
type Service struct {
	st  store.Store
	log zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{st: st, log: log}
}

// Create issues a link for the entity after checking it exists.
func (s *Service) Create(ctx context.Context, userID int64, entity model.EntityKind, entityID int64) (*model.ShareLink, error) {
	if err := s.entityExists(ctx, entity, entityID); err != nil {
		return nil, err
	}
	suffix, err := randomSuffix()
	if err != nil {
		return nil, err
	}
	link, err := s.st.Shares().Create(ctx, &model.ShareLink{
		CreatedBy: userID,
		Entity:    entity,
		EntityID:  entityID,
		Valid:     true,
		Suffix:    suffix,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("entity", string(entity)).Int64("entityId", entityID).Msg("share link created")
	return link, nil
}

// Resolve maps a suffix to its link. Revoked or unknown suffixes both come
// back as model.ErrUnauthorized so callers cannot distinguish them.
func (s *Service) Resolve(ctx context.Context, suffix string) (*model.ShareLink, error) {
	link, err := s.st.Shares().GetBySuffix(ctx, suffix)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthorized
		}
		return nil, err
	}
	if !link.Valid {
		return nil, model.ErrUnauthorized
	}
	return link, nil
}

// Invalidate revokes a link by suffix.
func (s *Service) Invalidate(ctx context.Context, suffix string) error {
	link, err := s.st.Shares().GetBySuffix(ctx, suffix)
	if err != nil {
		return err
	}
	return s.st.Shares().Invalidate(ctx, link.ID)
}

// Authorize reports whether the link grants access to the entity: it does
// when the shared entity is the requested one or any ancestor of it (a shared
// account covers its posts, their media and media parts).
func (s *Service) Authorize(ctx context.Context, link *model.ShareLink, entity model.EntityKind, entityID int64) error {
	kind, id := entity, entityID
	for {
		if link.Entity == kind && link.EntityID == id {
			return nil
		}
		parentKind, parentID, err := s.parent(ctx, kind, id)
		if err != nil {
			return err
		}
		if parentKind == "" {
			return model.ErrUnauthorized
		}
		kind, id = parentKind, parentID
	}
}

// parent walks one step up the containment chain. An empty kind means the
// top was reached.
func (s *Service) parent(ctx context.Context, kind model.EntityKind, id int64) (model.EntityKind, int64, error) {
	switch kind {
	case model.KindMediaPart:
		p, err := s.st.MediaParts().GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		return model.KindMedia, p.MediaID, nil
	case model.KindMedia:
		m, err := s.st.Media().GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		if m.PostID == nil {
			return "", 0, nil
		}
		return model.KindPost, *m.PostID, nil
	case model.KindPost:
		p, err := s.st.Posts().GetByID(ctx, id)
		if err != nil {
			return "", 0, err
		}
		if p.AccountID == nil {
			return "", 0, nil
		}
		return model.KindAccount, *p.AccountID, nil
	default:
		return "", 0, nil
	}
}

func (s *Service) entityExists(ctx context.Context, entity model.EntityKind, id int64) error {
	var err error
	switch entity {
	case model.KindSession:
		_, err = s.st.Sessions().GetByID(ctx, id)
	case model.KindAccount:
		_, err = s.st.Accounts().GetByID(ctx, id)
	case model.KindPost:
		_, err = s.st.Posts().GetByID(ctx, id)
	case model.KindMedia:
		_, err = s.st.Media().GetByID(ctx, id)
	case model.KindMediaPart:
		_, err = s.st.MediaParts().GetByID(ctx, id)
	default:
		return fmt.Errorf("unknown entity kind %q", entity)
	}
	return err
}

func randomSuffix() (string, error) {
	out := make([]byte, suffixLength)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate share suffix: %w", err)
		}
		out[i] = suffixAlphabet[n.Int64()]
	}
	return string(out), nil
}
