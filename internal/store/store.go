// Package store defines the persistence interfaces of the archivist service.
// Implementations live under internal/store/sqlstore with driver-specific
// open helpers in internal/store/postgres and internal/store/sqlite.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openvault/archivist/internal/model"
)

// Store exposes the persistence operations required by the pipeline and the
// HTTP services. Entity repositories read and write both the canonical and
// the per-session archive tables.
type Store interface {
	Accounts() Accounts
	Posts() Posts
	Media() Media
	MediaParts() MediaParts
	Sessions() Sessions
	Users() Users
	Tokens() Tokens
	Shares() Shares
	Tags() Tags
	Events() Events

	// BeginSession opens a transaction bracketing one archive session's
	// entity writes.
	BeginSession(ctx context.Context) (Tx, error)

	// SearchRows runs a filtered read over one whitelisted table. The where
	// clause uses ? placeholders and must come from the filter compiler.
	SearchRows(ctx context.Context, table, where string, args []any, limit, offset int) ([]map[string]any, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is a Store view bound to one transaction.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Accounts persists profiles. Find* return model.ErrNotFound when no row
// matches either identity key.
type Accounts interface {
	FindCanonical(ctx context.Context, ident model.Identity) (*model.Account, error)
	FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Account, error)
	SaveCanonical(ctx context.Context, a *model.Account) (int64, error)
	SaveArchive(ctx context.Context, a *model.Account) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	List(ctx context.Context, limit, offset int) ([]*model.Account, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Account, error)
	SetNotes(ctx context.Context, id int64, notes *string) error
}

// Posts persists publications.
type Posts interface {
	FindCanonical(ctx context.Context, ident model.Identity) (*model.Post, error)
	FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Post, error)
	SaveCanonical(ctx context.Context, p *model.Post) (int64, error)
	SaveArchive(ctx context.Context, p *model.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*model.Post, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Post, error)
	SetNotes(ctx context.Context, id int64, notes *string) error
}

// Media persists assets and their thumbnail state.
type Media interface {
	FindCanonical(ctx context.Context, ident model.Identity) (*model.Media, error)
	FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Media, error)
	SaveCanonical(ctx context.Context, m *model.Media) (int64, error)
	SaveArchive(ctx context.Context, m *model.Media) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Media, error)
	ListByPost(ctx context.Context, postID int64) ([]*model.Media, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*model.Media, error)
	SetNotes(ctx context.Context, id int64, notes *string) error

	// NextWithoutThumbnail returns one canonical media row with a local file
	// and no thumbnail outcome yet, or model.ErrNotFound.
	NextWithoutThumbnail(ctx context.Context) (*model.Media, error)
	SetThumbnail(ctx context.Context, id int64, path string) error
}

// MediaParts persists user-defined excerpts of media.
type MediaParts interface {
	Create(ctx context.Context, p *model.MediaPart) (*model.MediaPart, error)
	GetByID(ctx context.Context, id int64) (*model.MediaPart, error)
	ListByMedia(ctx context.Context, mediaID int64) ([]*model.MediaPart, error)
	Update(ctx context.Context, p *model.MediaPart) error
	Delete(ctx context.Context, id int64) error
}

// ParsedSession carries the outputs of a successful parse stage.
type ParsedSession struct {
	Version       int
	ArchivedURL   *string
	ArchivingTime *time.Time
	Metadata      json.RawMessage
	Structures    json.RawMessage
	Attachments   json.RawMessage
	Notes         *string
}

// Sessions persists archive sessions and their stage progress.
type Sessions interface {
	Create(ctx context.Context, s *model.ArchiveSession) (*model.ArchiveSession, error)
	GetByID(ctx context.Context, id int64) (*model.ArchiveSession, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.ArchiveSession, error)
	List(ctx context.Context, limit, offset int) ([]*model.ArchiveSession, error)

	// NextPending returns the least-progressed session with no recorded
	// extraction error, or model.ErrNotFound when every session is done.
	NextPending(ctx context.Context) (*model.ArchiveSession, error)

	// ListForEntity returns the sessions whose archive rows observed the
	// given canonical account, post or media, oldest first.
	ListForEntity(ctx context.Context, entity model.EntityKind, canonicalID int64) ([]*model.ArchiveSession, error)

	SetParsed(ctx context.Context, id int64, p ParsedSession) error
	SetExtracted(ctx context.Context, id int64, version int) error
	SetExtractionError(ctx context.Context, id int64, message string) error
	SetNotes(ctx context.Context, id int64, notes *string) error
}

// Users persists operator accounts.
type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
}

// Tokens persists login tokens.
type Tokens interface {
	Create(ctx context.Context, t *model.AuthToken) (*model.AuthToken, error)
	GetByToken(ctx context.Context, token string) (*model.AuthToken, error)
	Touch(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID int64) error
}

// Shares persists share links.
type Shares interface {
	Create(ctx context.Context, s *model.ShareLink) (*model.ShareLink, error)
	GetBySuffix(ctx context.Context, suffix string) (*model.ShareLink, error)
	ListByEntity(ctx context.Context, entity model.EntityKind, entityID int64) ([]*model.ShareLink, error)
	Invalidate(ctx context.Context, id int64) error
}

// Tags persists labels and their entity assignments.
type Tags interface {
	Create(ctx context.Context, t *model.Tag) (*model.Tag, error)
	Autocomplete(ctx context.Context, query string, limit int) ([]*model.TagWithType, error)
	SetForEntity(ctx context.Context, entity model.EntityKind, entityID int64, tagIDs []int64) error
	ListForEntity(ctx context.Context, entity model.EntityKind, entityID int64) ([]*model.TagWithType, error)
}

// Events appends to the audit log.
type Events interface {
	Record(ctx context.Context, e *model.Event) error
	List(ctx context.Context, limit, offset int) ([]*model.Event, error)
}
