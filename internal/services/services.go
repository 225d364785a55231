// Package services assembles the read and annotation API on top of the
// store: nested entity views, raw platform-data access, annotation, media
// parts and signed file URLs.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/auth"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/paths"
	"github.com/openvault/archivist/internal/store"
)

// ViewOptions control how much of the containment tree a view embeds and
// whether media carry signed file URLs. Each flag matches a query parameter
// of the HTTP API.
type ViewOptions struct {
	AccountsWithPosts bool // awp: embed posts under accounts
	PostsWithMedia    bool // pwm: embed media under posts
	MediaWithFiles    bool // mwf: attach signed file and thumbnail URLs
	LocalFilesOnly    bool // lfr: drop media that have no reconstructed file
}

// Browser serves entity views. Credential is the bearer value (login token
// or share suffix) that authorized the request; it is sealed into any file
// URLs handed out so file fetches re-check it.
type Browser struct {
	st         store.Store
	files      *auth.FileTokens
	publicHost string
	log        zerolog.Logger
}

func NewBrowser(st store.Store, files *auth.FileTokens, publicHost string, log zerolog.Logger) *Browser {
	return &Browser{
		st:         st,
		files:      files,
		publicHost: strings.TrimSuffix(publicHost, "/"),
		log:        log,
	}
}

// AccountView is an account with optionally embedded posts.
type AccountView struct {
	*model.Account
	Tags  []*model.TagWithType `json:"tags,omitempty"`
	Posts []*PostView          `json:"posts,omitempty"`
}

// PostView is a post with optionally embedded media.
type PostView struct {
	*model.Post
	Tags  []*model.TagWithType `json:"tags,omitempty"`
	Media []*MediaView         `json:"media,omitempty"`
}

// MediaView is a media row with its parts and, when requested, signed URLs
// for the file and its thumbnail.
type MediaView struct {
	*model.Media
	Tags         []*model.TagWithType `json:"tags,omitempty"`
	Parts        []*model.MediaPart   `json:"parts,omitempty"`
	FileURL      string               `json:"fileUrl,omitempty"`
	ThumbnailURL string               `json:"thumbnailUrl,omitempty"`
}

// SessionView is a session with the archive rows it contributed. The rows
// carry their canonical ids, so a client can cross into the canonical view.
type SessionView struct {
	*model.ArchiveSession
	Tags     []*model.TagWithType `json:"tags,omitempty"`
	Accounts []*model.Account     `json:"accounts,omitempty"`
	Posts    []*model.Post        `json:"posts,omitempty"`
	Media    []*MediaView         `json:"media,omitempty"`
}

func (b *Browser) Account(ctx context.Context, id int64, opts ViewOptions, credential string) (*AccountView, error) {
	a, err := b.st.Accounts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.accountView(ctx, a, opts, credential)
}

func (b *Browser) Accounts(ctx context.Context, limit, offset int, opts ViewOptions, credential string) ([]*AccountView, error) {
	accounts, err := b.st.Accounts().List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*AccountView, 0, len(accounts))
	for _, a := range accounts {
		v, err := b.accountView(ctx, a, opts, credential)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Browser) accountView(ctx context.Context, a *model.Account, opts ViewOptions, credential string) (*AccountView, error) {
	v := &AccountView{Account: a}
	var err error
	if v.Tags, err = b.st.Tags().ListForEntity(ctx, model.KindAccount, a.ID); err != nil {
		return nil, err
	}
	if !opts.AccountsWithPosts {
		return v, nil
	}
	posts, err := b.st.Posts().ListByAccount(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		pv, err := b.postView(ctx, p, opts, credential)
		if err != nil {
			return nil, err
		}
		v.Posts = append(v.Posts, pv)
	}
	return v, nil
}

func (b *Browser) Post(ctx context.Context, id int64, opts ViewOptions, credential string) (*PostView, error) {
	p, err := b.st.Posts().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.postView(ctx, p, opts, credential)
}

func (b *Browser) postView(ctx context.Context, p *model.Post, opts ViewOptions, credential string) (*PostView, error) {
	v := &PostView{Post: p}
	var err error
	if v.Tags, err = b.st.Tags().ListForEntity(ctx, model.KindPost, p.ID); err != nil {
		return nil, err
	}
	if !opts.PostsWithMedia {
		return v, nil
	}
	media, err := b.st.Media().ListByPost(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		mv, err := b.mediaView(ctx, m, opts, credential)
		if err != nil {
			return nil, err
		}
		if mv != nil {
			v.Media = append(v.Media, mv)
		}
	}
	return v, nil
}

func (b *Browser) Media(ctx context.Context, id int64, opts ViewOptions, credential string) (*MediaView, error) {
	m, err := b.st.Media().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := b.mediaView(ctx, m, opts, credential)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("media %d: %w", id, model.ErrNotFound)
	}
	return v, nil
}

// mediaView returns nil (no error) when opts filter the media out.
func (b *Browser) mediaView(ctx context.Context, m *model.Media, opts ViewOptions, credential string) (*MediaView, error) {
	if opts.LocalFilesOnly && m.LocalPath == nil {
		return nil, nil
	}
	v := &MediaView{Media: m}
	var err error
	if v.Tags, err = b.st.Tags().ListForEntity(ctx, model.KindMedia, m.ID); err != nil {
		return nil, err
	}
	if v.Parts, err = b.st.MediaParts().ListByMedia(ctx, m.ID); err != nil {
		return nil, err
	}
	if opts.MediaWithFiles {
		if m.LocalPath != nil {
			if v.FileURL, err = b.FileURL(*m.LocalPath, credential); err != nil {
				return nil, err
			}
		}
		if m.ThumbnailPath != nil && !m.ThumbnailFailed() {
			if v.ThumbnailURL, err = b.FileURL(*m.ThumbnailPath, credential); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func (b *Browser) Session(ctx context.Context, id int64, opts ViewOptions, credential string) (*SessionView, error) {
	s, err := b.st.Sessions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &SessionView{ArchiveSession: s}
	if v.Tags, err = b.st.Tags().ListForEntity(ctx, model.KindSession, s.ID); err != nil {
		return nil, err
	}
	if v.Accounts, err = b.st.Accounts().ListBySession(ctx, s.ID); err != nil {
		return nil, err
	}
	if v.Posts, err = b.st.Posts().ListBySession(ctx, s.ID); err != nil {
		return nil, err
	}
	media, err := b.st.Media().ListBySession(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range media {
		mv, err := b.mediaView(ctx, m, opts, credential)
		if err != nil {
			return nil, err
		}
		if mv != nil {
			v.Media = append(v.Media, mv)
		}
	}
	return v, nil
}

func (b *Browser) Sessions(ctx context.Context, limit, offset int) ([]*model.ArchiveSession, error) {
	return b.st.Sessions().List(ctx, limit, offset)
}

// Data returns the raw platform payload of one entity, for clients that want
// the fields the normalized columns do not carry.
// SessionsForEntity lists the capture sessions in which a canonical entity
// was observed, oldest first.
func (b *Browser) SessionsForEntity(ctx context.Context, entity model.EntityKind, id int64) ([]*model.ArchiveSession, error) {
	return b.st.Sessions().ListForEntity(ctx, entity, id)
}

func (b *Browser) Data(ctx context.Context, entity model.EntityKind, id int64) (json.RawMessage, error) {
	var data map[string]any
	switch entity {
	case model.KindAccount:
		a, err := b.st.Accounts().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		data = a.Data
	case model.KindPost:
		p, err := b.st.Posts().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		data = p.Data
	case model.KindMedia:
		m, err := b.st.Media().GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		data = m.Data
	default:
		return nil, fmt.Errorf("entity %q has no data payload", entity)
	}
	if data == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(data)
}

// Annotate replaces the notes and tag set of an entity.
func (b *Browser) Annotate(ctx context.Context, entity model.EntityKind, id int64, ann model.Annotation) error {
	var err error
	switch entity {
	case model.KindSession:
		err = b.st.Sessions().SetNotes(ctx, id, ann.Notes)
	case model.KindAccount:
		err = b.st.Accounts().SetNotes(ctx, id, ann.Notes)
	case model.KindPost:
		err = b.st.Posts().SetNotes(ctx, id, ann.Notes)
	case model.KindMedia:
		err = b.st.Media().SetNotes(ctx, id, ann.Notes)
	case model.KindMediaPart:
		var part *model.MediaPart
		if part, err = b.st.MediaParts().GetByID(ctx, id); err == nil {
			part.Notes = ann.Notes
			err = b.st.MediaParts().Update(ctx, part)
		}
	default:
		return fmt.Errorf("entity %q is not annotatable", entity)
	}
	if err != nil {
		return err
	}
	return b.st.Tags().SetForEntity(ctx, entity, id, ann.Tags)
}

// CreateMediaPart checks the parent media exists before inserting.
func (b *Browser) CreateMediaPart(ctx context.Context, part *model.MediaPart) (*model.MediaPart, error) {
	if _, err := b.st.Media().GetByID(ctx, part.MediaID); err != nil {
		return nil, err
	}
	return b.st.MediaParts().Create(ctx, part)
}

func (b *Browser) DeleteMediaPart(ctx context.Context, id int64) error {
	return b.st.MediaParts().Delete(ctx, id)
}

// FileURL signs a stored alias into an absolute, token-guarded URL.
func (b *Browser) FileURL(alias, credential string) (string, error) {
	var urlPath string
	switch {
	case strings.HasPrefix(alias, paths.ArchivePrefix):
		urlPath = "/archives/" + strings.TrimPrefix(alias, paths.ArchivePrefix)
	case strings.HasPrefix(alias, paths.ThumbnailPrefix):
		urlPath = "/thumbnails/" + strings.TrimPrefix(alias, paths.ThumbnailPrefix)
	default:
		return "", fmt.Errorf("path %q: unknown storage alias", alias)
	}
	token, err := b.files.Sign(urlPath, credential)
	if err != nil {
		return "", err
	}
	return b.publicHost + urlPath + "?t=" + token, nil
}
