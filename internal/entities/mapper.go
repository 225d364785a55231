package entities

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/assets"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/structures"
)

const (
	postURLPrefix    = "https://www.instagram.com/p/"
	accountURLPrefix = "https://www.instagram.com/"
)

// SinglePost is a mapped post grouped with its media.
type SinglePost struct {
	Post  model.Post
	Media []model.Media
}

// Extracted is the full yield of one archive's structures, in emission
// order. Duplicates across structures are expected; the reconciler folds
// them at persistence time.
type Extracted struct {
	Accounts []model.Account
	Posts    []SinglePost
}

// Flatten returns the media of every post as one list.
func (e *Extracted) Flatten() (posts []model.Post, media []model.Media) {
	for _, sp := range e.Posts {
		posts = append(posts, sp.Post)
		media = append(media, sp.Media...)
	}
	return posts, media
}

// Map walks the structures of one archive and emits normalized entities.
// localFiles joins canonical asset URLs to reconstructed files; media without
// a local file keep an empty local path. Items without a numeric platform id
// or an author username are logged and skipped.
func Map(structs []structures.Structure, localFiles map[string]string, log zerolog.Logger) Extracted {
	m := &mapper{localFiles: localFiles, log: log}
	for i := range structs {
		s := &structs[i]
		switch {
		case s.GraphQL != nil:
			m.mapGraphQL(s.GraphQL)
		case s.APIV1 != nil:
			m.mapAPIV1(s.APIV1)
		case s.Page != nil:
			m.mapPage(s.Page)
		}
	}
	return m.out
}

type mapper struct {
	localFiles map[string]string
	log        zerolog.Logger
	out        Extracted
}

func (m *mapper) mapGraphQL(g *structures.GraphQL) {
	if g.ProfileTimeline != nil {
		for i := range g.ProfileTimeline.Edges {
			m.mapItem(&g.ProfileTimeline.Edges[i].Node, nil)
		}
	}
	if g.ReelsMedia != nil {
		m.mapReels(reels(g.ReelsMedia))
	}
	if g.StoriesFeed != nil {
		m.mapReels(g.StoriesFeed.ReelsMedia)
	}
	if g.Clips != nil {
		for i := range g.Clips.Edges {
			m.mapItem(&g.Clips.Edges[i].Node.Media, nil)
		}
	}
	if g.SuggestedUsers != nil {
		for i := range g.SuggestedUsers.Users {
			m.mapAccount(&g.SuggestedUsers.Users[i])
		}
	}
}

func (m *mapper) mapAPIV1(a *structures.APIV1) {
	if a.MediaInfo != nil {
		for i := range a.MediaInfo.Items {
			m.mapItem(&a.MediaInfo.Items[i], nil)
		}
	}
	if a.Friendships != nil {
		for i := range a.Friendships.Users {
			m.mapAccount(&a.Friendships.Users[i])
		}
	}
	if a.Likers != nil {
		for i := range a.Likers.Users {
			m.mapAccount(&a.Likers.Users[i])
		}
	}
}

func (m *mapper) mapPage(p *structures.Page) {
	if p.Posts != nil {
		for i := range p.Posts.Items {
			m.mapItem(&p.Posts.Items[i], nil)
		}
	}
	if p.HighlightReels != nil {
		m.mapReels(reels(p.HighlightReels))
	}
	if p.Stories != nil {
		m.mapReels(p.Stories.ReelsMedia)
	}
}

func reels(c *structures.ReelsConnection) []structures.Reel {
	out := make([]structures.Reel, 0, len(c.Edges))
	for _, e := range c.Edges {
		out = append(out, e.Node)
	}
	return out
}

// mapReels emits the reel's owner once and one post per reel item. Reel
// items carry only a bare user reference, so the reel-level user supplies the
// account.
func (m *mapper) mapReels(rs []structures.Reel) {
	for i := range rs {
		r := &rs[i]
		acct := m.mapAccount(r.User)
		for j := range r.Items {
			m.mapItem(&r.Items[j], acct)
		}
	}
}

// mapAccount emits an account for the user and returns it; nil when the user
// carries no username (no stable URL can be formed).
func (m *mapper) mapAccount(u *structures.User) *model.Account {
	if u == nil || u.Username == "" {
		return nil
	}
	acct := model.Account{
		URL:  accountURLPrefix + u.Username + "/",
		Data: u.Raw,
	}
	if u.PK != "" {
		acct.PlatformID = ptr(string(u.PK))
	}
	if u.FullName != "" {
		acct.DisplayName = ptr(u.FullName)
	}
	m.out.Accounts = append(m.out.Accounts, acct)
	return &m.out.Accounts[len(m.out.Accounts)-1]
}

// mapItem emits a post, its author's account and its media. owner, when
// non-nil, overrides the item's own author (reel items).
func (m *mapper) mapItem(item *structures.Item, owner *model.Account) {
	pk, err := item.PK.Int64()
	if err != nil {
		m.log.Warn().Str("pk", string(item.PK)).Msg("skipping item without a numeric platform id")
		return
	}

	acct := owner
	if acct == nil {
		acct = m.mapAccount(item.Author())
	}
	if acct == nil {
		m.log.Warn().Str("pk", string(item.PK)).Msg("skipping item without an author")
		return
	}

	post := model.Post{
		URL:        postURLPrefix + Shortcode(pk),
		PlatformID: ptr(string(item.PK)),
		AccountURL: &acct.URL,
		Data:       item.Raw,
	}
	post.AccountPlatform = acct.PlatformID
	if item.TakenAt > 0 {
		post.PublicationDate = ptr(time.Unix(item.TakenAt, 0).UTC())
	}
	if c := item.CaptionText(); c != "" {
		post.Caption = ptr(c)
	}

	sp := SinglePost{Post: post}
	if u := item.BestURL(); u != "" {
		sp.Media = append(sp.Media, m.buildMedia(item, &post, string(item.PK), u, item.IsVideo(), true))
	}
	for i := range item.CarouselMedia {
		child := &item.CarouselMedia[i]
		u := child.BestURL()
		if u == "" {
			continue
		}
		// carousel children report media_type 1 for images
		isVideo := child.MediaType != 1
		sp.Media = append(sp.Media, m.buildMedia(child, &post, string(child.PK), u, isVideo, false))
	}
	m.out.Posts = append(m.out.Posts, sp)
}

// buildMedia forms one media row. The parent item's data blob drops the
// carousel children (each child carries its own blob).
func (m *mapper) buildMedia(item *structures.Item, post *model.Post, platformID, rawURL string, isVideo, parent bool) model.Media {
	md := model.Media{
		URL:          assets.CanonicalURL(rawURL),
		PostURL:      &post.URL,
		PostPlatform: post.PlatformID,
		Kind:         model.MediaImage,
	}
	if isVideo {
		md.Kind = model.MediaVideo
	}
	if platformID != "" {
		md.PlatformID = ptr(platformID)
	}
	if parent {
		md.Data = withoutCarousel(item.Raw)
	} else {
		md.Data = item.Raw
	}
	if local, ok := m.localFiles[md.URL]; ok {
		md.LocalPath = ptr(local)
	}
	return md
}

func withoutCarousel(raw map[string]any) map[string]any {
	if _, ok := raw["carousel_media"]; !ok {
		return raw
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "carousel_media" {
			continue
		}
		out[k] = v
	}
	return out
}

func ptr[T any](v T) *T { return &v }
