package structures

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/har"
)

// GraphQL holds the typed payloads recoverable from one graphql/query
// exchange. Which field is set depends on the X-FB-Friendly-Name header.
type GraphQL struct {
	ProfileTimeline *Connection      `json:"profile_timeline,omitempty"`
	SuggestedUsers  *UserList        `json:"suggested_users,omitempty"`
	ReelsMedia      *ReelsConnection `json:"reels_media,omitempty"`
	StoriesFeed     *StoriesFeed     `json:"stories_feed,omitempty"`
	Clips           *ClipsConnection `json:"clips,omitempty"`
}

func (g *GraphQL) empty() bool {
	return g.ProfileTimeline == nil && g.SuggestedUsers == nil &&
		g.ReelsMedia == nil && g.StoriesFeed == nil && g.Clips == nil
}

// APIV1 holds the typed payloads recoverable from one api/v1 media exchange.
type APIV1 struct {
	Friendships *UserList `json:"friendships,omitempty"`
	Likers      *UserList `json:"likers,omitempty"`
	Comments    *Comments `json:"comments,omitempty"`
	MediaInfo   *ItemList `json:"media_info,omitempty"`
}

func (a *APIV1) empty() bool {
	return a.Friendships == nil && a.Likers == nil && a.Comments == nil && a.MediaInfo == nil
}

// Page holds the typed payloads recoverable from the JSON blocks embedded in
// one server-rendered HTML document.
type Page struct {
	Posts          *ItemList        `json:"posts,omitempty"`
	Timeline       *ItemList        `json:"timeline,omitempty"`
	HighlightReels *ReelsConnection `json:"highlight_reels,omitempty"`
	Stories        *StoriesFeed     `json:"stories,omitempty"`
	Comments       *Comments        `json:"comments,omitempty"`
}

func (p *Page) empty() bool {
	return p.Posts == nil && p.Timeline == nil && p.HighlightReels == nil &&
		p.Stories == nil && p.Comments == nil
}

// Structure is one recognized payload tied back to the request that carried
// it. Exactly one of GraphQL, APIV1 and Page is set.
type Structure struct {
	URL     string   `json:"url"`
	Context string   `json:"context,omitempty"`
	GraphQL *GraphQL `json:"graphql,omitempty"`
	APIV1   *APIV1   `json:"api_v1,omitempty"`
	Page    *Page    `json:"page,omitempty"`
}

// Friendly-name header values selecting the GraphQL decode.
const (
	queryProfilePosts           = "PolarisProfilePostsQuery"
	queryProfilePostsConnection = "PolarisProfilePostsTabContentQuery_connection"
	querySuggestedUsers         = "PolarisProfileSuggestedUsersWithPreloadableQuery"
	queryHighlightsPage         = "PolarisStoriesV3HighlightsPageQuery"
	queryHighlightsPagination   = "PolarisStoriesV3HighlightsPagePaginationQuery"
	queryReelStandalone         = "PolarisStoriesV3ReelPageStandaloneQuery"
	queryProfileReels           = "PolarisProfileReelsTabContentQuery"
)

// Root keys under data in GraphQL responses, reused as the keywords located
// inside embedded HTML JSON blocks.
const (
	keyUserTimeline    = "xdt_api__v1__feed__user_timeline_graphql_connection"
	keyDiscoChaining   = "xdt_api__v1__discover__chaining"
	keyReelsConnection = "xdt_api__v1__feed__reels_media__connection"
	keyReelsMedia      = "xdt_api__v1__feed__reels_media"
	keyClipsConnection = "xdt_api__v1__clips__user__connection_v2"
	keyShortcodeInfo   = "xdt_api__v1__media__shortcode__web_info"
	keyProfileTimeline = "xdt_api__v1__profile_timeline"
	keyComments        = "xdt_api__v1__media__media_id__comments__connection"
)

// FromEntry recognizes and decodes one capture entry. Entries that carry no
// recognizable payload yield (nil, nil).
func FromEntry(e *har.Entry) (*Structure, error) {
	switch {
	case strings.Contains(e.Request.URL, "graphql/query"):
		g, err := fromGraphQL(e)
		if err != nil || g == nil {
			return nil, err
		}
		return &Structure{URL: e.Request.URL, Context: postData(e), GraphQL: g}, nil
	case strings.Contains(e.Request.URL, "instagram.com/api/v1/media/"):
		a, err := fromAPIV1(e)
		if err != nil || a == nil {
			return nil, err
		}
		return &Structure{URL: e.Request.URL, Context: postData(e), APIV1: a}, nil
	case e.IsHTML():
		p, err := fromHTML(e)
		if err != nil || p == nil {
			return nil, err
		}
		return &Structure{URL: e.Request.URL, Page: p}, nil
	}
	return nil, nil
}

// FromHAR streams the whole capture and collects every recognized structure
// in entry order. Decode failures are logged and skipped.
func FromHAR(path string, log zerolog.Logger) ([]Structure, error) {
	sc, err := har.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sc.Close() }()

	var out []Structure
	for {
		e, err := sc.Next()
		if err != nil {
			break
		}
		st, err := FromEntry(e)
		if err != nil {
			log.Warn().Err(err).Str("url", e.Request.URL).Msg("skipping undecodable entry")
			continue
		}
		if st != nil {
			out = append(out, *st)
		}
	}
	if n := sc.Skipped(); n > 0 {
		log.Warn().Int("skipped", n).Str("archive", path).Msg("capture contained malformed entries")
	}
	return out, nil
}

func postData(e *har.Entry) string {
	if e.Request.PostData == nil {
		return ""
	}
	return e.Request.PostData.Text
}

func fromGraphQL(e *har.Entry) (*GraphQL, error) {
	name := e.RequestHeader("X-FB-Friendly-Name")
	if name == "" {
		return nil, nil
	}
	body, err := e.Body()
	if err != nil || len(body) == 0 {
		return nil, err
	}
	var envelope struct {
		Data map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("graphql envelope: %w", err)
	}

	g := &GraphQL{}
	decode := func(key string, dst any) error {
		raw, ok := envelope.Data[key]
		if !ok {
			return fmt.Errorf("graphql response missing %s", key)
		}
		return json.Unmarshal(raw, dst)
	}

	switch name {
	case queryProfilePosts, queryProfilePostsConnection:
		g.ProfileTimeline = &Connection{}
		err = decode(keyUserTimeline, g.ProfileTimeline)
	case querySuggestedUsers:
		g.SuggestedUsers = &UserList{}
		err = decode(keyDiscoChaining, g.SuggestedUsers)
	case queryHighlightsPage, queryHighlightsPagination:
		g.ReelsMedia = &ReelsConnection{}
		err = decode(keyReelsConnection, g.ReelsMedia)
	case queryReelStandalone:
		g.StoriesFeed = &StoriesFeed{}
		err = decode(keyReelsMedia, g.StoriesFeed)
	case queryProfileReels:
		g.Clips = &ClipsConnection{}
		err = decode(keyClipsConnection, g.Clips)
	}
	if err != nil {
		return nil, err
	}
	if g.empty() {
		return nil, nil
	}
	return g, nil
}

func fromAPIV1(e *har.Entry) (*APIV1, error) {
	body, err := e.Body()
	if err != nil || len(body) == 0 {
		return nil, err
	}
	a := &APIV1{}
	switch {
	case strings.Contains(e.Request.URL, "/friendships/"):
		a.Friendships = &UserList{}
		err = json.Unmarshal(body, a.Friendships)
	case strings.Contains(e.Request.URL, "/likers/"):
		a.Likers = &UserList{}
		err = json.Unmarshal(body, a.Likers)
	case strings.Contains(e.Request.URL, "/comments/"):
		a.Comments = &Comments{}
		err = json.Unmarshal(body, a.Comments)
	case strings.Contains(e.Request.URL, "/info/"):
		a.MediaInfo = &ItemList{}
		err = json.Unmarshal(body, a.MediaInfo)
	}
	if err != nil {
		return nil, err
	}
	if a.empty() {
		return nil, nil
	}
	return a, nil
}
