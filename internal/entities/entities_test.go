package entities

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/structures"
)

func TestShortcodeKnownValues(t *testing.T) {
	// 1 → "B", 63 → "_", 64 → "BA"
	assert.Equal(t, "B", Shortcode(1))
	assert.Equal(t, "_", Shortcode(63))
	assert.Equal(t, "BA", Shortcode(64))
	assert.Equal(t, "", Shortcode(0))
}

func TestShortcodeRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 64, 4095, 3141592653589793, 1<<62 + 7} {
		code := Shortcode(id)
		back, err := MediaID(code)
		require.NoError(t, err)
		assert.Equal(t, id, back, "shortcode %s", code)
	}
}

func TestMediaIDRejectsBadCharacters(t *testing.T) {
	_, err := MediaID("abc!")
	assert.Error(t, err)
}

func item(t *testing.T, raw string) structures.Item {
	t.Helper()
	var it structures.Item
	require.NoError(t, json.Unmarshal([]byte(raw), &it))
	return it
}

func TestMapSinglePost(t *testing.T) {
	it := item(t, `{
		"pk": "3141592653589793",
		"taken_at": 1716200000,
		"media_type": 2,
		"caption": {"text": "hello"},
		"video_versions": [{"url": "https://cdn.example/v/clip.mp4?efg=x"}],
		"image_versions2": {"candidates": [{"url": "https://cdn.example/p/poster.jpg"}]},
		"owner": {"pk": "55", "username": "ada", "full_name": "Ada L"}
	}`)

	local := map[string]string{
		"https://scontent.cdninstagram.com/v/clip.mp4": "local_archive_har/s1/videos/track_42.mp4",
	}
	got := Map([]structures.Structure{
		{APIV1: &structures.APIV1{MediaInfo: &structures.ItemList{Items: []structures.Item{it}}}},
	}, local, zerolog.Nop())

	require.Len(t, got.Accounts, 1)
	acct := got.Accounts[0]
	assert.Equal(t, "https://www.instagram.com/ada/", acct.URL)
	assert.Equal(t, "55", *acct.PlatformID)
	assert.Equal(t, "Ada L", *acct.DisplayName)

	require.Len(t, got.Posts, 1)
	post := got.Posts[0].Post
	assert.Equal(t, "https://www.instagram.com/p/"+Shortcode(3141592653589793), post.URL)
	assert.Equal(t, "3141592653589793", *post.PlatformID)
	assert.Equal(t, acct.URL, *post.AccountURL)
	assert.Equal(t, "hello", *post.Caption)
	require.NotNil(t, post.PublicationDate)
	assert.Equal(t, int64(1716200000), post.PublicationDate.Unix())

	require.Len(t, got.Posts[0].Media, 1)
	md := got.Posts[0].Media[0]
	assert.Equal(t, "https://scontent.cdninstagram.com/v/clip.mp4", md.URL)
	assert.Equal(t, model.MediaVideo, md.Kind)
	assert.Equal(t, post.URL, *md.PostURL)
	require.NotNil(t, md.LocalPath)
	assert.Equal(t, "local_archive_har/s1/videos/track_42.mp4", *md.LocalPath)
}

func TestMapCarouselChildren(t *testing.T) {
	it := item(t, `{
		"pk": "100",
		"taken_at": 1716200000,
		"media_type": 8,
		"image_versions2": {"candidates": [{"url": "https://cdn.example/p/cover.jpg"}]},
		"carousel_media": [
			{"pk": "101", "media_type": 1, "image_versions2": {"candidates": [{"url": "https://cdn.example/p/one.jpg"}]}},
			{"pk": "102", "media_type": 2, "video_versions": [{"url": "https://cdn.example/v/two.mp4"}], "image_versions2": {"candidates": [{"url": "https://cdn.example/p/two.jpg"}]}}
		],
		"user": {"pk": "55", "username": "ada"}
	}`)

	got := Map([]structures.Structure{
		{Page: &structures.Page{Posts: &structures.ItemList{Items: []structures.Item{it}}}},
	}, nil, zerolog.Nop())

	require.Len(t, got.Posts, 1)
	media := got.Posts[0].Media
	require.Len(t, media, 3)

	assert.Equal(t, model.MediaImage, media[0].Kind)
	assert.NotContains(t, media[0].Data, "carousel_media", "parent blob must drop carousel children")

	assert.Equal(t, "https://scontent.cdninstagram.com/v/one.jpg", media[1].URL)
	assert.Equal(t, model.MediaImage, media[1].Kind)
	assert.Equal(t, "101", *media[1].PlatformID)

	assert.Equal(t, "https://scontent.cdninstagram.com/v/two.mp4", media[2].URL)
	assert.Equal(t, model.MediaVideo, media[2].Kind)
}

func TestMapReelItemsUseReelOwner(t *testing.T) {
	var reel structures.Reel
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "highlight:9",
		"user": {"pk": "55", "username": "ada"},
		"items": [{
			"pk": "200",
			"taken_at": 1716200100,
			"media_type": 1,
			"image_versions2": {"candidates": [{"url": "https://cdn.example/p/story.jpg"}]},
			"user": {"pk": "55", "id": "55"}
		}]
	}`), &reel))

	got := Map([]structures.Structure{
		{GraphQL: &structures.GraphQL{StoriesFeed: &structures.StoriesFeed{ReelsMedia: []structures.Reel{reel}}}},
	}, nil, zerolog.Nop())

	require.Len(t, got.Accounts, 1)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, "https://www.instagram.com/ada/", *got.Posts[0].Post.AccountURL)
}

func TestMapSkipsUnusableItems(t *testing.T) {
	missing := item(t, `{"pk": "not-a-number", "taken_at": 1, "media_type": 1, "owner": {"pk": "1", "username": "u"}}`)
	noAuthor := item(t, `{"pk": "300", "taken_at": 1, "media_type": 1}`)

	got := Map([]structures.Structure{
		{APIV1: &structures.APIV1{MediaInfo: &structures.ItemList{Items: []structures.Item{missing, noAuthor}}}},
	}, nil, zerolog.Nop())

	assert.Empty(t, got.Posts)
}

func TestMapSuggestedUsersYieldAccountsOnly(t *testing.T) {
	var users structures.UserList
	require.NoError(t, json.Unmarshal([]byte(`{"users": [
		{"pk": "1", "username": "ada", "full_name": "Ada"},
		{"pk": "2", "username": "grace", "full_name": "Grace"}
	]}`), &users))

	got := Map([]structures.Structure{
		{GraphQL: &structures.GraphQL{SuggestedUsers: &users}},
	}, nil, zerolog.Nop())

	assert.Len(t, got.Accounts, 2)
	assert.Empty(t, got.Posts)
}
