package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/archivist/internal/model"
)

func str(s string) *string { return &s }

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty("   "))
	assert.True(t, IsEmpty([]any{}))
	assert.True(t, IsEmpty(map[string]any{}))
	assert.False(t, IsEmpty("x"))
	assert.False(t, IsEmpty(0))
	assert.False(t, IsEmpty(false))
	assert.False(t, IsEmpty([]any{1}))
}

func TestScalarKeepsExisting(t *testing.T) {
	assert.Equal(t, "old", Scalar("old", "new"))
	assert.Equal(t, "new", Scalar("", "new"))
	assert.Equal(t, "old", Scalar("old", nil))
	assert.Nil(t, Scalar("", nil))
}

func TestListsDeduplicateBySerialization(t *testing.T) {
	got := Lists(
		[]any{map[string]any{"a": 1.0, "b": 2.0}, "x"},
		[]any{map[string]any{"b": 2.0, "a": 1.0}, "y", "x"},
	)
	// the two maps serialize identically regardless of key order
	require.Len(t, got, 3)
	assert.Equal(t, "x", got[1])
	assert.Equal(t, "y", got[2])
}

func TestMapsMergeRecursively(t *testing.T) {
	existing := map[string]any{
		"caption": "old",
		"tags":    []any{"a"},
		"owner":   map[string]any{"name": "ada", "bio": ""},
	}
	incoming := map[string]any{
		"caption": "new",
		"tags":    []any{"a", "b"},
		"owner":   map[string]any{"bio": "math", "extra": true},
		"views":   7.0,
	}
	got := Maps(existing, incoming)
	assert.Equal(t, "old", got["caption"])
	assert.Equal(t, []any{"a", "b"}, got["tags"])
	owner := got["owner"].(map[string]any)
	assert.Equal(t, "ada", owner["name"])
	assert.Equal(t, "math", owner["bio"])
	assert.Equal(t, true, owner["extra"])
	assert.Equal(t, 7.0, got["views"])
}

func TestMergeIsIdempotent(t *testing.T) {
	incoming := model.Post{
		URL:     "https://example.com/p/X",
		Caption: str("c"),
		Data:    map[string]any{"k": "v", "list": []any{"a"}},
	}
	once := Post(incoming, nil)
	twice := Post(incoming, &once)
	assert.Equal(t, once.Caption, twice.Caption)
	assert.Equal(t, once.Data, twice.Data)
}

func TestMergeIsCommutativeOverDisjointFields(t *testing.T) {
	when := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	a := model.Post{
		URL:             "https://example.com/p/X",
		Caption:         str("c"),
		PublicationDate: &when,
		Data:            map[string]any{"k": "v", "list": []any{"a"}},
	}
	b := model.Post{
		URL:        "https://example.com/p/X",
		PlatformID: str("17"),
		AccountURL: str("https://example.com/ada/"),
		Data:       map[string]any{"views": 7.0, "list": []any{"b"}},
	}

	ab := Post(b, &a)
	ba := Post(a, &b)

	assert.Equal(t, *ab.Caption, *ba.Caption)
	assert.Equal(t, *ab.PlatformID, *ba.PlatformID)
	assert.Equal(t, *ab.AccountURL, *ba.AccountURL)
	assert.Equal(t, *ab.PublicationDate, *ba.PublicationDate)
	assert.Equal(t, ab.Data["k"], ba.Data["k"])
	assert.Equal(t, ab.Data["views"], ba.Data["views"])
	// lists union to the same set; only first-appearance order differs
	assert.ElementsMatch(t, ab.Data["list"], ba.Data["list"])
}

func TestAccountMergeFillsGapsOnly(t *testing.T) {
	existing := model.Account{
		URL:         "https://example.com/ada/",
		DisplayName: str("Ada"),
		Data:        map[string]any{"pk": "55"},
	}
	incoming := model.Account{
		URL:         existing.URL,
		DisplayName: str("Ada Lovelace"),
		Bio:         str("first programmer"),
		PlatformID:  str("55"),
		Data:        map[string]any{"verified": true},
	}
	got := Account(incoming, &existing)
	assert.Equal(t, "Ada", *got.DisplayName, "existing scalar wins")
	assert.Equal(t, "first programmer", *got.Bio, "gap is filled")
	assert.Equal(t, "55", *got.PlatformID)
	assert.Equal(t, map[string]any{"pk": "55", "verified": true}, got.Data)
}

func TestPostMergeKeepsEarlierPublicationDate(t *testing.T) {
	earlier := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	existing := model.Post{URL: "u", PublicationDate: &earlier}
	incoming := model.Post{URL: "u", PublicationDate: &later}
	got := Post(incoming, &existing)
	assert.Equal(t, earlier, *got.PublicationDate)
}

func TestMediaMergeKeepsLocalFile(t *testing.T) {
	existing := model.Media{URL: "u", Kind: model.MediaVideo, LocalPath: str("local_archive_har/s1/v.mp4")}
	incoming := model.Media{URL: "u", Kind: model.MediaVideo}
	got := Media(incoming, &existing)
	require.NotNil(t, got.LocalPath)
	assert.Equal(t, *existing.LocalPath, *got.LocalPath)

	// and the reverse fills the gap
	got = Media(existing, &incoming)
	require.NotNil(t, got.LocalPath)
	assert.Equal(t, *existing.LocalPath, *got.LocalPath)
}
