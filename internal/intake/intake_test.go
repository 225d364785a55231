package intake

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/archivist/internal/entities"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
	"github.com/openvault/archivist/internal/store/sqlite"
	"github.com/openvault/archivist/internal/store/sqlstore"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db, store.DialectSQLite))
	return sqlstore.New(db, store.DialectSQLite)
}

func newSession(t *testing.T, s store.Store, externalID string) *model.ArchiveSession {
	t.Helper()
	sess, err := s.Sessions().Create(context.Background(), &model.ArchiveSession{
		ExternalID: externalID,
		Location:   "local_archive_har/" + externalID,
		SourceType: model.SourceTypeHAR,
	})
	require.NoError(t, err)
	return sess
}

func str(s string) *string { return &s }

func sampleExtraction() entities.Extracted {
	account := model.Account{
		URL:         "https://www.instagram.com/somebody/",
		PlatformID:  str("991"),
		DisplayName: str("Somebody"),
	}
	post := model.Post{
		URL:             "https://www.instagram.com/p/B/",
		PlatformID:      str("1"),
		AccountURL:      str(account.URL),
		AccountPlatform: str("991"),
		Caption:         str("hello"),
	}
	media := model.Media{
		URL:          "https://scontent.cdninstagram.com/v/pic.jpg",
		PlatformID:   str("31"),
		PostURL:      str(post.URL),
		PostPlatform: str("1"),
		Kind:         model.MediaImage,
		LocalPath:    str("local_archive_har/s1/pic.jpg"),
	}
	return entities.Extracted{
		Accounts: []model.Account{account},
		Posts:    []entities.SinglePost{{Post: post, Media: []model.Media{media}}},
	}
}

func TestRunWritesCanonicalAndArchiveRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := newSession(t, s, "s1")

	require.NoError(t, NewLoader(s, sess.ID, zerolog.Nop()).Run(ctx, sampleExtraction()))

	account, err := s.Accounts().FindCanonical(ctx, model.Identity{URL: "https://www.instagram.com/somebody/"})
	require.NoError(t, err)

	post, err := s.Posts().FindCanonical(ctx, model.Identity{URL: "https://www.instagram.com/p/B/"})
	require.NoError(t, err)
	require.NotNil(t, post.AccountID)
	assert.Equal(t, account.ID, *post.AccountID)

	media, err := s.Media().FindCanonical(ctx, model.Identity{URL: "https://scontent.cdninstagram.com/v/pic.jpg"})
	require.NoError(t, err)
	require.NotNil(t, media.PostID)
	assert.Equal(t, post.ID, *media.PostID)

	archAccounts, err := s.Accounts().ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, archAccounts, 1)
	assert.Equal(t, account.ID, archAccounts[0].CanonicalID)

	archMedia, err := s.Media().ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, archMedia, 1)
	assert.Equal(t, media.ID, archMedia[0].CanonicalID)
}

func TestRunIsIdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := newSession(t, s, "s1")

	require.NoError(t, NewLoader(s, sess.ID, zerolog.Nop()).Run(ctx, sampleExtraction()))
	require.NoError(t, NewLoader(s, sess.ID, zerolog.Nop()).Run(ctx, sampleExtraction()))

	accounts, err := s.Accounts().List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	archAccounts, err := s.Accounts().ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, archAccounts, 1)
}

func TestSecondSessionMergesIntoCanonical(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	first := newSession(t, s, "s1")
	second := newSession(t, s, "s2")

	require.NoError(t, NewLoader(s, first.ID, zerolog.Nop()).Run(ctx, sampleExtraction()))

	// the second capture saw the same account under its platform id, with a
	// bio the first capture lacked
	ext := sampleExtraction()
	ext.Accounts[0].Bio = str("travel photos")
	ext.Posts = nil
	require.NoError(t, NewLoader(s, second.ID, zerolog.Nop()).Run(ctx, ext))

	account, err := s.Accounts().FindCanonical(ctx, model.Identity{URL: "https://www.instagram.com/somebody/"})
	require.NoError(t, err)
	require.NotNil(t, account.Bio)
	assert.Equal(t, "travel photos", *account.Bio)
	require.NotNil(t, account.DisplayName)
	assert.Equal(t, "Somebody", *account.DisplayName)

	accounts, err := s.Accounts().List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	firstRows, err := s.Accounts().ListBySession(ctx, first.ID)
	require.NoError(t, err)
	secondRows, err := s.Accounts().ListBySession(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, firstRows, 1)
	assert.Len(t, secondRows, 1)
	assert.Nil(t, firstRows[0].Bio)
}

func TestRunFailsOnUnresolvableParents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := newSession(t, s, "s1")

	orphan := entities.Extracted{
		Posts: []entities.SinglePost{{Post: model.Post{
			URL:        "https://www.instagram.com/p/C/",
			AccountURL: str("https://www.instagram.com/unknown/"),
		}}},
	}
	err := NewLoader(s, sess.ID, zerolog.Nop()).Run(ctx, orphan)
	assert.Error(t, err)
}
