package services

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/archivist/internal/auth"
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

func str(s string) *string { return &s }

func newBrowser(t *testing.T) (store.Store, *Browser) {
	t.Helper()
	st := newTestStore(t)
	b := NewBrowser(st, auth.NewFileTokens("test-secret"), "http://localhost:8080/", zerolog.Nop())
	return st, b
}

func seed(t *testing.T, st store.Store) (accountID, postID, mediaID int64) {
	t.Helper()
	ctx := context.Background()

	accountID, err := st.Accounts().SaveCanonical(ctx, &model.Account{
		URL: "https://www.instagram.com/somebody/", DisplayName: str("Somebody"),
		Data: map[string]any{"follower_count": float64(12)},
	})
	require.NoError(t, err)
	postID, err = st.Posts().SaveCanonical(ctx, &model.Post{
		URL: "https://www.instagram.com/p/B", AccountID: &accountID,
	})
	require.NoError(t, err)
	mediaID, err = st.Media().SaveCanonical(ctx, &model.Media{
		URL: "https://scontent.cdninstagram.com/v/pic.jpg", PostID: &postID,
		Kind: model.MediaImage, LocalPath: str("local_archive_har/s1/pic.jpg"),
		ThumbnailPath: str("local_thumbnails/abc.jpg"),
	})
	require.NoError(t, err)
	_, err = st.Media().SaveCanonical(ctx, &model.Media{
		URL: "https://scontent.cdninstagram.com/v/lost.jpg", PostID: &postID,
		Kind: model.MediaImage,
	})
	require.NoError(t, err)
	return accountID, postID, mediaID
}

func TestAccountViewNestsPerFlags(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	accountID, _, _ := seed(t, st)

	flat, err := b.Account(ctx, accountID, ViewOptions{}, "tok")
	require.NoError(t, err)
	assert.Empty(t, flat.Posts)

	nested, err := b.Account(ctx, accountID, ViewOptions{
		AccountsWithPosts: true,
		PostsWithMedia:    true,
	}, "tok")
	require.NoError(t, err)
	require.Len(t, nested.Posts, 1)
	assert.Len(t, nested.Posts[0].Media, 2)
}

func TestLocalFilesOnlyDropsMediaWithoutFiles(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	_, postID, _ := seed(t, st)

	v, err := b.Post(ctx, postID, ViewOptions{PostsWithMedia: true, LocalFilesOnly: true}, "tok")
	require.NoError(t, err)
	require.Len(t, v.Media, 1)
	assert.Equal(t, "https://scontent.cdninstagram.com/v/pic.jpg", v.Media[0].URL)
}

func TestMediaWithFilesSignsURLs(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	_, _, mediaID := seed(t, st)

	v, err := b.Media(ctx, mediaID, ViewOptions{MediaWithFiles: true}, "tok")
	require.NoError(t, err)

	require.NotEmpty(t, v.FileURL)
	u, err := url.Parse(v.FileURL)
	require.NoError(t, err)
	assert.Equal(t, "/archives/s1/pic.jpg", u.Path)
	assert.True(t, strings.HasPrefix(v.FileURL, "http://localhost:8080/archives/"))

	tok := u.Query().Get("t")
	require.NotEmpty(t, tok)
	cred, err := auth.NewFileTokens("test-secret").Verify(u.Path, tok)
	require.NoError(t, err)
	assert.Equal(t, "tok", cred)

	require.NotEmpty(t, v.ThumbnailURL)
	tu, err := url.Parse(v.ThumbnailURL)
	require.NoError(t, err)
	assert.Equal(t, "/thumbnails/abc.jpg", tu.Path)
}

func TestSessionViewJoinsArchiveRows(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	accountID, _, _ := seed(t, st)

	sess, err := st.Sessions().Create(ctx, &model.ArchiveSession{
		ExternalID: "har-s1", Location: "local_archive_har/s1", SourceType: model.SourceTypeHAR,
	})
	require.NoError(t, err)
	_, err = st.Accounts().SaveArchive(ctx, &model.Account{
		URL: "https://www.instagram.com/somebody/", SessionID: sess.ID, CanonicalID: accountID,
	})
	require.NoError(t, err)

	v, err := b.Session(ctx, sess.ID, ViewOptions{}, "tok")
	require.NoError(t, err)
	require.Len(t, v.Accounts, 1)
	assert.Equal(t, accountID, v.Accounts[0].CanonicalID)
}

func TestAnnotateSetsNotesAndTags(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	accountID, _, _ := seed(t, st)

	tag, err := st.Tags().Create(ctx, &model.Tag{Name: "travel"})
	require.NoError(t, err)

	err = b.Annotate(ctx, model.KindAccount, accountID, model.Annotation{
		Notes: str("seen before"),
		Tags:  []int64{tag.ID},
	})
	require.NoError(t, err)

	v, err := b.Account(ctx, accountID, ViewOptions{}, "tok")
	require.NoError(t, err)
	require.NotNil(t, v.Notes)
	assert.Equal(t, "seen before", *v.Notes)
	require.Len(t, v.Tags, 1)
	assert.Equal(t, "travel", v.Tags[0].Name)
}

func TestDataReturnsRawPayload(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	accountID, _, _ := seed(t, st)

	raw, err := b.Data(ctx, model.KindAccount, accountID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"follower_count": 12}`, string(raw))

	_, err = b.Data(ctx, model.KindSession, 1)
	assert.Error(t, err)
}

func TestCreateMediaPartRequiresParent(t *testing.T) {
	ctx := context.Background()
	st, b := newBrowser(t)
	_, _, mediaID := seed(t, st)

	part, err := b.CreateMediaPart(ctx, &model.MediaPart{MediaID: mediaID})
	require.NoError(t, err)
	require.NoError(t, b.DeleteMediaPart(ctx, part.ID))

	_, err = b.CreateMediaPart(ctx, &model.MediaPart{MediaID: 9999})
	assert.ErrorIs(t, err, model.ErrNotFound)
}
