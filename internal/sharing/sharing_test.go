package sharing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// seed creates an account with one post, one media and one media part and
// returns their ids.
func seed(t *testing.T, st store.Store) (accountID, postID, mediaID, partID, userID int64) {
	t.Helper()
	ctx := context.Background()

	accountID, err := st.Accounts().SaveCanonical(ctx, &model.Account{URL: "https://www.instagram.com/somebody/"})
	require.NoError(t, err)
	postID, err = st.Posts().SaveCanonical(ctx, &model.Post{URL: "https://www.instagram.com/p/B", AccountID: &accountID})
	require.NoError(t, err)
	mediaID, err = st.Media().SaveCanonical(ctx, &model.Media{
		URL: "https://scontent.cdninstagram.com/v/pic.jpg", PostID: &postID, Kind: model.MediaImage,
	})
	require.NoError(t, err)
	part, err := st.MediaParts().Create(ctx, &model.MediaPart{MediaID: mediaID})
	require.NoError(t, err)

	u, err := st.Users().Create(ctx, &model.User{Email: "op@example.org"})
	require.NoError(t, err)
	return accountID, postID, mediaID, part.ID, u.ID
}

func TestShareGrantsEntityAndDescendants(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())
	accountID, postID, mediaID, partID, userID := seed(t, st)

	link, err := svc.Create(ctx, userID, model.KindAccount, accountID)
	require.NoError(t, err)
	assert.Len(t, link.Suffix, suffixLength)

	resolved, err := svc.Resolve(ctx, link.Suffix)
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, resolved, model.KindAccount, accountID))
	assert.NoError(t, svc.Authorize(ctx, resolved, model.KindPost, postID))
	assert.NoError(t, svc.Authorize(ctx, resolved, model.KindMedia, mediaID))
	assert.NoError(t, svc.Authorize(ctx, resolved, model.KindMediaPart, partID))
}

func TestShareDoesNotGrantSiblingsOrAncestors(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())
	accountID, postID, mediaID, _, userID := seed(t, st)

	otherAccount, err := st.Accounts().SaveCanonical(ctx, &model.Account{URL: "https://www.instagram.com/other/"})
	require.NoError(t, err)

	link, err := svc.Create(ctx, userID, model.KindPost, postID)
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(ctx, link, model.KindMedia, mediaID))
	assert.ErrorIs(t, svc.Authorize(ctx, link, model.KindAccount, accountID), model.ErrUnauthorized)
	assert.ErrorIs(t, svc.Authorize(ctx, link, model.KindAccount, otherAccount), model.ErrUnauthorized)
}

func TestResolveRejectsRevokedAndUnknownLinks(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())
	accountID, _, _, _, userID := seed(t, st)

	link, err := svc.Create(ctx, userID, model.KindAccount, accountID)
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, link.Suffix))
	_, err = svc.Resolve(ctx, link.Suffix)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.Resolve(ctx, "nosuchsuffix000000000000")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestCreateRejectsMissingEntities(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())
	_, _, _, _, userID := seed(t, st)

	_, err := svc.Create(ctx, userID, model.KindPost, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
