package search

import (
	"context"
	"testing"
	"time"

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

func str(s string) *string { return &s }

func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	aID, err := st.Accounts().SaveCanonical(ctx, &model.Account{
		URL:         "https://www.instagram.com/somebody/",
		DisplayName: str("Somebody"),
		Bio:         str("travel and food"),
	})
	require.NoError(t, err)
	_, err = st.Accounts().SaveCanonical(ctx, &model.Account{
		URL:         "https://www.instagram.com/other/",
		DisplayName: str("Other"),
	})
	require.NoError(t, err)

	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = st.Posts().SaveCanonical(ctx, &model.Post{
		URL: "https://www.instagram.com/p/A", AccountID: &aID,
		PublicationDate: &early, Caption: str("old trip"),
	})
	require.NoError(t, err)
	_, err = st.Posts().SaveCanonical(ctx, &model.Post{
		URL: "https://www.instagram.com/p/B", AccountID: &aID,
		PublicationDate: &late, Caption: str("new trip"),
	})
	require.NoError(t, err)
}

func TestFilteredEquality(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	svc := NewService(st, zerolog.Nop())

	rows, err := svc.Filtered(context.Background(), "accounts",
		&Filter{Op: "eq", Field: "display_name", Value: "Somebody"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://www.instagram.com/somebody/", rows[0]["url"])
}

func TestFilteredBooleanTree(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	svc := NewService(st, zerolog.Nop())

	// publication dates are RFC3339 text, so lexicographic >= is a date range
	rows, err := svc.Filtered(context.Background(), "posts", &Filter{
		Op: "and",
		Children: []Filter{
			{Op: "contains", Field: "caption", Value: "trip"},
			{Op: "ge", Field: "publication_date", Value: "2024-01-01T00:00:00Z"},
		},
	}, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://www.instagram.com/p/B", rows[0]["url"])
}

func TestFilteredRejectsUnknownFieldsAndOperators(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	svc := NewService(st, zerolog.Nop())

	for _, f := range []*Filter{
		{Op: "eq", Field: "password_hash", Value: "x"},
		{Op: "eq", Field: "url; DROP TABLE account", Value: "x"},
		{Op: "union", Field: "url", Value: "x"},
		{Op: "and"},
		{Op: "contains", Field: "bio", Value: 7},
	} {
		_, err := svc.Filtered(context.Background(), "accounts", f, 0, 0)
		assert.ErrorIs(t, err, model.ErrInjectionAttempt, "%+v", f)
	}
}

func TestFilteredRejectsUnknownMode(t *testing.T) {
	svc := NewService(newTestStore(t), zerolog.Nop())
	_, err := svc.Filtered(context.Background(), "users", nil, 0, 0)
	assert.Error(t, err)
}

func TestTermSearchScansTextColumns(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	svc := NewService(st, zerolog.Nop())

	rows, err := svc.Term(context.Background(), "accounts", "TRAVEL", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://www.instagram.com/somebody/", rows[0]["url"])

	// LIKE metacharacters in the term match literally
	rows, err = svc.Term(context.Background(), "accounts", "100%", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTermSearchEmptyTermListsAll(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	svc := NewService(st, zerolog.Nop())

	rows, err := svc.Term(context.Background(), "accounts", "  ", 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
