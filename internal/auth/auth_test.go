package auth

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

func TestLoginIssuesToken(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())

	u, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)

	tok, err := svc.Login(ctx, "op@example.org", "correct horse")
	require.NoError(t, err)
	assert.Len(t, tok.Token, tokenLength)
	assert.Equal(t, u.ID, tok.UserID)

	got, err := svc.Authenticate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	updated, err := st.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, updated.LastLogin)
}

func TestLoginRejectsWrongPasswordAndUnknownEmail(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestStore(t), zerolog.Nop())

	_, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "op@example.org", "wrong")
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.org", "anything")
	assert.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestRepeatedFailuresLockTheAccount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())

	u, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)

	for i := 0; i < maxLoginAttempts; i++ {
		_, err = svc.Login(ctx, "op@example.org", "wrong")
		assert.ErrorIs(t, err, model.ErrUnauthorized)
	}

	// even the right password is refused once locked
	_, err = svc.Login(ctx, "op@example.org", "correct horse")
	assert.ErrorIs(t, err, model.ErrLocked)

	require.NoError(t, svc.SetPassword(ctx, u.ID, "new password"))
	_, err = svc.Login(ctx, "op@example.org", "new password")
	assert.NoError(t, err)
}

func TestSuccessfulLoginResetsAttemptCounter(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())

	u, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)

	for i := 0; i < maxLoginAttempts-1; i++ {
		_, _ = svc.Login(ctx, "op@example.org", "wrong")
	}
	_, err = svc.Login(ctx, "op@example.org", "correct horse")
	require.NoError(t, err)

	got, err := st.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LoginAttempts)
	assert.False(t, got.Locked)
}

func TestAuthenticateExpiresIdleTokens(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, zerolog.Nop())

	_, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)
	tok, err := svc.Login(ctx, "op@example.org", "correct horse")
	require.NoError(t, err)

	// age the token past the idle limit
	stale := time.Now().UTC().Add(-tokenMaxIdle - time.Hour)
	require.NoError(t, st.Tokens().Touch(ctx, tok.ID, stale))

	_, err = svc.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	// the expired token was dropped, not just refused
	_, err = st.Tokens().GetByToken(ctx, tok.Token)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newTestStore(t), zerolog.Nop())

	_, err := svc.CreateUser(ctx, "op@example.org", "correct horse", false)
	require.NoError(t, err)
	tok, err := svc.Login(ctx, "op@example.org", "correct horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), tok.Token))
	_, err = svc.Authenticate(ctx, tok.Token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestFileTokenRoundTrip(t *testing.T) {
	ft := NewFileTokens("secret")

	tok, err := ft.Sign("/archives/s1/pic.jpg", "login-token-123")
	require.NoError(t, err)

	cred, err := ft.Verify("/archives/s1/pic.jpg", tok)
	require.NoError(t, err)
	assert.Equal(t, "login-token-123", cred)
}

func TestFileTokenIsBoundToPath(t *testing.T) {
	ft := NewFileTokens("secret")

	tok, err := ft.Sign("/archives/s1/pic.jpg", "login-token-123")
	require.NoError(t, err)

	_, err = ft.Verify("/archives/s1/other.jpg", tok)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = NewFileTokens("other-secret").Verify("/archives/s1/pic.jpg", tok)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = ft.Verify("/archives/s1/pic.jpg", "not-a-token")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}
