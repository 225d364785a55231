// Package auth implements operator authentication: bcrypt passwords with a
// lockout counter, opaque login tokens with inactivity expiry, and derived
// per-file access tokens for media URLs.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
)

const (
	tokenLength      = 30
	tokenAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenMaxIdle     = 30 * 24 * time.Hour
	maxLoginAttempts = 10

	passwordAlgBcrypt = "bcrypt"
)

// dummyHash is compared against when the email is unknown or the account is
// locked, so response timing does not reveal which emails exist.
var dummyHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// Service owns user credentials and login tokens.
type Service struct {
	st  store.Store
	log zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{st: st, log: log}
}

// CreateUser registers an operator with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, email, password string, admin bool) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)
	alg := passwordAlgBcrypt
	return s.st.Users().Create(ctx, &model.User{
		Email:        email,
		PasswordHash: &hashStr,
		PasswordAlg:  &alg,
		Admin:        admin,
	})
}

// Login verifies the password and issues a token. Unknown emails, wrong
// passwords and locked accounts all spend a bcrypt comparison and return
// model.ErrUnauthorized or model.ErrLocked; after maxLoginAttempts
// consecutive failures the account locks.
func (s *Service) Login(ctx context.Context, email, password string) (*model.AuthToken, error) {
	u, err := s.st.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, model.ErrUnauthorized
		}
		return nil, err
	}
	if u.Locked || u.PasswordHash == nil {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		if u.Locked {
			return nil, model.ErrLocked
		}
		return nil, model.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		u.LoginAttempts++
		if u.LoginAttempts >= maxLoginAttempts {
			u.Locked = true
			s.log.Warn().Str("email", email).Msg("account locked after repeated login failures")
		}
		if err := s.st.Users().Update(ctx, u); err != nil {
			return nil, err
		}
		return nil, model.ErrUnauthorized
	}

	u.LoginAttempts = 0
	now := time.Now().UTC()
	u.LastLogin = &now
	if err := s.st.Users().Update(ctx, u); err != nil {
		return nil, err
	}

	token, err := randomToken(tokenLength)
	if err != nil {
		return nil, err
	}
	return s.st.Tokens().Create(ctx, &model.AuthToken{UserID: u.ID, Token: token})
}

// Logout drops the token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.st.Tokens().Delete(ctx, token)
}

// Authenticate resolves a login token to its user. Tokens idle longer than
// tokenMaxIdle are deleted and rejected; valid tokens get their idle clock
// reset.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	t, err := s.st.Tokens().GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrInvalidToken
		}
		return nil, err
	}
	now := time.Now().UTC()
	if now.Sub(t.LastUse) > tokenMaxIdle {
		_ = s.st.Tokens().Delete(ctx, t.Token)
		return nil, model.ErrInvalidToken
	}
	if err := s.st.Tokens().Touch(ctx, t.ID, now); err != nil {
		return nil, err
	}
	u, err := s.st.Users().GetByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if u.Locked {
		return nil, model.ErrLocked
	}
	return u, nil
}

// SetPassword replaces the password, unlocks the account and revokes every
// outstanding token.
func (s *Service) SetPassword(ctx context.Context, userID int64, password string) error {
	u, err := s.st.Users().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)
	alg := passwordAlgBcrypt
	u.PasswordHash = &hashStr
	u.PasswordAlg = &alg
	u.Locked = false
	u.LoginAttempts = 0
	if err := s.st.Users().Update(ctx, u); err != nil {
		return err
	}
	return s.st.Tokens().DeleteForUser(ctx, userID)
}

// randomToken draws an alphanumeric token from crypto/rand without modulo
// bias.
func randomToken(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}
