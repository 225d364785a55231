package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type users struct{ s *Store }

const userCols = "id, create_date, update_date, email, password_hash, password_alg, locked, admin, login_attempts, last_login"

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                model.User
		created, updated string
		hash, alg        sql.NullString
		locked, admin    int
		lastLogin        sql.NullString
	)
	if err := row.Scan(&u.ID, &created, &updated, &u.Email, &hash, &alg,
		&locked, &admin, &u.LoginAttempts, &lastLogin); err != nil {
		return nil, err
	}
	u.CreateDate = parseTime(created)
	u.UpdateDate = parseTime(updated)
	u.PasswordHash = strPtr(hash)
	u.PasswordAlg = strPtr(alg)
	u.Locked = locked != 0
	u.Admin = admin != 0
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

func (r *users) Create(ctx context.Context, u *model.User) (*model.User, error) {
	now := time.Now()
	q := r.s.rebind(`INSERT INTO platform_user (create_date, update_date, email, password_hash, password_alg, locked, admin, login_attempts, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := r.s.q.QueryRowContext(ctx, q,
		fmtTime(now), fmtTime(now), u.Email, strArg(u.PasswordHash), strArg(u.PasswordAlg),
		boolArg(u.Locked), boolArg(u.Admin), u.LoginAttempts, fmtTimePtr(u.LastLogin)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	u.CreateDate = now
	u.UpdateDate = now
	return u, nil
}

func (r *users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	q := r.s.rebind("SELECT " + userCols + " FROM platform_user WHERE id = ?")
	u, err := scanUser(r.s.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (r *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	q := r.s.rebind("SELECT " + userCols + " FROM platform_user WHERE email = ?")
	u, err := scanUser(r.s.q.QueryRowContext(ctx, q, email))
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}

func (r *users) Update(ctx context.Context, u *model.User) error {
	q := r.s.rebind(`UPDATE platform_user SET update_date = ?, email = ?, password_hash = ?, password_alg = ?, locked = ?, admin = ?, login_attempts = ?, last_login = ?
		WHERE id = ?`)
	res, err := r.s.q.ExecContext(ctx, q,
		fmtTime(time.Now()), u.Email, strArg(u.PasswordHash), strArg(u.PasswordAlg),
		boolArg(u.Locked), boolArg(u.Admin), u.LoginAttempts, fmtTimePtr(u.LastLogin), u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, model.ErrNotFound)
	}
	return nil
}

type tokens struct{ s *Store }

const tokenCols = "id, user_id, token, create_date, last_use"

func scanToken(row rowScanner) (*model.AuthToken, error) {
	var (
		t                 model.AuthToken
		created, lastUse  string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &created, &lastUse); err != nil {
		return nil, err
	}
	t.Created = parseTime(created)
	t.LastUse = parseTime(lastUse)
	return &t, nil
}

func (r *tokens) Create(ctx context.Context, t *model.AuthToken) (*model.AuthToken, error) {
	now := time.Now()
	q := r.s.rebind("INSERT INTO auth_token (user_id, token, create_date, last_use) VALUES (?, ?, ?, ?) RETURNING id")
	var id int64
	if err := r.s.q.QueryRowContext(ctx, q, t.UserID, t.Token, fmtTime(now), fmtTime(now)).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	t.ID = id
	t.Created = now
	t.LastUse = now
	return t, nil
}

func (r *tokens) GetByToken(ctx context.Context, token string) (*model.AuthToken, error) {
	q := r.s.rebind("SELECT " + tokenCols + " FROM auth_token WHERE token = ?")
	t, err := scanToken(r.s.q.QueryRowContext(ctx, q, token))
	if err != nil {
		return nil, notFound(err, "token")
	}
	return t, nil
}

func (r *tokens) Touch(ctx context.Context, id int64, at time.Time) error {
	q := r.s.rebind("UPDATE auth_token SET last_use = ? WHERE id = ?")
	if _, err := r.s.q.ExecContext(ctx, q, fmtTime(at), id); err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}

func (r *tokens) Delete(ctx context.Context, token string) error {
	q := r.s.rebind("DELETE FROM auth_token WHERE token = ?")
	if _, err := r.s.q.ExecContext(ctx, q, token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (r *tokens) DeleteForUser(ctx context.Context, userID int64) error {
	q := r.s.rebind("DELETE FROM auth_token WHERE user_id = ?")
	if _, err := r.s.q.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	return nil
}
