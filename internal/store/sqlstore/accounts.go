package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type accounts struct{ s *Store }

const accountCols = "id, create_date, update_date, id_on_platform, url, display_name, bio, data, notes"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a                          model.Account
		created, updated           string
		platformID, name, bio, nts sql.NullString
		data                       sql.NullString
	)
	if err := row.Scan(&a.ID, &created, &updated, &platformID, &a.URL, &name, &bio, &data, &nts); err != nil {
		return nil, err
	}
	a.CreateDate = parseTime(created)
	a.UpdateDate = parseTime(updated)
	a.PlatformID = strPtr(platformID)
	a.DisplayName = strPtr(name)
	a.Bio = strPtr(bio)
	a.Data = jsonMap(data)
	a.Notes = strPtr(nts)
	return &a, nil
}

func scanArchiveAccount(row rowScanner) (*model.Account, error) {
	var (
		a                          model.Account
		created, updated           string
		platformID, name, bio, nts sql.NullString
		data                       sql.NullString
	)
	if err := row.Scan(&a.ID, &created, &updated, &platformID, &a.URL, &name, &bio, &data, &nts,
		&a.SessionID, &a.CanonicalID); err != nil {
		return nil, err
	}
	a.CreateDate = parseTime(created)
	a.UpdateDate = parseTime(updated)
	a.PlatformID = strPtr(platformID)
	a.DisplayName = strPtr(name)
	a.Bio = strPtr(bio)
	a.Data = jsonMap(data)
	a.Notes = strPtr(nts)
	return &a, nil
}

func (r *accounts) FindCanonical(ctx context.Context, ident model.Identity) (*model.Account, error) {
	where, args := identWhere(ident)
	q := r.s.rebind("SELECT " + accountCols + " FROM account WHERE " + where + " ORDER BY id LIMIT 1")
	a, err := scanAccount(r.s.q.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a, nil
}

func (r *accounts) FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Account, error) {
	where, args := identWhere(ident)
	args = append(args, sessionID)
	q := r.s.rebind("SELECT " + accountCols + ", archive_session_id, canonical_id FROM account_archive WHERE " +
		where + " AND archive_session_id = ? ORDER BY id LIMIT 1")
	a, err := scanArchiveAccount(r.s.q.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a, nil
}

func (r *accounts) SaveCanonical(ctx context.Context, a *model.Account) (int64, error) {
	data, err := jsonArg(a.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if a.ID == 0 {
		q := r.s.rebind(`INSERT INTO account (create_date, update_date, id_on_platform, url, display_name, bio, data, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(a.PlatformID), a.URL,
			strArg(a.DisplayName), strArg(a.Bio), data, strArg(a.Notes)).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert account: %w", err)
		}
		a.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE account SET update_date = ?, id_on_platform = ?, url = ?, display_name = ?, bio = ?, data = ?, notes = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(a.PlatformID), a.URL,
		strArg(a.DisplayName), strArg(a.Bio), data, strArg(a.Notes), a.ID); err != nil {
		return 0, fmt.Errorf("update account %d: %w", a.ID, err)
	}
	return a.ID, nil
}

func (r *accounts) SaveArchive(ctx context.Context, a *model.Account) (int64, error) {
	data, err := jsonArg(a.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if a.ID == 0 {
		q := r.s.rebind(`INSERT INTO account_archive (create_date, update_date, id_on_platform, url, display_name, bio, data, notes, archive_session_id, canonical_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(a.PlatformID), a.URL,
			strArg(a.DisplayName), strArg(a.Bio), data, strArg(a.Notes),
			a.SessionID, a.CanonicalID).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert archive account: %w", err)
		}
		a.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE account_archive SET update_date = ?, id_on_platform = ?, url = ?, display_name = ?, bio = ?, data = ?, notes = ?, canonical_id = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(a.PlatformID), a.URL,
		strArg(a.DisplayName), strArg(a.Bio), data, strArg(a.Notes),
		a.CanonicalID, a.ID); err != nil {
		return 0, fmt.Errorf("update archive account %d: %w", a.ID, err)
	}
	return a.ID, nil
}

func (r *accounts) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	q := r.s.rebind("SELECT " + accountCols + " FROM account WHERE id = ?")
	a, err := scanAccount(r.s.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "account")
	}
	return a, nil
}

func (r *accounts) List(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	q := r.s.rebind("SELECT " + accountCols + " FROM account ORDER BY id LIMIT ? OFFSET ?")
	rows, err := r.s.q.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accounts) ListBySession(ctx context.Context, sessionID int64) ([]*model.Account, error) {
	q := r.s.rebind("SELECT " + accountCols + ", archive_session_id, canonical_id FROM account_archive WHERE archive_session_id = ? ORDER BY id")
	rows, err := r.s.q.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session accounts: %w", err)
	}
	defer rows.Close()
	var out []*model.Account
	for rows.Next() {
		a, err := scanArchiveAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *accounts) SetNotes(ctx context.Context, id int64, notes *string) error {
	q := r.s.rebind("UPDATE account SET notes = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, strArg(notes), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set account notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %d: %w", id, model.ErrNotFound)
	}
	return nil
}
