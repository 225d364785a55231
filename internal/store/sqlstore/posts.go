package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type posts struct{ s *Store }

const postCols = "id, create_date, update_date, id_on_platform, url, account_id, account_url, account_id_on_platform, publication_date, caption, data, notes"

func scanPost(row rowScanner, archive bool) (*model.Post, error) {
	var (
		p                                model.Post
		created, updated                 string
		platformID, accURL, accPlatform  sql.NullString
		accountID                        sql.NullInt64
		published, caption, data, notes  sql.NullString
	)
	dest := []any{&p.ID, &created, &updated, &platformID, &p.URL, &accountID, &accURL, &accPlatform,
		&published, &caption, &data, &notes}
	if archive {
		dest = append(dest, &p.SessionID, &p.CanonicalID)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.CreateDate = parseTime(created)
	p.UpdateDate = parseTime(updated)
	p.PlatformID = strPtr(platformID)
	p.AccountID = int64Ptr(accountID)
	p.AccountURL = strPtr(accURL)
	p.AccountPlatform = strPtr(accPlatform)
	p.PublicationDate = timePtr(published)
	p.Caption = strPtr(caption)
	p.Data = jsonMap(data)
	p.Notes = strPtr(notes)
	return &p, nil
}

func (r *posts) FindCanonical(ctx context.Context, ident model.Identity) (*model.Post, error) {
	where, args := identWhere(ident)
	q := r.s.rebind("SELECT " + postCols + " FROM post WHERE " + where + " ORDER BY id LIMIT 1")
	p, err := scanPost(r.s.q.QueryRowContext(ctx, q, args...), false)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

func (r *posts) FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Post, error) {
	where, args := identWhere(ident)
	args = append(args, sessionID)
	q := r.s.rebind("SELECT " + postCols + ", archive_session_id, canonical_id FROM post_archive WHERE " +
		where + " AND archive_session_id = ? ORDER BY id LIMIT 1")
	p, err := scanPost(r.s.q.QueryRowContext(ctx, q, args...), true)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

func (r *posts) SaveCanonical(ctx context.Context, p *model.Post) (int64, error) {
	data, err := jsonArg(p.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if p.ID == 0 {
		q := r.s.rebind(`INSERT INTO post (create_date, update_date, id_on_platform, url, account_id, account_url, account_id_on_platform, publication_date, caption, data, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(p.PlatformID), p.URL,
			int64Arg(p.AccountID), strArg(p.AccountURL), strArg(p.AccountPlatform),
			fmtTimePtr(p.PublicationDate), strArg(p.Caption), data, strArg(p.Notes)).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert post: %w", err)
		}
		p.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE post SET update_date = ?, id_on_platform = ?, url = ?, account_id = ?, account_url = ?, account_id_on_platform = ?, publication_date = ?, caption = ?, data = ?, notes = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(p.PlatformID), p.URL,
		int64Arg(p.AccountID), strArg(p.AccountURL), strArg(p.AccountPlatform),
		fmtTimePtr(p.PublicationDate), strArg(p.Caption), data, strArg(p.Notes), p.ID); err != nil {
		return 0, fmt.Errorf("update post %d: %w", p.ID, err)
	}
	return p.ID, nil
}

func (r *posts) SaveArchive(ctx context.Context, p *model.Post) (int64, error) {
	data, err := jsonArg(p.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if p.ID == 0 {
		q := r.s.rebind(`INSERT INTO post_archive (create_date, update_date, id_on_platform, url, account_id, account_url, account_id_on_platform, publication_date, caption, data, notes, archive_session_id, canonical_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(p.PlatformID), p.URL,
			int64Arg(p.AccountID), strArg(p.AccountURL), strArg(p.AccountPlatform),
			fmtTimePtr(p.PublicationDate), strArg(p.Caption), data, strArg(p.Notes),
			p.SessionID, p.CanonicalID).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert archive post: %w", err)
		}
		p.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE post_archive SET update_date = ?, id_on_platform = ?, url = ?, account_id = ?, account_url = ?, account_id_on_platform = ?, publication_date = ?, caption = ?, data = ?, notes = ?, canonical_id = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(p.PlatformID), p.URL,
		int64Arg(p.AccountID), strArg(p.AccountURL), strArg(p.AccountPlatform),
		fmtTimePtr(p.PublicationDate), strArg(p.Caption), data, strArg(p.Notes),
		p.CanonicalID, p.ID); err != nil {
		return 0, fmt.Errorf("update archive post %d: %w", p.ID, err)
	}
	return p.ID, nil
}

func (r *posts) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	q := r.s.rebind("SELECT " + postCols + " FROM post WHERE id = ?")
	p, err := scanPost(r.s.q.QueryRowContext(ctx, q, id), false)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

func (r *posts) ListByAccount(ctx context.Context, accountID int64) ([]*model.Post, error) {
	q := r.s.rebind("SELECT " + postCols + " FROM post WHERE account_id = ? ORDER BY publication_date, id")
	return r.list(ctx, q, false, accountID)
}

func (r *posts) ListBySession(ctx context.Context, sessionID int64) ([]*model.Post, error) {
	q := r.s.rebind("SELECT " + postCols + ", archive_session_id, canonical_id FROM post_archive WHERE archive_session_id = ? ORDER BY id")
	return r.list(ctx, q, true, sessionID)
}

func (r *posts) list(ctx context.Context, q string, archive bool, args ...any) ([]*model.Post, error) {
	rows, err := r.s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows, archive)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *posts) SetNotes(ctx context.Context, id int64, notes *string) error {
	q := r.s.rebind("UPDATE post SET notes = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, strArg(notes), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set post notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, model.ErrNotFound)
	}
	return nil
}
