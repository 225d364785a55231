package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type media struct{ s *Store }

const mediaCols = "id, create_date, update_date, id_on_platform, url, post_id, post_url, post_id_on_platform, local_url, media_type, data, thumbnail_path, notes"

func scanMedia(row rowScanner, archive bool) (*model.Media, error) {
	var (
		m                               model.Media
		created, updated, mediaType     string
		platformID, postURL, postPlat   sql.NullString
		postID                          sql.NullInt64
		localURL, data, thumb, notes    sql.NullString
	)
	dest := []any{&m.ID, &created, &updated, &platformID, &m.URL, &postID, &postURL, &postPlat,
		&localURL, &mediaType, &data, &thumb, &notes}
	if archive {
		dest = append(dest, &m.SessionID, &m.CanonicalID)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.CreateDate = parseTime(created)
	m.UpdateDate = parseTime(updated)
	m.PlatformID = strPtr(platformID)
	m.PostID = int64Ptr(postID)
	m.PostURL = strPtr(postURL)
	m.PostPlatform = strPtr(postPlat)
	m.LocalPath = strPtr(localURL)
	m.Kind = model.MediaKind(mediaType)
	m.Data = jsonMap(data)
	m.ThumbnailPath = strPtr(thumb)
	m.Notes = strPtr(notes)
	return &m, nil
}

func (r *media) FindCanonical(ctx context.Context, ident model.Identity) (*model.Media, error) {
	where, args := identWhere(ident)
	q := r.s.rebind("SELECT " + mediaCols + " FROM media WHERE " + where + " ORDER BY id LIMIT 1")
	m, err := scanMedia(r.s.q.QueryRowContext(ctx, q, args...), false)
	if err != nil {
		return nil, notFound(err, "media")
	}
	return m, nil
}

func (r *media) FindArchive(ctx context.Context, ident model.Identity, sessionID int64) (*model.Media, error) {
	where, args := identWhere(ident)
	args = append(args, sessionID)
	q := r.s.rebind("SELECT " + mediaCols + ", archive_session_id, canonical_id FROM media_archive WHERE " +
		where + " AND archive_session_id = ? ORDER BY id LIMIT 1")
	m, err := scanMedia(r.s.q.QueryRowContext(ctx, q, args...), true)
	if err != nil {
		return nil, notFound(err, "media")
	}
	return m, nil
}

func (r *media) SaveCanonical(ctx context.Context, m *model.Media) (int64, error) {
	data, err := jsonArg(m.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if m.ID == 0 {
		q := r.s.rebind(`INSERT INTO media (create_date, update_date, id_on_platform, url, post_id, post_url, post_id_on_platform, local_url, media_type, data, thumbnail_path, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(m.PlatformID), m.URL,
			int64Arg(m.PostID), strArg(m.PostURL), strArg(m.PostPlatform),
			strArg(m.LocalPath), string(m.Kind), data, strArg(m.ThumbnailPath), strArg(m.Notes)).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert media: %w", err)
		}
		m.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE media SET update_date = ?, id_on_platform = ?, url = ?, post_id = ?, post_url = ?, post_id_on_platform = ?, local_url = ?, media_type = ?, data = ?, thumbnail_path = ?, notes = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(m.PlatformID), m.URL,
		int64Arg(m.PostID), strArg(m.PostURL), strArg(m.PostPlatform),
		strArg(m.LocalPath), string(m.Kind), data, strArg(m.ThumbnailPath), strArg(m.Notes), m.ID); err != nil {
		return 0, fmt.Errorf("update media %d: %w", m.ID, err)
	}
	return m.ID, nil
}

func (r *media) SaveArchive(ctx context.Context, m *model.Media) (int64, error) {
	data, err := jsonArg(m.Data)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if m.ID == 0 {
		q := r.s.rebind(`INSERT INTO media_archive (create_date, update_date, id_on_platform, url, post_id, post_url, post_id_on_platform, local_url, media_type, data, thumbnail_path, notes, archive_session_id, canonical_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
		var id int64
		err := r.s.q.QueryRowContext(ctx, q,
			fmtTime(now), fmtTime(now), strArg(m.PlatformID), m.URL,
			int64Arg(m.PostID), strArg(m.PostURL), strArg(m.PostPlatform),
			strArg(m.LocalPath), string(m.Kind), data, strArg(m.ThumbnailPath), strArg(m.Notes),
			m.SessionID, m.CanonicalID).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert archive media: %w", err)
		}
		m.ID = id
		return id, nil
	}
	q := r.s.rebind(`UPDATE media_archive SET update_date = ?, id_on_platform = ?, url = ?, post_id = ?, post_url = ?, post_id_on_platform = ?, local_url = ?, media_type = ?, data = ?, thumbnail_path = ?, notes = ?, canonical_id = ?
		WHERE id = ?`)
	if _, err := r.s.q.ExecContext(ctx, q,
		fmtTime(now), strArg(m.PlatformID), m.URL,
		int64Arg(m.PostID), strArg(m.PostURL), strArg(m.PostPlatform),
		strArg(m.LocalPath), string(m.Kind), data, strArg(m.ThumbnailPath), strArg(m.Notes),
		m.CanonicalID, m.ID); err != nil {
		return 0, fmt.Errorf("update archive media %d: %w", m.ID, err)
	}
	return m.ID, nil
}

func (r *media) GetByID(ctx context.Context, id int64) (*model.Media, error) {
	q := r.s.rebind("SELECT " + mediaCols + " FROM media WHERE id = ?")
	m, err := scanMedia(r.s.q.QueryRowContext(ctx, q, id), false)
	if err != nil {
		return nil, notFound(err, "media")
	}
	return m, nil
}

func (r *media) ListByPost(ctx context.Context, postID int64) ([]*model.Media, error) {
	q := r.s.rebind("SELECT " + mediaCols + " FROM media WHERE post_id = ? ORDER BY id")
	return r.list(ctx, q, false, postID)
}

func (r *media) ListBySession(ctx context.Context, sessionID int64) ([]*model.Media, error) {
	q := r.s.rebind("SELECT " + mediaCols + ", archive_session_id, canonical_id FROM media_archive WHERE archive_session_id = ? ORDER BY id")
	return r.list(ctx, q, true, sessionID)
}

func (r *media) list(ctx context.Context, q string, archive bool, args ...any) ([]*model.Media, error) {
	rows, err := r.s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	var out []*model.Media
	for rows.Next() {
		m, err := scanMedia(rows, archive)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *media) SetNotes(ctx context.Context, id int64, notes *string) error {
	q := r.s.rebind("UPDATE media SET notes = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, strArg(notes), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set media notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *media) NextWithoutThumbnail(ctx context.Context) (*model.Media, error) {
	q := "SELECT " + mediaCols + " FROM media WHERE local_url IS NOT NULL AND thumbnail_path IS NULL ORDER BY id LIMIT 1"
	m, err := scanMedia(r.s.q.QueryRowContext(ctx, q), false)
	if err != nil {
		return nil, notFound(err, "media")
	}
	return m, nil
}

func (r *media) SetThumbnail(ctx context.Context, id int64, path string) error {
	q := r.s.rebind("UPDATE media SET thumbnail_path = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, path, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media %d: %w", id, model.ErrNotFound)
	}
	return nil
}
