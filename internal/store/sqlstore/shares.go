package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type shares struct{ s *Store }

const shareCols = "id, create_date, created_by_user_id, entity_type, entity_id, valid, link_suffix"

func scanShare(row rowScanner) (*model.ShareLink, error) {
	var (
		sl      model.ShareLink
		created string
		entity  string
		valid   int
	)
	if err := row.Scan(&sl.ID, &created, &sl.CreatedBy, &entity, &sl.EntityID, &valid, &sl.Suffix); err != nil {
		return nil, err
	}
	sl.Created = parseTime(created)
	sl.Entity = model.EntityKind(entity)
	sl.Valid = valid != 0
	return &sl, nil
}

func (r *shares) Create(ctx context.Context, sl *model.ShareLink) (*model.ShareLink, error) {
	now := time.Now()
	q := r.s.rebind(`INSERT INTO share_link (create_date, created_by_user_id, entity_type, entity_id, valid, link_suffix)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := r.s.q.QueryRowContext(ctx, q,
		fmtTime(now), sl.CreatedBy, string(sl.Entity), sl.EntityID, boolArg(sl.Valid), sl.Suffix).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert share link: %w", err)
	}
	sl.ID = id
	sl.Created = now
	return sl, nil
}

func (r *shares) GetBySuffix(ctx context.Context, suffix string) (*model.ShareLink, error) {
	q := r.s.rebind("SELECT " + shareCols + " FROM share_link WHERE link_suffix = ?")
	sl, err := scanShare(r.s.q.QueryRowContext(ctx, q, suffix))
	if err != nil {
		return nil, notFound(err, "share link")
	}
	return sl, nil
}

func (r *shares) ListByEntity(ctx context.Context, entity model.EntityKind, entityID int64) ([]*model.ShareLink, error) {
	q := r.s.rebind("SELECT " + shareCols + " FROM share_link WHERE entity_type = ? AND entity_id = ? ORDER BY id")
	rows, err := r.s.q.QueryContext(ctx, q, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("list share links: %w", err)
	}
	defer rows.Close()
	var out []*model.ShareLink
	for rows.Next() {
		sl, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (r *shares) Invalidate(ctx context.Context, id int64) error {
	q := r.s.rebind("UPDATE share_link SET valid = 0 WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("invalidate share link %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("share link %d: %w", id, model.ErrNotFound)
	}
	return nil
}
