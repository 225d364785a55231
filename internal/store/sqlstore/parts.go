package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type mediaParts struct{ s *Store }

const partCols = "id, create_date, update_date, media_id, timestamp_range_start, timestamp_range_end, crop_area, notes"

func cropArg(crop []float64) (any, error) {
	if len(crop) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(crop)
	if err != nil {
		return nil, fmt.Errorf("encode crop area: %w", err)
	}
	return string(raw), nil
}

func scanPart(row rowScanner) (*model.MediaPart, error) {
	var (
		p                model.MediaPart
		created, updated string
		start, end       sql.NullFloat64
		crop, notes      sql.NullString
	)
	if err := row.Scan(&p.ID, &created, &updated, &p.MediaID, &start, &end, &crop, &notes); err != nil {
		return nil, err
	}
	p.CreateDate = parseTime(created)
	p.UpdateDate = parseTime(updated)
	p.RangeStart = floatPtr(start)
	p.RangeEnd = floatPtr(end)
	if crop.Valid && crop.String != "" {
		_ = json.Unmarshal([]byte(crop.String), &p.CropArea)
	}
	p.Notes = strPtr(notes)
	return &p, nil
}

func (r *mediaParts) Create(ctx context.Context, p *model.MediaPart) (*model.MediaPart, error) {
	crop, err := cropArg(p.CropArea)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	q := r.s.rebind(`INSERT INTO media_part (create_date, update_date, media_id, timestamp_range_start, timestamp_range_end, crop_area, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err = r.s.q.QueryRowContext(ctx, q,
		fmtTime(now), fmtTime(now), p.MediaID,
		floatArg(p.RangeStart), floatArg(p.RangeEnd), crop, strArg(p.Notes)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert media part: %w", err)
	}
	p.ID = id
	p.CreateDate = now
	p.UpdateDate = now
	return p, nil
}

func (r *mediaParts) GetByID(ctx context.Context, id int64) (*model.MediaPart, error) {
	q := r.s.rebind("SELECT " + partCols + " FROM media_part WHERE id = ?")
	p, err := scanPart(r.s.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "media part")
	}
	return p, nil
}

func (r *mediaParts) ListByMedia(ctx context.Context, mediaID int64) ([]*model.MediaPart, error) {
	q := r.s.rebind("SELECT " + partCols + " FROM media_part WHERE media_id = ? ORDER BY id")
	rows, err := r.s.q.QueryContext(ctx, q, mediaID)
	if err != nil {
		return nil, fmt.Errorf("list media parts: %w", err)
	}
	defer rows.Close()
	var out []*model.MediaPart
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *mediaParts) Update(ctx context.Context, p *model.MediaPart) error {
	crop, err := cropArg(p.CropArea)
	if err != nil {
		return err
	}
	q := r.s.rebind(`UPDATE media_part SET update_date = ?, timestamp_range_start = ?, timestamp_range_end = ?, crop_area = ?, notes = ?
		WHERE id = ?`)
	res, err := r.s.q.ExecContext(ctx, q,
		fmtTime(time.Now()), floatArg(p.RangeStart), floatArg(p.RangeEnd), crop, strArg(p.Notes), p.ID)
	if err != nil {
		return fmt.Errorf("update media part %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media part %d: %w", p.ID, model.ErrNotFound)
	}
	return nil
}

func (r *mediaParts) Delete(ctx context.Context, id int64) error {
	q := r.s.rebind("DELETE FROM media_part WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete media part %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media part %d: %w", id, model.ErrNotFound)
	}
	return nil
}
