package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openvault/archivist/internal/model"
)

type events struct{ s *Store }

func (r *events) Record(ctx context.Context, e *model.Event) error {
	now := time.Now()
	q := r.s.rebind("INSERT INTO event_log (create_date, event_type, user_id, details, args) VALUES (?, ?, ?, ?, ?) RETURNING id")
	var id int64
	err := r.s.q.QueryRowContext(ctx, q,
		fmtTime(now), e.Type, int64Arg(e.UserID), e.Details, strArg(e.Args)).Scan(&id)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	e.ID = id
	e.Created = now
	return nil
}

func (r *events) List(ctx context.Context, limit, offset int) ([]*model.Event, error) {
	q := r.s.rebind("SELECT id, create_date, event_type, user_id, details, args FROM event_log ORDER BY id DESC LIMIT ? OFFSET ?")
	rows, err := r.s.q.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var out []*model.Event
	for rows.Next() {
		var (
			e       model.Event
			created string
			userID  sql.NullInt64
			args    sql.NullString
		)
		if err := rows.Scan(&e.ID, &created, &e.Type, &userID, &e.Details, &args); err != nil {
			return nil, err
		}
		e.Created = parseTime(created)
		e.UserID = int64Ptr(userID)
		e.Args = strPtr(args)
		out = append(out, &e)
	}
	return out, rows.Err()
}
