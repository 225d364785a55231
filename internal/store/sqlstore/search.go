package sqlstore

import (
	"context"
	"fmt"

	"github.com/openvault/archivist/internal/model"
)

// searchableTables is the closed set of tables SearchRows will touch. The
// where clause itself is validated upstream by the filter compiler; this is
// the second line of defense.
var searchableTables = map[string]bool{
	"archive_session": true,
	"account":         true,
	"post":            true,
	"media":           true,
	"media_part":      true,
	"account_archive": true,
	"post_archive":    true,
	"media_archive":   true,
}

func (s *Store) SearchRows(ctx context.Context, table, where string, args []any, limit, offset int) ([]map[string]any, error) {
	if !searchableTables[table] {
		return nil, fmt.Errorf("table %q: %w", table, model.ErrInjectionAttempt)
	}
	q := "SELECT * FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(append([]any{}, args...), limit, offset)
	rows, err := s.q.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[c] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
