package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/openvault/archivist/internal/model"
)

type tags struct{ s *Store }

func scanTagWithType(row rowScanner) (*model.TagWithType, error) {
	var (
		t                   model.TagWithType
		desc, tn, td        sql.NullString
		typeID              sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Name, &desc, &typeID, &tn, &td); err != nil {
		return nil, err
	}
	t.Description = strPtr(desc)
	t.TagTypeID = int64Ptr(typeID)
	t.TagTypeName = strPtr(tn)
	t.TagTypeDescription = strPtr(td)
	return &t, nil
}

func (r *tags) Create(ctx context.Context, t *model.Tag) (*model.Tag, error) {
	q := r.s.rebind("INSERT INTO tag (name, description, tag_type_id) VALUES (?, ?, ?) RETURNING id")
	var id int64
	err := r.s.q.QueryRowContext(ctx, q, t.Name, strArg(t.Description), int64Arg(t.TagTypeID)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	t.ID = id
	return t, nil
}

// Autocomplete matches the query anywhere in the tag name, case-insensitively.
func (r *tags) Autocomplete(ctx context.Context, query string, limit int) ([]*model.TagWithType, error) {
	q := r.s.rebind(`SELECT t.id, t.name, t.description, t.tag_type_id, tt.name, tt.description
		FROM tag t LEFT JOIN tag_type tt ON tt.id = t.tag_type_id
		WHERE LOWER(t.name) LIKE ? ESCAPE '\' ORDER BY t.name LIMIT ?`)
	rows, err := r.s.q.QueryContext(ctx, q, "%"+likeEscape(strings.ToLower(query))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("tag autocomplete: %w", err)
	}
	defer rows.Close()
	var out []*model.TagWithType
	for rows.Next() {
		t, err := scanTagWithType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *tags) SetForEntity(ctx context.Context, entity model.EntityKind, entityID int64, tagIDs []int64) error {
	del := r.s.rebind("DELETE FROM entity_tag WHERE entity_type = ? AND entity_id = ?")
	if _, err := r.s.q.ExecContext(ctx, del, string(entity), entityID); err != nil {
		return fmt.Errorf("clear entity tags: %w", err)
	}
	ins := r.s.rebind("INSERT INTO entity_tag (entity_type, entity_id, tag_id) VALUES (?, ?, ?)")
	for _, tagID := range tagIDs {
		if _, err := r.s.q.ExecContext(ctx, ins, string(entity), entityID, tagID); err != nil {
			return fmt.Errorf("assign tag %d: %w", tagID, err)
		}
	}
	return nil
}

func (r *tags) ListForEntity(ctx context.Context, entity model.EntityKind, entityID int64) ([]*model.TagWithType, error) {
	q := r.s.rebind(`SELECT t.id, t.name, t.description, t.tag_type_id, tt.name, tt.description
		FROM entity_tag et
		JOIN tag t ON t.id = et.tag_id
		LEFT JOIN tag_type tt ON tt.id = t.tag_type_id
		WHERE et.entity_type = ? AND et.entity_id = ? ORDER BY t.name`)
	rows, err := r.s.q.QueryContext(ctx, q, string(entity), entityID)
	if err != nil {
		return nil, fmt.Errorf("list entity tags: %w", err)
	}
	defer rows.Close()
	var out []*model.TagWithType
	for rows.Next() {
		t, err := scanTagWithType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
