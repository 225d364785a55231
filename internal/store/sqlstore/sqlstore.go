// Package sqlstore implements store.Store over database/sql for the postgres
// and sqlite dialects. All statements are written with ? placeholders and
// rebound to $n for postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
)

// timeLayout is fixed-width RFC3339 UTC at second precision, so lexicographic
// comparison of stored values equals chronological comparison.
const timeLayout = time.RFC3339

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Store. The zero value is not usable; construct with
// New.
type Store struct {
	db      *sql.DB
	q       querier
	dialect store.Dialect
}

// New wraps an open database handle. The caller is responsible for having run
// store.Migrate first.
func New(db *sql.DB, dialect store.Dialect) *Store {
	return &Store{db: db, q: db, dialect: dialect}
}

func (s *Store) Accounts() store.Accounts     { return &accounts{s} }
func (s *Store) Posts() store.Posts           { return &posts{s} }
func (s *Store) Media() store.Media           { return &media{s} }
func (s *Store) MediaParts() store.MediaParts { return &mediaParts{s} }
func (s *Store) Sessions() store.Sessions     { return &sessions{s} }
func (s *Store) Users() store.Users           { return &users{s} }
func (s *Store) Tokens() store.Tokens         { return &tokens{s} }
func (s *Store) Shares() store.Shares         { return &shares{s} }
func (s *Store) Tags() store.Tags             { return &tags{s} }
func (s *Store) Events() store.Events         { return &events{s} }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

// BeginSession returns a Store view whose writes are bound to one
// transaction.
func (s *Store) BeginSession(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &storeTx{Store: Store{db: s.db, q: tx, dialect: s.dialect}, tx: tx}, nil
}

type storeTx struct {
	Store
	tx *sql.Tx
}

func (t *storeTx) Commit() error   { return t.tx.Commit() }
func (t *storeTx) Rollback() error { return t.tx.Rollback() }

// rebind rewrites ? placeholders to $n for postgres. Literal question marks
// never appear in our statements.
func (s *Store) rebind(query string) string {
	if s.dialect != store.DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func strArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func int64Arg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// jsonArg serializes a structured column value, mapping empty to NULL.
func jsonArg(v map[string]any) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode data column: %w", err)
	}
	return string(raw), nil
}

func jsonMap(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}

func rawArg(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawMsg(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

// identWhere builds the canonical identity match used by every entity table:
// a row is the same entity when either key matches.
func identWhere(ident model.Identity) (string, []any) {
	if ident.PlatformID != nil && *ident.PlatformID != "" {
		return "(url = ? OR id_on_platform = ?)", []any{ident.URL, *ident.PlatformID}
	}
	return "url = ?", []any{ident.URL}
}

// likeEscape neutralizes LIKE metacharacters in user-provided match text.
// Statements using the result must carry ESCAPE '\'.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func notFound(err error, entity string) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s: %w", entity, model.ErrNotFound)
	}
	return err
}
