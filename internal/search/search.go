// Package search compiles user-supplied filter trees into parameterized SQL
// over a per-table column whitelist, and runs free-text term searches over
// the entity tables. Anything outside the whitelist is treated as an
// injection attempt, not a user error.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Filter is one node in a query tree: either a boolean combinator over
// children or a field comparison.
type Filter struct {
	Op       string   `json:"op"`
	Field    string   `json:"field,omitempty"`
	Value    any      `json:"value,omitempty"`
	Children []Filter `json:"children,omitempty"`
}

// modeTables maps API search modes to tables.
var modeTables = map[string]string{
	"sessions": "archive_session",
	"accounts": "account",
	"posts":    "post",
	"media":    "media",
}

// filterColumns is the per-table whitelist of filterable columns.
var filterColumns = map[string]map[string]bool{
	"archive_session": cols("id", "create_date", "update_date", "external_id", "archived_url",
		"archive_location", "parsed_content", "extracted_entities", "archiving_timestamp",
		"extraction_error", "source_type", "notes"),
	"account": cols("id", "create_date", "update_date", "id_on_platform", "url",
		"display_name", "bio", "notes"),
	"post": cols("id", "create_date", "update_date", "id_on_platform", "url", "account_id",
		"account_url", "publication_date", "caption", "notes"),
	"media": cols("id", "create_date", "update_date", "id_on_platform", "url", "post_id",
		"post_url", "local_url", "media_type", "notes"),
}

// termColumns are the text columns a free-text search scans per table.
var termColumns = map[string][]string{
	"archive_session": {"external_id", "archived_url", "notes"},
	"account":         {"url", "display_name", "bio", "notes"},
	"post":            {"url", "caption", "notes"},
	"media":           {"url", "notes"},
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

var comparisons = map[string]string{
	"eq": "=",
	"ne": "!=",
	"lt": "<",
	"le": "<=",
	"gt": ">",
	"ge": ">=",
}

// Service runs searches against the store.
type Service struct {
	st  store.Store
	log zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{st: st, log: log}
}

// Filtered runs a filter tree against one search mode. A nil filter returns
// the table unfiltered.
func (s *Service) Filtered(ctx context.Context, mode string, f *Filter, limit, offset int) ([]map[string]any, error) {
	table, ok := modeTables[mode]
	if !ok {
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
	var (
		where string
		args  []any
	)
	if f != nil {
		var err error
		where, args, err = compile(table, f)
		if err != nil {
			s.log.Warn().Err(err).Str("mode", mode).Msg("rejected search filter")
			return nil, err
		}
	}
	return s.st.SearchRows(ctx, table, where, args, clampLimit(limit), max(offset, 0))
}

// Term runs a case-insensitive substring search over the mode's text columns.
func (s *Service) Term(ctx context.Context, mode, term string, limit, offset int) ([]map[string]any, error) {
	table, ok := modeTables[mode]
	if !ok {
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return s.st.SearchRows(ctx, table, "", nil, clampLimit(limit), max(offset, 0))
	}
	pattern := "%" + likeEscape(strings.ToLower(term)) + "%"
	var (
		parts []string
		args  []any
	)
	for _, c := range termColumns[table] {
		parts = append(parts, fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, c))
		args = append(args, pattern)
	}
	where := "(" + strings.Join(parts, " OR ") + ")"
	return s.st.SearchRows(ctx, table, where, args, clampLimit(limit), max(offset, 0))
}

// compile turns a filter node into a where fragment. Every rejected input
// carries model.ErrInjectionAttempt so callers can log it as a security
// event.
func compile(table string, f *Filter) (string, []any, error) {
	switch f.Op {
	case "and", "or":
		if len(f.Children) == 0 {
			return "", nil, fmt.Errorf("%s with no children: %w", f.Op, model.ErrInjectionAttempt)
		}
		var (
			parts []string
			args  []any
		)
		for i := range f.Children {
			sub, subArgs, err := compile(table, &f.Children[i])
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sub)
			args = append(args, subArgs...)
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(f.Op)+" ") + ")", args, nil

	case "contains":
		if err := checkField(table, f.Field); err != nil {
			return "", nil, err
		}
		v, ok := f.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("contains needs a string value: %w", model.ErrInjectionAttempt)
		}
		return fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, f.Field),
			[]any{"%" + likeEscape(strings.ToLower(v)) + "%"}, nil

	default:
		op, ok := comparisons[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("operator %q: %w", f.Op, model.ErrInjectionAttempt)
		}
		if err := checkField(table, f.Field); err != nil {
			return "", nil, err
		}
		switch f.Value.(type) {
		case string, float64, int, int64, bool, nil:
		default:
			return "", nil, fmt.Errorf("unsupported value type: %w", model.ErrInjectionAttempt)
		}
		return fmt.Sprintf("%s %s ?", f.Field, op), []any{f.Value}, nil
	}
}

func checkField(table, field string) error {
	if !filterColumns[table][field] {
		return fmt.Errorf("field %q on %s: %w", field, table, model.ErrInjectionAttempt)
	}
	return nil
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
