package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
)

type sessions struct{ s *Store }

const sessionCols = "id, create_date, update_date, external_id, archived_url, archive_location, parsed_content, extracted_entities, structures, metadata, attachments, archiving_timestamp, extraction_error, source_type, notes"

func scanSession(row rowScanner) (*model.ArchiveSession, error) {
	var (
		s                                 model.ArchiveSession
		created, updated                  string
		archivedURL, archiving, extErr    sql.NullString
		structures, metadata, attachments sql.NullString
		parsed, extracted                 sql.NullInt64
		notes                             sql.NullString
	)
	if err := row.Scan(&s.ID, &created, &updated, &s.ExternalID, &archivedURL, &s.Location,
		&parsed, &extracted, &structures, &metadata, &attachments, &archiving, &extErr,
		&s.SourceType, &notes); err != nil {
		return nil, err
	}
	s.CreateDate = parseTime(created)
	s.UpdateDate = parseTime(updated)
	s.ArchivedURL = strPtr(archivedURL)
	s.ParseVersion = intPtr(parsed)
	s.ExtractVersion = intPtr(extracted)
	s.Structures = rawMsg(structures)
	s.Metadata = rawMsg(metadata)
	s.Attachments = rawMsg(attachments)
	s.ArchivingTime = timePtr(archiving)
	s.ExtractionError = strPtr(extErr)
	s.Notes = strPtr(notes)
	return &s, nil
}

func (r *sessions) Create(ctx context.Context, s *model.ArchiveSession) (*model.ArchiveSession, error) {
	now := time.Now()
	q := r.s.rebind(`INSERT INTO archive_session (create_date, update_date, external_id, archived_url, archive_location, source_type, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	err := r.s.q.QueryRowContext(ctx, q,
		fmtTime(now), fmtTime(now), s.ExternalID, strArg(s.ArchivedURL),
		s.Location, s.SourceType, strArg(s.Notes)).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	s.ID = id
	s.CreateDate = now
	s.UpdateDate = now
	return s, nil
}

func (r *sessions) GetByID(ctx context.Context, id int64) (*model.ArchiveSession, error) {
	q := r.s.rebind("SELECT " + sessionCols + " FROM archive_session WHERE id = ?")
	s, err := scanSession(r.s.q.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

func (r *sessions) GetByExternalID(ctx context.Context, externalID string) (*model.ArchiveSession, error) {
	q := r.s.rebind("SELECT " + sessionCols + " FROM archive_session WHERE external_id = ?")
	s, err := scanSession(r.s.q.QueryRowContext(ctx, q, externalID))
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

func (r *sessions) List(ctx context.Context, limit, offset int) ([]*model.ArchiveSession, error) {
	q := r.s.rebind("SELECT " + sessionCols + " FROM archive_session ORDER BY id LIMIT ? OFFSET ?")
	rows, err := r.s.q.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.ArchiveSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// entityArchiveTables maps entity kinds to their per-session archive table.
var entityArchiveTables = map[model.EntityKind]string{
	model.KindAccount: "account_archive",
	model.KindPost:    "post_archive",
	model.KindMedia:   "media_archive",
}

func (r *sessions) ListForEntity(ctx context.Context, entity model.EntityKind, canonicalID int64) ([]*model.ArchiveSession, error) {
	table, ok := entityArchiveTables[entity]
	if !ok {
		return nil, fmt.Errorf("entity %q has no archive rows", entity)
	}
	cols := "s." + strings.ReplaceAll(sessionCols, ", ", ", s.")
	q := r.s.rebind("SELECT " + cols + " FROM archive_session s JOIN " + table +
		" a ON a.archive_session_id = s.id WHERE a.canonical_id = ? ORDER BY s.id")
	rows, err := r.s.q.QueryContext(ctx, q, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for entity: %w", err)
	}
	defer rows.Close()
	var out []*model.ArchiveSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessions) NextPending(ctx context.Context) (*model.ArchiveSession, error) {
	q := "SELECT " + sessionCols + ` FROM archive_session
		WHERE extraction_error IS NULL AND (parsed_content IS NULL OR extracted_entities IS NULL)
		ORDER BY id LIMIT 1`
	s, err := scanSession(r.s.q.QueryRowContext(ctx, q))
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

func (r *sessions) SetParsed(ctx context.Context, id int64, p store.ParsedSession) error {
	q := r.s.rebind(`UPDATE archive_session
		SET update_date = ?, parsed_content = ?, archived_url = ?, archiving_timestamp = ?, metadata = ?, structures = ?, attachments = ?, notes = COALESCE(?, notes)
		WHERE id = ?`)
	res, err := r.s.q.ExecContext(ctx, q,
		fmtTime(time.Now()), p.Version, strArg(p.ArchivedURL), fmtTimePtr(p.ArchivingTime),
		rawArg(p.Metadata), rawArg(p.Structures), rawArg(p.Attachments), strArg(p.Notes), id)
	if err != nil {
		return fmt.Errorf("set parsed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *sessions) SetExtracted(ctx context.Context, id int64, version int) error {
	q := r.s.rebind("UPDATE archive_session SET extracted_entities = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, version, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set extracted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *sessions) SetExtractionError(ctx context.Context, id int64, message string) error {
	q := r.s.rebind("UPDATE archive_session SET extraction_error = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, message, fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set extraction error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *sessions) SetNotes(ctx context.Context, id int64, notes *string) error {
	q := r.s.rebind("UPDATE archive_session SET notes = ?, update_date = ? WHERE id = ?")
	res, err := r.s.q.ExecContext(ctx, q, strArg(notes), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("set session notes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %d: %w", id, model.ErrNotFound)
	}
	return nil
}
