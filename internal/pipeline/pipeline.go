// Package pipeline drives ingestion: registering archive directories as
// sessions, parsing captures into structures, extracting assets and entities,
// and generating thumbnails. Stages record their version marker only on
// success; a failed session carries its error and is skipped afterwards.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/assets"
	"github.com/openvault/archivist/internal/config"
	"github.com/openvault/archivist/internal/entities"
	"github.com/openvault/archivist/internal/intake"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/paths"
	"github.com/openvault/archivist/internal/store"
	"github.com/openvault/archivist/internal/structures"
	"github.com/openvault/archivist/internal/thumbs"
)

const (
	parseVersion   = 1
	extractVersion = 1

	harFileName      = "archive.har"
	metadataFileName = "metadata.json"
)

// Pipeline processes archive sessions sequentially. Sessions are independent
// but entity reconciliation reads canonical rows written by earlier sessions,
// so there is no concurrent processing.
type Pipeline struct {
	st  store.Store
	cfg *config.Config
	res *paths.Resolver
	tr  assets.Transcoder
	log zerolog.Logger
}

func New(st store.Store, cfg *config.Config, tr assets.Transcoder, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		st:  st,
		cfg: cfg,
		res: &paths.Resolver{ArchivesRoot: cfg.ArchivesRoot, ThumbnailsRoot: cfg.ThumbnailsRoot},
		tr:  tr,
		log: log,
	}
}

// Run registers new archive directories, processes every pending session and
// finishes with a thumbnail pass.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Register(ctx); err != nil {
		return err
	}
	for {
		sess, err := p.st.Sessions().NextPending(ctx)
		if errors.Is(err, model.ErrNotFound) {
			break
		}
		if err != nil {
			return err
		}
		if err := p.Process(ctx, sess); err != nil {
			return err
		}
	}
	return thumbs.NewGenerator(p.st, p.tr, p.res, p.log).Run(ctx)
}

// Register creates a session for every directory under the archives root that
// contains a capture file and is not yet known. The directory name keys the
// session: re-running registration is a no-op.
func (p *Pipeline) Register(ctx context.Context) error {
	dirs, err := os.ReadDir(p.cfg.ArchivesRoot)
	if err != nil {
		return fmt.Errorf("read archives root: %w", err)
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		harPath := filepath.Join(p.cfg.ArchivesRoot, d.Name(), harFileName)
		if _, err := os.Stat(harPath); err != nil {
			continue
		}
		externalID := "har-" + d.Name()
		if _, err := p.st.Sessions().GetByExternalID(ctx, externalID); err == nil {
			continue
		} else if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		sess, err := p.st.Sessions().Create(ctx, &model.ArchiveSession{
			ExternalID: externalID,
			Location:   paths.ArchiveAlias(d.Name()),
			SourceType: model.SourceTypeHAR,
		})
		if err != nil {
			return err
		}
		p.log.Info().Int64("sessionId", sess.ID).Str("externalId", externalID).Msg("session registered")
	}
	return nil
}

// Process runs the missing stages of one session. Parse errors and extraction
// errors are recorded on the session and do not fail the pipeline; storage
// errors do.
func (p *Pipeline) Process(ctx context.Context, sess *model.ArchiveSession) error {
	if sess.ParseVersion == nil {
		if err := p.Parse(ctx, sess); err != nil {
			p.log.Error().Err(err).Int64("sessionId", sess.ID).Msg("parse failed")
			return p.st.Sessions().SetExtractionError(ctx, sess.ID, "parse: "+err.Error())
		}
		reloaded, err := p.st.Sessions().GetByID(ctx, sess.ID)
		if err != nil {
			return err
		}
		sess = reloaded
	}
	if sess.ExtractVersion == nil {
		if err := p.Extract(ctx, sess); err != nil {
			if errors.Is(err, model.ErrTranscoderUnavailable) || ctx.Err() != nil {
				return err
			}
			p.log.Error().Err(err).Int64("sessionId", sess.ID).Msg("extraction failed")
			return p.st.Sessions().SetExtractionError(ctx, sess.ID, "extract: "+err.Error())
		}
	}
	return nil
}

// Parse reads the capture and the archiver's sidecar files, stores the
// structure blobs and inventories the attachments.
func (p *Pipeline) Parse(ctx context.Context, sess *model.ArchiveSession) error {
	dir, err := p.res.Archive(sess.Location)
	if err != nil {
		return err
	}

	meta, err := readMetadata(filepath.Join(dir, metadataFileName))
	if err != nil {
		return err
	}

	structs, err := structures.FromHAR(filepath.Join(dir, harFileName), p.log)
	if err != nil {
		return err
	}
	structBlob, err := json.Marshal(structs)
	if err != nil {
		return fmt.Errorf("encode structures: %w", err)
	}

	attachments, err := inventoryAttachments(dir, sess.Location)
	if err != nil {
		return err
	}
	attachBlob, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("encode attachments: %w", err)
	}

	parsed := store.ParsedSession{
		Version:     parseVersion,
		Structures:  structBlob,
		Attachments: attachBlob,
	}
	if meta != nil {
		parsed.Metadata = meta.raw
		if meta.TargetURL != "" {
			parsed.ArchivedURL = &meta.TargetURL
		}
		parsed.ArchivingTime = meta.archivingTime
	}
	if err := p.st.Sessions().SetParsed(ctx, sess.ID, parsed); err != nil {
		return err
	}
	p.log.Info().
		Int64("sessionId", sess.ID).
		Int("structures", len(structs)).
		Int("attachments", len(attachments)).
		Msg("session parsed")
	return nil
}

// Extract reconstructs assets, maps entities and persists them in one
// transaction.
func (p *Pipeline) Extract(ctx context.Context, sess *model.ArchiveSession) error {
	dir, err := p.res.Archive(sess.Location)
	if err != nil {
		return err
	}
	harPath := filepath.Join(dir, harFileName)

	photos, err := assets.ExtractPhotos(harPath, dir, p.log)
	if err != nil {
		return err
	}
	videos, err := assets.NewVideoExtractor(p.tr, p.cfg.FetchFullTracks, p.log).Extract(ctx, harPath, dir)
	if err != nil {
		return err
	}

	localFiles, err := p.aliasLocalFiles(assets.LocalFileMap(videos, photos))
	if err != nil {
		return err
	}

	var structs []structures.Structure
	if len(sess.Structures) > 0 {
		if err := json.Unmarshal(sess.Structures, &structs); err != nil {
			return fmt.Errorf("decode stored structures: %w", err)
		}
	}
	ext := entities.Map(structs, localFiles, p.log)

	tx, err := p.st.BeginSession(ctx)
	if err != nil {
		return err
	}
	if err := intake.NewLoader(tx, sess.ID, p.log).Run(ctx, ext); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Sessions().SetExtracted(ctx, sess.ID, extractVersion); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.log.Info().
		Int64("sessionId", sess.ID).
		Int("photos", len(photos)).
		Int("videos", len(videos)).
		Msg("entities extracted")
	return nil
}

// aliasLocalFiles rewrites extractor output paths (absolute or relative
// filesystem paths under the archives root) into stored aliases.
func (p *Pipeline) aliasLocalFiles(files map[string]string) (map[string]string, error) {
	root, err := filepath.Abs(p.cfg.ArchivesRoot)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(files))
	for urlKey, fsPath := range files {
		abs, err := filepath.Abs(fsPath)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return nil, fmt.Errorf("file %s outside archives root: %w", fsPath, err)
		}
		out[urlKey] = paths.ArchiveAlias(rel)
	}
	return out, nil
}

type metadata struct {
	TargetURL     string `json:"target_url"`
	StartStamp    string `json:"archiving_start_timestamp"`
	raw           json.RawMessage
	archivingTime *time.Time
}

// readMetadata tolerates a missing sidecar file; captures made by hand lack
// one.
func readMetadata(path string) (*metadata, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	m.raw = raw
	if m.StartStamp != "" {
		// archiver timestamps are host-local wall clock
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", m.StartStamp, time.Local); err == nil {
			m.setArchivingTime(raw, t)
		} else if t, err := time.Parse(time.RFC3339, m.StartStamp); err == nil {
			m.setArchivingTime(raw, t)
		}
	}
	return &m, nil
}

// setArchivingTime stores the UTC timestamp and writes the zone used for the
// conversion into the metadata blob, keeping the original wall-clock reading
// interpretable after the host changes zones.
func (m *metadata) setArchivingTime(raw json.RawMessage, t time.Time) {
	utc := t.UTC()
	m.archivingTime = &utc

	zone, offset := t.Zone()
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return
	}
	doc["archiving_timestamp_zone"] = zone
	doc["archiving_timestamp_zone_offset_seconds"] = offset
	if b, err := json.Marshal(doc); err == nil {
		m.raw = b
	}
}
