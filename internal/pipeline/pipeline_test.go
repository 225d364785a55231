package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvault/archivist/internal/config"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/store"
	"github.com/openvault/archivist/internal/store/sqlite"
	"github.com/openvault/archivist/internal/store/sqlstore"
)

type nopTranscoder struct{}

func (nopTranscoder) Probe(context.Context, string) error              { return nil }
func (nopTranscoder) HasAudio(context.Context, string) (bool, error)   { return false, nil }
func (nopTranscoder) Mux(context.Context, string, string, string) error { return nil }
func (nopTranscoder) Frame(context.Context, string, string, int) error {
	return fmt.Errorf("no frames in tests")
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(context.Background(), db, store.DialectSQLite))
	return sqlstore.New(db, store.DialectSQLite)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for x := 0; x < 300; x++ {
		for y := 0; y < 200; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// sampleHAR is a capture holding one api/v1 media info response and the
// image file it references.
func sampleHAR(t *testing.T, imgData []byte) []byte {
	t.Helper()
	info := map[string]any{
		"items": []any{map[string]any{
			"pk":         "1",
			"code":       "B",
			"taken_at":   1700000000,
			"media_type": 1,
			"image_versions2": map[string]any{
				"candidates": []any{map[string]any{
					"url": "https://scontent.cdninstagram.com/v/t51/pic.png?x=1",
				}},
			},
			"user": map[string]any{"pk": "991", "username": "somebody", "full_name": "Somebody"},
		}},
	}
	infoBody, err := json.Marshal(info)
	require.NoError(t, err)

	harDoc := map[string]any{"log": map[string]any{"entries": []any{
		map[string]any{
			"request": map[string]any{
				"method": "GET",
				"url":    "https://www.instagram.com/api/v1/media/1/info/",
			},
			"response": map[string]any{
				"status": 200,
				"content": map[string]any{
					"mimeType": "application/json; charset=utf-8",
					"text":     string(infoBody),
				},
			},
		},
		map[string]any{
			"request": map[string]any{
				"method": "GET",
				"url":    "https://scontent.cdninstagram.com/v/t51/pic.png?x=1",
			},
			"response": map[string]any{
				"status": 200,
				"content": map[string]any{
					"mimeType": "image/png",
					"text":     base64.StdEncoding.EncodeToString(imgData),
					"encoding": "base64",
				},
			},
		},
	}}}
	raw, err := json.Marshal(harDoc)
	require.NoError(t, err)
	return raw
}

func writeSession(t *testing.T, root, name string, har []byte) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, harFileName), har, 0o644))
	meta := `{"target_url": "https://www.instagram.com/somebody/", "archiving_start_timestamp": "2024-03-01 12:00:00"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte(meta), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "har_hash.txt"), []byte("deadbeef"), 0o644))
}

func testPipeline(t *testing.T, st store.Store) *Pipeline {
	t.Helper()
	cfg := config.NewForTesting()
	cfg.ArchivesRoot = t.TempDir()
	cfg.ThumbnailsRoot = t.TempDir()
	cfg.FetchFullTracks = false
	return New(st, cfg, nopTranscoder{}, zerolog.Nop())
}

func TestRunIngestsSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := testPipeline(t, st)
	writeSession(t, p.cfg.ArchivesRoot, "s1", sampleHAR(t, pngBytes(t)))

	require.NoError(t, p.Run(ctx))

	sess, err := st.Sessions().GetByExternalID(ctx, "har-s1")
	require.NoError(t, err)
	require.NotNil(t, sess.ParseVersion)
	require.NotNil(t, sess.ExtractVersion)
	assert.Nil(t, sess.ExtractionError)
	require.NotNil(t, sess.ArchivedURL)
	assert.Equal(t, "https://www.instagram.com/somebody/", *sess.ArchivedURL)
	require.NotNil(t, sess.ArchivingTime)

	var attachments []Attachment
	require.NoError(t, json.Unmarshal(sess.Attachments, &attachments))
	kinds := map[string]bool{}
	for _, a := range attachments {
		kinds[a.Kind] = true
	}
	assert.True(t, kinds[attachmentHAR])
	assert.True(t, kinds[attachmentHARHash])

	account, err := st.Accounts().FindCanonical(ctx, model.Identity{URL: "https://www.instagram.com/somebody/"})
	require.NoError(t, err)

	posts, err := st.Posts().ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	media, err := st.Media().ListByPost(ctx, posts[0].ID)
	require.NoError(t, err)
	require.Len(t, media, 1)
	require.NotNil(t, media[0].LocalPath)
	assert.Equal(t, "local_archive_har/s1/pic.png", *media[0].LocalPath)

	// the closing thumbnail pass covered the photo
	require.NotNil(t, media[0].ThumbnailPath)
	assert.False(t, media[0].ThumbnailFailed())
}

func TestParseRecordsTimestampConversionZone(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := testPipeline(t, st)
	writeSession(t, p.cfg.ArchivesRoot, "s1", sampleHAR(t, pngBytes(t)))

	require.NoError(t, p.Run(ctx))

	sess, err := st.Sessions().GetByExternalID(ctx, "har-s1")
	require.NoError(t, err)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(sess.Metadata, &meta))

	wall, err := time.ParseInLocation("2006-01-02 15:04:05", "2024-03-01 12:00:00", time.Local)
	require.NoError(t, err)
	zone, offset := wall.Zone()

	assert.Equal(t, zone, meta["archiving_timestamp_zone"])
	assert.Equal(t, float64(offset), meta["archiving_timestamp_zone_offset_seconds"])
	require.NotNil(t, sess.ArchivingTime)
	assert.Equal(t, wall.UTC(), sess.ArchivingTime.UTC())
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := testPipeline(t, st)
	writeSession(t, p.cfg.ArchivesRoot, "s1", sampleHAR(t, pngBytes(t)))

	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Run(ctx))

	sessions, err := st.Sessions().List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	accounts, err := st.Accounts().List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestRunRecordsParseFailureAndContinues(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := testPipeline(t, st)
	writeSession(t, p.cfg.ArchivesRoot, "bad", []byte("not json"))
	writeSession(t, p.cfg.ArchivesRoot, "good", sampleHAR(t, pngBytes(t)))

	require.NoError(t, p.Run(ctx))

	bad, err := st.Sessions().GetByExternalID(ctx, "har-bad")
	require.NoError(t, err)
	require.NotNil(t, bad.ExtractionError)
	assert.Nil(t, bad.ParseVersion)

	good, err := st.Sessions().GetByExternalID(ctx, "har-good")
	require.NoError(t, err)
	require.NotNil(t, good.ExtractVersion)
}

func TestRegisterSkipsDirectoriesWithoutCapture(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := testPipeline(t, st)
	require.NoError(t, os.MkdirAll(filepath.Join(p.cfg.ArchivesRoot, "empty"), 0o755))

	require.NoError(t, p.Register(ctx))

	sessions, err := st.Sessions().List(ctx, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
