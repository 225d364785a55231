// Package thumbs generates 128x128 preview images for archived media.
// Outcomes are written back to the media row: a path under the thumbnails
// root on success, an "error: …" sentinel on failure so broken inputs are
// not retried forever.
package thumbs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/assets"
	"github.com/openvault/archivist/internal/model"
	"github.com/openvault/archivist/internal/paths"
	"github.com/openvault/archivist/internal/store"
)

const (
	thumbSize    = 128
	jpegQuality  = 85
	frameTimeout = 10 * time.Second
)

// candidateFrames are tried in order for video previews; early frames of
// reconstructed tracks are sometimes black or corrupt.
var candidateFrames = []int{0, 1, 10, 30}

// Generator walks media rows without a thumbnail outcome and fills them in.
type Generator struct {
	st  store.Store
	tr  assets.Transcoder
	res *paths.Resolver
	log zerolog.Logger
}

func NewGenerator(st store.Store, tr assets.Transcoder, res *paths.Resolver, log zerolog.Logger) *Generator {
	return &Generator{st: st, tr: tr, res: res, log: log}
}

// Run processes pending media until none remain or ctx is cancelled.
// Failures are recorded per media and never stop the loop.
func (g *Generator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := g.st.Media().NextWithoutThumbnail(ctx)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		outcome := g.generate(ctx, m)
		if err := g.st.Media().SetThumbnail(ctx, m.ID, outcome); err != nil {
			return err
		}
	}
}

func (g *Generator) generate(ctx context.Context, m *model.Media) string {
	alias, err := g.generateFile(ctx, m)
	if err != nil {
		g.log.Warn().Err(err).Int64("mediaId", m.ID).Msg("thumbnail generation failed")
		return "error: " + err.Error()
	}
	g.log.Debug().Int64("mediaId", m.ID).Str("thumbnail", alias).Msg("thumbnail generated")
	return alias
}

func (g *Generator) generateFile(ctx context.Context, m *model.Media) (string, error) {
	if m.LocalPath == nil {
		return "", fmt.Errorf("no local file")
	}
	src, err := g.res.Archive(*m.LocalPath)
	if err != nil {
		return "", err
	}
	name := Name(m)
	out := g.res.Thumbnail(name)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}

	switch m.Kind {
	case model.MediaVideo:
		err = g.videoThumbnail(ctx, src, out)
	default:
		err = imageThumbnail(src, out)
	}
	if err != nil {
		return "", err
	}
	return paths.ThumbnailAlias(name), nil
}

// Name derives the stable thumbnail filename for a media row.
func Name(m *model.Media) string {
	key := m.URL
	if m.PlatformID != nil {
		key = *m.PlatformID
	}
	sum := md5.Sum([]byte(key + "_128x128"))
	return hex.EncodeToString(sum[:]) + ".jpg"
}

func imageThumbnail(src, out string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(src), err)
	}
	small := resize.Thumbnail(thumbSize, thumbSize, img, resize.Lanczos3)

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(w, small, &jpeg.Options{Quality: jpegQuality}); err != nil {
		_ = w.Close()
		_ = os.Remove(out)
		return err
	}
	return w.Close()
}

// videoThumbnail extracts the first readable candidate frame and shrinks it.
func (g *Generator) videoThumbnail(ctx context.Context, src, out string) error {
	frameFile := strings.TrimSuffix(out, ".jpg") + "_frame.jpg"
	defer os.Remove(frameFile)

	var lastErr error
	for _, n := range candidateFrames {
		frameCtx, cancel := context.WithTimeout(ctx, frameTimeout)
		err := g.tr.Frame(frameCtx, src, frameFile, n)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		if info, err := os.Stat(frameFile); err != nil || info.Size() == 0 {
			lastErr = fmt.Errorf("frame %d: empty output", n)
			continue
		}
		if err := imageThumbnail(frameFile, out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no readable frame")
	}
	return fmt.Errorf("video thumbnail: %w", lastErr)
}
