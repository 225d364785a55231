package assets

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/har"
)

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true,
	"bmp": true, "tiff": true, "heic": true, "heif": true,
}

// Photo is one reconstructed image file.
type Photo struct {
	URL  string
	Path string
}

// IsImageURL reports whether the URL path ends in a known image extension.
func IsImageURL(u string) bool {
	base, _, _ := strings.Cut(strings.ToLower(u), "?")
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	return imageExtensions[ext]
}

// ExtractPhotos streams the capture, decodes every image response body and
// writes it under outDir. When the same filename was delivered more than once
// the largest body wins. Undecodable bodies are skipped.
func ExtractPhotos(harPath, outDir string, log zerolog.Logger) ([]Photo, error) {
	sc, err := har.Open(harPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sc.Close() }()

	type fetched struct {
		url  string
		data []byte
	}
	best := map[string]fetched{}
	var order []string

	for {
		e, err := sc.Next()
		if err != nil {
			break
		}
		u := e.Request.URL
		if !IsImageURL(u) || e.Response.Content.Text == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(e.Response.Content.Text)
		if err != nil {
			continue
		}
		name := filename(u)
		if name == "" {
			continue
		}
		if prev, ok := best[name]; ok {
			if len(data) <= len(prev.data) {
				continue
			}
		} else {
			order = append(order, name)
		}
		best[name] = fetched{url: u, data: data}
	}

	if len(best) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create photos dir: %w", err)
	}

	var photos []Photo
	for _, name := range order {
		f := best[name]
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to write photo")
			continue
		}
		photos = append(photos, Photo{URL: f.url, Path: path})
	}
	return photos, nil
}

func filename(u string) string {
	base, _, _ := strings.Cut(u, "?")
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	return base
}
