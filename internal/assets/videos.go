package assets

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/openvault/archivist/internal/har"
)

// Tracks smaller than this cannot be valid media and are discarded before
// probing.
const minTrackBytes = 1000

// Segment is one ranged response body. Start and End are nil when the
// request carried no byte-range parameters.
type Segment struct {
	Start *int64
	End   *int64
	Data  []byte
}

// Track is one stream of an asset, keyed by CDN filename stem. BaseURL is
// the request URL up to ".mp4"; FullURL is the request URL with the
// byte-range parameters stripped, usable to fetch the whole track at once.
type Track struct {
	BaseURL  string
	FullURL  string
	Segments []Segment
}

// Video is one reconstructed asset: every track observed for its asset id
// plus the files that survived reconstruction. Preferred is the most complete
// file (muxed over video-only over audio-only).
type Video struct {
	AssetID    string
	Tracks     map[string]*Track
	LocalFiles []string
	Preferred  string
}

// AssetID decodes the asset identifier from a delivery URL: the
// `xpv_asset_id` field of the base64url JSON in the `efg` query parameter,
// falling back to a hash of the filename stem when the parameter is missing
// or undecodable.
func AssetID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if efg := u.Query().Get("efg"); efg != "" {
			if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(efg, "=")); err == nil {
				var m struct {
					XPVAssetID json.Number `json:"xpv_asset_id"`
				}
				if json.Unmarshal(b, &m) == nil && m.XPVAssetID.String() != "" {
					return m.XPVAssetID.String()
				}
			}
		}
	}
	return fmt.Sprintf("%x", md5.Sum([]byte(FilenameStem(rawURL))))
}

// VideoExtractor reconstructs video assets from a capture.
type VideoExtractor struct {
	tr        Transcoder
	client    *resty.Client
	fetchFull bool
	log       zerolog.Logger
}

// NewVideoExtractor returns an extractor. When fetchFull is set each track is
// first re-fetched whole from the CDN; segment assembly is the fallback.
func NewVideoExtractor(tr Transcoder, fetchFull bool, log zerolog.Logger) *VideoExtractor {
	return &VideoExtractor{
		tr:        tr,
		client:    resty.New(),
		fetchFull: fetchFull,
		log:       log,
	}
}

// Extract collects the ranged mp4 responses of the capture grouped by asset
// id, reconstructs each asset's tracks under outDir and muxes audio and
// video tracks together. A failure on one asset does not affect the others.
func (x *VideoExtractor) Extract(ctx context.Context, harPath, outDir string) ([]*Video, error) {
	videos, err := x.collect(harPath)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create videos dir: %w", err)
	}

	var out []*Video
	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := x.reconstruct(ctx, v, outDir); err != nil {
			x.log.Warn().Err(err).Str("asset", v.AssetID).Msg("video reconstruction failed")
			continue
		}
		if len(v.LocalFiles) > 0 {
			out = append(out, v)
		}
	}
	return out, nil
}

// collect streams the capture and groups the mp4 response bodies by asset id
// and filename stem.
func (x *VideoExtractor) collect(harPath string) ([]*Video, error) {
	sc, err := har.Open(harPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sc.Close() }()

	byID := map[string]*Video{}
	var order []string

	for {
		e, err := sc.Next()
		if err != nil {
			break
		}
		u := e.Request.URL
		if !strings.Contains(u, ".mp4") || e.Response.Content.Text == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(e.Response.Content.Text)
		if err != nil || len(data) == 0 {
			continue
		}
		id := AssetID(u)
		v, ok := byID[id]
		if !ok {
			v = &Video{AssetID: id, Tracks: map[string]*Track{}}
			byID[id] = v
			order = append(order, id)
		}
		stem := FilenameStem(u)
		t, ok := v.Tracks[stem]
		if !ok {
			base, _, _ := strings.Cut(u, ".mp4")
			t = &Track{BaseURL: base, FullURL: stripRangeParams(u)}
			v.Tracks[stem] = t
		}
		t.Segments = append(t.Segments, Segment{
			Start: queryInt(u, "bytestart"),
			End:   queryInt(u, "byteend"),
			Data:  data,
		})
	}

	videos := make([]*Video, 0, len(order))
	for _, id := range order {
		videos = append(videos, byID[id])
	}
	return videos, nil
}

// reconstruct writes each track of the asset, validates it, classifies it as
// audio or video and muxes the best of each class together.
func (x *VideoExtractor) reconstruct(ctx context.Context, v *Video, outDir string) error {
	var bestAudio, bestVideo string

	stems := make([]string, 0, len(v.Tracks))
	for stem := range v.Tracks {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	for _, stem := range stems {
		track := v.Tracks[stem]
		data, origin := x.trackData(ctx, track)
		if len(data) == 0 {
			continue
		}
		path := filepath.Join(outDir, fmt.Sprintf("track_%s_%s_%s.mp4", v.AssetID, stem, origin))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write track: %w", err)
		}
		if !x.validate(ctx, path) {
			continue
		}
		hasAudio, err := x.tr.HasAudio(ctx, path)
		if err != nil {
			x.log.Warn().Err(err).Str("track", path).Msg("audio classification failed")
			_ = os.Remove(path)
			continue
		}
		if hasAudio {
			bestAudio = keepLarger(bestAudio, path)
		} else {
			bestVideo = keepLarger(bestVideo, path)
		}
	}

	if bestAudio != "" && bestVideo != "" {
		muxed := strings.TrimSuffix(bestVideo, ".mp4") + "_with_audio.mp4"
		if err := x.tr.Mux(ctx, bestVideo, bestAudio, muxed); err != nil {
			x.log.Warn().Err(err).Str("asset", v.AssetID).Msg("mux failed, keeping separate tracks")
		} else {
			_ = os.Remove(bestVideo)
			_ = os.Remove(bestAudio)
			v.LocalFiles = []string{muxed}
			v.Preferred = muxed
			return nil
		}
	}

	for _, p := range []string{bestVideo, bestAudio} {
		if p != "" {
			v.LocalFiles = append(v.LocalFiles, p)
		}
	}
	if len(v.LocalFiles) > 0 {
		v.Preferred = v.LocalFiles[0]
	}
	return nil
}

// trackData yields the track's bytes and their origin: a whole-file fetch
// when enabled and reachable, otherwise assembly from captured segments.
func (x *VideoExtractor) trackData(ctx context.Context, t *Track) ([]byte, string) {
	if x.fetchFull {
		resp, err := x.client.R().SetContext(ctx).Get(t.FullURL)
		if err == nil && resp.StatusCode() == 200 && len(resp.Body()) > 0 {
			return resp.Body(), "full_track"
		}
		if err != nil {
			x.log.Debug().Err(err).Str("url", t.FullURL).Msg("full track fetch failed")
		}
	}
	return assemble(t.Segments), "har_segments"
}

// assemble stitches ranged segments into one buffer sized by the largest end
// offset. Overlaps are overwritten in capture order; segments without a
// start offset are appended at the end.
func assemble(segments []Segment) []byte {
	ranged := make([]Segment, 0, len(segments))
	var tail []Segment
	for _, s := range segments {
		if s.Start == nil || *s.Start < 0 {
			tail = append(tail, s)
			continue
		}
		ranged = append(ranged, s)
	}
	sort.SliceStable(ranged, func(i, j int) bool { return *ranged[i].Start < *ranged[j].Start })

	var size int64
	for _, s := range ranged {
		end := *s.Start + int64(len(s.Data))
		if s.End != nil && *s.End+1 > end {
			end = *s.End + 1
		}
		if end > size {
			size = end
		}
	}
	buf := make([]byte, size)
	for _, s := range ranged {
		copy(buf[*s.Start:], s.Data)
	}
	for _, s := range tail {
		buf = append(buf, s.Data...)
	}
	return buf
}

// validate discards tracks that are too small to be media or that the
// transcoder cannot read.
func (x *VideoExtractor) validate(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() < minTrackBytes {
		_ = os.Remove(path)
		return false
	}
	if err := x.tr.Probe(ctx, path); err != nil {
		x.log.Debug().Err(err).Str("track", path).Msg("discarding unreadable track")
		_ = os.Remove(path)
		return false
	}
	return true
}

// keepLarger retains whichever of the two files is larger and removes the
// other.
func keepLarger(current, candidate string) string {
	if current == "" {
		return candidate
	}
	cur, err1 := os.Stat(current)
	cand, err2 := os.Stat(candidate)
	if err1 != nil {
		return candidate
	}
	if err2 != nil {
		return current
	}
	if cand.Size() > cur.Size() {
		_ = os.Remove(current)
		return candidate
	}
	_ = os.Remove(candidate)
	return current
}

// LocalFileMap joins reconstructed assets back to entities: canonical asset
// URL to local file path.
func LocalFileMap(videos []*Video, photos []Photo) map[string]string {
	m := map[string]string{}
	for _, v := range videos {
		if v.Preferred == "" {
			continue
		}
		for _, t := range v.Tracks {
			m[CanonicalURL(t.BaseURL+".mp4")] = v.Preferred
		}
	}
	for _, p := range photos {
		m[CanonicalURL(p.URL)] = p.Path
	}
	return m
}

// stripRangeParams removes the bytestart/byteend query parameters, leaving
// the rest of the URL untouched.
func stripRangeParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Del("bytestart")
	q.Del("byteend")
	u.RawQuery = q.Encode()
	return u.String()
}

func queryInt(rawURL, param string) *int64 {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	s := u.Query().Get(param)
	if s == "" {
		return nil
	}
	var n int64
	// negative offsets only occur in mangled captures; treat them as absent
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 {
		return nil
	}
	return &n
}
