package assets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	got := CanonicalURL("https://instagram.fxyz1-1.fna.fbcdn.net/v/t51.2885-15/img_a.jpg?efg=abc&oh=123")
	assert.Equal(t, "https://scontent.cdninstagram.com/v/img_a.jpg", got)

	// already canonical URLs stay put
	assert.Equal(t, got, CanonicalURL(got))
}

func TestIsImageURL(t *testing.T) {
	assert.True(t, IsImageURL("https://cdn.example/a/img.JPG?x=1"))
	assert.True(t, IsImageURL("https://cdn.example/a/pic.webp"))
	assert.False(t, IsImageURL("https://cdn.example/a/clip.mp4?x=1"))
	assert.False(t, IsImageURL("https://cdn.example/a/page.html"))
}

func TestAssetIDFromEFG(t *testing.T) {
	efg := base64.RawURLEncoding.EncodeToString([]byte(`{"xpv_asset_id": 987654321, "quality": "hd"}`))
	id := AssetID("https://cdn.example/v/clip.mp4?efg=" + efg + "&bytestart=0&byteend=99")
	assert.Equal(t, "987654321", id)
}

func TestAssetIDFallsBackToFilenameHash(t *testing.T) {
	a := AssetID("https://cdn.example/v/clip_a.mp4?bytestart=0")
	b := AssetID("https://other.example/x/clip_a.mp4")
	c := AssetID("https://cdn.example/v/clip_b.mp4")
	assert.Equal(t, a, b, "same stem must map to the same asset")
	assert.NotEqual(t, a, c)
}

func TestAssembleOrdersAndOverwrites(t *testing.T) {
	p := func(n int64) *int64 { return &n }
	got := assemble([]Segment{
		{Start: p(5), End: p(9), Data: []byte("WORLD")},
		{Start: p(0), End: p(4), Data: []byte("HELLO")},
	})
	assert.Equal(t, []byte("HELLOWORLD"), got)

	// later capture of the same range wins
	got = assemble([]Segment{
		{Start: p(0), End: p(4), Data: []byte("AAAAA")},
		{Start: p(0), End: p(4), Data: []byte("BBBBB")},
	})
	assert.Equal(t, []byte("BBBBB"), got)

	// start-less segments are appended
	got = assemble([]Segment{
		{Start: p(0), End: p(2), Data: []byte("abc")},
		{Data: []byte("xyz")},
	})
	assert.Equal(t, []byte("abcxyz"), got)
}

func TestAssembleTreatsNegativeOffsetsAsStartless(t *testing.T) {
	p := func(n int64) *int64 { return &n }
	got := assemble([]Segment{
		{Start: p(0), End: p(2), Data: []byte("abc")},
		{Start: p(-5), End: p(-1), Data: []byte("xyz")},
	})
	assert.Equal(t, []byte("abcxyz"), got)
}

func TestQueryIntRejectsNegativeRanges(t *testing.T) {
	require.Nil(t, queryInt("https://cdn.example/v/clip.mp4?bytestart=-5", "bytestart"))
	require.Nil(t, queryInt("https://cdn.example/v/clip.mp4?bytestart=abc", "bytestart"))
	got := queryInt("https://cdn.example/v/clip.mp4?bytestart=12", "bytestart")
	require.NotNil(t, got)
	assert.Equal(t, int64(12), *got)
}

func TestStripRangeParams(t *testing.T) {
	got := stripRangeParams("https://cdn.example/v/clip.mp4?efg=abc&bytestart=0&byteend=99")
	assert.NotContains(t, got, "bytestart")
	assert.NotContains(t, got, "byteend")
	assert.Contains(t, got, "efg=abc")
}

// fakeTranscoder classifies tracks by filename and counts mux invocations.
type fakeTranscoder struct {
	muxCalls  int
	probeFail map[string]bool
}

func (f *fakeTranscoder) Probe(_ context.Context, path string) error {
	if f.probeFail[filepath.Base(path)] {
		return fmt.Errorf("unreadable: %s", path)
	}
	return nil
}

func (f *fakeTranscoder) HasAudio(_ context.Context, path string) (bool, error) {
	return strings.Contains(filepath.Base(path), "audio"), nil
}

func (f *fakeTranscoder) Mux(_ context.Context, videoPath, audioPath, outPath string) error {
	f.muxCalls++
	v, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audioPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, append(v, a...), 0o644)
}

func (f *fakeTranscoder) Frame(_ context.Context, _, outPath string, _ int) error {
	return os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

func videoHAR(t *testing.T, entries []map[string]any) string {
	t.Helper()
	doc := map[string]any{"log": map[string]any{"entries": entries}}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "archive.har")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func mp4Entry(url string, body []byte) map[string]any {
	return map[string]any{
		"request": map[string]any{"method": "GET", "url": url},
		"response": map[string]any{
			"status": 206,
			"content": map[string]any{
				"mimeType": "video/mp4",
				"text":     base64.StdEncoding.EncodeToString(body),
				"encoding": "base64",
			},
		},
	}
}

func TestExtractMuxesTwoTracks(t *testing.T) {
	efg := base64.RawURLEncoding.EncodeToString([]byte(`{"xpv_asset_id": 42}`))
	videoBody := []byte(strings.Repeat("v", 1500))
	audioBody := []byte(strings.Repeat("a", 1200))

	harPath := videoHAR(t, []map[string]any{
		mp4Entry("https://cdn.example/v/clipvideo.mp4?efg="+efg+"&bytestart=0&byteend=749", videoBody[:750]),
		mp4Entry("https://cdn.example/v/clipvideo.mp4?efg="+efg+"&bytestart=750&byteend=1499", videoBody[750:]),
		mp4Entry("https://cdn.example/v/clipaudio.mp4?efg="+efg+"&bytestart=0&byteend=1199", audioBody),
	})

	tr := &fakeTranscoder{}
	x := NewVideoExtractor(tr, false, zerolog.Nop())
	outDir := filepath.Join(t.TempDir(), "videos")

	videos, err := x.Extract(context.Background(), harPath, outDir)
	require.NoError(t, err)
	require.Len(t, videos, 1)

	v := videos[0]
	assert.Equal(t, "42", v.AssetID)
	assert.Equal(t, 1, tr.muxCalls)
	require.Len(t, v.LocalFiles, 1)
	assert.Equal(t, v.Preferred, v.LocalFiles[0])
	assert.Contains(t, filepath.Base(v.Preferred), "_with_audio")

	muxed, err := os.ReadFile(v.Preferred)
	require.NoError(t, err)
	assert.Equal(t, append(videoBody, audioBody...), muxed)

	// intermediate tracks are cleaned up after a successful mux
	files, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestExtractDiscardsTruncatedTracks(t *testing.T) {
	harPath := videoHAR(t, []map[string]any{
		mp4Entry("https://cdn.example/v/tiny.mp4?bytestart=0&byteend=9", []byte("0123456789")),
	})

	x := NewVideoExtractor(&fakeTranscoder{}, false, zerolog.Nop())
	videos, err := x.Extract(context.Background(), harPath, filepath.Join(t.TempDir(), "videos"))
	require.NoError(t, err)
	assert.Empty(t, videos)
}

func TestExtractDiscardsUnprobeableTracks(t *testing.T) {
	body := []byte(strings.Repeat("x", 2000))
	harPath := videoHAR(t, []map[string]any{
		mp4Entry("https://cdn.example/v/corrupt.mp4?bytestart=0&byteend=1999", body),
	})

	tr := &fakeTranscoder{probeFail: map[string]bool{}}
	for _, origin := range []string{"har_segments", "full_track"} {
		tr.probeFail[fmt.Sprintf("track_%s_corrupt_%s.mp4", AssetID("https://cdn.example/v/corrupt.mp4"), origin)] = true
	}
	x := NewVideoExtractor(tr, false, zerolog.Nop())
	outDir := filepath.Join(t.TempDir(), "videos")
	videos, err := x.Extract(context.Background(), harPath, outDir)
	require.NoError(t, err)
	assert.Empty(t, videos)

	files, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, files, "invalid tracks must be deleted")
}

func TestLocalFileMap(t *testing.T) {
	v := &Video{
		AssetID: "42",
		Tracks: map[string]*Track{
			"clipvideo": {BaseURL: "https://cdn.example/v/clipvideo"},
			"clipaudio": {BaseURL: "https://cdn.example/v/clipaudio"},
		},
		Preferred: "/data/videos/track_42_clipvideo_har_segments_with_audio.mp4",
	}
	p := Photo{URL: "https://cdn.example/p/img_a.jpg?oh=1", Path: "/data/photos/img_a.jpg"}

	m := LocalFileMap([]*Video{v}, []Photo{p})
	assert.Equal(t, v.Preferred, m["https://scontent.cdninstagram.com/v/clipvideo.mp4"])
	assert.Equal(t, v.Preferred, m["https://scontent.cdninstagram.com/v/clipaudio.mp4"])
	assert.Equal(t, p.Path, m["https://scontent.cdninstagram.com/v/img_a.jpg"])
}
