package assets

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/openvault/archivist/internal/model"
)

// Transcoder abstracts the external media toolchain so reconstruction and
// thumbnailing stay testable without ffmpeg on the host.
type Transcoder interface {
	// Probe returns an error when path is not a readable media file.
	Probe(ctx context.Context, path string) error
	// HasAudio reports whether the file contains an audio stream.
	HasAudio(ctx context.Context, path string) (bool, error)
	// Mux combines a video-only and an audio-only file into out.
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
	// Frame decodes the nth frame of a video into the JPEG file at outPath.
	Frame(ctx context.Context, videoPath, outPath string, frame int) error
}

// FFmpeg shells out to ffmpeg/ffprobe.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg resolves the binaries up front so a missing toolchain fails the
// stage instead of every asset.
func NewFFmpeg(ffmpegBin, ffprobeBin string) (*FFmpeg, error) {
	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrTranscoderUnavailable, ffmpegBin)
	}
	ffprobePath, err := exec.LookPath(ffprobeBin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrTranscoderUnavailable, ffprobeBin)
	}
	return &FFmpeg{ffmpeg: ffmpegPath, ffprobe: ffprobePath}, nil
}

func (f *FFmpeg) Probe(ctx context.Context, path string) error {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration,format_name",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("probe %s: no readable streams", path)
	}
	return nil
}

func (f *FFmpeg) HasAudio(ctx context.Context, path string) (bool, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "audio"), nil
}

func (f *FFmpeg) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	_, err := f.run(ctx, f.ffmpeg,
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-strict", "experimental",
		outPath)
	return err
}

func (f *FFmpeg) Frame(ctx context.Context, videoPath, outPath string, frame int) error {
	_, err := f.run(ctx, f.ffmpeg,
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("select=eq(n\\,%d)", frame),
		"-frames:v", "1",
		outPath)
	return err
}

func (f *FFmpeg) run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
