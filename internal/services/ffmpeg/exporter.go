package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"mixsplit/internal/media/pcm"
	"mixsplit/internal/services"
)

// Exporter encodes PCM views and transcodes intermediates with ffmpeg.
type Exporter struct {
	FFmpeg     string
	MP3Bitrate string
}

// NewExporter constructs an exporter.
func NewExporter(ffmpegBinary, mp3Bitrate string) *Exporter {
	return &Exporter{FFmpeg: ffmpegBinary, MP3Bitrate: mp3Bitrate}
}

// ExportFLAC writes buf to dest as FLAC by piping raw samples into ffmpeg.
// A partial file is removed on failure.
func (e *Exporter) ExportFLAC(ctx context.Context, buf *pcm.Buffer, dest string) error {
	if buf == nil || buf.Frames() == 0 {
		return services.Wrap(services.ErrDecodeFailure, "export", "flac", dest+": empty segment", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "mkdir", filepath.Dir(dest), err)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(buf.SampleRate),
		"-ac", strconv.Itoa(buf.Channels),
		"-i", "pipe:0",
		"-c:a", "flac",
		dest,
	}
	cmd := exec.CommandContext(ctx, e.binary(), args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "flac", "stdin pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "flac", "start ffmpeg", err)
	}
	writeErr := pcm.WriteRaw(stdin, buf)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()
	if err := firstErr(waitErr, writeErr, closeErr); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "export", "flac", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// Transcode converts src into dest, choosing the codec from dest's extension.
// A FLAC destination from a FLAC source is a plain stream copy.
func (e *Exporter) Transcode(ctx context.Context, src, dest string) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(dest), "."))
	codec, err := e.codecArgs(ext, strings.EqualFold(filepath.Ext(src), ".flac"))
	if err != nil {
		return err
	}
	args := append([]string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", src,
		"-vn",
	}, codec...)
	args = append(args, dest)
	cmd := exec.CommandContext(ctx, e.binary(), args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "encode", ext, strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (e *Exporter) codecArgs(ext string, flacSource bool) ([]string, error) {
	switch ext {
	case "flac":
		if flacSource {
			return []string{"-c:a", "copy"}, nil
		}
		return []string{"-c:a", "flac"}, nil
	case "mp3":
		bitrate := strings.TrimSpace(e.MP3Bitrate)
		if bitrate == "" {
			bitrate = "320k"
		}
		return []string{"-c:a", "libmp3lame", "-b:a", bitrate, "-id3v2_version", "3"}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "encode", "codec", fmt.Sprintf("unsupported output format %q", ext), nil)
	}
}

func (e *Exporter) binary() string {
	if strings.TrimSpace(e.FFmpeg) == "" {
		return "ffmpeg"
	}
	return e.FFmpeg
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
