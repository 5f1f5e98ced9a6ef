// Package media wraps the ffmpeg and yt-dlp subprocesses that slice
// audio chunks and video frames out of an acquired stream.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdougie/streamwatch/internal/stream"
)

const (
	extractRetries    = 2
	extractRetryDelay = 2 * time.Second
)

// runCommand executes a subprocess and returns combined output on error
// for diagnostics. Swapped out in tests.
type runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s failed: %v\noutput: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Extractor pulls fixed-duration audio chunks from a resolved handle
// into a temp directory as mono 16 kHz WAV files.
type Extractor struct {
	tmpDir string
	logger *slog.Logger
	run    runCommand
	delay  time.Duration
}

func NewExtractor(tmpDir string, logger *slog.Logger) (*Extractor, error) {
	if tmpDir == "" {
		tmpDir = filepath.Join(os.TempDir(), "streamwatch_audio")
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audio temp dir '%s': %v", tmpDir, err)
	}
	return &Extractor{tmpDir: tmpDir, logger: logger, run: execRun, delay: extractRetryDelay}, nil
}

// ExtractChunk captures the next interval of the stream: the live edge
// for live sources, a seek to offset for finite videos. Failed attempts
// are retried a bounded number of times with a fixed delay; the caller
// marks the chunk failed when this returns an error.
func (e *Extractor) ExtractChunk(ctx context.Context, h *stream.Handle, seq int, offset, dur time.Duration) (string, error) {
	dest := filepath.Join(e.tmpDir, fmt.Sprintf("chunk_%03d.wav", seq))

	var lastErr error
	for attempt := 0; attempt <= extractRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt > 0 {
			e.logger.Warn("retrying chunk extraction",
				slog.Int("seq", seq),
				slog.Int("attempt", attempt+1),
				slog.Any("error", lastErr),
			)
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		mediaURL, err := resolveMediaURL(ctx, e.run, h, "bestaudio/best")
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := e.run(ctx, "ffmpeg", audioArgs(mediaURL, h.IsLive, offset, dur, dest)...); err != nil {
			lastErr = err
			continue
		}
		return dest, nil
	}
	return "", fmt.Errorf("chunk %d extraction failed after %d attempts: %w", seq, extractRetries+1, lastErr)
}

// resolveMediaURL returns the handle's direct URL. Page-only handles
// (the data-api strategy yields no MediaURL) are resolved through
// yt-dlp with the given format selector on every call, so live streams
// always read a fresh edge URL.
func resolveMediaURL(ctx context.Context, run runCommand, h *stream.Handle, format string) (string, error) {
	if h.MediaURL != "" {
		return h.MediaURL, nil
	}
	out, err := run(ctx, "yt-dlp", "-g", "--no-warnings", "--no-playlist",
		"-f", format, h.PageURL)
	if err != nil {
		return "", fmt.Errorf("resolve media url: %w", err)
	}
	url := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if url == "" {
		return "", fmt.Errorf("resolve media url: empty yt-dlp output")
	}
	return url, nil
}

func audioArgs(mediaURL string, live bool, offset, dur time.Duration, dest string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if !live && offset > 0 {
		args = append(args, "-ss", ffmpegDuration(offset))
	}
	args = append(args,
		"-i", mediaURL,
		"-t", ffmpegDuration(dur),
		"-vn", "-ac", "1", "-ar", "16000",
		"-f", "wav",
		dest,
	)
	return args
}

func ffmpegDuration(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// Cleanup removes a consumed chunk file. Missing files are fine.
func (e *Extractor) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.Debug("could not remove chunk file", slog.String("path", path), slog.Any("error", err))
	}
}
