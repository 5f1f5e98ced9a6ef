package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bdougie/streamwatch/internal/stream"
)

// minCaptureInterval throttles back-to-back screenshots when several
// matches land in one chunk.
const minCaptureInterval = 2 * time.Second

// Capturer writes single video frames as zero-padded, monotonically
// numbered PNG files under the session's screenshots directory.
type Capturer struct {
	dir     string
	logger  *slog.Logger
	run     runCommand
	next    int
	lastCap time.Time
	now     func() time.Time
}

func NewCapturer(dir string, logger *slog.Logger) (*Capturer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshots directory '%s': %v", dir, err)
	}
	return &Capturer{dir: dir, logger: logger, run: execRun, next: 1, now: time.Now}, nil
}

// CaptureFrame grabs the frame temporally closest to offset within the
// chunk and saves it. Returns the written path, or "" when the capture
// was throttled. Failure here is non-fatal to the caller.
func (c *Capturer) CaptureFrame(ctx context.Context, h *stream.Handle, offset time.Duration) (string, error) {
	if since := c.now().Sub(c.lastCap); since < minCaptureInterval {
		c.logger.Debug("screenshot throttled", slog.Duration("since_last", since))
		return "", nil
	}

	dest := filepath.Join(c.dir, fmt.Sprintf("screenshot_%03d.png", c.next))

	// ffmpeg cannot read a watch page, so page-only handles need a
	// direct video URL first.
	mediaURL, err := resolveMediaURL(ctx, c.run, h, "best")
	if err != nil {
		return "", fmt.Errorf("frame capture: %w", err)
	}
	if _, err := c.run(ctx, "ffmpeg", frameArgs(mediaURL, h.IsLive, offset, dest)...); err != nil {
		return "", fmt.Errorf("frame capture: %w", err)
	}

	c.next++
	c.lastCap = c.now()
	c.logger.Info("screenshot saved", slog.String("path", dest))
	return dest, nil
}

func frameArgs(mediaURL string, live bool, offset time.Duration, dest string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if !live && offset > 0 {
		args = append(args, "-ss", ffmpegDuration(offset))
	}
	args = append(args,
		"-i", mediaURL,
		"-frames:v", "1",
		"-q:v", "2",
		dest,
	)
	return args
}
