// Package transcribe turns audio chunk files into text through
// pluggable speech-recognition backends.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAllBackendsFailed is returned by a Chain when the primary and the
// fallback both fail; the chunk's transcript is then recorded empty with
// a failure flag.
var ErrAllBackendsFailed = errors.New("all transcription backends failed")

// Result is one backend's answer for one audio chunk.
type Result struct {
	Text       string
	Confidence float64
}

// Backend is a pluggable transcription backend.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// Chain tries the primary backend, then the fallback, one attempt each.
type Chain struct {
	backends []Backend
	logger   *slog.Logger
}

func NewChain(logger *slog.Logger, backends ...Backend) *Chain {
	return &Chain{backends: backends, logger: logger}
}

// Transcribe returns the first backend result, whitespace-normalized and
// case-preserved. Both backends failing yields ErrAllBackendsFailed.
func (c *Chain) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	var errs []string
	for _, b := range c.backends {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		res, err := b.Transcribe(ctx, audioPath)
		if err != nil {
			c.logger.Warn("transcription backend failed",
				slog.String("backend", b.Name()),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", b.Name(), err))
			continue
		}
		res.Text = NormalizeWhitespace(res.Text)
		return res, nil
	}
	return Result{}, fmt.Errorf("%w (%s)", ErrAllBackendsFailed, strings.Join(errs, "; "))
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
// and trims the ends. Case is preserved.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
