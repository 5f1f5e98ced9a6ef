// Package stream resolves a YouTube URL into a usable media handle by
// trying a fixed order of acquisition strategies until one succeeds.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// ErrStrategyUnavailable marks a single strategy's failure; the
	// acquirer moves on to the next one.
	ErrStrategyUnavailable = errors.New("acquisition strategy unavailable")

	// ErrStreamUnreachable is fatal: every strategy was tried once and
	// none produced a handle.
	ErrStreamUnreachable = errors.New("stream unreachable: all acquisition strategies failed")
)

// Handle is a resolved media source. MediaURL is a directly playable URL
// when the strategy could produce one; otherwise PageURL is extracted
// through yt-dlp per chunk.
type Handle struct {
	VideoID  string
	PageURL  string
	MediaURL string
	Title    string
	IsLive   bool
	Strategy string
}

// Strategy is one way of turning a video URL into a Handle. Resolve
// returns an error wrapping ErrStrategyUnavailable when the strategy
// cannot serve the URL.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, url string) (*Handle, error)
}

// Acquirer tries its strategies in order, each exactly once.
type Acquirer struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewAcquirer(logger *slog.Logger, strategies ...Strategy) *Acquirer {
	return &Acquirer{strategies: strategies, logger: logger}
}

// Acquire returns the first handle any strategy yields. When all fail
// the returned error wraps ErrStreamUnreachable and lists each
// strategy's failure reason.
func (a *Acquirer) Acquire(ctx context.Context, url string) (*Handle, error) {
	var reasons []string
	for _, s := range a.strategies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Debug("trying acquisition strategy", slog.String("strategy", s.Name()))
		h, err := s.Resolve(ctx, url)
		if err != nil {
			a.logger.Warn("strategy failed",
				slog.String("strategy", s.Name()),
				slog.Any("error", err),
			)
			reasons = append(reasons, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		h.Strategy = s.Name()
		a.logger.Info("stream acquired",
			slog.String("strategy", s.Name()),
			slog.String("title", h.Title),
			slog.Bool("live", h.IsLive),
		)
		return h, nil
	}
	return nil, fmt.Errorf("%w (%s)", ErrStreamUnreachable, strings.Join(reasons, "; "))
}

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|live/|shorts/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// VideoID pulls the 11-char video ID from any YouTube URL format.
// Returns "" when the URL carries none.
func VideoID(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}
