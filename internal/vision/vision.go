// Package vision sends captured frames plus transcript context to an
// image-understanding backend and returns a textual insight.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"
)

// ErrAnalysisFailed marks both attempts against the backend failing;
// the caller records the analysis with empty output and a failure flag.
var ErrAnalysisFailed = errors.New("vision analysis failed")

const (
	retryDelay = 2 * time.Second
	// maxContextChars limits how much trailing transcript goes into the
	// prompt.
	maxContextChars = 500
)

// Backend is a pluggable image-understanding backend.
type Backend interface {
	Name() string
	Describe(ctx context.Context, imagePath, prompt string) (string, error)
}

// Analyzer drives one backend with a retry-once policy.
type Analyzer struct {
	backend Backend
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewAnalyzer(backend Backend, logger *slog.Logger) *Analyzer {
	return &Analyzer{backend: backend, logger: logger, sleep: ctxSleep}
}

func (a *Analyzer) BackendName() string { return a.backend.Name() }

// Analyze describes the screenshot in the context of the phrase that
// triggered it. One retry after a fixed delay; the second failure
// returns an error wrapping ErrAnalysisFailed.
func (a *Analyzer) Analyze(ctx context.Context, imagePath, phrase, transcriptCtx string) (string, error) {
	prompt := buildPrompt(phrase, transcriptCtx)

	out, err := a.backend.Describe(ctx, imagePath, prompt)
	if err == nil {
		return out, nil
	}
	a.logger.Warn("vision backend failed, retrying",
		slog.String("backend", a.backend.Name()),
		slog.Any("error", err),
	)
	if serr := a.sleep(ctx, retryDelay); serr != nil {
		return "", serr
	}
	out, err = a.backend.Describe(ctx, imagePath, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAnalysisFailed, a.backend.Name(), err)
	}
	return out, nil
}

func buildPrompt(phrase, transcriptCtx string) string {
	prompt := "Analyze this image from a YouTube video."
	if phrase != "" {
		prompt += fmt.Sprintf(" The phrase %q was just mentioned.", phrase)
	}
	if transcriptCtx != "" {
		if len(transcriptCtx) > maxContextChars {
			cut := len(transcriptCtx) - maxContextChars
			// Keep the cut on a rune boundary.
			for cut < len(transcriptCtx) && !utf8.RuneStart(transcriptCtx[cut]) {
				cut++
			}
			transcriptCtx = transcriptCtx[cut:]
		}
		prompt += fmt.Sprintf(" Recent transcript: %q.", transcriptCtx)
	}
	prompt += " Describe what you see and how it relates to what was being discussed."
	return prompt
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
