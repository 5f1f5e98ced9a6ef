// Package processor runs the per-session pipeline: acquire the stream
// once, then extract → transcribe → detect → screenshot → analyze →
// persist, one chunk at a time, until the context is cancelled.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bdougie/streamwatch/internal/detect"
	"github.com/bdougie/streamwatch/internal/models"
	"github.com/bdougie/streamwatch/internal/session"
	"github.com/bdougie/streamwatch/internal/stream"
	"github.com/bdougie/streamwatch/internal/transcribe"
)

// ChunkExtractor pulls one audio chunk per interval.
type ChunkExtractor interface {
	ExtractChunk(ctx context.Context, h *stream.Handle, seq int, offset, dur time.Duration) (string, error)
	Cleanup(path string)
}

// Transcriber turns a chunk file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (transcribe.Result, error)
}

// FrameCapturer writes the frame nearest a match's offset.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context, h *stream.Handle, offset time.Duration) (string, error)
}

// VisionAnalyzer describes a captured frame with transcript context.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, imagePath, phrase, transcriptCtx string) (string, error)
	BackendName() string
}

// Options are the per-session knobs.
type Options struct {
	URL            string
	TargetPhrases  []string
	ChunkInterval  time.Duration
	MatchThreshold float64
	ContextTokens  int
}

// Processor wires the pipeline stages together. Chunks are processed
// strictly sequentially: chunk N+1 extraction does not begin before
// chunk N finished persisting.
type Processor struct {
	opts       Options
	acquirer   *stream.Acquirer
	extractor  ChunkExtractor
	transcribe Transcriber
	capturer   FrameCapturer
	analyzer   VisionAnalyzer
	persister  *session.Persister
	logger     *slog.Logger
}

func New(opts Options, acquirer *stream.Acquirer, extractor ChunkExtractor,
	tr Transcriber, capturer FrameCapturer, analyzer VisionAnalyzer,
	persister *session.Persister, logger *slog.Logger) *Processor {
	return &Processor{
		opts:       opts,
		acquirer:   acquirer,
		extractor:  extractor,
		transcribe: tr,
		capturer:   capturer,
		analyzer:   analyzer,
		persister:  persister,
		logger:     logger,
	}
}

// Run drives the session until ctx is cancelled or acquisition fails.
// Cancellation stops at the current chunk boundary: the in-flight chunk
// either completes its pipeline or is discarded without touching disk.
// The returned summary reflects everything persisted before the stop.
func (p *Processor) Run(ctx context.Context) (session.Summary, error) {
	p.logger.Info("acquiring stream", slog.String("url", p.opts.URL))
	handle, err := p.acquirer.Acquire(ctx, p.opts.URL)
	if err != nil {
		sum, _ := p.persister.Finalize()
		return sum, err
	}

	p.logger.Info("session running",
		slog.String("title", handle.Title),
		slog.Duration("interval", p.opts.ChunkInterval),
	)

	seq := 0
	offset := time.Duration(0)
	for {
		if ctx.Err() != nil {
			break
		}
		seq++
		if err := p.processChunk(ctx, handle, seq, offset); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// In-flight chunk discarded; nothing partial was persisted.
				break
			}
			sum, _ := p.persister.Finalize()
			return sum, err
		}
		offset += p.opts.ChunkInterval

		select {
		case <-ctx.Done():
		case <-time.After(p.opts.ChunkInterval):
		}
	}

	sum, err := p.persister.Finalize()
	p.logger.Info("session stopped", slog.Int("chunks", sum.Chunks))
	return sum, err
}

// processChunk runs the full per-chunk pipeline. Recoverable stage
// failures degrade into flags on the persisted records; only context
// cancellation and persistence errors propagate.
func (p *Processor) processChunk(ctx context.Context, handle *stream.Handle, seq int, offset time.Duration) error {
	chunk := models.Chunk{
		Seq:       seq,
		Offset:    offset,
		Duration:  p.opts.ChunkInterval,
		Timestamp: time.Now(),
	}

	audioPath, err := p.extractor.ExtractChunk(ctx, handle, seq, offset, p.opts.ChunkInterval)
	if err != nil {
		if ctxErr(err) {
			return err
		}
		p.logger.Error("chunk extraction failed, skipping",
			slog.Int("seq", seq),
			slog.Any("error", err),
		)
		chunk.Failed = true
		chunk.FailReason = "extraction: " + err.Error()
		return p.persist(chunk, nil, 0)
	}
	chunk.AudioPath = audioPath
	defer p.extractor.Cleanup(audioPath)

	// Backend calls run in a goroutine raced against ctx so an
	// interrupt never waits out a slow network exchange.
	res, err := await(ctx, func() (transcribe.Result, error) {
		return p.transcribe.Transcribe(ctx, audioPath)
	})
	if err != nil {
		if ctxErr(err) {
			return err
		}
		p.logger.Error("transcription failed, recording empty transcript",
			slog.Int("seq", seq),
			slog.Any("error", err),
		)
		chunk.Failed = true
		chunk.FailReason = "transcription: " + err.Error()
		return p.persist(chunk, nil, 0)
	}
	chunk.Transcript = res.Text
	chunk.Confidence = res.Confidence

	matches := detect.FindMatches(chunk.Transcript, p.opts.TargetPhrases,
		p.opts.MatchThreshold, p.opts.ContextTokens)

	var records []models.AnalysisRecord
	for _, m := range matches {
		p.logger.Info("phrase detected",
			slog.String("phrase", m.Phrase),
			slog.Int("seq", seq),
			slog.Float64("score", m.Score),
		)
		rec, err := p.handleMatch(ctx, handle, chunk, m)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	return p.persist(chunk, records, len(matches))
}

// handleMatch captures and analyzes one match. Every match yields
// exactly one history record; screenshot or analysis failure leaves the
// record in place with a failure flag and empty fields.
func (p *Processor) handleMatch(ctx context.Context, handle *stream.Handle, chunk models.Chunk, m detect.Match) (models.AnalysisRecord, error) {
	rec := models.AnalysisRecord{
		Match: models.PhraseMatch{
			Phrase:     m.Phrase,
			ChunkSeq:   chunk.Seq,
			Score:      m.Score,
			TokenStart: m.TokenStart,
			TokenEnd:   m.TokenEnd,
			Context:    m.Context,
		},
		Backend:   p.analyzer.BackendName(),
		Timestamp: time.Now(),
	}

	// Frame nearest the match: chunk offset plus the window's relative
	// position inside the chunk.
	frameOffset := chunk.Offset + matchOffset(chunk, m)
	shot, err := p.capturer.CaptureFrame(ctx, handle, frameOffset)
	if err != nil {
		if ctxErr(err) {
			return rec, err
		}
		p.logger.Warn("screenshot failed, skipping vision analysis",
			slog.Int("seq", chunk.Seq),
			slog.String("phrase", m.Phrase),
			slog.Any("error", err),
		)
		rec.Failed = true
		return rec, nil
	}
	if shot == "" {
		// Throttled; keep the match without an image.
		return rec, nil
	}
	rec.Screenshot = shot

	analysis, err := await(ctx, func() (string, error) {
		return p.analyzer.Analyze(ctx, shot, m.Phrase, m.Context)
	})
	if err != nil {
		if ctxErr(err) {
			return rec, err
		}
		p.logger.Error("vision analysis failed",
			slog.Int("seq", chunk.Seq),
			slog.String("phrase", m.Phrase),
			slog.String("backend", p.analyzer.BackendName()),
			slog.Any("error", err),
		)
		rec.Failed = true
		return rec, nil
	}
	rec.Analysis = analysis
	return rec, nil
}

func (p *Processor) persist(chunk models.Chunk, records []models.AnalysisRecord, matchCount int) error {
	if err := p.persister.SaveChunk(chunk); err != nil {
		return err
	}
	return p.persister.AppendRecords(records, matchCount)
}

// matchOffset places the match inside the chunk proportionally to its
// token position in the transcript.
func matchOffset(chunk models.Chunk, m detect.Match) time.Duration {
	fields := len(strings.Fields(chunk.Transcript))
	if fields == 0 || m.TokenStart >= fields {
		return 0
	}
	frac := float64(m.TokenStart) / float64(fields)
	return time.Duration(frac * float64(chunk.Duration))
}

func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// await races fn against ctx so cancellation is prompt even when fn is
// blocked on the network.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
