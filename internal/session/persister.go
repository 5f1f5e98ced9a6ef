// Package session owns the on-disk output tree of a run: per-chunk
// transcript files, the running and final transcripts, and the
// cumulative analysis_history.json.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdougie/streamwatch/internal/models"
)

// Persister writes session output. It is invoked synchronously at the
// end of each loop iteration; there is never a concurrent writer, so
// the JSON history can be rewritten whole. Every rewrite goes through a
// temp file and an atomic rename so a crash mid-write cannot corrupt
// previously completed files.
type Persister struct {
	outputDir      string
	transcriptsDir string
	screenshotsDir string
	historyPath    string
	logger         *slog.Logger

	session        models.Session
	fullTranscript strings.Builder
	chunks         int
	failedChunks   int
	matches        int
	records        int
}

func NewPersister(sess models.Session, logger *slog.Logger) (*Persister, error) {
	p := &Persister{
		outputDir:      sess.OutputDir,
		transcriptsDir: filepath.Join(sess.OutputDir, "transcripts"),
		screenshotsDir: filepath.Join(sess.OutputDir, "screenshots"),
		historyPath:    filepath.Join(sess.OutputDir, "analysis_history.json"),
		logger:         logger,
		session:        sess,
	}
	for _, dir := range []string{p.outputDir, p.transcriptsDir, p.screenshotsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory '%s': %v", dir, err)
		}
	}
	// A zero-match session must still leave a parseable history file.
	if _, err := os.Stat(p.historyPath); os.IsNotExist(err) {
		if err := writeFileAtomic(p.historyPath, []byte("[]\n")); err != nil {
			return nil, fmt.Errorf("failed to initialize analysis history: %w", err)
		}
	}
	return p, nil
}

// ScreenshotsDir is where the frame capturer writes its images.
func (p *Persister) ScreenshotsDir() string { return p.screenshotsDir }

// SaveChunk writes the chunk's transcript segment file and refreshes
// the running full transcript. Failed chunks are written too, keeping
// the numbering gapless.
func (p *Persister) SaveChunk(chunk models.Chunk) error {
	p.chunks++
	if chunk.Failed {
		p.failedChunks++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Transcript Segment %d\n", chunk.Seq)
	fmt.Fprintf(&sb, "Timestamp: %s\n", chunk.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Video: %s\n", p.session.URL)
	if chunk.Failed {
		fmt.Fprintf(&sb, "Failed: %s\n", chunk.FailReason)
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(chunk.Transcript)
	sb.WriteString("\n")

	segPath := filepath.Join(p.transcriptsDir, fmt.Sprintf("segment_%03d.txt", chunk.Seq))
	if err := writeFileAtomic(segPath, []byte(sb.String())); err != nil {
		return fmt.Errorf("failed to save transcript segment %d: %w", chunk.Seq, err)
	}

	if chunk.Transcript != "" {
		fmt.Fprintf(&p.fullTranscript, "\n[%s] %s", chunk.Timestamp.Format("15:04:05"), chunk.Transcript)
		if err := p.saveFullTranscript(); err != nil {
			return err
		}
	}

	p.logger.Info("transcript segment saved",
		slog.Int("seq", chunk.Seq),
		slog.Int("chars", len(chunk.Transcript)),
		slog.Bool("failed", chunk.Failed),
	)
	return nil
}

func (p *Persister) saveFullTranscript() error {
	var sb strings.Builder
	sb.WriteString("Complete Live Stream Transcript\n")
	fmt.Fprintf(&sb, "Video: %s\n", p.session.URL)
	fmt.Fprintf(&sb, "Started: %s\n", p.session.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Segments processed: %d\n", p.chunks)
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(p.fullTranscript.String())
	sb.WriteString("\n")

	path := filepath.Join(p.transcriptsDir, "full_transcript.txt")
	if err := writeFileAtomic(path, []byte(sb.String())); err != nil {
		return fmt.Errorf("failed to save full transcript: %w", err)
	}
	return nil
}

// AppendRecords folds new analysis entries into analysis_history.json
// with a read-modify-write of the whole document.
func (p *Persister) AppendRecords(recs []models.AnalysisRecord, matchCount int) error {
	p.matches += matchCount
	if len(recs) == 0 {
		return nil
	}

	var history []models.AnalysisRecord
	if data, err := os.ReadFile(p.historyPath); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &history); err != nil {
			return fmt.Errorf("failed to unmarshal existing history: %v", err)
		}
	}
	history = append(history, recs...)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis history: %w", err)
	}
	if err := writeFileAtomic(p.historyPath, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write analysis history: %w", err)
	}

	p.records += len(recs)
	return nil
}

// Summary is printed at shutdown.
type Summary struct {
	Chunks       int
	FailedChunks int
	Matches      int
	Records      int
	OutputDir    string
}

// Finalize writes the end-of-session transcript and returns the run
// summary. Called exactly once, from the shutdown path.
func (p *Persister) Finalize() (Summary, error) {
	s := Summary{
		Chunks:       p.chunks,
		FailedChunks: p.failedChunks,
		Matches:      p.matches,
		Records:      p.records,
		OutputDir:    p.outputDir,
	}
	if p.fullTranscript.Len() == 0 {
		return s, nil
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString("LIVE STREAM ANALYSIS COMPLETE\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&sb, "Video URL: %s\n", p.session.URL)
	fmt.Fprintf(&sb, "Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Total segments: %d\n", p.chunks)
	fmt.Fprintf(&sb, "Target phrases: %s\n", strings.Join(p.session.TargetPhrases, ", "))
	fmt.Fprintf(&sb, "Output directory: %s\n\n", p.outputDir)
	sb.WriteString("COMPLETE TRANSCRIPT:\n")
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	sb.WriteString(p.fullTranscript.String())
	sb.WriteString("\n")

	path := filepath.Join(p.outputDir, "final_transcript.txt")
	if err := writeFileAtomic(path, []byte(sb.String())); err != nil {
		return s, fmt.Errorf("failed to save final transcript: %w", err)
	}
	p.logger.Info("final transcript saved", slog.String("path", path))
	return s, nil
}

// writeFileAtomic writes to a temp file in the target's directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
