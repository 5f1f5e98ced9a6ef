package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdougie/streamwatch/internal/models"
)

func newTestPersister(t *testing.T) (*Persister, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "out")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewPersister(models.Session{
		URL:           "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		TargetPhrases: []string{"breaking news"},
		OutputDir:     dir,
		StartedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, logger)
	if err != nil {
		t.Fatalf("NewPersister: %v", err)
	}
	return p, dir
}

func readHistory(t *testing.T, dir string) []models.AnalysisRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "analysis_history.json"))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	var recs []models.AnalysisRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		t.Fatalf("history is not valid JSON: %v", err)
	}
	return recs
}

func TestNewPersister(t *testing.T) {
	_, dir := newTestPersister(t)

	for _, sub := range []string{"transcripts", "screenshots"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("missing directory %s: %v", sub, err)
		}
	}
	if recs := readHistory(t, dir); len(recs) != 0 {
		t.Errorf("fresh history has %d records, want 0", len(recs))
	}
}

func TestSaveChunk(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)

	t.Run("writes segment file with header", func(t *testing.T) {
		p, dir := newTestPersister(t)
		err := p.SaveChunk(models.Chunk{
			Seq:        1,
			Transcript: "hello from the stream",
			Timestamp:  ts,
		})
		if err != nil {
			t.Fatalf("SaveChunk: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "transcripts", "segment_001.txt"))
		if err != nil {
			t.Fatalf("read segment: %v", err)
		}
		content := string(data)
		for _, want := range []string{
			"Transcript Segment 1",
			"Timestamp: 2025-03-01 12:00:30",
			"Video: https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			"hello from the stream",
		} {
			if !strings.Contains(content, want) {
				t.Errorf("segment missing %q:\n%s", want, content)
			}
		}
	})

	t.Run("failed chunk still gets a numbered file", func(t *testing.T) {
		p, dir := newTestPersister(t)
		err := p.SaveChunk(models.Chunk{
			Seq:        3,
			Failed:     true,
			FailReason: "extraction failed after retries",
			Timestamp:  ts,
		})
		if err != nil {
			t.Fatalf("SaveChunk: %v", err)
		}

		data, err := os.ReadFile(filepath.Join(dir, "transcripts", "segment_003.txt"))
		if err != nil {
			t.Fatalf("read segment: %v", err)
		}
		if !strings.Contains(string(data), "Failed: extraction failed after retries") {
			t.Errorf("segment missing failure line:\n%s", data)
		}
	})

	t.Run("refreshes the running transcript", func(t *testing.T) {
		p, dir := newTestPersister(t)
		p.SaveChunk(models.Chunk{Seq: 1, Transcript: "first part", Timestamp: ts})
		p.SaveChunk(models.Chunk{Seq: 2, Transcript: "second part", Timestamp: ts.Add(30 * time.Second)})

		data, err := os.ReadFile(filepath.Join(dir, "transcripts", "full_transcript.txt"))
		if err != nil {
			t.Fatalf("read full transcript: %v", err)
		}
		content := string(data)
		if !strings.Contains(content, "first part") || !strings.Contains(content, "second part") {
			t.Errorf("full transcript incomplete:\n%s", content)
		}
		if !strings.Contains(content, "Segments processed: 2") {
			t.Errorf("segment count missing:\n%s", content)
		}
	})
}

func TestAppendRecords(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC)
	rec := func(phrase, analysis string) models.AnalysisRecord {
		return models.AnalysisRecord{
			Screenshot: "screenshots/screenshot_001.png",
			Match:      models.PhraseMatch{Phrase: phrase, ChunkSeq: 2, Score: 0.92},
			Analysis:   analysis,
			Backend:    "gemini",
			Timestamp:  ts,
		}
	}

	t.Run("accumulates across calls", func(t *testing.T) {
		p, dir := newTestPersister(t)
		if err := p.AppendRecords([]models.AnalysisRecord{rec("breaking news", "a newsroom")}, 1); err != nil {
			t.Fatalf("AppendRecords: %v", err)
		}
		if err := p.AppendRecords([]models.AnalysisRecord{rec("urgent", "a banner"), rec("goal", "a pitch")}, 2); err != nil {
			t.Fatalf("AppendRecords: %v", err)
		}

		recs := readHistory(t, dir)
		if len(recs) != 3 {
			t.Fatalf("history has %d records, want 3", len(recs))
		}
		if recs[0].Match.Phrase != "breaking news" || recs[2].Match.Phrase != "goal" {
			t.Errorf("records out of order: %v", recs)
		}
	})

	t.Run("empty batch leaves the file valid", func(t *testing.T) {
		p, dir := newTestPersister(t)
		if err := p.AppendRecords(nil, 0); err != nil {
			t.Fatalf("AppendRecords: %v", err)
		}
		if recs := readHistory(t, dir); len(recs) != 0 {
			t.Errorf("history has %d records, want 0", len(recs))
		}
	})
}

func TestFinalize(t *testing.T) {
	p, dir := newTestPersister(t)
	ts := time.Date(2025, 3, 1, 12, 0, 30, 0, time.UTC)

	p.SaveChunk(models.Chunk{Seq: 1, Transcript: "one", Timestamp: ts})
	p.SaveChunk(models.Chunk{Seq: 2, Failed: true, FailReason: "boom", Timestamp: ts})
	p.AppendRecords([]models.AnalysisRecord{{
		Match:     models.PhraseMatch{Phrase: "one", ChunkSeq: 1, Score: 1},
		Analysis:  "a scene",
		Timestamp: ts,
	}}, 1)

	sum, err := p.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sum.Chunks != 2 || sum.FailedChunks != 1 || sum.Matches != 1 || sum.Records != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.OutputDir != dir {
		t.Errorf("OutputDir = %q, want %q", sum.OutputDir, dir)
	}

	data, err := os.ReadFile(filepath.Join(dir, "final_transcript.txt"))
	if err != nil {
		t.Fatalf("read final transcript: %v", err)
	}
	if !strings.Contains(string(data), "Target phrases: breaking news") {
		t.Errorf("final transcript missing phrase list:\n%s", data)
	}

	// Atomic writes must not leave temp files behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*", "*.tmp*"))
	rootMatches, _ := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	if leftovers := append(matches, rootMatches...); len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}
