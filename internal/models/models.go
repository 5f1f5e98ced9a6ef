package models

import "time"

// Session holds the state for one processing run of a single video or
// live stream. Created at startup; owns every chunk record produced
// until the process is interrupted.
type Session struct {
	URL           string    `json:"url"`
	TargetPhrases []string  `json:"target_phrases"`
	OutputDir     string    `json:"output_dir"`
	StartedAt     time.Time `json:"started_at"`
}

// Chunk is one fixed-duration audio segment pulled from the stream.
// Sequence numbers are gapless and start at 1; a chunk that failed
// extraction or transcription still consumes its number and is recorded
// with Failed set.
type Chunk struct {
	Seq        int           `json:"seq"`
	Offset     time.Duration `json:"offset"`
	Duration   time.Duration `json:"duration"`
	AudioPath  string        `json:"audio_path,omitempty"`
	Transcript string        `json:"transcript"`
	Confidence float64       `json:"confidence"`
	Failed     bool          `json:"failed,omitempty"`
	FailReason string        `json:"fail_reason,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// PhraseMatch records one fuzzy hit of a target phrase inside a chunk's
// transcript. Never mutated after creation.
type PhraseMatch struct {
	Phrase   string  `json:"phrase"`
	ChunkSeq int     `json:"chunk_seq"`
	Score    float64 `json:"score"`
	// TokenStart/TokenEnd delimit the matched window in the transcript's
	// token stream; Context is the surrounding text.
	TokenStart int    `json:"token_start"`
	TokenEnd   int    `json:"token_end"`
	Context    string `json:"context"`
}

// AnalysisRecord is one entry of analysis_history.json. Appended per
// vision analysis, never mutated or deleted. A failed analysis keeps its
// record with an empty Analysis and Failed set.
type AnalysisRecord struct {
	Screenshot string      `json:"screenshot,omitempty"`
	Match      PhraseMatch `json:"match"`
	Analysis   string      `json:"analysis"`
	Backend    string      `json:"backend,omitempty"`
	Failed     bool        `json:"failed,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
