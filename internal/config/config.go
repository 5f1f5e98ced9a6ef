package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config carries everything a session needs. Values come from flags with
// env fallbacks for the API keys; cmd/streamwatch does the merging.
type Config struct {
	URL           string
	TargetPhrases []string
	OutputDir     string

	ChunkInterval  time.Duration
	MatchThreshold float64
	ContextTokens  int

	// Transcription
	DeepgramAPIKey string
	DeepgramModel  string
	OpenAIAPIKey   string

	// Vision
	VisionBackend string // "gemini" or "ollama"
	GeminiAPIKey  string
	GeminiModel   string
	OllamaHost    string
	OllamaPort    int
	OllamaModel   string

	// Stream acquisition
	YouTubeAPIKey string

	Verbose bool
}

// Default returns a config with the documented defaults; API keys are
// picked up from the environment.
func Default() *Config {
	return &Config{
		OutputDir:      "livestream_analysis",
		ChunkInterval:  30 * time.Second,
		MatchThreshold: 0.8,
		ContextTokens:  12,
		DeepgramAPIKey: os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:  "nova-2",
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		VisionBackend:  "gemini",
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    "gemini-1.5-flash",
		OllamaHost:     envOr("OLLAMA_HOST", "http://localhost"),
		OllamaPort:     11434,
		OllamaModel:    "llama3.2-vision:11b",
		YouTubeAPIKey:  os.Getenv("YOUTUBE_API_KEY"),
	}
}

// Validate checks the parts that would otherwise fail deep inside the
// pipeline.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if c.ChunkInterval < time.Second {
		return fmt.Errorf("chunk interval %s is too short", c.ChunkInterval)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match threshold %.2f outside [0,1]", c.MatchThreshold)
	}
	switch c.VisionBackend {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("unknown vision backend %q", c.VisionBackend)
	}
	return nil
}

// ParsePhrases splits a comma-separated phrase list into trimmed,
// non-empty entries.
func ParsePhrases(s string) []string {
	var phrases []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
