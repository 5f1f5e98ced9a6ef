package transcribe

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI speech-to-text via audio.transcriptions. Serves as the
// fallback when Deepgram is down or unconfigured. The API exposes no
// confidence, so results report 0.
type whisperBackend struct {
	client *openai.Client
}

func NewWhisperBackend(apiKey string) Backend {
	return &whisperBackend{client: openai.NewClient(apiKey)}
}

func (w *whisperBackend) Name() string { return "whisper" }

func (w *whisperBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcription error: %v", err)
	}
	return Result{Text: resp.Text}, nil
}
