package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Deepgram pre-recorded transcription.
// POST https://api.deepgram.com/v1/listen with a Token auth header and
// the raw audio bytes as the body.
type deepgramBackend struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewDeepgramBackend(apiKey, model string) Backend {
	return &deepgramBackend{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.deepgram.com/v1/listen",
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (d *deepgramBackend) Name() string { return "deepgram" }

type dgResp struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *deepgramBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if d.apiKey == "" {
		return Result{}, fmt.Errorf("no API key configured")
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, err
	}

	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("deepgram http %d: %s", resp.StatusCode, string(b))
	}

	var dr dgResp
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return Result{}, err
	}
	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return Result{}, fmt.Errorf("deepgram response carried no alternatives")
	}
	alt := dr.Results.Channels[0].Alternatives[0]
	return Result{Text: alt.Transcript, Confidence: alt.Confidence}, nil
}
