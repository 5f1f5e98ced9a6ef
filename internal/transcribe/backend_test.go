package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type fakeBackend struct {
	name  string
	text  string
	conf  float64
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	return Result{Text: f.text, Confidence: f.conf}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("primary success skips fallback", func(t *testing.T) {
		primary := &fakeBackend{name: "a", text: "hello world", conf: 0.97}
		fallback := &fakeBackend{name: "b", text: "nope"}
		chain := NewChain(discard(), primary, fallback)

		res, err := chain.Transcribe(ctx, "x.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "hello world" || res.Confidence != 0.97 {
			t.Errorf("got %+v", res)
		}
		if fallback.calls != 0 {
			t.Errorf("fallback called %d times, want 0", fallback.calls)
		}
	})

	t.Run("falls back once on primary failure", func(t *testing.T) {
		primary := &fakeBackend{name: "a", err: fmt.Errorf("quota exceeded")}
		fallback := &fakeBackend{name: "b", text: "from fallback"}
		chain := NewChain(discard(), primary, fallback)

		res, err := chain.Transcribe(ctx, "x.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "from fallback" {
			t.Errorf("got %q, want fallback text", res.Text)
		}
		if primary.calls != 1 || fallback.calls != 1 {
			t.Errorf("calls primary=%d fallback=%d, want 1/1", primary.calls, fallback.calls)
		}
	})

	t.Run("both failing yields ErrAllBackendsFailed", func(t *testing.T) {
		chain := NewChain(discard(),
			&fakeBackend{name: "a", err: fmt.Errorf("timeout")},
			&fakeBackend{name: "b", err: fmt.Errorf("malformed response")},
		)
		_, err := chain.Transcribe(ctx, "x.wav")
		if !errors.Is(err, ErrAllBackendsFailed) {
			t.Fatalf("got %v, want ErrAllBackendsFailed", err)
		}
	})

	t.Run("normalizes whitespace preserves case", func(t *testing.T) {
		chain := NewChain(discard(), &fakeBackend{name: "a", text: "  Hello\t\tBig   World \n"})
		res, err := chain.Transcribe(ctx, "x.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "Hello Big World" {
			t.Errorf("got %q, want %q", res.Text, "Hello Big World")
		}
	})
}

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"one  two", "one two"},
		{"Keep The Case", "Keep The Case"},
	}
	for _, tt := range tests {
		if got := NormalizeWhitespace(tt.in); got != tt.want {
			t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeepgramBackend(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "chunk.wav")
	if err := os.WriteFile(audio, []byte("RIFFfake"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("parses transcript and confidence", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Token key123" {
				t.Errorf("auth header %q", got)
			}
			if got := r.URL.Query().Get("model"); got != "nova-2" {
				t.Errorf("model param %q", got)
			}
			fmt.Fprint(w, `{"results":{"channels":[{"alternatives":[{"transcript":"breaking news today","confidence":0.93}]}]}}`)
		}))
		defer srv.Close()

		b := &deepgramBackend{
			apiKey:  "key123",
			model:   "nova-2",
			baseURL: srv.URL,
			client:  &http.Client{Timeout: 5 * time.Second},
		}
		res, err := b.Transcribe(context.Background(), audio)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Text != "breaking news today" || res.Confidence != 0.93 {
			t.Errorf("got %+v", res)
		}
	})

	t.Run("http error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		b := &deepgramBackend{
			apiKey:  "key123",
			model:   "nova-2",
			baseURL: srv.URL,
			client:  &http.Client{Timeout: 5 * time.Second},
		}
		if _, err := b.Transcribe(context.Background(), audio); err == nil {
			t.Fatal("expected error on 429")
		}
	})

	t.Run("missing key fails fast", func(t *testing.T) {
		b := NewDeepgramBackend("", "nova-2")
		if _, err := b.Transcribe(context.Background(), audio); err == nil {
			t.Fatal("expected error with empty API key")
		}
	})
}
