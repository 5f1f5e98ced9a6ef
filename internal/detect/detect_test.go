package detect

import (
	"testing"
)

func TestFindMatches(t *testing.T) {
	t.Run("case insensitive exact match", func(t *testing.T) {
		matches := FindMatches("Breaking News tonight", []string{"breaking news"}, 1.0, 5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].Score != 1.0 {
			t.Errorf("got score %.2f, want 1.0", matches[0].Score)
		}
	})

	t.Run("single match despite overlapping windows", func(t *testing.T) {
		matches := FindMatches("this is breaking news today", []string{"breaking news"}, 0.8, 5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want exactly 1", len(matches))
		}
		m := matches[0]
		if m.TokenStart != 2 || m.TokenEnd != 4 {
			t.Errorf("got window [%d,%d), want [2,4)", m.TokenStart, m.TokenEnd)
		}
	})

	t.Run("tolerates transcription errors", func(t *testing.T) {
		matches := FindMatches("we have braking news for you", []string{"breaking news"}, 0.8, 5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].Score >= 1.0 || matches[0].Score < 0.8 {
			t.Errorf("score %.3f outside expected fuzzy range [0.8,1.0)", matches[0].Score)
		}
	})

	t.Run("below threshold no match", func(t *testing.T) {
		matches := FindMatches("totally unrelated words here", []string{"breaking news"}, 0.8, 5)
		if len(matches) != 0 {
			t.Fatalf("got %d matches, want 0", len(matches))
		}
	})

	t.Run("overlapping equal scores keep leftmost", func(t *testing.T) {
		// Windows [0,2) and [1,3) both score 1.0 and overlap.
		matches := FindMatches("red red red", []string{"red red"}, 1.0, 5)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].TokenStart != 0 {
			t.Errorf("got start %d, want leftmost window 0", matches[0].TokenStart)
		}
	})

	t.Run("non overlapping repeats all kept", func(t *testing.T) {
		matches := FindMatches("goal scored and goal again", []string{"goal"}, 1.0, 5)
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].TokenStart >= matches[1].TokenStart {
			t.Errorf("matches not ordered by position: %d then %d",
				matches[0].TokenStart, matches[1].TokenStart)
		}
	})

	t.Run("multiple phrases ordered by position", func(t *testing.T) {
		matches := FindMatches("urgent update then breaking news", []string{"breaking news", "urgent"}, 0.9, 5)
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].Phrase != "urgent" || matches[1].Phrase != "breaking news" {
			t.Errorf("order wrong: got %q then %q", matches[0].Phrase, matches[1].Phrase)
		}
	})

	t.Run("context window surrounds match", func(t *testing.T) {
		matches := FindMatches("one two three target four five six", []string{"target"}, 1.0, 2)
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		want := "two three target four five"
		if matches[0].Context != want {
			t.Errorf("got context %q, want %q", matches[0].Context, want)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if m := FindMatches("", []string{"x"}, 0.8, 5); m != nil {
			t.Errorf("empty transcript: got %v, want nil", m)
		}
		if m := FindMatches("some text", nil, 0.8, 5); m != nil {
			t.Errorf("no phrases: got %v, want nil", m)
		}
	})

	t.Run("phrase longer than transcript", func(t *testing.T) {
		if m := FindMatches("short", []string{"a much longer phrase"}, 0.1, 5); m != nil {
			t.Errorf("got %v, want nil", m)
		}
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "breaking news", "breaking news", 1},
		{"both empty", "", "", 1},
		{"disjoint short", "ab", "cd", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q,%q) = %.3f, want %.3f", tt.a, tt.b, got, tt.want)
			}
		})
	}

	t.Run("single edit", func(t *testing.T) {
		got := Similarity("news", "niws")
		if got != 0.75 {
			t.Errorf("got %.3f, want 0.75", got)
		}
	})
}
