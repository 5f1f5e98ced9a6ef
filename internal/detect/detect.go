// Package detect implements fuzzy phrase matching over transcript text.
// It is pure: no I/O, no service dependencies.
package detect

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Match is one surviving fuzzy hit. TokenStart/TokenEnd delimit the
// matched window in the transcript's token stream (end exclusive).
type Match struct {
	Phrase     string
	Score      float64
	TokenStart int
	TokenEnd   int
	Context    string
}

// FindMatches scans the transcript for each phrase using sliding token
// windows sized to the phrase's token count. Comparison is
// case-insensitive; a window with normalized Levenshtein similarity at
// or above threshold is a candidate. Overlapping candidates for the
// same phrase are pruned: highest score wins, leftmost wins on ties.
// Results are ordered by position in the transcript.
func FindMatches(transcript string, phrases []string, threshold float64, contextTokens int) []Match {
	tokens := strings.Fields(transcript)
	if len(tokens) == 0 || len(phrases) == 0 {
		return nil
	}
	lower := make([]string, len(tokens))
	for i, t := range tokens {
		lower[i] = strings.ToLower(t)
	}

	var out []Match
	for _, phrase := range phrases {
		want := strings.ToLower(strings.Join(strings.Fields(phrase), " "))
		n := len(strings.Fields(want))
		if n == 0 || n > len(tokens) {
			continue
		}

		var candidates []Match
		for i := 0; i+n <= len(tokens); i++ {
			window := strings.Join(lower[i:i+n], " ")
			score := Similarity(want, window)
			if score >= threshold {
				candidates = append(candidates, Match{
					Phrase:     phrase,
					Score:      score,
					TokenStart: i,
					TokenEnd:   i + n,
				})
			}
		}
		out = append(out, pruneOverlaps(candidates)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TokenStart < out[j].TokenStart
	})
	for i := range out {
		out[i].Context = contextWindow(tokens, out[i].TokenStart, out[i].TokenEnd, contextTokens)
	}
	return out
}

// pruneOverlaps keeps only the best non-overlapping candidates for one
// phrase: sort by score descending then position ascending, keep each
// candidate that does not overlap an already-kept one.
func pruneOverlaps(candidates []Match) []Match {
	if len(candidates) <= 1 {
		return candidates
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TokenStart < candidates[j].TokenStart
	})
	var kept []Match
	for _, c := range candidates {
		overlaps := false
		for _, k := range kept {
			if c.TokenStart < k.TokenEnd && k.TokenStart < c.TokenEnd {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// Similarity is the normalized Levenshtein similarity of two strings on
// a 0–1 scale: 1 is identical, 0 shares nothing.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func contextWindow(tokens []string, start, end, around int) string {
	lo := start - around
	if lo < 0 {
		lo = 0
	}
	hi := end + around
	if hi > len(tokens) {
		hi = len(tokens)
	}
	return strings.Join(tokens[lo:hi], " ")
}
