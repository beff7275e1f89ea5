// Package similarity provides the text-similarity primitives shared by
// cross-batch dedup, reconciliation, and post-processing.
package similarity

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a normalized similarity in [0,1] based on edit distance.
// Inputs are lowercased and whitespace-trimmed first.
//
// Short-circuit: when the length difference exceeds 30% of the longer string
// the ratio cannot reach 0.7, so the edit distance is skipped entirely.
func Ratio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	longer := la
	if lb > longer {
		longer = lb
	}
	delta := la - lb
	if delta < 0 {
		delta = -delta
	}
	if float64(delta) > float64(longer)*0.3 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}

// stopwords are too generic to identify an issue.
var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "would": true, "should": true, "could": true, "which": true,
	"there": true, "their": true, "when": true, "where": true, "being": true,
	"because": true, "into": true, "than": true, "then": true, "them": true,
	"these": true, "those": true, "about": true, "also": true, "been": true,
	"does": true, "must": true, "were": true, "your": true,
}

// Keywords extracts lowercase alphanumeric tokens longer than three
// characters, minus stopwords, preserving first-seen order without
// duplicates.
func Keywords(text string) []string {
	var words []string
	seen := make(map[string]bool)
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		w := current.String()
		current.Reset()
		if len(w) <= 3 || stopwords[w] || seen[w] {
			return
		}
		seen[w] = true
		words = append(words, w)
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}

// KeywordOverlap returns the Jaccard-style overlap of two keyword sets,
// normalized by the smaller set so a short reason fully contained in a longer
// one still scores high.
func KeywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	common := 0
	for _, w := range dedup(b) {
		if set[w] {
			common++
		}
	}
	smaller := len(set)
	if n := len(dedup(b)); n < smaller {
		smaller = n
	}
	return float64(common) / float64(smaller)
}

func dedup(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}
