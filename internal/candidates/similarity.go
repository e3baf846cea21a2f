// Package candidates ranks likely Kalshi tickers for Polymarket questions.
// The score is deliberately simple and explainable: a character-level
// sequence ratio blended with token Jaccard overlap. The ranker proposes,
// a human curates; nothing here writes mappings automatically.
package candidates

import (
	"regexp"
	"strings"
)

// Blend weights for the combined score.
const (
	seqWeight     = 0.65
	jaccardWeight = 0.35
)

//nolint:gochecknoglobals // compiled once
var (
	rePunct = regexp.MustCompile(`[^a-z0-9\s]+`)

	stopwords = map[string]struct{}{
		"will": {}, "the": {}, "a": {}, "an": {}, "to": {}, "of": {},
		"in": {}, "on": {}, "for": {}, "by": {}, "and": {}, "or": {},
		"be": {}, "is": {}, "are": {}, "was": {}, "were": {}, "at": {},
		"before": {}, "after": {}, "this": {}, "that": {}, "it": {}, "as": {},
	}
)

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = rePunct.ReplaceAllString(t, " ")
	return strings.Join(strings.Fields(t), " ")
}

// Tokens splits normalized text into significant tokens: stopwords and
// anything shorter than three characters are dropped.
func Tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Split(Normalize(text), " ") {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// Jaccard is intersection-over-union on token sets. Empty sets score zero.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}

	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// SequenceRatio is the classic matching-blocks similarity: twice the total
// length of the common blocks over the combined length. 1.0 means identical,
// 0.0 means nothing in common.
func SequenceRatio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return 2 * float64(matchingTotal(a, b)) / float64(len(a)+len(b))
}

// Score blends the character-level ratio with token overlap. Inputs are
// normalized internally so callers pass raw question text.
func Score(polyQuestion, kalshiText string) float64 {
	a := Normalize(polyQuestion)
	b := Normalize(kalshiText)
	if a == "" || b == "" {
		return 0
	}

	seq := SequenceRatio(a, b)
	jac := Jaccard(Tokens(a), Tokens(b))
	return seqWeight*seq + jaccardWeight*jac
}

// matchingTotal sums the lengths of the matching blocks: find the longest
// common substring, then recurse on the pieces to its left and right.
func matchingTotal(a, b string) int {
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingTotal(a[:i], b[:j]) + matchingTotal(a[i+size:], b[j+size:])
}

// longestMatch finds the longest common substring of a and b, preferring the
// earliest occurrence. Normalized text is plain ASCII so bytes suffice.
func longestMatch(a, b string) (bestI, bestJ, bestSize int) {
	b2j := make(map[byte][]int, len(b))
	for j := 0; j < len(b); j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	j2len := make(map[int]int)
	for i := 0; i < len(a); i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}

	return bestI, bestJ, bestSize
}
