package fuzzy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/citable/quotefind/core"
	"github.com/citable/quotefind/textnorm"
)

const (
	// DefaultThreshold is the strict verification threshold.
	DefaultThreshold = 0.85

	// LooseThreshold suits exploratory search where recall matters more.
	LooseThreshold = 0.7

	// earlyExitSimilarity stops the window scan once a hit is near-perfect.
	earlyExitSimilarity = 0.99

	// windowSlack sizes the scan window relative to the target length.
	windowSlack = 0.1
)

// Matcher finds the best approximately-matching substring of a document for
// a (possibly noisy) target string. Matching runs over normalized text; the
// reported offsets address the original, un-normalized document. Safe for
// concurrent use.
type Matcher struct {
	normalizer *textnorm.Normalizer
	threshold  float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the minimum similarity for a window to count as a match.
// Default is DefaultThreshold.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithNormalizer sets a custom normalizer. The matcher and whoever prepared
// the document corpus must share normalization rules.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(m *Matcher) {
		if n != nil {
			m.normalizer = n
		}
	}
}

// NewMatcher creates a Matcher with the default normalizer and threshold.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		normalizer: textnorm.New(),
		threshold:  DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Normalizer returns the normalizer the matcher compares text under.
// Callers that pre-screen queries must use the same rules.
func (m *Matcher) Normalizer() *textnorm.Normalizer {
	return m.normalizer
}

// FindMatch locates target within document using the configured threshold.
func (m *Matcher) FindMatch(target, document string) core.MatchResult {
	return m.FindMatchThreshold(target, document, m.threshold)
}

// FindMatchThreshold locates target within document with a per-call
// threshold override. Empty targets and documents never match. When no
// window clears the threshold the result is unmatched and Confidence holds
// the best similarity seen, which callers can surface as "close but not
// verifiable".
func (m *Matcher) FindMatchThreshold(target, document string, threshold float64) core.MatchResult {
	nt := m.normalizer.Normalize(target)
	ndoc, spans := m.normalizer.NormalizeWithOffsets(document)
	if nt == "" || ndoc == "" {
		return core.MatchResult{}
	}

	// Exact-substring fast path.
	if idx := strings.Index(ndoc, nt); idx >= 0 {
		startRune := utf8.RuneCountInString(ndoc[:idx])
		return m.windowResult(document, spans, startRune, utf8.RuneCountInString(nt), 1.0)
	}

	docRunes := []rune(ndoc)
	tgtRunes := []rune(nt)

	minWin := int(math.Round(float64(len(tgtRunes)) * (1 - windowSlack)))
	if minWin < 1 {
		minWin = 1
	}
	maxWin := int(math.Round(float64(len(tgtRunes)) * (1 + windowSlack)))
	if maxWin < minWin {
		maxWin = minWin
	}
	if minWin > len(docRunes) {
		minWin = len(docRunes)
	}

	best := 0.0
	bestStart, bestLen := -1, 0
scan:
	for start := 0; start+minWin <= len(docRunes); start++ {
		for size := minWin; size <= maxWin && start+size <= len(docRunes); size++ {
			sim := similarityRunes(tgtRunes, docRunes[start:start+size])
			if sim > best {
				best, bestStart, bestLen = sim, start, size
				if sim >= earlyExitSimilarity {
					break scan
				}
			}
		}
	}

	if bestStart >= 0 && best >= threshold {
		return m.windowResult(document, spans, bestStart, bestLen, best)
	}
	return core.MatchResult{Confidence: best}
}

// windowResult maps a window of normalized runes back to original byte
// offsets via the normalizer's span table.
func (m *Matcher) windowResult(document string, spans []textnorm.Span, startRune, lenRunes int, confidence float64) core.MatchResult {
	start := spans[startRune].Start
	end := spans[startRune+lenRunes-1].End
	return core.MatchResult{
		Matched:     true,
		StartOffset: start,
		EndOffset:   end,
		Confidence:  confidence,
		MatchedText: document[start:end],
	}
}

// Similarity is the normalized Levenshtein similarity of two raw strings:
// 1 - distance/max(len). It is symmetric, lies in [0,1], and two empty
// strings are identical (similarity 1).
func Similarity(a, b string) float64 {
	return similarityRunes([]rune(a), []rune(b))
}

func similarityRunes(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with unit costs for substitution,
// insertion, and deletion, using the classic two-row formulation.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
