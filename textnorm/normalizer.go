package textnorm

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultHyphenExceptions lists hyphenated words that keep their hyphen when
// rejoined across a line break. The corpus is extracted paper full-text, so
// the defaults skew academic. This is a maintained exception list, not a
// language feature; override it with WithHyphenExceptions.
var DefaultHyphenExceptions = []string{
	"cross-sectional",
	"double-blind",
	"follow-up",
	"long-term",
	"meta-analysis",
	"non-significant",
	"p-value",
	"peer-reviewed",
	"self-report",
	"self-reported",
	"short-term",
	"t-test",
	"well-being",
}

// Span maps one rune of normalized output back to a half-open byte range
// [Start, End) in the original input text.
type Span struct {
	Start int
	End   int
}

// Normalizer canonicalizes raw text into a comparison form. It is a pure
// transformation: same input, same output, no retained state, safe for
// concurrent use.
type Normalizer struct {
	hyphenExceptions map[string]struct{}
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithHyphenExceptions replaces the hyphenated-word exception list.
// Words must be given in lower case with their hyphen (e.g. "well-being").
func WithHyphenExceptions(words ...string) Option {
	return func(n *Normalizer) {
		n.hyphenExceptions = make(map[string]struct{}, len(words))
		for _, w := range words {
			n.hyphenExceptions[w] = struct{}{}
		}
	}
}

// New creates a Normalizer with the default hyphen exception list.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	WithHyphenExceptions(DefaultHyphenExceptions...)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize canonicalizes text with the default Normalizer.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize returns the canonical comparison form of text: NFC-normalized,
// lower-cased, whitespace collapsed to single spaces, zero-width and
// soft-hyphen characters stripped, hyphen-broken words rejoined, dashes and
// smart quotes folded to their ASCII forms. Empty and all-whitespace input
// normalizes to the empty string.
func (n *Normalizer) Normalize(text string) string {
	out, _ := n.run(text)
	return out
}

// NormalizeWithOffsets is Normalize plus a per-rune offset table: spans[i]
// is the byte range of the original text that produced rune i of the
// normalized output. A collapsed whitespace run maps to its first original
// whitespace character.
func (n *Normalizer) NormalizeWithOffsets(text string) (string, []Span) {
	return n.run(text)
}

// NormalizeForEmbedding is the looser canonical form used as an embedding
// cache key: NFC, lower-cased, whitespace collapsed, zero-width and
// soft-hyphen characters stripped. Punctuation is preserved because it
// carries meaning for the embedding model.
func (n *Normalizer) NormalizeForEmbedding(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	inSpace := false
	for _, r := range norm.NFC.String(text) {
		if isIgnorableRune(r) {
			continue
		}
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			inSpace = false
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// item is one candidate output rune with its provenance in the input.
type item struct {
	r          rune
	start, end int
	ws         bool // collapsed into a single space
	nl         bool // whitespace that is a line break
}

// scan decodes text into candidate output runes. NFC segments are iterated
// with their input byte ranges so every output rune keeps an exact span even
// when composition changes byte counts.
func (n *Normalizer) scan(text string) []item {
	items := make([]item, 0, len(text))
	var it norm.Iter
	it.InitString(norm.NFC, text)
	for !it.Done() {
		start := it.Pos()
		seg := it.Next()
		end := it.Pos()
		for _, r := range string(seg) {
			if isIgnorableRune(r) {
				continue
			}
			if unicode.IsSpace(r) {
				items = append(items, item{r: ' ', start: start, end: end, ws: true, nl: isLineBreak(r)})
				continue
			}
			items = append(items, item{r: unicode.ToLower(foldRune(r)), start: start, end: end})
		}
	}
	return items
}

func (n *Normalizer) run(text string) (string, []Span) {
	items := n.scan(text)
	out := make([]item, 0, len(items))
	i := 0
	for i < len(items) {
		cur := items[i]
		if cur.ws {
			j := i
			for j < len(items) && items[j].ws {
				j++
			}
			// leading and trailing runs vanish, interior runs become one space
			if len(out) > 0 && j < len(items) {
				out = append(out, item{r: ' ', start: cur.start, end: cur.end, ws: true})
			}
			i = j
			continue
		}
		if cur.r == '-' && len(out) > 0 && isWordRune(out[len(out)-1].r) {
			// hyphen at a line break: "word-\nbreak" rejoins to "wordbreak"
			// unless the hyphenated form is a known exception
			j := i + 1
			sawBreak := false
			for j < len(items) && items[j].ws {
				if items[j].nl {
					sawBreak = true
				}
				j++
			}
			if sawBreak && j < len(items) && isWordRune(items[j].r) {
				if n.keepsHyphen(out, items, j) {
					out = append(out, item{r: '-', start: cur.start, end: cur.end})
				}
				i = j
				continue
			}
		}
		out = append(out, cur)
		i++
	}

	var sb strings.Builder
	sb.Grow(len(out))
	spans := make([]Span, len(out))
	for k, itm := range out {
		sb.WriteRune(itm.r)
		spans[k] = Span{Start: itm.start, End: itm.end}
	}
	return sb.String(), spans
}

// keepsHyphen reconstructs the word split by the line break and checks it
// against the exception list. out holds everything emitted so far; items[j]
// is the first rune after the break.
func (n *Normalizer) keepsHyphen(out, items []item, j int) bool {
	if len(n.hyphenExceptions) == 0 {
		return false
	}
	var head []rune
	for k := len(out) - 1; k >= 0 && isWordRune(out[k].r); k-- {
		head = append(head, out[k].r)
	}
	slices.Reverse(head)
	var tail []rune
	for k := j; k < len(items) && isWordRune(items[k].r); k++ {
		tail = append(tail, items[k].r)
	}
	word := string(head) + "-" + string(tail)
	_, ok := n.hyphenExceptions[word]
	return ok
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f',
		'\u0085', // next line
		'\u2028', // line separator
		'\u2029': // paragraph separator
		return true
	}
	return false
}

// isIgnorableRune reports characters removed outright: the soft hyphen and
// zero-width/formatting characters that OCR output is littered with.
func isIgnorableRune(r rune) bool {
	switch r {
	case '\u00AD', // soft hyphen
		'\u200B', // zero width space
		'\u200C', // zero width non-joiner
		'\u200D', // zero width joiner
		'\u2060', // word joiner
		'\uFEFF': // zero width no-break space / stray BOM
		return true
	}
	return false
}

// foldRune maps typographic variants to their ASCII equivalents.
func foldRune(r rune) rune {
	switch r {
	case '‐', '‑', '‒', '–', '—', '―', '−':
		return '-' // hyphens, dashes, unicode minus
	case '‘', '’', '‚', '‛':
		return '\''
	case '“', '”', '„', '‟':
		return '"'
	}
	return r
}
