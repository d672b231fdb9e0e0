package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are derived from content so re-ingesting the same source is idempotent.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a plain-text member of the corpus, typically the extracted
// full text of a source paper. It may be enriched with an embedding vector
// during ingestion.
type Document struct {
	Id         ID
	Path       string // source path or external identifier; also the basis for Id
	Contents   string
	Vector     []float32 // unit-length embedding for semantic search (populated by the ingestion pipeline)
	InsertedAt time.Time
	UpdatedAt  time.Time
	Metadata   map[string]string // optional metadata (e.g. "title", "collection")
}

// Lines returns the document contents split on newlines.
// Line numbers used elsewhere in this module are 1-based indices into this slice.
func (d *Document) Lines() []string {
	return strings.Split(d.Contents, "\n")
}

// Method identifies how a search result was found.
type Method int

const (
	// MethodExact is an exact substring hit in normalized text.
	MethodExact Method = iota + 1
	// MethodFuzzy is a sliding-window fuzzy match over a whole document.
	MethodFuzzy
	// MethodTrigram is a fuzzy match guided by the rare-n-gram index.
	MethodTrigram
	// MethodEmbedding is a semantic-only match via vector similarity.
	MethodEmbedding
)

// String returns the name form of the method.
func (m Method) String() string {
	switch m {
	case MethodExact:
		return "exact"
	case MethodFuzzy:
		return "fuzzy"
	case MethodTrigram:
		return "trigram"
	case MethodEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

// Structural reports whether the method located the quote in the document
// text itself, as opposed to an embedding-only similarity hit.
func (m Method) Structural() bool {
	return m == MethodExact || m == MethodFuzzy || m == MethodTrigram
}

// MatchResult is the outcome of fuzzy-matching a target string against a
// document. When Matched is true, StartOffset and EndOffset are byte
// positions in the original (non-normalized) document text and satisfy
// 0 <= StartOffset < EndOffset <= len(document).
type MatchResult struct {
	Matched     bool
	StartOffset int
	EndOffset   int
	Confidence  float64 // in [0,1]
	MatchedText string  // slice of the original document text, empty when unmatched
}

// CandidateRegion is a contiguous slice of a document surfaced by the
// n-gram index as worth fuzzy-matching. Lines are 1-based and inclusive.
type CandidateRegion struct {
	DocumentId ID
	StartLine  int
	EndLine    int
	Text       string // populated once the document text is loaded
}

// DocumentMatch is a document surfaced by vector similarity search.
type DocumentMatch struct {
	Document *Document
	Score    float32
}

// SearchResult is a single ranked hit returned by the search orchestrator.
// StartLine/EndLine are 1-based when known and 0 when the method carries no
// line information.
type SearchResult struct {
	Similarity  float64
	MatchedText string
	Document    *Document
	StartLine   int
	EndLine     int
	Method      Method
}
