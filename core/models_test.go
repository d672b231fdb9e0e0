package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := IDFromContent("papers/smith2021.txt")
		b := IDFromContent("papers/smith2021.txt")
		assert.Equal(t, a, b)
	})

	t.Run("distinct inputs produce distinct ids", func(t *testing.T) {
		a := IDFromContent("papers/smith2021.txt")
		b := IDFromContent("papers/jones2019.txt")
		assert.NotEqual(t, a, b)
	})

	t.Run("empty input", func(t *testing.T) {
		// Still a valid, stable ID.
		assert.Equal(t, IDFromContent(""), IDFromContent(""))
	})
}

func TestDocumentLines(t *testing.T) {
	doc := &Document{Path: "a.txt", Contents: "first line\nsecond line\nthird line"}
	lines := doc.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "second line", lines[1])

	single := &Document{Path: "b.txt", Contents: "no newline here"}
	assert.Len(t, single.Lines(), 1)
}

func TestMethodString(t *testing.T) {
	assert.Equal(t, "exact", MethodExact.String())
	assert.Equal(t, "fuzzy", MethodFuzzy.String())
	assert.Equal(t, "trigram", MethodTrigram.String())
	assert.Equal(t, "embedding", MethodEmbedding.String())
	assert.Equal(t, "unknown", Method(0).String())
}

func TestMethodStructural(t *testing.T) {
	assert.True(t, MethodExact.Structural())
	assert.True(t, MethodFuzzy.Structural())
	assert.True(t, MethodTrigram.Structural())
	assert.False(t, MethodEmbedding.Structural())
}

func TestDocumentMUSRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := Document{
		Id:         IDFromContent("papers/smith2021.txt"),
		Path:       "papers/smith2021.txt",
		Contents:   "The mitochondria is the powerhouse of the cell.\nSecond line.",
		Vector:     []float32{0.1, -0.5, 0.7},
		InsertedAt: now,
		UpdatedAt:  now,
		Metadata:   map[string]string{"collection": "biology", "title": "Smith 2021"},
	}

	bs := make([]byte, DocumentMUS.Size(doc))
	n := DocumentMUS.Marshal(doc, bs)
	require.Equal(t, len(bs), n)

	got, m, err := DocumentMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, n, m)
	assert.Equal(t, doc, got)
}

func TestDocumentMUSRoundTripEmptyOptionalFields(t *testing.T) {
	doc := Document{
		Id:       1,
		Path:     "a.txt",
		Contents: "x",
	}

	bs := make([]byte, DocumentMUS.Size(doc))
	DocumentMUS.Marshal(doc, bs)

	got, _, err := DocumentMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Nil(t, got.Vector)
	assert.Nil(t, got.Metadata)
	assert.Equal(t, doc.Path, got.Path)
}
