package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citable/quotefind/core"
)

func TestIDSerialization(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		for _, id := range []core.ID{0, 1, 42, 1<<32 - 1, 1<<64 - 1} {
			data := MarshalID(id)
			got, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	})

	t.Run("rejects truncated data", func(t *testing.T) {
		data := MarshalID(core.ID(1 << 62))
		_, err := UnmarshalID(data[:1])
		assert.Error(t, err)
	})
}

func TestDocumentSerialization(t *testing.T) {
	t.Run("round trips a full document", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		doc := &core.Document{
			Id:         core.IDFromContent("papers/smith-2019.txt"),
			Path:       "papers/smith-2019.txt",
			Contents:   "Abstract\n\nWe report a novel finding.\nFigure 1 shows the result.",
			Vector:     []float32{0.1, -0.5, 0.86},
			InsertedAt: now,
			UpdatedAt:  now,
			Metadata:   map[string]string{"collection": "biology", "year": "2019"},
		}

		data := MarshalDocument(doc)
		got, err := UnmarshalDocument(data)
		require.NoError(t, err)
		assert.Equal(t, doc, got)
	})

	t.Run("round trips without vector or metadata", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		doc := &core.Document{
			Id:         42,
			Path:       "notes.txt",
			Contents:   "plain text",
			InsertedAt: now,
			UpdatedAt:  now,
		}

		data := MarshalDocument(doc)
		got, err := UnmarshalDocument(data)
		require.NoError(t, err)
		assert.Equal(t, doc.Path, got.Path)
		assert.Equal(t, doc.Contents, got.Contents)
		assert.Empty(t, got.Vector)
		assert.Empty(t, got.Metadata)
	})

	t.Run("rejects corrupt data", func(t *testing.T) {
		_, err := UnmarshalDocument([]byte{0xff})
		assert.Error(t, err)
	})
}
