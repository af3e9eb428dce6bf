package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(docID string, idx int, values ...float32) Record {
	return Record{
		ID:       VectorID(docID, idx),
		Values:   values,
		Metadata: ChunkMetadata{DocumentID: docID, ChunkIndex: idx, Text: "chunk text", ChunkCount: 3, FileName: docID + ".txt"},
	}
}

func TestVectorIDs(t *testing.T) {
	assert.Equal(t, "doc1_chunk_0", VectorID("doc1", 0))
	assert.Equal(t, []string{"doc1_chunk_0", "doc1_chunk_1", "doc1_chunk_2"}, VectorIDs("doc1", 0, 3))
	assert.Equal(t, []string{"doc1_chunk_3", "doc1_chunk_4"}, VectorIDs("doc1", 3, 5))
	assert.Empty(t, VectorIDs("doc1", 0, 0))
	assert.Empty(t, VectorIDs("doc1", 4, 2))
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "alice", []Record{rec("shared", 0, 1, 0)}))
	require.NoError(t, s.Upsert(ctx, "bob", []Record{rec("shared", 0, 1, 0), rec("shared", 1, 0, 1)}))

	aliceHits, err := s.Query(ctx, "alice", []float32{1, 0}, 10, []string{"shared"})
	require.NoError(t, err)
	require.Len(t, aliceHits, 1)

	require.NoError(t, s.DeleteMany(ctx, "alice", []string{"shared_chunk_0"}))
	assert.Equal(t, 0, s.Count("alice"))
	assert.Equal(t, 2, s.Count("bob"), "deleting in one namespace leaves the other intact")
}

func TestMemoryStore_QueryOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "u", []Record{
		rec("docA", 0, 1, 0),
		rec("docA", 1, 0.8, 0.6),
		rec("docA", 2, 0, 1),
		rec("docB", 0, 1, 0),
	}))

	hits, err := s.Query(ctx, "u", []float32{1, 0}, 5, []string{"docA"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"docA_chunk_0", "docA_chunk_1", "docA_chunk_2"}, []string{hits[0].ID, hits[1].ID, hits[2].ID})
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)
	for _, h := range hits {
		assert.Equal(t, "docA", h.Metadata.DocumentID)
	}

	top, err := s.Query(ctx, "u", []float32{1, 0}, 1, []string{"docA", "docB"})
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestMemoryStore_EmptyResults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "u", []Record{rec("docA", 0, 1, 0)}))

	hits, err := s.Query(ctx, "u", []float32{1, 0}, 5, []string{"missing"})
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	hits, err = s.Query(ctx, "nobody", []float32{1, 0}, 5, []string{"docA"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStore_NegativeScoresAreClamped(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, "u", []Record{rec("docA", 0, -1, 0)}))

	hits, err := s.Query(ctx, "u", []float32{1, 0}, 5, []string{"docA"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestMemoryStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r := rec("docA", 0, 1, 0)
	require.NoError(t, s.Upsert(ctx, "u", []Record{r}))
	r.Metadata.Text = "updated"
	require.NoError(t, s.Upsert(ctx, "u", []Record{r}))

	assert.Equal(t, 1, s.Count("u"))
	hits, err := s.Query(ctx, "u", []float32{1, 0}, 1, []string{"docA"})
	require.NoError(t, err)
	assert.Equal(t, "updated", hits[0].Metadata.Text)
}

func TestMemoryStore_DeleteUnknownIDs(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.DeleteMany(context.Background(), "u", []string{"nope_chunk_0"}))
}

func TestMemoryStore_RequiresUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	assert.ErrorIs(t, s.Upsert(ctx, "", nil), ErrNoUser)
	_, err := s.Query(ctx, "", nil, 1, []string{"a"})
	assert.ErrorIs(t, err, ErrNoUser)
	assert.ErrorIs(t, s.DeleteMany(ctx, "", nil), ErrNoUser)
}
