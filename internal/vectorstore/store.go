package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoUser is returned when an operation is attempted without a namespace owner.
var ErrNoUser = errors.New("vector store: user id is required")

// ChunkMetadata is stored next to every vector.
type ChunkMetadata struct {
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
	ChunkCount int    `json:"chunkCount"`
	FileName   string `json:"fileName"`
}

type Record struct {
	ID       string
	Values   []float32
	Metadata ChunkMetadata
}

// Match is a query hit. Score is cosine similarity clamped to [0, 1].
type Match struct {
	ID       string
	Score    float64
	Metadata ChunkMetadata
}

// Gateway is a vector index partitioned into one namespace per user.
type Gateway interface {
	// Upsert inserts or overwrites records by ID.
	Upsert(ctx context.Context, userID string, records []Record) error
	// Query returns up to topK matches whose document id is in documentIDs,
	// ordered by descending score. No matches is not an error.
	Query(ctx context.Context, userID string, vector []float32, topK int, documentIDs []string) ([]Match, error)
	// DeleteMany removes records by ID. Unknown IDs are ignored.
	DeleteMany(ctx context.Context, userID string, ids []string) error
}

// VectorID is the deterministic id of chunk index of documentID.
func VectorID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// VectorIDs returns the ids of chunks [from, to) of documentID in order.
func VectorIDs(documentID string, from, to int) []string {
	if to <= from {
		return nil
	}
	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, VectorID(documentID, i))
	}
	return ids
}

func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}
