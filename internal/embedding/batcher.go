package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

// ErrEmbeddingFailed marks any failure of Batcher.EmbedAll.
var ErrEmbeddingFailed = errors.New("embedding failed")

// BatchError identifies the batch and global chunk index whose embedding failed.
type BatchError struct {
	Batch      int
	ChunkIndex int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embed batch %d chunk %d: %v", e.Batch, e.ChunkIndex, e.Err)
}

func (e *BatchError) Unwrap() []error {
	return []error{ErrEmbeddingFailed, e.Err}
}

type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Batcher turns chunks into vector records. Chunks are embedded concurrently
// within a batch; batches run one after another, so at most batchSize
// embedding calls are in flight.
type Batcher struct {
	embedder  Embedder
	batchSize int
	textLimit int
}

func NewBatcher(e Embedder, batchSize, metadataTextLimit int) *Batcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if metadataTextLimit <= 0 {
		metadataTextLimit = 1000
	}
	return &Batcher{embedder: e, batchSize: batchSize, textLimit: metadataTextLimit}
}

// EmbedAll returns one record per chunk, in chunk order. Any single failure
// fails the whole call and no records are returned.
func (b *Batcher) EmbedAll(ctx context.Context, chunks []string, documentID, fileName string) ([]vectorstore.Record, error) {
	records := make([]vectorstore.Record, len(chunks))

	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		batch := start / b.batchSize

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := b.embedder.EmbedSingle(gctx, chunks[i])
				if err == nil && len(vec) == 0 {
					err = errors.New("empty embedding")
				}
				if err != nil {
					return &BatchError{Batch: batch, ChunkIndex: i, Err: err}
				}

				records[i] = vectorstore.Record{
					ID:     vectorstore.VectorID(documentID, i),
					Values: vec,
					Metadata: vectorstore.ChunkMetadata{
						DocumentID: documentID,
						ChunkIndex: i,
						Text:       truncate(chunks[i], b.textLimit),
						ChunkCount: len(chunks),
						FileName:   fileName,
					},
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	if err := b.checkDimensions(records); err != nil {
		return nil, err
	}
	return records, nil
}

func (b *Batcher) checkDimensions(records []vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Values)
	for _, r := range records[1:] {
		if len(r.Values) != dim {
			return &BatchError{
				Batch:      r.Metadata.ChunkIndex / b.batchSize,
				ChunkIndex: r.Metadata.ChunkIndex,
				Err:        fmt.Errorf("dimension %d does not match %d", len(r.Values), dim),
			}
		}
	}
	return nil
}

// truncate cuts s to at most limit characters.
func truncate(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
