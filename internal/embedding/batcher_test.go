package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeEmbedder struct {
	mu       sync.Mutex
	inFlight int32
	peak     int32
	fail     map[string]error
	dims     map[string]int
	calls    []string
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)

	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	// Finish later chunks first so ordering cannot come from completion order.
	time.Sleep(time.Duration(10-len(text)%10) * time.Millisecond)

	if err, ok := f.fail[text]; ok {
		return nil, err
	}
	dim := 3
	if d, ok := f.dims[text]; ok {
		dim = d
	}
	vec := make([]float32, dim)
	vec[0] = float32(len(text))
	return vec, ctx.Err()
}

func makeChunks(n int) []string {
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk number %d%s", i, strings.Repeat("x", i))
	}
	return chunks
}

func TestEmbedAll_OrderIDsAndMetadata(t *testing.T) {
	chunks := makeChunks(23)
	b := NewBatcher(&fakeEmbedder{}, 10, 1000)

	records, err := b.EmbedAll(context.Background(), chunks, "doc1", "report.pdf")
	require.NoError(t, err)
	require.Len(t, records, len(chunks))

	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("doc1_chunk_%d", i), r.ID)
		assert.Equal(t, float32(len(chunks[i])), r.Values[0], "record %d must belong to chunk %d", i, i)
		assert.Equal(t, "doc1", r.Metadata.DocumentID)
		assert.Equal(t, i, r.Metadata.ChunkIndex)
		assert.Equal(t, chunks[i], r.Metadata.Text)
		assert.Equal(t, 23, r.Metadata.ChunkCount)
		assert.Equal(t, "report.pdf", r.Metadata.FileName)
	}
}

func TestEmbedAll_ConcurrencyBoundedByBatchSize(t *testing.T) {
	defer goleak.VerifyNone(t)
	e := &fakeEmbedder{}
	b := NewBatcher(e, 4, 1000)

	_, err := b.EmbedAll(context.Background(), makeChunks(17), "doc", "f.txt")
	require.NoError(t, err)
	assert.LessOrEqual(t, e.peak, int32(4))
	assert.Len(t, e.calls, 17)
}

func TestEmbedAll_TruncatesMetadataText(t *testing.T) {
	long := strings.Repeat("é", 30)
	b := NewBatcher(&fakeEmbedder{}, 10, 12)

	records, err := b.EmbedAll(context.Background(), []string{long}, "doc", "f.txt")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 12), records[0].Metadata.Text)
}

func TestEmbedAll_FailureFailsEverything(t *testing.T) {
	chunks := makeChunks(15)
	cause := errors.New("quota exceeded")
	b := NewBatcher(&fakeEmbedder{fail: map[string]error{chunks[12]: cause}}, 10, 1000)

	records, err := b.EmbedAll(context.Background(), chunks, "doc", "f.txt")
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.ErrorIs(t, err, cause)

	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, 1, be.Batch)
	assert.Equal(t, 12, be.ChunkIndex)
}

func TestEmbedAll_FailureStopsLaterBatches(t *testing.T) {
	defer goleak.VerifyNone(t)
	chunks := makeChunks(30)
	e := &fakeEmbedder{fail: map[string]error{chunks[0]: errors.New("boom")}}
	b := NewBatcher(e, 10, 1000)

	_, err := b.EmbedAll(context.Background(), chunks, "doc", "f.txt")
	require.Error(t, err)
	assert.LessOrEqual(t, len(e.calls), 10)
}

func TestEmbedAll_DimensionMismatch(t *testing.T) {
	chunks := makeChunks(3)
	b := NewBatcher(&fakeEmbedder{dims: map[string]int{chunks[2]: 5}}, 10, 1000)

	_, err := b.EmbedAll(context.Background(), chunks, "doc", "f.txt")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestEmbedAll_Empty(t *testing.T) {
	records, err := NewBatcher(&fakeEmbedder{}, 10, 1000).EmbedAll(context.Background(), nil, "doc", "f.txt")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "", truncate("abc", 0))
	assert.Equal(t, "日本", truncate("日本語", 2))
}
