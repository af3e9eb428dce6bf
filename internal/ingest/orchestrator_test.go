package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
)

type stubEmbedder struct {
	err error
}

func (s stubEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, float32(len(text))}, nil
}

type harness struct {
	docs    *document.MemoryStore
	blobs   *storage.MemoryStorage
	vectors *vectorstore.MemoryStore
	orch    *Orchestrator
}

func newHarness(t *testing.T, embedErr error, opts Options) *harness {
	t.Helper()
	h := &harness{
		docs:    document.NewMemoryStore(),
		blobs:   storage.NewMemoryStorage(),
		vectors: vectorstore.NewMemoryStore(),
	}
	h.orch = NewOrchestrator(h.docs, h.blobs, embedding.NewBatcher(stubEmbedder{err: embedErr}, 10, 1000), h.vectors, nil, opts)
	return h
}

func (h *harness) upload(t *testing.T, id, owner, name, body string) Request {
	t.Helper()
	path := "users/" + owner + "/" + name
	h.blobs.Put(path, []byte(body))
	require.NoError(t, h.docs.Create(context.Background(), &models.Document{
		ID: id, UserID: owner, Name: name, FilePath: path, Status: models.DocStatusUploading, UploadedAt: time.Now(),
	}))
	return Request{DocumentID: id, FilePath: path, FileName: name}
}

func (h *harness) doc(t *testing.T, id string) *models.Document {
	t.Helper()
	d, err := h.docs.Get(context.Background(), id)
	require.NoError(t, err)
	return d
}

func TestProcess_SmallDocumentIsOneChunk(t *testing.T) {
	h := newHarness(t, nil, Options{})
	req := h.upload(t, "doc1", "u1", "notes.txt", "The sky is blue. Grass is green. Is it late?")

	res, err := h.orch.Process(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, &Result{Success: true, ChunkCount: 1}, res)

	assert.Equal(t, []string{"doc1_chunk_0"}, h.vectors.IDs("u1"))

	d := h.doc(t, "doc1")
	assert.Equal(t, models.DocStatusReady, d.Status)
	assert.Equal(t, 1, d.ChunkCount)
	assert.Equal(t, len("The sky is blue. Grass is green. Is it late?"), d.TextLength)
	assert.NotNil(t, d.ProcessedAt)
	assert.Nil(t, d.Error)
}

func TestProcess_UnsupportedFileType(t *testing.T) {
	h := newHarness(t, nil, Options{})
	req := h.upload(t, "doc1", "u1", "x.csv", "a,b,c")

	_, err := h.orch.Process(context.Background(), "u1", req)
	assert.Equal(t, callable.Internal, callable.CodeOf(err))

	d := h.doc(t, "doc1")
	assert.Equal(t, models.DocStatusError, d.Status)
	require.NotNil(t, d.Error)
	assert.Contains(t, *d.Error, "csv")
	assert.Zero(t, h.vectors.Count("u1"))
}

func TestProcess_NoTextContent(t *testing.T) {
	h := newHarness(t, nil, Options{})
	req := h.upload(t, "doc1", "u1", "blank.txt", " \n\n\n\t ")

	_, err := h.orch.Process(context.Background(), "u1", req)
	var ce *callable.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, callable.InvalidArgument, ce.Code)
	assert.Equal(t, "No text content found in document", ce.Message)

	d := h.doc(t, "doc1")
	assert.Equal(t, models.DocStatusError, d.Status)
	assert.Equal(t, "No text content found in document", *d.Error)
}

func TestProcess_EmbeddingFailureIndexesNothing(t *testing.T) {
	h := newHarness(t, errors.New("quota exceeded"), Options{})
	req := h.upload(t, "doc1", "u1", "a.txt", "One. Two. Three.")

	_, err := h.orch.Process(context.Background(), "u1", req)
	var ce *callable.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, callable.Internal, ce.Code)
	assert.NotContains(t, ce.Message, "quota", "provider text is not surfaced")

	d := h.doc(t, "doc1")
	assert.Equal(t, models.DocStatusError, d.Status)
	assert.Equal(t, "Failed to generate embeddings", *d.Error)
	assert.Zero(t, h.vectors.Count("u1"))
}

func TestProcess_MissingBlob(t *testing.T) {
	h := newHarness(t, nil, Options{})
	req := h.upload(t, "doc1", "u1", "a.txt", "text.")
	require.NoError(t, h.blobs.Delete(context.Background(), req.FilePath))

	_, err := h.orch.Process(context.Background(), "u1", req)
	assert.Equal(t, callable.Internal, callable.CodeOf(err))
	assert.Equal(t, "File not found in storage", *h.doc(t, "doc1").Error)
}

func TestProcess_OwnershipAndState(t *testing.T) {
	h := newHarness(t, nil, Options{Lease: time.Hour})
	req := h.upload(t, "doc1", "owner", "a.txt", "Some text.")

	_, err := h.orch.Process(context.Background(), "intruder", req)
	assert.Equal(t, callable.PermissionDenied, callable.CodeOf(err))
	assert.Equal(t, models.DocStatusUploading, h.doc(t, "doc1").Status)

	_, err = h.orch.Process(context.Background(), "owner", Request{DocumentID: "missing", FilePath: "p"})
	assert.Equal(t, callable.NotFound, callable.CodeOf(err))

	bad := req
	bad.FilePath = "users/other/secret.txt"
	_, err = h.orch.Process(context.Background(), "owner", bad)
	assert.Equal(t, callable.InvalidArgument, callable.CodeOf(err))

	_, err = h.docs.BeginProcessing(context.Background(), "doc1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = h.orch.Process(context.Background(), "owner", req)
	assert.Equal(t, callable.FailedPrecondition, callable.CodeOf(err))
	assert.Equal(t, models.DocStatusProcessing, h.doc(t, "doc1").Status)
}

func TestProcess_ReingestPrunesStaleVectors(t *testing.T) {
	h := newHarness(t, nil, Options{Chunk: chunker.ChunkOptions{ChunkSize: 20, ChunkOverlap: 0}})
	long := strings.Repeat("Sentence here. ", 6)
	req := h.upload(t, "doc1", "u1", "a.txt", long)

	res, err := h.orch.Process(context.Background(), "u1", req)
	require.NoError(t, err)
	require.Greater(t, res.ChunkCount, 2)
	assert.Equal(t, res.ChunkCount, h.vectors.Count("u1"))

	h.blobs.Put(req.FilePath, []byte("Short now."))
	res, err = h.orch.Process(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, []string{"doc1_chunk_0"}, h.vectors.IDs("u1"))
	assert.Equal(t, 1, h.doc(t, "doc1").ChunkCount)
}

type failingReadyStore struct {
	*document.MemoryStore
}

func (failingReadyStore) MarkReady(context.Context, string, int, int) error {
	return errors.New("connection reset")
}

type failingDeleteVectors struct {
	*vectorstore.MemoryStore
	fail bool
}

func (f *failingDeleteVectors) DeleteMany(ctx context.Context, userID string, ids []string) error {
	if f.fail {
		return errors.New("index unavailable")
	}
	return f.MemoryStore.DeleteMany(ctx, userID, ids)
}

func TestProcess_MarkReadyFailureRollsBackVectors(t *testing.T) {
	tests := []struct {
		name       string
		firstBody  string
		secondBody string
		wantIDs    []string
		wantChunks int
	}{
		{"first ingest", "", "One. Two.", nil, 0},
		{"reingest with more chunks", "Short.", strings.Repeat("Sentence here. ", 6), []string{"doc1_chunk_0"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, Options{Chunk: chunker.ChunkOptions{ChunkSize: 20, ChunkOverlap: 0}})
			req := h.upload(t, "doc1", "u1", "a.txt", tt.firstBody)
			if tt.firstBody != "" {
				_, err := h.orch.Process(context.Background(), "u1", req)
				require.NoError(t, err)
			}

			h.blobs.Put(req.FilePath, []byte(tt.secondBody))
			orch := NewOrchestrator(failingReadyStore{h.docs}, h.blobs,
				embedding.NewBatcher(stubEmbedder{}, 10, 1000), h.vectors, nil, h.orch.opts)

			_, err := orch.Process(context.Background(), "u1", req)
			var ce *callable.Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, callable.Internal, ce.Code)
			assert.NotContains(t, ce.Message, "connection reset")

			d := h.doc(t, "doc1")
			assert.Equal(t, models.DocStatusError, d.Status)
			assert.Equal(t, "Failed to update document", *d.Error)
			assert.Equal(t, tt.wantChunks, d.ChunkCount)
			assert.ElementsMatch(t, tt.wantIDs, h.vectors.IDs("u1"))

			svc := document.NewService(h.docs, h.vectors, h.blobs)
			_, err = svc.Delete(context.Background(), "u1", "doc1")
			require.NoError(t, err)
			assert.Zero(t, h.vectors.Count("u1"))
		})
	}
}

func TestProcess_FailedPruneKeepsSurplusReachable(t *testing.T) {
	h := newHarness(t, nil, Options{Chunk: chunker.ChunkOptions{ChunkSize: 20, ChunkOverlap: 0}})
	vectors := &failingDeleteVectors{MemoryStore: h.vectors}
	orch := NewOrchestrator(h.docs, h.blobs, embedding.NewBatcher(stubEmbedder{}, 10, 1000), vectors, nil, h.orch.opts)
	req := h.upload(t, "doc1", "u1", "a.txt", strings.Repeat("Sentence here. ", 6))

	res, err := orch.Process(context.Background(), "u1", req)
	require.NoError(t, err)
	first := res.ChunkCount
	require.Greater(t, first, 2)

	vectors.fail = true
	h.blobs.Put(req.FilePath, []byte("Short now."))
	_, err = orch.Process(context.Background(), "u1", req)
	assert.Equal(t, callable.Internal, callable.CodeOf(err))

	d := h.doc(t, "doc1")
	assert.Equal(t, models.DocStatusError, d.Status)
	assert.Equal(t, first, d.ChunkCount)
	assert.Equal(t, first, h.vectors.Count("u1"))

	vectors.fail = false
	res, err = orch.Process(context.Background(), "u1", req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunkCount)
	assert.Equal(t, []string{"doc1_chunk_0"}, h.vectors.IDs("u1"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		req    Request
		want   callable.Code
	}{
		{"no caller", "", Request{DocumentID: "d", FilePath: "p"}, callable.Unauthenticated},
		{"no document id", "u", Request{FilePath: "p"}, callable.InvalidArgument},
		{"no file path", "u", Request{DocumentID: "d"}, callable.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, callable.CodeOf(Validate(tt.userID, tt.req)))
		})
	}
	assert.NoError(t, Validate("u", Request{DocumentID: "d", FilePath: "p"}))
}
