// Package ingest turns an uploaded file into indexed chunks for one document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/embedding"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
	"github.com/nikhilbhutani/docchat/pkg/chunker"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

type Request struct {
	DocumentID string `json:"documentId"`
	FilePath   string `json:"filePath"`
	FileName   string `json:"fileName"`
}

type Result struct {
	Success    bool `json:"success"`
	ChunkCount int  `json:"chunkCount"`
}

// RecordEmbedder is satisfied by *embedding.Batcher.
type RecordEmbedder interface {
	EmbedAll(ctx context.Context, chunks []string, documentID, fileName string) ([]vectorstore.Record, error)
}

type Options struct {
	Chunk chunker.ChunkOptions
	// Lease is how long a processing attempt holds the document before
	// another attempt may take over.
	Lease   time.Duration
	Timeout time.Duration
}

type Orchestrator struct {
	docs     document.Store
	blobs    storage.BlobStore
	chunker  chunker.Chunker
	embedder RecordEmbedder
	vectors  vectorstore.Gateway
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(
	docs document.Store,
	blobs storage.BlobStore,
	embedder RecordEmbedder,
	vectors vectorstore.Gateway,
	m *metrics.Metrics,
	opts Options,
) *Orchestrator {
	if opts.Chunk == (chunker.ChunkOptions{}) {
		opts.Chunk = chunker.DefaultOptions()
	}
	if opts.Lease <= 0 {
		opts.Lease = 10 * time.Minute
	}
	return &Orchestrator{
		docs:     docs,
		blobs:    blobs,
		chunker:  chunker.New(),
		embedder: embedder,
		vectors:  vectors,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
	}
}

// Validate checks the request without touching any state.
func Validate(userID string, req Request) error {
	if userID == "" {
		return callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	if req.DocumentID == "" || req.FilePath == "" {
		return callable.New(callable.InvalidArgument, "documentId and filePath are required")
	}
	return nil
}

// Process runs the whole ingestion for req on behalf of userID. Once the
// document has moved to processing, any failure is recorded on it as
// status=error before being returned.
func (o *Orchestrator) Process(ctx context.Context, userID string, req Request) (*Result, error) {
	if err := Validate(userID, req); err != nil {
		return nil, err
	}
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	log := slog.With("document_id", req.DocumentID, "user_id", userID)
	done := o.metrics.IngestionStarted()

	prev, err := o.begin(ctx, userID, req)
	if err != nil {
		done(string(callable.CodeOf(err)), 0)
		return nil, err
	}

	if req.FileName == "" {
		req.FileName = prev.Name
	}
	log.Info("processing document", "file_name", req.FileName)

	chunkCount, textLength, err := o.run(ctx, userID, req, prev.ChunkCount)
	if err == nil {
		if mrErr := o.docs.MarkReady(ctx, req.DocumentID, chunkCount, textLength); mrErr != nil {
			err = fmt.Errorf("mark document ready: %v: %w", mrErr, callable.New(callable.Internal, "Failed to update document"))
		}
	}
	if err != nil {
		log.Error("document processing failed", "error", err)
		o.rollback(ctx, log, userID, req.DocumentID, prev.ChunkCount, chunkCount)
		o.markError(ctx, log, req.DocumentID, failureMessage(err))
		cerr := callable.Wrap(err, "Failed to process document")
		done(string(cerr.Code), 0)
		return nil, cerr
	}

	log.Info("document processed", "chunks", chunkCount, "text_length", textLength)
	done("ok", chunkCount)
	return &Result{Success: true, ChunkCount: chunkCount}, nil
}

// begin checks ownership and moves the document to processing.
func (o *Orchestrator) begin(ctx context.Context, userID string, req Request) (*models.Document, error) {
	doc, err := o.docs.Get(ctx, req.DocumentID)
	if errors.Is(err, document.ErrNotFound) {
		return nil, callable.New(callable.NotFound, "Document not found")
	}
	if err != nil {
		slog.Error("load document", "document_id", req.DocumentID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to load document")
	}
	if doc.UserID != userID {
		return nil, callable.New(callable.PermissionDenied, "Access denied")
	}
	if doc.FilePath != "" && doc.FilePath != req.FilePath {
		return nil, callable.New(callable.InvalidArgument, "filePath does not match the document")
	}

	prev, err := o.docs.BeginProcessing(ctx, req.DocumentID, o.now().Add(-o.opts.Lease))
	switch {
	case errors.Is(err, document.ErrConflict):
		return nil, callable.New(callable.FailedPrecondition, "Document is already being processed")
	case errors.Is(err, document.ErrNotFound):
		return nil, callable.New(callable.NotFound, "Document not found")
	case err != nil:
		slog.Error("begin processing", "document_id", req.DocumentID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to update document")
	}
	return prev, nil
}

// run returns the number of chunk records it tried to write so a failed
// attempt can be rolled back, even when err is set.
func (o *Orchestrator) run(ctx context.Context, userID string, req Request, prevChunks int) (int, int, error) {
	data, err := storage.ReadAll(ctx, o.blobs, req.FilePath)
	if err != nil {
		return 0, 0, fmt.Errorf("download %s: %w", req.FilePath, err)
	}

	extracted, err := textextract.Extract(data, req.FileName)
	if err != nil {
		return 0, 0, err
	}

	text := chunker.Normalize(extracted.Content)
	if text == "" {
		return 0, 0, callable.New(callable.InvalidArgument, "No text content found in document")
	}

	chunks, err := o.chunker.Chunk(text, o.opts.Chunk)
	if err != nil {
		return 0, 0, fmt.Errorf("chunk text: %w", err)
	}
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}

	records, err := o.embedder.EmbedAll(ctx, contents, req.DocumentID, req.FileName)
	if err != nil {
		return 0, 0, err
	}

	if err := o.vectors.Upsert(ctx, userID, records); err != nil {
		return len(records), 0, fmt.Errorf("upsert vectors: %w", err)
	}

	// The record keeps the previous chunkCount until MarkReady, so a failed
	// prune leaves every surplus id reachable by a later delete or re-ingest.
	if stale := vectorstore.VectorIDs(req.DocumentID, len(records), prevChunks); len(stale) > 0 {
		if err := o.vectors.DeleteMany(ctx, userID, stale); err != nil {
			return len(records), 0, fmt.Errorf("delete %d stale vectors: %w", len(stale), err)
		}
		o.metrics.StaleVectors(len(stale))
	}

	return len(records), utf8.RuneCountInString(text), nil
}

// rollback removes chunk ids written by a failed attempt beyond the
// recorded chunkCount, which nothing else could reach afterwards.
func (o *Orchestrator) rollback(ctx context.Context, log *slog.Logger, userID, id string, recorded, written int) {
	ids := vectorstore.VectorIDs(id, recorded, written)
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.vectors.DeleteMany(ctx, userID, ids); err != nil {
		log.Error("roll back vectors", "count", len(ids), "error", err)
	}
}

// markError records msg on the document. It runs even when ctx is done and
// never fails the caller.
func (o *Orchestrator) markError(ctx context.Context, log *slog.Logger, id, msg string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.docs.MarkError(ctx, id, msg); err != nil {
		log.Error("mark document error", "error", err)
	}
}

// failureMessage is the text stored on the document record.
func failureMessage(err error) string {
	var (
		ce          *callable.Error
		unsupported *textextract.UnsupportedFileTypeError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Message
	case errors.As(err, &unsupported):
		return unsupported.Error()
	case errors.Is(err, textextract.ErrExtractionFailed):
		return "Failed to extract text from document"
	case errors.Is(err, embedding.ErrEmbeddingFailed):
		return "Failed to generate embeddings"
	case errors.Is(err, storage.ErrObjectNotFound):
		return "File not found in storage"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing timed out"
	default:
		return "Processing failed"
	}
}
