package document

import (
	"context"
	"errors"
	"time"

	"github.com/nikhilbhutani/docchat/internal/models"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned by BeginProcessing while another ingestion holds the document.
	ErrConflict = errors.New("document is already being processed")
)

// Store is the document record store.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	// ListByUser returns userID's documents, newest upload first.
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	// BeginProcessing moves a document to processing with a compare-and-swap.
	// It succeeds from uploading, ready or error, and from processing only when
	// that attempt started before staleBefore. It returns the record as it was
	// before the transition.
	BeginProcessing(ctx context.Context, id string, staleBefore time.Time) (*models.Document, error)
	MarkReady(ctx context.Context, id string, chunkCount, textLength int) error
	MarkError(ctx context.Context, id, msg string) error
	Delete(ctx context.Context, id string) error
}

func canBeginProcessing(doc *models.Document, staleBefore time.Time) bool {
	switch doc.Status {
	case models.DocStatusUploading, models.DocStatusReady, models.DocStatusError:
		return true
	case models.DocStatusProcessing:
		return doc.ProcessingStartedAt == nil || doc.ProcessingStartedAt.Before(staleBefore)
	default:
		return false
	}
}
