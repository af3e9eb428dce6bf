package document

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/storage"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

// Service implements the caller-facing document reads and deleteDocument.
type Service struct {
	store   Store
	vectors vectorstore.Gateway
	blobs   storage.BlobStore
}

func NewService(store Store, vectors vectorstore.Gateway, blobs storage.BlobStore) *Service {
	return &Service{store: store, vectors: vectors, blobs: blobs}
}

// DeleteResult is the deleteDocument response.
type DeleteResult struct {
	Success        bool `json:"success"`
	DeletedVectors int  `json:"deletedVectors"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	FilePath string `json:"filePath"`
	URL      string `json:"url"`
}

// UploadPrefix is the blob path prefix a user may register files under.
func UploadPrefix(userID string) string {
	return "users/" + userID + "/"
}

// Register records an uploaded file as a new document in the uploading state.
func (s *Service) Register(ctx context.Context, userID string, in RegisterInput) (*models.Document, error) {
	if userID == "" {
		return nil, callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	if strings.TrimSpace(in.Name) == "" || in.FilePath == "" {
		return nil, callable.New(callable.InvalidArgument, "name and filePath are required")
	}
	if path.Clean(in.FilePath) != in.FilePath || !strings.HasPrefix(in.FilePath, UploadPrefix(userID)) {
		return nil, callable.Errorf(callable.InvalidArgument, "filePath must be under %s", UploadPrefix(userID))
	}
	if in.Size < 0 {
		return nil, callable.New(callable.InvalidArgument, "size must not be negative")
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       in.Name,
		Size:       in.Size,
		Type:       in.Type,
		FilePath:   in.FilePath,
		URL:        in.URL,
		Status:     models.DocStatusUploading,
		UploadedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, doc); err != nil {
		slog.Error("register document", "user_id", userID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to create document")
	}
	slog.Info("document registered", "document_id", doc.ID, "user_id", userID, "file_name", doc.Name)
	return doc, nil
}

// GetOwned loads a document and checks that userID owns it.
func (s *Service) GetOwned(ctx context.Context, userID, documentID string) (*models.Document, error) {
	if userID == "" {
		return nil, callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	if documentID == "" {
		return nil, callable.New(callable.InvalidArgument, "documentId is required")
	}
	doc, err := s.store.Get(ctx, documentID)
	if errors.Is(err, ErrNotFound) {
		return nil, callable.New(callable.NotFound, "Document not found")
	}
	if err != nil {
		slog.Error("load document", "document_id", documentID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to load document")
	}
	if doc.UserID != userID {
		return nil, callable.New(callable.PermissionDenied, "Access denied")
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Document, error) {
	if userID == "" {
		return nil, callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	docs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		slog.Error("list documents", "user_id", userID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to list documents")
	}
	return docs, nil
}

// Delete removes a document's vectors, its uploaded file and its record.
// Vector and blob removal are best effort; only the record delete can fail
// the call once ownership has been established.
func (s *Service) Delete(ctx context.Context, userID, documentID string) (*DeleteResult, error) {
	doc, err := s.GetOwned(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}

	log := slog.With("document_id", doc.ID, "user_id", userID)

	deleted := 0
	if ids := vectorstore.VectorIDs(doc.ID, 0, doc.ChunkCount); len(ids) > 0 {
		if err := s.vectors.DeleteMany(ctx, userID, ids); err != nil {
			log.Warn("delete document vectors", "count", len(ids), "error", err)
		} else {
			deleted = len(ids)
		}
	}

	if doc.FilePath != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, doc.FilePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warn("delete document file", "path", doc.FilePath, "error", err)
		}
	}

	if err := s.store.Delete(ctx, doc.ID); err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("delete document record", "error", err)
		return nil, callable.New(callable.Internal, "Failed to delete document")
	}

	log.Info("document deleted", "deleted_vectors", deleted)
	return &DeleteResult{Success: true, DeletedVectors: deleted}, nil
}
