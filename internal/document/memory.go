package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikhilbhutani/docchat/internal/models"
)

// MemoryStore keeps document records in process. It backs local development
// when no database is configured, and tests.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]models.Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := []models.Document{}
	for _, d := range s.docs {
		if d.UserID == userID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].UploadedAt.After(docs[j].UploadedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (s *MemoryStore) BeginProcessing(_ context.Context, id string, staleBefore time.Time) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !canBeginProcessing(&d, staleBefore) {
		return nil, ErrConflict
	}
	prev := d
	now := s.now()
	d.Status = models.DocStatusProcessing
	d.ProcessingStartedAt = &now
	d.Error = nil
	s.docs[id] = d
	return &prev, nil
}

func (s *MemoryStore) MarkReady(_ context.Context, id string, chunkCount, textLength int) error {
	return s.update(id, func(d *models.Document) {
		now := s.now()
		d.Status = models.DocStatusReady
		d.ChunkCount = chunkCount
		d.TextLength = textLength
		d.Error = nil
		d.ProcessedAt = &now
	})
}

func (s *MemoryStore) MarkError(_ context.Context, id, msg string) error {
	return s.update(id, func(d *models.Document) {
		now := s.now()
		d.Status = models.DocStatusError
		d.Error = &msg
		d.ProcessedAt = &now
	})
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) update(id string, fn func(*models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&d)
	s.docs[id] = d
	return nil
}
