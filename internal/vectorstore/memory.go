package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/nikhilbhutani/docchat/internal/tenant"
)

// MemoryStore is an in-process Gateway that scores by brute-force cosine similarity.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, userID string, records []Record) error {
	if userID == "" {
		return ErrNoUser
	}
	ns := tenant.Namespace(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.namespaces[ns]
	if !ok {
		bucket = make(map[string]Record, len(records))
		s.namespaces[ns] = bucket
	}
	for _, r := range records {
		r.Values = append([]float32(nil), r.Values...)
		bucket[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, userID string, vector []float32, topK int, documentIDs []string) ([]Match, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if topK <= 0 || len(documentIDs) == 0 {
		return []Match{}, nil
	}

	allowed := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []Match{}
	for _, r := range s.namespaces[tenant.Namespace(userID)] {
		if _, ok := allowed[r.Metadata.DocumentID]; !ok {
			continue
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Score:    clampScore(cosine(vector, r.Values)),
			Metadata: r.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, userID string, ids []string) error {
	if userID == "" {
		return ErrNoUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.namespaces[tenant.Namespace(userID)]
	for _, id := range ids {
		delete(bucket, id)
	}
	return nil
}

// Count returns the number of records in userID's namespace.
func (s *MemoryStore) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[tenant.Namespace(userID)])
}

// IDs returns the sorted record ids in userID's namespace.
func (s *MemoryStore) IDs(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.namespaces[tenant.Namespace(userID)]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
