// Package chat persists answered queries.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docchat/internal/models"
)

type Store interface {
	Create(ctx context.Context, rec *models.ChatRecord) error
	// ListByUser returns userID's records, newest first, at most limit.
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error)
}

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.ChatRecord) error {
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	var conversationID *string
	if rec.ConversationID != "" {
		conversationID = &rec.ConversationID
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO chat_records (id, user_id, conversation_id, query, response, document_ids, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, conversationID, rec.Query, rec.Response, rec.DocumentIDs, sources, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert chat record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, COALESCE(conversation_id, ''), query, response, document_ids, sources, created_at
		 FROM chat_records WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat records: %w", err)
	}
	defer rows.Close()

	records := []models.ChatRecord{}
	for rows.Next() {
		var (
			r       models.ChatRecord
			sources []byte
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.ConversationID, &r.Query, &r.Response, &r.DocumentIDs, &sources, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat record: %w", err)
		}
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MemoryStore is the in-process Store used without a database.
type MemoryStore struct {
	mu      sync.Mutex
	records []models.ChatRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, rec *models.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.ChatRecord{}
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
