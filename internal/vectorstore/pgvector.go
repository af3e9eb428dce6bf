package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/docchat/internal/tenant"
)

// PgVectorStore keeps every namespace in one vector_records table keyed by (namespace, id).
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func (s *PgVectorStore) Upsert(ctx context.Context, userID string, records []Record) error {
	if userID == "" {
		return ErrNoUser
	}
	if len(records) == 0 {
		return nil
	}
	ns := tenant.Namespace(userID)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(
			`INSERT INTO vector_records (namespace, id, document_id, chunk_index, chunk_count, file_name, text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (namespace, id) DO UPDATE SET
			     document_id = EXCLUDED.document_id,
			     chunk_index = EXCLUDED.chunk_index,
			     chunk_count = EXCLUDED.chunk_count,
			     file_name = EXCLUDED.file_name,
			     text = EXCLUDED.text,
			     embedding = EXCLUDED.embedding,
			     updated_at = now()`,
			ns, r.ID, r.Metadata.DocumentID, r.Metadata.ChunkIndex, r.Metadata.ChunkCount,
			r.Metadata.FileName, r.Metadata.Text, pgvector.NewVector(r.Values),
		)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert vector %s: %w", r.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) Query(ctx context.Context, userID string, vector []float32, topK int, documentIDs []string) ([]Match, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if topK <= 0 || len(documentIDs) == 0 {
		return []Match{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, chunk_index, chunk_count, file_name, text,
		        1 - (embedding <=> $1) AS score
		 FROM vector_records
		 WHERE namespace = $2 AND document_id = ANY($3)
		 ORDER BY embedding <=> $1, id
		 LIMIT $4`,
		pgvector.NewVector(vector), tenant.Namespace(userID), documentIDs, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Metadata.DocumentID, &m.Metadata.ChunkIndex, &m.Metadata.ChunkCount,
			&m.Metadata.FileName, &m.Metadata.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Score = clampScore(m.Score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

func (s *PgVectorStore) DeleteMany(ctx context.Context, userID string, ids []string) error {
	if userID == "" {
		return ErrNoUser
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := s.db.Exec(ctx,
		"DELETE FROM vector_records WHERE namespace = $1 AND id = ANY($2)",
		tenant.Namespace(userID), ids,
	)
	if err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}
