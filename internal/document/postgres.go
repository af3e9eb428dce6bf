package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/docchat/internal/models"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, user_id, name, size, type, file_path, url, status, chunk_count, text_length,
	error, uploaded_at, processing_started_at, processed_at`

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Size, &d.Type, &d.FilePath, &d.URL, &d.Status,
		&d.ChunkCount, &d.TextLength, &d.Error, &d.UploadedAt, &d.ProcessingStartedAt, &d.ProcessedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (id, user_id, name, size, type, file_path, url, status, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.UserID, doc.Name, doc.Size, doc.Type, doc.FilePath, doc.URL, doc.Status, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) BeginProcessing(ctx context.Context, id string, staleBefore time.Time) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx,
		`WITH prev AS (
			SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE
		), upd AS (
			UPDATE documents d SET status = 'processing', processing_started_at = now(), error = NULL
			FROM prev
			WHERE d.id = prev.id
			  AND (prev.status IN ('uploading', 'ready', 'error')
			       OR (prev.status = 'processing' AND (prev.processing_started_at IS NULL OR prev.processing_started_at < $2)))
			RETURNING d.id
		)
		SELECT prev.* FROM prev JOIN upd ON upd.id = prev.id`,
		id, staleBefore,
	))
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("begin processing: %w", err)
	}

	// Nothing was updated: tell a missing record apart from a held one.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrConflict
}

func (s *PostgresStore) MarkReady(ctx context.Context, id string, chunkCount, textLength int) error {
	return s.exec(ctx,
		`UPDATE documents SET status = 'ready', chunk_count = $2, text_length = $3, error = NULL,
		        processed_at = now()
		 WHERE id = $1`,
		id, chunkCount, textLength)
}

func (s *PostgresStore) MarkError(ctx context.Context, id, msg string) error {
	return s.exec(ctx,
		`UPDATE documents SET status = 'error', error = $2, processed_at = now() WHERE id = $1`,
		id, msg)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
