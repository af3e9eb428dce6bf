package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/ingest"
	"github.com/nikhilbhutani/docchat/internal/queue"
)

type Processor interface {
	Process(ctx context.Context, userID string, req ingest.Request) (*ingest.Result, error)
}

type DocumentWorker struct {
	processor Processor
}

func NewDocumentWorker(p Processor) *DocumentWorker {
	return &DocumentWorker{processor: p}
}

// ProcessTask runs one document:process task. Classified failures are final;
// internal ones are left to asynq's retry policy.
func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log := slog.With("task_id", taskID, "document_id", payload.DocumentID, "user_id", payload.UserID)

	res, err := w.processor.Process(ctx, payload.UserID, ingest.Request{
		DocumentID: payload.DocumentID,
		FilePath:   payload.FilePath,
		FileName:   payload.FileName,
	})
	if err != nil {
		code := callable.CodeOf(err)
		log.Warn("document task failed", "code", code, "error", err)
		if code != callable.Internal {
			return fmt.Errorf("process document: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("process document: %w", err)
	}

	log.Info("document task done", "chunks", res.ChunkCount)
	return nil
}
