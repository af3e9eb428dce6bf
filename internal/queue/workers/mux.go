package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/docchat/internal/queue"
)

// NewServeMux routes every task type the worker understands.
func NewServeMux(p Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(logTask)
	mux.Handle(queue.TypeDocumentProcess, asynq.HandlerFunc(NewDocumentWorker(p).ProcessTask))
	return mux
}

func logTask(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		retried, _ := asynq.GetRetryCount(ctx)
		err := next.ProcessTask(ctx, t)
		slog.Info("task handled",
			"type", t.Type(),
			"retried", retried,
			"duration_ms", time.Since(start).Milliseconds(),
			"failed", err != nil,
		)
		return err
	})
}
