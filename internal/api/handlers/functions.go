package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/ingest"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/internal/rag"
	"github.com/nikhilbhutani/docchat/internal/tenant"
)

type Ingester interface {
	Process(ctx context.Context, userID string, req ingest.Request) (*ingest.Result, error)
}

type Answerer interface {
	Answer(ctx context.Context, userID string, q rag.Query) (*rag.Answer, error)
}

// Enqueuer is satisfied by *queue.Client.
type Enqueuer interface {
	EnqueueDocumentProcess(ctx context.Context, payload queue.DocumentProcessPayload) (string, error)
}

// FunctionsHandler serves the callable operations processDocument, chatQuery
// and deleteDocument.
type FunctionsHandler struct {
	ingester Ingester
	answerer Answerer
	docs     *document.Service
	queue    Enqueuer
}

func NewFunctionsHandler(ing Ingester, ans Answerer, docs *document.Service, q Enqueuer) *FunctionsHandler {
	return &FunctionsHandler{ingester: ing, answerer: ans, docs: docs, queue: q}
}

type processDocumentRequest struct {
	ingest.Request
	Async bool `json:"async,omitempty"`
}

type enqueuedResponse struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued"`
	TaskID  string `json:"taskId"`
}

func (h *FunctionsHandler) ProcessDocument(w http.ResponseWriter, r *http.Request) {
	userID := tenant.UserIDFromContext(r.Context())

	var req processDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if !req.Async {
		res, err := h.ingester.Process(r.Context(), userID, req.Request)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	if err := ingest.Validate(userID, req.Request); err != nil {
		writeError(w, err)
		return
	}
	if h.queue == nil {
		writeError(w, callable.New(callable.FailedPrecondition, "Asynchronous processing is not available"))
		return
	}
	if _, err := h.docs.GetOwned(r.Context(), userID, req.DocumentID); err != nil {
		writeError(w, err)
		return
	}

	taskID, err := h.queue.EnqueueDocumentProcess(r.Context(), queue.DocumentProcessPayload{
		DocumentID: req.DocumentID,
		UserID:     userID,
		FilePath:   req.FilePath,
		FileName:   req.FileName,
	})
	if err != nil {
		slog.Error("enqueue document", "document_id", req.DocumentID, "error", err)
		writeError(w, callable.New(callable.Internal, "Failed to queue document"))
		return
	}
	writeJSON(w, http.StatusAccepted, enqueuedResponse{Success: true, Queued: true, TaskID: taskID})
}

func (h *FunctionsHandler) ChatQuery(w http.ResponseWriter, r *http.Request) {
	var q rag.Query
	if err := decodeJSON(w, r, &q); err != nil {
		writeError(w, err)
		return
	}

	ans, err := h.answerer.Answer(r.Context(), tenant.UserIDFromContext(r.Context()), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type deleteDocumentRequest struct {
	DocumentID string `json:"documentId"`
}

func (h *FunctionsHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	var req deleteDocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.docs.Delete(r.Context(), tenant.UserIDFromContext(r.Context()), req.DocumentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
