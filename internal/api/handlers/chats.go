package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/tenant"
)

// HistoryLister is satisfied by *rag.Engine.
type HistoryLister interface {
	History(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error)
}

type ChatHandler struct {
	history HistoryLister
}

func NewChatHandler(h HistoryLister) *ChatHandler {
	return &ChatHandler{history: h}
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.history.History(r.Context(), tenant.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": records, "count": len(records)})
}
