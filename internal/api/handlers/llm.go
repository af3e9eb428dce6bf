package handlers

import (
	"net/http"
	"strings"

	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/pkg/textextract"
)

// LLMHandler reports which providers and models the gateway can route to.
type LLMHandler struct {
	gateway        llm.Gateway
	embeddingModel string
}

func NewLLMHandler(gw llm.Gateway, embeddingModel string) *LLMHandler {
	return &LLMHandler{gateway: gw, embeddingModel: embeddingModel}
}

func (h *LLMHandler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":         h.gateway.ListModels(),
		"embeddingModel": h.embeddingModel,
		"fileTypes":      strings.Join(textextract.SupportedTypes(), ","),
	})
}
