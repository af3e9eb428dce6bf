// Package rag answers questions over a user's indexed documents.
package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/docchat/internal/callable"
	"github.com/nikhilbhutani/docchat/internal/chat"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/metrics"
	"github.com/nikhilbhutani/docchat/internal/models"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

// QueryEmbedder must embed with the same model used at ingestion.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

type Options struct {
	TopK        int
	Timeout     time.Duration
	Provider    string
	Model       string
	Temperature float64
}

type Query struct {
	Query          string   `json:"query"`
	DocumentIDs    []string `json:"documentIds"`
	ConversationID string   `json:"conversationId,omitempty"`
}

type Answer struct {
	Response string          `json:"response"`
	Sources  []models.Source `json:"sources"`
	ChatID   string          `json:"chatId"`
}

type Engine struct {
	embedder QueryEmbedder
	vectors  vectorstore.Gateway
	llm      llm.Gateway
	chats    chat.Store
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
	newID    func() string
}

func NewEngine(embedder QueryEmbedder, vectors vectorstore.Gateway, gw llm.Gateway, chats chat.Store, m *metrics.Metrics, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		llm:      gw,
		chats:    chats,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Answer retrieves the best matching chunks of q.DocumentIDs from userID's
// namespace and asks the model to answer from them. A query with no matches
// succeeds with NoMatchResponse and is not persisted.
func (e *Engine) Answer(ctx context.Context, userID string, q Query) (*Answer, error) {
	done := e.metrics.QueryStarted()
	ans, matches, err := e.answer(ctx, userID, q)
	if err != nil {
		done(string(callable.CodeOf(err)), 0)
		return nil, err
	}
	done("ok", matches)
	return ans, nil
}

func (e *Engine) answer(ctx context.Context, userID string, q Query) (*Answer, int, error) {
	if userID == "" {
		return nil, 0, callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	if strings.TrimSpace(q.Query) == "" || len(q.DocumentIDs) == 0 {
		return nil, 0, callable.New(callable.InvalidArgument, "Query and document IDs are required")
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	log := slog.With("user_id", userID, "documents", len(q.DocumentIDs))

	vec, err := e.embedder.EmbedQuery(ctx, q.Query)
	if err != nil {
		log.Error("embed query", "error", err)
		return nil, 0, callable.New(callable.Internal, "Error processing chat query")
	}

	matches, err := e.vectors.Query(ctx, userID, vec, e.opts.TopK, q.DocumentIDs)
	if err != nil {
		log.Error("query vectors", "error", err)
		return nil, 0, callable.New(callable.Internal, "Error processing chat query")
	}
	if len(matches) == 0 {
		log.Info("no matching chunks")
		return &Answer{Response: NoMatchResponse, Sources: []models.Source{}, ChatID: ""}, 0, nil
	}

	messages, err := buildMessages(buildContext(matches), q.Query)
	if err != nil {
		log.Error("build prompt", "error", err)
		return nil, 0, callable.New(callable.Internal, "Error processing chat query")
	}

	resp, err := e.llm.Chat(ctx, llm.ChatRequest{
		Provider:    e.opts.Provider,
		Model:       e.opts.Model,
		Messages:    messages,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		log.Error("generate answer", "error", err)
		return nil, 0, callable.New(callable.Internal, "Error processing chat query")
	}

	rec := &models.ChatRecord{
		ID:             e.newID(),
		UserID:         userID,
		ConversationID: q.ConversationID,
		Query:          q.Query,
		Response:       resp.Content,
		DocumentIDs:    q.DocumentIDs,
		Sources:        toSources(matches, false),
		Timestamp:      e.now().UTC(),
	}
	if err := e.chats.Create(ctx, rec); err != nil {
		log.Error("save chat record", "error", err)
		return nil, 0, callable.New(callable.Internal, "Error processing chat query")
	}

	log.Info("query answered", "matches", len(matches), "provider", resp.Provider, "model", resp.Model,
		"tokens", resp.TotalTokens, "latency_ms", resp.LatencyMs)
	return &Answer{Response: resp.Content, Sources: toSources(matches, true), ChatID: rec.ID}, len(matches), nil
}

// History returns the caller's most recent chat records.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]models.ChatRecord, error) {
	if userID == "" {
		return nil, callable.New(callable.Unauthenticated, "User must be authenticated")
	}
	switch {
	case limit <= 0:
		limit = 20
	case limit > 100:
		limit = 100
	}
	records, err := e.chats.ListByUser(ctx, userID, limit)
	if err != nil {
		slog.Error("list chat records", "user_id", userID, "error", err)
		return nil, callable.New(callable.Internal, "Failed to load chat history")
	}
	return records, nil
}

// toSources maps matches to citations in index order, keeping the chunk
// text only when withText is set.
func toSources(matches []vectorstore.Match, withText bool) []models.Source {
	sources := make([]models.Source, len(matches))
	for i, m := range matches {
		sources[i] = sourceFromMatch(m)
		if !withText {
			sources[i].Text = ""
		}
	}
	return sources
}

func sourceFromMatch(m vectorstore.Match) models.Source {
	return models.Source{
		DocumentID: m.Metadata.DocumentID,
		ChunkIndex: m.Metadata.ChunkIndex,
		Score:      m.Score,
		Text:       m.Metadata.Text,
	}
}
