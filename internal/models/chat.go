package models

import "time"

// Source is a retrieved chunk cited by an answer. Text is omitted when the
// source is persisted with a chat record.
type Source struct {
	DocumentID string  `json:"documentId"`
	ChunkIndex int     `json:"chunkIndex"`
	Score      float64 `json:"score"`
	Text       string  `json:"text,omitempty"`
}

type ChatRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId,omitempty"`
	Query          string    `json:"query"`
	Response       string    `json:"response"`
	DocumentIDs    []string  `json:"documentIds"`
	Sources        []Source  `json:"sources"`
	Timestamp      time.Time `json:"timestamp"`
}
