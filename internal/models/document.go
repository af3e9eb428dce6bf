package models

import "time"

type Document struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	Name                string     `json:"name"`
	Size                int64      `json:"size"`
	Type                string     `json:"type"`
	FilePath            string     `json:"filePath"`
	URL                 string     `json:"url,omitempty"`
	Status              string     `json:"status"`
	ChunkCount          int        `json:"chunkCount"`
	TextLength          int        `json:"textLength"`
	Error               *string    `json:"error"`
	UploadedAt          time.Time  `json:"uploadedAt"`
	ProcessingStartedAt *time.Time `json:"-"`
	ProcessedAt         *time.Time `json:"processedAt"`
}

const (
	DocStatusUploading  = "uploading"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusError      = "error"
)
