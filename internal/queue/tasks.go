package queue

const TypeDocumentProcess = "document:process"

// DocumentProcessPayload carries a processDocument request to the worker.
// UserID is the authenticated caller at enqueue time.
type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
	FilePath   string `json:"file_path"`
	FileName   string `json:"file_name"`
}
