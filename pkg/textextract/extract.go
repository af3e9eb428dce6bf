package textextract

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// ErrExtractionFailed is returned when a PDF or DOCX payload cannot be decoded.
// The parser error is logged, not wrapped.
var ErrExtractionFailed = errors.New("text extraction failed")

// UnsupportedFileTypeError names the extension that has no extractor.
type UnsupportedFileTypeError struct {
	Extension string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Extension)
}

type ExtractedText struct {
	Content  string
	Pages    int
	Metadata map[string]string
}

// Extension returns the lowercased text after the last "." in fileName, or the
// whole lowercased name when it has no dot.
func Extension(fileName string) string {
	name := strings.ToLower(fileName)
	return name[strings.LastIndex(name, ".")+1:]
}

// Extract converts a raw file into plain text, dispatching on the extension of fileName.
func Extract(data []byte, fileName string) (*ExtractedText, error) {
	switch ext := Extension(fileName); ext {
	case "pdf":
		return extractPDF(data, fileName)
	case "docx":
		return extractDOCX(data, fileName)
	case "txt":
		return extractTXT(data), nil
	default:
		return nil, &UnsupportedFileTypeError{Extension: ext}
	}
}

func SupportedTypes() []string {
	return []string{"pdf", "docx", "txt"}
}

func extractPDF(data []byte, fileName string) (out *ExtractedText, err error) {
	// ledongthuc/pdf panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("pdf parser panic", "file", fileName, "panic", r)
			out, err = nil, fmt.Errorf("%w: pdf", ErrExtractionFailed)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		slog.Warn("open pdf", "file", fileName, "error", err)
		return nil, fmt.Errorf("%w: pdf", ErrExtractionFailed)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("read pdf page", "file", fileName, "page", i, "error", err)
			return nil, fmt.Errorf("%w: pdf", ErrExtractionFailed)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{
		Content:  strings.TrimSpace(buf.String()),
		Pages:    numPages,
		Metadata: map[string]string{"type": "pdf"},
	}, nil
}

func extractDOCX(data []byte, fileName string) (*ExtractedText, error) {
	text, meta, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		slog.Warn("convert docx", "file", fileName, "error", err)
		return nil, fmt.Errorf("%w: docx", ErrExtractionFailed)
	}

	metadata := map[string]string{"type": "docx"}
	for k, v := range meta {
		metadata[k] = v
	}

	return &ExtractedText{
		Content:  strings.TrimSpace(text),
		Pages:    1,
		Metadata: metadata,
	}, nil
}

func extractTXT(data []byte) *ExtractedText {
	content := string(data)
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "�")
	}

	return &ExtractedText{
		Content:  content,
		Pages:    1,
		Metadata: map[string]string{"type": "txt"},
	}
}
