package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidOptions is returned when the size/overlap pair cannot produce progress.
var ErrInvalidOptions = errors.New("invalid chunk options")

// sentencePattern matches a run of non-terminators followed by one or more terminators.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

type Chunker interface {
	Chunk(text string, opts ChunkOptions) ([]TextChunk, error)
}

type ChunkOptions struct {
	ChunkSize    int // target chunk size in characters
	ChunkOverlap int // characters carried from the end of one chunk into the next
}

type TextChunk struct {
	Content string
	Index   int
	// Overlap is the untrimmed prefix copied from the previous chunk's buffer.
	Overlap string
}

func DefaultOptions() ChunkOptions {
	return ChunkOptions{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

func (o ChunkOptions) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidOptions, o.ChunkOverlap, o.ChunkSize)
	}
	return nil
}

type sentenceChunker struct{}

func New() Chunker {
	return &sentenceChunker{}
}

// Chunk accumulates sentences into buffers of roughly opts.ChunkSize characters.
// A sentence is never split; when it does not fit, the current buffer is closed and
// the next one starts with the last opts.ChunkOverlap characters of the closed buffer.
func (c *sentenceChunker) Chunk(text string, opts ChunkOptions) ([]TextChunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var (
		chunks  []TextChunk
		buf     []rune
		overlap []rune
	)

	for _, unit := range SplitSentences(text) {
		u := []rune(unit)
		if len(buf) > 0 && len(buf)+len(u) > opts.ChunkSize {
			chunks = appendChunk(chunks, buf, overlap)

			tail := buf[max(0, len(buf)-opts.ChunkOverlap):]
			overlap = append([]rune(nil), tail...)
			buf = append(append(make([]rune, 0, len(tail)+len(u)), tail...), u...)
			continue
		}
		buf = append(buf, u...)
	}

	return appendChunk(chunks, buf, overlap), nil
}

func appendChunk(chunks []TextChunk, buf, overlap []rune) []TextChunk {
	content := strings.TrimSpace(string(buf))
	if content == "" {
		return chunks
	}
	return append(chunks, TextChunk{
		Content: content,
		Index:   len(chunks),
		Overlap: string(overlap),
	})
}

// SplitSentences splits text into sentence-like units without losing characters:
// leading terminators join the first unit and any trailing text without a
// terminator becomes the final unit.
func SplitSentences(text string) []string {
	locs := sentencePattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	units := make([]string, 0, len(locs)+1)
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = 0
		}
		units = append(units, text[start:loc[1]])
	}
	if rest := text[locs[len(locs)-1][1]:]; strings.TrimSpace(rest) != "" {
		units = append(units, rest)
	}
	return units
}
