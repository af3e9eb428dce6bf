package rag

import (
	"strings"

	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/prompt"
	"github.com/nikhilbhutani/docchat/internal/vectorstore"
)

const contextSeparator = "\n\n---\n\n"

// NoMatchResponse is returned when the selected documents have no match.
const NoMatchResponse = "I could not find relevant information in the selected documents to answer your question."

const systemPrompt = `You are an expert assistant that answers questions using only the document context you are given.

Instructions:
1. Answer ONLY from the provided context.
2. If the context does not contain the answer, say so clearly.
3. Quote or cite the relevant passages when appropriate.
4. Be concise but informative.
5. Reply in the same language as the user's question.
6. If the information is incomplete, say what is missing.`

var userPrompt = prompt.Parse("Document context:\n{{context}}\n\nQuestion: {{query}}\n\nAnswer:")

// buildContext joins the non-empty chunk texts in match order.
func buildContext(matches []vectorstore.Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Text != "" {
			parts = append(parts, m.Metadata.Text)
		}
	}
	return strings.Join(parts, contextSeparator)
}

func buildMessages(context, query string) ([]llm.Message, error) {
	user, err := userPrompt.Render(map[string]string{"context": context, "query": query})
	if err != nil {
		return nil, err
	}
	return []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}, nil
}
