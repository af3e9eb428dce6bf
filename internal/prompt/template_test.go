package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate(t *testing.T) {
	tpl := Parse("Context: {{context}}\nQ: {{query}}\nAgain: {{query}}")
	assert.Equal(t, []string{"context", "query"}, tpl.Vars())

	out, err := tpl.Render(map[string]string{"context": "uses {{query}} literally", "query": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Context: uses {{query}} literally\nQ: why?\nAgain: why?", out)

	_, err = tpl.Render(map[string]string{"query": "x"})
	assert.ErrorContains(t, err, "context")
}
