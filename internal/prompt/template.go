// Package prompt renders {{name}} placeholder templates.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a parsed prompt. Substituted values are inserted verbatim and
// never scanned for placeholders themselves.
type Template struct {
	text string
	vars []string
}

func Parse(text string) *Template {
	return &Template{text: text, vars: extractVariables(text)}
}

// Vars returns the placeholder names in order of first appearance.
func (t *Template) Vars() []string {
	return append([]string(nil), t.vars...)
}

// Render fills every placeholder from vars. A missing variable is an error.
func (t *Template) Render(vars map[string]string) (string, error) {
	var missing []string
	for _, v := range t.vars {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(t.text, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

func extractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}
