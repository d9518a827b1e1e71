package rag

import (
	"strings"
)

// DefaultContextBudget caps assembled context in characters.
const DefaultContextBudget = 8000

// NoContextPlaceholder keeps the prompt well-formed when retrieval finds
// nothing.
const NoContextPlaceholder = "No relevant information was found in the knowledge base."

const snippetSeparator = "\n---\n"

// Snippet is one retrieved knowledge fragment with its source label.
type Snippet struct {
	Source  string
	Content string
}

// Turn is one recent conversation message for context rendering.
type Turn struct {
	Role    string
	Content string
}

// AssembleContext merges ranked snippets and recent turns into one block,
// hard-sliced to the character budget. Truncation does not respect snippet
// boundaries.
func AssembleContext(snippets []Snippet, turns []Turn, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var b strings.Builder
	if len(snippets) == 0 {
		b.WriteString(NoContextPlaceholder)
	} else {
		for i, s := range snippets {
			if i > 0 {
				b.WriteString(snippetSeparator)
			}
			if s.Source != "" {
				b.WriteString("[Source: " + s.Source + "]\n")
			}
			b.WriteString(s.Content)
		}
	}

	if len(turns) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, t := range turns {
			b.WriteString(capitalize(t.Role) + ": " + t.Content + "\n")
		}
	}

	out := b.String()
	if len(out) > budget {
		out = out[:budget]
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
