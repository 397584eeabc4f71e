package llm

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const SystemPrompt = `You are a helpful assistant that answers questions from company employees using the company's internal documentation.

Your responses must:
1. Be based primarily on the provided context snippets
2. Say clearly when the context does not contain enough information to answer
3. Cite the snippets you rely on inline as [Source n]
4. Never cite a source number that is not listed in the context

Be concise and accurate.`

const noContext = "(no relevant documents found)"

// BuildUserPrompt lays out the numbered context snippets followed by the
// question. Snippets are numbered from 1.
func BuildUserPrompt(snippets []Snippet, question string) string {
	var b strings.Builder
	b.WriteString("Context from company documents:\n")

	if len(snippets) == 0 {
		b.WriteString(noContext)
		b.WriteString("\n")
	}

	for i, s := range snippets {
		fmt.Fprintf(&b, "\n[Source %d]", i+1)
		if s.Title != "" {
			fmt.Fprintf(&b, " %s", s.Title)
		}
		if s.Department != "" {
			fmt.Fprintf(&b, " (%s)", s.Department)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Text))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s", strings.TrimSpace(question))
	return b.String()
}

var citationPattern = regexp.MustCompile(`(?i)\[sources?\s+([0-9][0-9,\s]*)\]`)

// ParseCitations returns the sorted zero-based snippet indexes cited in text
// as [Source n] or [Sources n, m]. Numbers outside 1..count are ignored.
func ParseCitations(text string, count int) []int {
	seen := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(text, -1) {
		for _, field := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' }) {
			n, err := strconv.Atoi(field)
			if err != nil || n < 1 || n > count {
				continue
			}
			seen[n-1] = true
		}
	}

	if len(seen) == 0 {
		return nil
	}

	used := make([]int, 0, len(seen))
	for idx := range seen {
		used = append(used, idx)
	}
	sort.Ints(used)
	return used
}
