// Package prompt assembles retrieved guidance into the grounded message sent
// to the generation backend.
package prompt

import (
	"strings"

	"coach/internal/domain"
)

// NoGuidanceText is the sentinel docs body used when retrieval returned
// nothing, so the instruction layer can tell the backend to disclose the gap.
const NoGuidanceText = "No matching guidance found in the support documentation for this question."

// instructions is the fixed grounding template appended to every assembled
// context regardless of its content.
const instructions = `Instructions:
- Answer ONLY using the Docs context above.
- If the Docs context is missing information, say that explicitly
  and suggest the agent escalate or check with a supervisor.`

// Context is the assembled, bounded prompt context for one turn.
type Context struct {
	// Text is the full message for the generation backend: docs context,
	// instructions, and the customer question.
	Text string
	// Docs is the bounded concatenation of retained section texts (or the
	// no-guidance sentinel).
	Docs string
	// UsedTitles lists the retained section titles in rank order.
	UsedTitles []string
	// Truncated reports whether any retrieved section was dropped to stay
	// within the character budget.
	Truncated bool
}

// Assemble concatenates retrieved sections in rank order, each prefixed by
// its title, stopping before the first section that would push the docs body
// past maxChars. Sections are never split: truncation drops the
// lowest-ranked suffix whole. maxChars <= 0 means unbounded.
func Assemble(query string, res domain.Result, maxChars int) Context {
	var (
		parts  []string
		titles []string
		used   int
	)
	truncated := false
	for _, r := range res {
		piece := r.Section.Title + "\n" + r.Section.Body
		if r.Section.Body == "" {
			piece = r.Section.Title
		}
		next := used + len(piece)
		if len(parts) > 0 {
			next += len(sectionJoiner)
		}
		if maxChars > 0 && next > maxChars {
			truncated = true
			break
		}
		parts = append(parts, piece)
		titles = append(titles, r.Section.Title)
		used = next
	}

	docs := strings.Join(parts, sectionJoiner)
	if docs == "" {
		docs = NoGuidanceText
	}

	var sb strings.Builder
	sb.WriteString("Docs context:\n\n")
	sb.WriteString(docs)
	sb.WriteString("\n\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\nCustomer question:\n")
	sb.WriteString(query)

	return Context{
		Text:       sb.String(),
		Docs:       docs,
		UsedTitles: titles,
		Truncated:  truncated,
	}
}

const sectionJoiner = "\n\n"
