package domain

import "time"

// Section is one heading-delimited unit of the support knowledge corpus.
// Immutable once parsed; Ordinal fixes a stable tie-break order.
type Section struct {
	Ordinal     int
	Title       string
	Body        string
	ContentHash string
}

// Text returns the embeddable form of the section: title plus body.
func (s Section) Text() string {
	if s.Body == "" {
		return s.Title
	}
	return s.Title + "\n" + s.Body
}

// Corpus is the ordered sequence of sections parsed from one source document.
// It is regenerated wholesale on reload, never mutated in place.
type Corpus []Section

// ScoredSection pairs a section with its cosine similarity to a query.
type ScoredSection struct {
	Section Section
	Score   float64
}

// Result is an ordered retrieval result: descending by score, ties broken
// by ascending section ordinal.
type Result []ScoredSection

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a session. Immutable once appended.
type Turn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}
