package corpus

import (
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"os"
	"strings"

	"coach/internal/domain"
)

// Indexer parses a heading-delimited guidance document into an ordered corpus.
type Indexer struct {
	logger *slog.Logger
}

// NewIndexer creates a corpus indexer. A nil logger uses slog.Default().
func NewIndexer(logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{logger: logger}
}

// LoadFile reads and parses a corpus document from path.
func (ix *Indexer) LoadFile(path string) (domain.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ix.Parse(string(data)), nil
}

// Parse splits raw text on top-level heading markers into sections.
// The heading line supplies the title; the body is every line until the next
// heading or end of input. Sections with empty titles are skipped with a
// warning. A document with no headings yields an empty corpus.
func (ix *Indexer) Parse(raw string) domain.Corpus {
	var (
		sections domain.Corpus
		title    string
		body     []string
		open     bool
	)

	flush := func() {
		if !open {
			return
		}
		sections = append(sections, newSection(len(sections), title, strings.Join(body, "\n")))
		title, body, open = "", nil, false
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if heading == "" {
				ix.logger.Warn("skipping malformed section heading with empty title")
				continue
			}
			title = heading
			open = true
			continue
		}
		if open {
			body = append(body, trimmed)
		}
		// Text before the first heading carries no topic and is dropped.
	}
	flush()

	return sections
}

func newSection(ordinal int, title, body string) domain.Section {
	body = strings.Trim(body, "\n")
	if strings.TrimSpace(body) == "" {
		// Whitespace-only bodies are kept: the bare title still signals
		// topic presence.
		body = ""
	}
	return domain.Section{
		Ordinal:     ordinal,
		Title:       title,
		Body:        body,
		ContentHash: hashContent(title, body),
	}
}

func hashContent(title, body string) string {
	h := sha1.Sum([]byte(title + "\n" + body))
	return hex.EncodeToString(h[:])
}
