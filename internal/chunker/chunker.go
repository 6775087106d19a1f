package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Splitter splits page documents into overlapping character chunks. It
// prefers paragraph breaks, then sentence ends, then whitespace, and
// falls back to a hard cut when a window contains no boundary at all.
// Stateless and deterministic: the same input always yields the same
// chunk sequence.
type Splitter struct {
	chunkSize int
	overlap   int
	namespace string
}

// New validates the chunking parameters and returns a Splitter.
func New(chunkSize, overlap int, namespace string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0: %w", domain.ErrValidation)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be >= 0 and < chunk size: %w", domain.ErrValidation)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap, namespace: namespace}, nil
}

// Chunk splits one page document into ordered ChunkDocuments carrying the
// page's provenance. A page shorter than the chunk size yields a single
// chunk; a page with no extractable text yields none.
func (s *Splitter) Chunk(doc domain.Document) ([]domain.ChunkDocument, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}
	page := doc.Page
	meta := domain.ChunkMetadata{
		Source:     doc.Source,
		FileName:   doc.FileName,
		PageNumber: &page,
		Namespace:  s.namespace,
	}
	pieces := s.split(doc.Content)
	chunks := make([]domain.ChunkDocument, 0, len(pieces))
	for _, text := range pieces {
		chunks = append(chunks, domain.ChunkDocument{Text: text, Metadata: meta})
	}
	return chunks, nil
}

// split performs the sliding cut over runes. Consecutive chunks share
// exactly s.overlap runes except when a short boundary cut leaves less
// text than the overlap, in which case the next chunk starts at the cut.
func (s *Splitter) split(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		cut := boundary(runes, start+s.chunkSize/2, end)
		out = append(out, string(runes[start:cut]))
		next := cut - s.overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return out
}

// boundary returns the cut position in (lo, hi], preferring a paragraph
// break, then a sentence end, then any whitespace. hi is the hard cut.
func boundary(runes []rune, lo, hi int) int {
	for i := hi - 1; i > lo; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := hi - 1; i > lo; i-- {
		if unicode.IsSpace(runes[i]) && isSentenceEnd(runes[i-1]) {
			return i + 1
		}
	}
	for i := hi - 1; i > lo; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return hi
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
