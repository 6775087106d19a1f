package domain

import "context"

// Conversation roles for chat history turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single message in a chat history. Order within a
// history slice is chronological and meaningful.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Document is one page of text extracted from a source PDF.
type Document struct {
	Source   string
	FileName string
	Page     int
	Content  string
}

// ChunkMetadata carries provenance for a chunk. Source and FileName may
// both be set; consumers fall back Source -> FileName -> "pdf". Page and
// PageNumber mirror the two places page provenance can live, with Page
// taking precedence.
type ChunkMetadata struct {
	Source     string `json:"source,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	Page       *int   `json:"page,omitempty"`
	PageNumber *int   `json:"pageNumber,omitempty"`
	Namespace  string `json:"namespace,omitempty"`
}

// ChunkDocument is a bounded-length text segment produced by the chunker,
// the unit of embedding and indexing.
type ChunkDocument struct {
	Text     string
	Metadata ChunkMetadata
}

// IndexedEntry is a chunk with its embedding, stored in the external
// vector index. IDs are deterministic so re-ingestion overwrites.
type IndexedEntry struct {
	ID       string
	Vector   []float64
	Text     string
	Metadata ChunkMetadata
}

// RetrievedChunk is one similarity-search hit. Rank 0 is most relevant
// and scores are non-increasing across a result slice.
type RetrievedChunk struct {
	Text     string
	Metadata ChunkMetadata
	Rank     int
	Score    float64
}

// SourceMeta is the provenance block of a SourceRef. Page and Namespace
// serialize as null when absent, matching the wire contract.
type SourceMeta struct {
	Source    string  `json:"source"`
	Page      *int    `json:"page"`
	Namespace *string `json:"namespace"`
}

// SourceRef identifies a passage the answer was grounded on. IDs are
// 1-based and stable within one response.
type SourceRef struct {
	ID      int        `json:"id"`
	Snippet string     `json:"snippet"`
	Meta    SourceMeta `json:"meta"`
}

// StreamToken is a single fragment of a streaming LLM response. Exactly
// one terminal token is delivered: Done on clean completion, Err on
// failure, never both.
type StreamToken struct {
	Content string
	Done    bool
	Err     error
}

// Embedder converts texts into fixed-dimension vectors, one per input,
// order-preserving.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// Chunker splits a page document into overlapping chunks.
type Chunker interface {
	Chunk(document Document) ([]ChunkDocument, error)
}

// Index persists embeddings and supports similarity search against the
// external vector index.
type Index interface {
	Upsert(ctx context.Context, entries []IndexedEntry, namespace string) error
	Query(ctx context.Context, vector []float64, k int, namespace string) ([]RetrievedChunk, error)
}

// LLM is a chat model supporting both one-shot and streaming completion.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string) (<-chan StreamToken, error)
}
