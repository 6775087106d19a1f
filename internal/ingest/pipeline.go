// Package ingest populates the vector index from a source document.
package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/loader"
)

// Loader turns a source path into per-page documents.
type Loader func(path string) ([]domain.Document, error)

// Pipeline composes the chunker, embedder and index into the one-time
// ingestion flow. It runs out-of-band from query serving.
type Pipeline struct {
	load      Loader
	chunker   domain.Chunker
	embedder  domain.Embedder
	index     domain.Index
	namespace string
}

// New builds an ingestion pipeline. A nil loader defaults to the PDF
// loader.
func New(load Loader, chunker domain.Chunker, embedder domain.Embedder, index domain.Index, namespace string) *Pipeline {
	if load == nil {
		load = loader.LoadPDF
	}
	return &Pipeline{
		load:      load,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		namespace: namespace,
	}
}

// Ingest loads, chunks, embeds and upserts the document at path and
// returns the number of entries written. Failure at any stage aborts the
// call; entries already upserted are not rolled back — ids are
// deterministic, so re-running overwrites instead of duplicating.
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	docs, err := p.load(path)
	if err != nil {
		return 0, err
	}

	var chunks []domain.ChunkDocument
	for _, doc := range docs {
		cs, err := p.chunker.Chunk(doc)
		if err != nil {
			return 0, err
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced from %s: %w", path, domain.ErrChunking)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedded %d of %d chunks: %w", len(vectors), len(chunks), domain.ErrPipeline)
	}

	entries := make([]domain.IndexedEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexedEntry{
			ID:       EntryID(c.Metadata.Source, i),
			Vector:   vectors[i],
			Text:     c.Text,
			Metadata: c.Metadata,
		}
	}
	if err := p.index.Upsert(ctx, entries, p.namespace); err != nil {
		return 0, err
	}
	log.Printf("ingested %s: %d pages, %d entries", path, len(docs), len(entries))
	return len(entries), nil
}

// EntryID derives a stable id from the source and chunk position, so a
// re-ingested document overwrites its previous entries.
func EntryID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, index))).String()
}
