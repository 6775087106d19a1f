package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// fakeChunker splits on blank lines, one chunk per paragraph.
type fakeChunker struct{ err error }

func (f *fakeChunker) Chunk(doc domain.Document) ([]domain.ChunkDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	var chunks []domain.ChunkDocument
	for _, part := range strings.Split(doc.Content, "\n\n") {
		if part == "" {
			continue
		}
		page := doc.Page
		chunks = append(chunks, domain.ChunkDocument{
			Text: part,
			Metadata: domain.ChunkMetadata{
				Source:     doc.Source,
				FileName:   doc.FileName,
				PageNumber: &page,
			},
		})
	}
	return chunks, nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeIndex struct {
	err       error
	entries   []domain.IndexedEntry
	namespace string
}

func (f *fakeIndex) Upsert(_ context.Context, entries []domain.IndexedEntry, namespace string) error {
	f.entries = append(f.entries, entries...)
	f.namespace = namespace
	return f.err
}

func (f *fakeIndex) Query(context.Context, []float64, int, string) ([]domain.RetrievedChunk, error) {
	return nil, nil
}

func twoPageLoader(path string) ([]domain.Document, error) {
	return []domain.Document{
		{Source: path, FileName: "manual.pdf", Page: 1, Content: "intro text\n\nwarranty terms"},
		{Source: path, FileName: "manual.pdf", Page: 2, Content: "refund policy"},
	}, nil
}

func TestIngest(t *testing.T) {
	t.Run("writes one entry per chunk", func(t *testing.T) {
		idx := &fakeIndex{}
		p := New(twoPageLoader, &fakeChunker{}, &fakeEmbedder{}, idx, "default")

		count, err := p.Ingest(context.Background(), "docs/manual.pdf")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		require.Len(t, idx.entries, 3)
		assert.Equal(t, "default", idx.namespace)

		assert.Equal(t, "intro text", idx.entries[0].Text)
		assert.Equal(t, "refund policy", idx.entries[2].Text)
		assert.Equal(t, []float64{2, 1}, idx.entries[2].Vector)
		assert.Equal(t, "docs/manual.pdf", idx.entries[0].Metadata.Source)
		require.NotNil(t, idx.entries[2].Metadata.PageNumber)
		assert.Equal(t, 2, *idx.entries[2].Metadata.PageNumber)
	})

	t.Run("ids are stable across runs", func(t *testing.T) {
		first := &fakeIndex{}
		p := New(twoPageLoader, &fakeChunker{}, &fakeEmbedder{}, first, "default")
		_, err := p.Ingest(context.Background(), "docs/manual.pdf")
		require.NoError(t, err)

		second := &fakeIndex{}
		p2 := New(twoPageLoader, &fakeChunker{}, &fakeEmbedder{}, second, "default")
		_, err = p2.Ingest(context.Background(), "docs/manual.pdf")
		require.NoError(t, err)

		require.Len(t, second.entries, len(first.entries))
		for i := range first.entries {
			assert.Equal(t, first.entries[i].ID, second.entries[i].ID)
		}
		// Distinct positions never collide.
		assert.NotEqual(t, first.entries[0].ID, first.entries[1].ID)
	})

	t.Run("loader failure aborts", func(t *testing.T) {
		loadErr := errors.New("no such file")
		load := func(string) ([]domain.Document, error) { return nil, loadErr }
		emb := &fakeEmbedder{}
		p := New(load, &fakeChunker{}, emb, &fakeIndex{}, "default")

		_, err := p.Ingest(context.Background(), "missing.pdf")
		require.ErrorIs(t, err, loadErr)
		assert.Zero(t, emb.calls)
	})

	t.Run("empty document is a chunking failure", func(t *testing.T) {
		load := func(path string) ([]domain.Document, error) {
			return []domain.Document{{Source: path, Page: 1, Content: ""}}, nil
		}
		p := New(load, &fakeChunker{}, &fakeEmbedder{}, &fakeIndex{}, "default")

		_, err := p.Ingest(context.Background(), "empty.pdf")
		require.ErrorIs(t, err, domain.ErrChunking)
	})

	t.Run("embedding failure aborts before upsert", func(t *testing.T) {
		idx := &fakeIndex{}
		emb := &fakeEmbedder{err: fmt.Errorf("quota: %w", domain.ErrEmbedding)}
		p := New(twoPageLoader, &fakeChunker{}, emb, idx, "default")

		_, err := p.Ingest(context.Background(), "docs/manual.pdf")
		require.ErrorIs(t, err, domain.ErrEmbedding)
		assert.Empty(t, idx.entries)
	})

	t.Run("upsert failure surfaces", func(t *testing.T) {
		idx := &fakeIndex{err: fmt.Errorf("down: %w", domain.ErrIndexWrite)}
		p := New(twoPageLoader, &fakeChunker{}, &fakeEmbedder{}, idx, "default")

		_, err := p.Ingest(context.Background(), "docs/manual.pdf")
		require.ErrorIs(t, err, domain.ErrIndexWrite)
	})
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, EntryID("a.pdf", 0), EntryID("a.pdf", 0))
	assert.NotEqual(t, EntryID("a.pdf", 0), EntryID("a.pdf", 1))
	assert.NotEqual(t, EntryID("a.pdf", 0), EntryID("b.pdf", 0))
}
