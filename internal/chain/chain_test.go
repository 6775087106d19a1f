package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// fakeLLM records prompts and plays back canned outputs.
type fakeLLM struct {
	completeOut     string
	completeErr     error
	completePrompts []string

	streamTokens  []string
	streamErr     error // emitted mid-stream, after streamTokens
	streamOpenErr error // returned by Stream itself
	streamPrompts []string
}

func (f *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	f.completePrompts = append(f.completePrompts, prompt)
	return f.completeOut, f.completeErr
}

func (f *fakeLLM) Stream(_ context.Context, prompt string) (<-chan domain.StreamToken, error) {
	f.streamPrompts = append(f.streamPrompts, prompt)
	if f.streamOpenErr != nil {
		return nil, f.streamOpenErr
	}
	ch := make(chan domain.StreamToken)
	go func() {
		defer close(ch)
		for _, tok := range f.streamTokens {
			ch <- domain.StreamToken{Content: tok}
		}
		if f.streamErr != nil {
			ch <- domain.StreamToken{Err: f.streamErr}
			return
		}
		ch <- domain.StreamToken{Done: true}
	}()
	return ch, nil
}

// fakeEmbedder returns a fixed vector and records inputs.
type fakeEmbedder struct {
	err    error
	inputs []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.inputs = append(f.inputs, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

// fakeIndex returns canned chunks and records queries.
type fakeIndex struct {
	chunks  []domain.RetrievedChunk
	err     error
	queries int
}

func (f *fakeIndex) Upsert(context.Context, []domain.IndexedEntry, string) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ []float64, k int, _ string) ([]domain.RetrievedChunk, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func testChunks(n int) []domain.RetrievedChunk {
	chunks := make([]domain.RetrievedChunk, n)
	for i := range chunks {
		page := i + 1
		chunks[i] = domain.RetrievedChunk{
			Text: fmt.Sprintf("chunk %d", i),
			Metadata: domain.ChunkMetadata{
				Source:     "docs/manual.pdf",
				FileName:   "manual.pdf",
				PageNumber: &page,
				Namespace:  "default",
			},
			Rank:  i,
			Score: 1 - float64(i)/10,
		}
	}
	return chunks
}

func newTestChain(llm *fakeLLM, emb *fakeEmbedder, idx *fakeIndex) *Chain {
	return New(NewCondenser(llm), NewRetriever(emb, idx, "default", 6), llm, Config{})
}

// collect drains a run into its tokens and terminal result.
func collect(t *testing.T, tokens <-chan Token, results <-chan Result) ([]string, Result) {
	t.Helper()
	var got []string
	for tok := range tokens {
		got = append(got, tok.Content)
	}
	select {
	case res := <-results:
		return got, res
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
		return nil, Result{}
	}
}

func TestRun(t *testing.T) {
	t.Run("empty history question is used verbatim", func(t *testing.T) {
		llm := &fakeLLM{streamTokens: []string{"The refund ", "policy is 30 days."}}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{chunks: testChunks(6)}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{Question: "What is the refund policy?"})
		require.NoError(t, err)
		got, res := collect(t, tokens, results)

		require.NoError(t, res.Err)
		assert.Equal(t, []string{"The refund ", "policy is 30 days."}, got)
		assert.Equal(t, "The refund policy is 30 days.", res.Answer)
		// No condensation call; the question goes straight to retrieval.
		assert.Empty(t, llm.completePrompts)
		assert.Equal(t, []string{"What is the refund policy?"}, emb.inputs)
		// Six chunks retrieved, at most four attributed.
		require.Len(t, res.Sources, 4)
		for i, s := range res.Sources {
			assert.Equal(t, i+1, s.ID)
			assert.Equal(t, "docs/manual.pdf", s.Meta.Source)
			require.NotNil(t, s.Meta.Page)
			assert.Equal(t, i+1, *s.Meta.Page)
		}
	})

	t.Run("follow-up is condensed before retrieval", func(t *testing.T) {
		llm := &fakeLLM{
			completeOut:  "What is the warranty period for parts?",
			streamTokens: []string{"Parts are covered for 12 months."},
		}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{chunks: testChunks(2)}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{
			Question: "And for parts?",
			Turns: []domain.ConversationTurn{
				{Role: domain.RoleUser, Content: "What's the warranty?"},
				{Role: domain.RoleAssistant, Content: "12 months."},
			},
		})
		require.NoError(t, err)
		_, res := collect(t, tokens, results)

		require.NoError(t, res.Err)
		require.Len(t, llm.completePrompts, 1)
		assert.Contains(t, llm.completePrompts[0], "Human: What's the warranty?")
		assert.Contains(t, llm.completePrompts[0], "Assistant: 12 months.")
		// Retrieval and generation both use the standalone question.
		assert.Equal(t, []string{"What is the warranty period for parts?"}, emb.inputs)
		require.Len(t, llm.streamPrompts, 1)
		assert.Contains(t, llm.streamPrompts[0], "Question: What is the warranty period for parts?")
		assert.Contains(t, llm.streamPrompts[0], "chunk 0")
	})

	t.Run("preformatted history string is honored", func(t *testing.T) {
		llm := &fakeLLM{completeOut: "standalone", streamTokens: []string{"ok"}}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{
			Question:    "And for parts?",
			HistoryText: "Human: hi\nAssistant: hello",
		})
		require.NoError(t, err)
		_, res := collect(t, tokens, results)
		require.NoError(t, res.Err)
		require.Len(t, llm.completePrompts, 1)
		assert.Contains(t, llm.completePrompts[0], "Human: hi\nAssistant: hello")
	})

	t.Run("blank question rejected before any external call", func(t *testing.T) {
		llm := &fakeLLM{}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{}
		c := newTestChain(llm, emb, idx)

		_, _, err := c.Run(context.Background(), Request{Question: "   \n "})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, llm.completePrompts)
		assert.Empty(t, llm.streamPrompts)
		assert.Empty(t, emb.inputs)
		assert.Zero(t, idx.queries)
	})

	t.Run("zero retrieved chunks still generates and completes", func(t *testing.T) {
		llm := &fakeLLM{streamTokens: []string{"I don't know."}}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{chunks: nil}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{Question: "Anything?"})
		require.NoError(t, err)
		got, res := collect(t, tokens, results)

		require.NoError(t, res.Err)
		assert.Equal(t, []string{"I don't know."}, got)
		require.NotNil(t, res.Sources)
		assert.Empty(t, res.Sources)
	})

	t.Run("retrieval failure emits no tokens", func(t *testing.T) {
		llm := &fakeLLM{streamTokens: []string{"never"}}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{err: fmt.Errorf("down: %w", domain.ErrIndexQuery)}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{Question: "Anything?"})
		require.NoError(t, err)
		got, res := collect(t, tokens, results)

		assert.Empty(t, got)
		require.ErrorIs(t, res.Err, domain.ErrIndexQuery)
		assert.Empty(t, llm.streamPrompts)
	})

	t.Run("generation failure after tokens fails the run", func(t *testing.T) {
		llm := &fakeLLM{
			streamTokens: []string{"partial ", "answer"},
			streamErr:    fmt.Errorf("cut off: %w", domain.ErrGeneration),
		}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{chunks: testChunks(2)}
		c := newTestChain(llm, emb, idx)

		tokens, results, err := c.Run(context.Background(), Request{Question: "Anything?"})
		require.NoError(t, err)
		got, res := collect(t, tokens, results)

		assert.Equal(t, []string{"partial ", "answer"}, got)
		require.ErrorIs(t, res.Err, domain.ErrGeneration)
		assert.Nil(t, res.Sources)
	})

	t.Run("condense failure falls back to the raw question when enabled", func(t *testing.T) {
		llm := &fakeLLM{
			completeErr:  errors.New("llm down"),
			streamTokens: []string{"ok"},
		}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{chunks: testChunks(1)}
		c := New(NewCondenser(llm), NewRetriever(emb, idx, "default", 6), llm, Config{CondenseFallback: true})

		tokens, results, err := c.Run(context.Background(), Request{
			Question:    "And for parts?",
			HistoryText: "Human: hi",
		})
		require.NoError(t, err)
		_, res := collect(t, tokens, results)

		require.NoError(t, res.Err)
		assert.Equal(t, []string{"And for parts?"}, emb.inputs)
	})

	t.Run("condense failure propagates when fallback disabled", func(t *testing.T) {
		llm := &fakeLLM{completeErr: errors.New("llm down")}
		emb := &fakeEmbedder{}
		idx := &fakeIndex{}
		c := New(NewCondenser(llm), NewRetriever(emb, idx, "default", 6), llm, Config{CondenseFallback: false})

		tokens, results, err := c.Run(context.Background(), Request{
			Question:    "And for parts?",
			HistoryText: "Human: hi",
		})
		require.NoError(t, err)
		got, res := collect(t, tokens, results)

		assert.Empty(t, got)
		require.ErrorIs(t, res.Err, domain.ErrCondense)
		assert.Empty(t, emb.inputs)
	})
}

func TestBuildSources(t *testing.T) {
	t.Run("fallback chain for provenance", func(t *testing.T) {
		page := 7
		chunks := []domain.RetrievedChunk{
			{Text: "a", Metadata: domain.ChunkMetadata{Source: "manual.pdf", Page: &page}},
			{Text: "b", Metadata: domain.ChunkMetadata{FileName: "manual.pdf", PageNumber: &page}},
			{Text: "c", Metadata: domain.ChunkMetadata{}},
		}
		refs := buildSources(chunks, 4)
		require.Len(t, refs, 3)

		assert.Equal(t, "manual.pdf", refs[0].Meta.Source)
		require.NotNil(t, refs[0].Meta.Page)
		assert.Equal(t, 7, *refs[0].Meta.Page)

		assert.Equal(t, "manual.pdf", refs[1].Meta.Source)
		require.NotNil(t, refs[1].Meta.Page)

		assert.Equal(t, "pdf", refs[2].Meta.Source)
		assert.Nil(t, refs[2].Meta.Page)
		assert.Nil(t, refs[2].Meta.Namespace)
	})

	t.Run("ids are 1..N in retrieval order", func(t *testing.T) {
		refs := buildSources(testChunks(6), 4)
		require.Len(t, refs, 4)
		for i, r := range refs {
			assert.Equal(t, i+1, r.ID)
			assert.Equal(t, fmt.Sprintf("chunk %d", i), r.Snippet)
		}
	})

	t.Run("empty input yields empty non-nil list", func(t *testing.T) {
		refs := buildSources(nil, 4)
		require.NotNil(t, refs)
		assert.Empty(t, refs)
	})
}

func TestContextText(t *testing.T) {
	chunks := testChunks(2)
	text := contextText(chunks)
	assert.Equal(t, "chunk 0\n\nchunk 1", text)
	assert.Equal(t, 2, strings.Count(text, "chunk"))
}
