// Package chain orchestrates the conversational answering pipeline:
// condense the question, retrieve context, stream the generated answer
// and derive source attributions.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

// Request is one conversational query. History may arrive structured
// (Turns) or preformatted (HistoryText); when both are set the
// preformatted text wins.
type Request struct {
	Question    string
	Turns       []domain.ConversationTurn
	HistoryText string
}

// Token is one answer fragment, delivered in production order.
type Token struct {
	Content string
}

// Result is the terminal outcome of a run: either Err is set, or Answer
// holds the full generated text and Sources the attribution list.
// Exactly one Result is delivered, after the token channel closes.
type Result struct {
	Answer  string
	Sources []domain.SourceRef
	Err     error
}

// Chain ties the condenser, retriever and streaming LLM into one
// request-scoped pipeline.
type Chain struct {
	condenser        *Condenser
	retriever        *Retriever
	llm              domain.LLM
	maxSources       int
	condenseFallback bool
}

// Config configures chain policy.
type Config struct {
	// MaxSources caps the attribution list; defaults to 4.
	MaxSources int
	// CondenseFallback degrades a failed condensation to the raw
	// question instead of failing the request. The fallback is logged.
	CondenseFallback bool
}

// New assembles a chain.
func New(condenser *Condenser, retriever *Retriever, llm domain.LLM, cfg Config) *Chain {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = 4
	}
	return &Chain{
		condenser:        condenser,
		retriever:        retriever,
		llm:              llm,
		maxSources:       cfg.MaxSources,
		condenseFallback: cfg.CondenseFallback,
	}
}

// Run validates the request and starts the pipeline. A blank question is
// rejected before any external call. Tokens arrive on the first channel
// in production order; the second channel delivers exactly one Result
// after the token channel closes. Cancelling ctx abandons in-flight
// model calls.
func (c *Chain) Run(ctx context.Context, req Request) (<-chan Token, <-chan Result, error) {
	question := Sanitize(req.Question)
	if question == "" {
		return nil, nil, fmt.Errorf("question must not be empty: %w", domain.ErrValidation)
	}
	tokens := make(chan Token)
	results := make(chan Result, 1)
	go c.run(ctx, question, historyText(req), tokens, results)
	return tokens, results, nil
}

func historyText(req Request) string {
	if req.HistoryText != "" {
		return req.HistoryText
	}
	return FormatHistory(req.Turns)
}

// run walks Condensing -> Retrieving -> Generating. Any stage error
// closes the token channel and delivers a failed Result; no state leaves
// failure.
func (c *Chain) run(ctx context.Context, question, history string, tokens chan<- Token, results chan<- Result) {
	fail := func(err error) {
		close(tokens)
		results <- Result{Err: err}
	}

	// Condensing.
	standalone, err := c.condenser.Condense(ctx, history, question)
	if err != nil {
		if c.condenseFallback && errors.Is(err, domain.ErrCondense) {
			log.Printf("condensation failed, falling back to raw question: %v", err)
			standalone = question
		} else {
			fail(err)
			return
		}
	}

	// Retrieving. An empty result set is valid and still reaches
	// generation; the prompt tells the model to admit not knowing.
	chunks, err := c.retriever.Retrieve(ctx, standalone)
	if err != nil {
		fail(err)
		return
	}

	// Generating.
	prompt := renderPrompt(qaTemplate, map[string]string{
		"context":  contextText(chunks),
		"question": standalone,
	})
	stream, err := c.llm.Stream(ctx, prompt)
	if err != nil {
		fail(err)
		return
	}

	var answer strings.Builder
	for tok := range stream {
		if tok.Err != nil {
			fail(tok.Err)
			return
		}
		if tok.Done {
			break
		}
		answer.WriteString(tok.Content)
		select {
		case tokens <- Token{Content: tok.Content}:
		case <-ctx.Done():
			fail(ctx.Err())
			return
		}
	}

	close(tokens)
	results <- Result{
		Answer:  answer.String(),
		Sources: buildSources(chunks, c.maxSources),
	}
}

func contextText(chunks []domain.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

// buildSources derives the attribution list from at most max retrieved
// chunks, in retrieval order, ids 1..N. The provenance fallback chain is
// source, then file name, then "pdf"; pages fall back from page to the
// loader's page number, else null.
func buildSources(chunks []domain.RetrievedChunk, max int) []domain.SourceRef {
	if len(chunks) > max {
		chunks = chunks[:max]
	}
	refs := make([]domain.SourceRef, 0, len(chunks))
	for i, c := range chunks {
		source := c.Metadata.Source
		if source == "" {
			source = c.Metadata.FileName
		}
		if source == "" {
			source = "pdf"
		}
		page := c.Metadata.Page
		if page == nil {
			page = c.Metadata.PageNumber
		}
		var namespace *string
		if c.Metadata.Namespace != "" {
			ns := c.Metadata.Namespace
			namespace = &ns
		}
		refs = append(refs, domain.SourceRef{
			ID:      i + 1,
			Snippet: c.Text,
			Meta: domain.SourceMeta{
				Source:    source,
				Page:      page,
				Namespace: namespace,
			},
		})
	}
	return refs
}
