package chain

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/domain"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Sanitize trims a question and collapses internal whitespace.
func Sanitize(question string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(question), " ")
}

// FormatHistory serializes turns as alternating Human:/Assistant: lines,
// chronological.
func FormatHistory(turns []domain.ConversationTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		speaker := "Assistant"
		if t.Role == domain.RoleUser {
			speaker = "Human"
		}
		lines = append(lines, speaker+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// Condenser rephrases a follow-up question into a standalone one usable
// as a retrieval query.
type Condenser struct {
	llm domain.LLM
}

// NewCondenser builds a condenser over a non-streaming LLM.
func NewCondenser(llm domain.LLM) *Condenser {
	return &Condenser{llm: llm}
}

// Condense returns the standalone form of question given the serialized
// history. An empty history short-circuits to the sanitized question
// without a model call.
func (c *Condenser) Condense(ctx context.Context, history, question string) (string, error) {
	q := Sanitize(question)
	if strings.TrimSpace(history) == "" {
		return q, nil
	}
	prompt := renderPrompt(standaloneQuestionTemplate, map[string]string{
		"chat_history": history,
		"question":     q,
	})
	out, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("condense: %v: %w", err, domain.ErrCondense)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("condense returned empty text: %w", domain.ErrCondense)
	}
	return out, nil
}
