package chain

import "strings"

// Prompt templates with named placeholders. The QA instruction keeps the
// model grounded in the retrieved context; that is prompt-level policy,
// not an enforced runtime constraint.
const (
	standaloneQuestionTemplate = `Given the following conversation and a follow-up question, rephrase the follow-up so it can be understood by itself.
Chat history:
{chat_history}
Follow-up question: {question}
Standalone question:`

	qaTemplate = `You are a helpful assistant. Use the following context to answer the user's question.
If you don't know the answer, say you don't know.
Context:
{context}

Question: {question}
Helpful answer:`
)

// renderPrompt substitutes {name} placeholders. The templates are flat
// strings with no logic, so a replacer is all they need.
func renderPrompt(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
