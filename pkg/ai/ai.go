// Package ai provides the language-model services the mail engine leans on:
// one-glance email summaries and query expansion for semantic search.
package ai

import "context"

// Service is implemented by each model provider. Keep it narrow so swapping
// providers stays a config change.
type Service interface {
	SummarizeEmail(ctx context.Context, emailText string) (string, error)
	GenerateSynonyms(ctx context.Context, word string) ([]string, error)
}

// New picks a provider from configuration. Only Gemini is wired today; the
// factory exists so a local model can slot in without touching callers.
func New(geminiAPIKey string) (Service, error) {
	return NewGeminiService(geminiAPIKey)
}
