package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const geminiGenerateURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"

// GeminiService calls the Gemini REST API directly. The official SDK pulls a
// large dependency tree for what is a single generateContent endpoint.
type GeminiService struct {
	apiKey string
	client *http.Client
}

func NewGeminiService(apiKey string) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	return &GeminiService{apiKey: apiKey, client: &http.Client{}}, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// SummarizeEmail produces a two-line summary: the gist, then an action item
// or deadline when the email carries one.
func (g *GeminiService) SummarizeEmail(ctx context.Context, emailText string) (string, error) {
	prompt := fmt.Sprintf(`You are an email triage assistant. Summarize the email below so the reader can decide what to do without opening it.

RULES:
- Line 1: the main point, one short sentence.
- Line 2 (only if relevant): "Action: ..." or "Deadline: ...".
- For promotional or automated mail, reply only "Promotion from [sender]".
- At most 2 lines.

EMAIL:
%s

SUMMARY:`, emailText)

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// GenerateSynonyms expands a search term into related concepts for semantic
// retrieval. Results come back as a JSON array the model is told to emit.
func (g *GeminiService) GenerateSynonyms(ctx context.Context, word string) ([]string, error) {
	prompt := fmt.Sprintf(`List related concepts, concrete examples, and domain terms for the keyword %q in the context of work email. The goal is search expansion: terms need not be strict synonyms, only closely related in meaning.

Example: "money" -> ["invoice", "salary", "payment", "transaction", "billing", "cost"]

Requirements:
1. Reply with a JSON array of strings and nothing else.
2. At most 15 terms, most relevant first.`, word)

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	// Models often wrap JSON in a markdown fence despite the instruction.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in synonym response")
	}

	var synonyms []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &synonyms); err != nil {
		return nil, fmt.Errorf("failed to parse synonym response: %w", err)
	}

	out := synonyms[:0]
	for _, s := range synonyms {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (g *GeminiService) generate(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, geminiGenerateURL+"?key="+g.apiKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
