// Package summary produces a short post-run digest of step logs with a
// Gemini model. It is strictly best-effort: the runner ignores failures
// here, and nothing in the run's lifecycle depends on it.
package summary

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	genai "google.golang.org/genai"
)

const prompt = "You are reviewing the logs of an automation run. " +
	"Summarize in at most five sentences what the run did, whether it " +
	"succeeded, and the likely cause of any failure. Plain text only."

// Gemini summarizes run logs through the genai API.
type Gemini struct {
	cli   *genai.Client
	model string
}

// New builds a summarizer. apiKey may be empty, in which case the genai
// client falls back to its own environment lookup.
func New(ctx context.Context, apiKey, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init genai client")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Summarize(ctx context.Context, workflow, status, logs string) (string, error) {
	full := fmt.Sprintf("%s\n\nWorkflow: %s\nStatus: %s\n\n[LOGS]\n%s", prompt, workflow, status, logs)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty model response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
