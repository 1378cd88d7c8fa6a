// Package claude is an optional AI-backed suggestion source: it sends task
// titles to the Claude API and maps the inferred edges into the same
// suggestion shape the heuristic engine produces. Advisory only.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/loomplan/internal/suggest"
)

// TaskSummary is the minimal task info sent to Claude for dependency inference.
type TaskSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Discipline string `json:"discipline,omitempty"`
}

// InferredEdge is a single dependency suggested by the model.
type InferredEdge struct {
	FromTask   string  `json:"from_task"` // task that must finish first
	ToTask     string  `json:"to_task"`   // task that waits on it
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// InferenceResult holds the full response from Claude.
type InferenceResult struct {
	Edges   []InferredEdge `json:"edges"`
	Summary string         `json:"summary"`
}

// Client wraps the Anthropic SDK for Claude API calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a Claude client. apiKey defaults to ANTHROPIC_API_KEY env.
// model defaults to Claude Sonnet.
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	m := anthropic.ModelClaudeSonnet4_0
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Client{inner: inner, model: m}, nil
}

const inferDepsPrompt = `You are an expert engineering project planner. Given a list of project tasks, infer which tasks must precede which.

Rules:
- Only add an edge when there is a strong causal reason (the downstream task cannot start until the upstream one is complete).
- Prefer fewer edges — no transitive or speculative dependencies.
- Do not create cycles.
- Only use task ids from the provided list; a task cannot depend on itself.
- confidence is a number in [0, 1].

Return your answer as JSON with this exact structure:
{
  "edges": [
    {"from_task": "<task that must finish first>", "to_task": "<task that waits on it>", "confidence": 0.0, "reason": "<short explanation>"}
  ],
  "summary": "<one paragraph summary of the dependency structure>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here are the tasks:
`

// buildPrompt constructs the full prompt for dependency inference.
func buildPrompt(tasks []TaskSummary) (string, error) {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	return inferDepsPrompt + string(data), nil
}

// InferDeps calls the Claude API to infer dependency edges between tasks.
func (c *Client) InferDeps(ctx context.Context, tasks []TaskSummary) (*InferenceResult, error) {
	prompt, err := buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	resp, err := c.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(4096),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	text = stripJSONFences(text)

	var result InferenceResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}

	return &result, nil
}

// Suggestions validates the inferred edges against the known task set and
// converts them to the engine's suggestion type. Unknown ids, self-edges,
// and out-of-range confidences are dropped or clamped.
func (r *InferenceResult) Suggestions(known map[string]bool) []suggest.Suggestion {
	var out []suggest.Suggestion
	for _, e := range r.Edges {
		if !known[e.FromTask] || !known[e.ToTask] || e.FromTask == e.ToTask {
			continue
		}
		conf := e.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		if conf > 1 {
			conf = 1
		}
		reasons := []string{"ai_inference"}
		if e.Reason != "" {
			reasons = append(reasons, e.Reason)
		}
		out = append(out, suggest.Suggestion{
			FromTask:   e.FromTask,
			ToTask:     e.ToTask,
			Confidence: conf,
			Reasons:    reasons,
		})
	}
	return out
}

// stripJSONFences removes markdown code fences that Claude sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
