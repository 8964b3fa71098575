package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"energy-nl-query/tsquery"
)

// ErrAnswererDisabled is returned when no OpenRouter key is configured.
var ErrAnswererDisabled = errors.New("openrouter answerer not configured")

const (
	maxDocumentContext = 2000
	answerMaxTokens    = 300
)

// Answerer asks an OpenRouter chat model to answer a question using the
// generated query and any retrieved documents.
type Answerer struct {
	apiKey  string
	model   string
	url     string
	enabled bool
	client  *http.Client
	now     func() time.Time
}

func NewAnswerer(cfg Config) *Answerer {
	a := &Answerer{
		apiKey: cfg.OpenRouterKey,
		model:  cfg.OpenRouterModel,
		url:    cfg.OpenRouterURL,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
	}
	if a.apiKey == "" {
		log.Printf("⚠️ OpenRouter disabled: OPENROUTER_API_KEY environment variable not set")
		return a
	}
	a.enabled = true
	log.Printf("✅ OpenRouter enabled with model: %s", a.model)
	return a
}

func (a *Answerer) Enabled() bool { return a != nil && a.enabled }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const answerSystemPrompt = "You are an energy grid data analyst. Explain what the time-series query computes and answer the question using the supplied documents. Be concise and say so when the documents do not contain the answer."

// Answer sends one chat completion request and returns the model's reply.
func (a *Answerer) Answer(ctx context.Context, question string, res tsquery.Result, docs []Snippet) (string, error) {
	if !a.Enabled() {
		return "", ErrAnswererDisabled
	}

	payload, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: a.buildPrompt(question, res, docs)},
		},
		Temperature: 0.3,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openrouter read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openrouter status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("openrouter decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openrouter: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	answer := strings.TrimSpace(out.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("openrouter: empty answer")
	}
	return answer, nil
}

func (a *Answerer) buildPrompt(question string, res tsquery.Result, docs []Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	fmt.Fprintf(&b, "GENERATED %s QUERY (intent %s):\n%s\n\n", strings.ToUpper(res.Language.String()), res.Intent, res.Query)
	fmt.Fprintf(&b, "TIME RANGE: %s\n\n", describeRange(res.Parameters.TimeRange, a.now()))

	if len(docs) == 0 {
		b.WriteString("DOCUMENTS: none found.\n\n")
	} else {
		parts := make([]string, len(docs))
		for i, d := range docs {
			parts[i] = fmt.Sprintf("Document: %s\n%s", d.FileName, d.Text)
		}
		docText := strings.Join(parts, "\n\n---\n\n")
		if len(docText) > maxDocumentContext {
			cut := maxDocumentContext
			for cut > 0 && !utf8.RuneStart(docText[cut]) {
				cut--
			}
			docText = docText[:cut] + "\n... (truncated)"
		}
		fmt.Fprintf(&b, "DOCUMENTS:\n%s\n\n", docText)
	}
	b.WriteString("Answer:")
	return b.String()
}

// describeRange renders a range for people, e.g.
// "2026-10-10 15:30 UTC to 2026-10-17 15:30 UTC (from 1 week ago to now)".
func describeRange(tr tsquery.TimeRange, now time.Time) string {
	const layout = "2006-01-02 15:04 MST"
	start, stop := tr.Start.UTC(), tr.Stop.UTC()
	text := start.Format(layout) + " to " + stop.Format(layout)
	if !tr.Relative {
		return text
	}
	end := "now"
	if now.Sub(stop) > time.Minute {
		end = humanize.RelTime(stop, now, "ago", "from now")
	}
	return fmt.Sprintf("%s (from %s to %s)", text, humanize.RelTime(start, now, "ago", "from now"), end)
}
