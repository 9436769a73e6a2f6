// Package answer adapts an OpenAI-compatible LLM endpoint as the external
// fallback answerer. The engine decides when to call it; this package only
// formats the request and returns the text.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/kestrelworks/steptrace/internal/belief"
)

// #region config

// Config holds the answerer endpoint parameters.
type Config struct {
	BaseURL     string  // OpenAI-compatible endpoint, default upstream OpenAI
	Model       string  // default "gpt-4o-mini"
	APIKey      string  // required by the client; local endpoints accept any value
	MaxTokens   int     // default 256
	Temperature float64 // default 0.2
}

// DefaultConfig returns the documented answerer defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   256,
		Temperature: 0.2,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = def.Temperature
	}
}

// #endregion config

// #region answerer

// Answerer calls the LLM endpoint for questions the template responder
// cannot or should not answer.
type Answerer struct {
	llm *openai.LLM
	cfg Config
}

// New creates an Answerer against the configured endpoint.
func New(cfg Config) (*Answerer, error) {
	cfg.applyDefaults()

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("answer: init llm client: %w", err)
	}
	return &Answerer{llm: llm, cfg: cfg}, nil
}

// Answer sends the question, with the current belief as context when one
// exists, and returns the model's text. The caller owns the timeout.
func (a *Answerer) Answer(ctx context.Context, queryText string, rec *belief.Record) (string, error) {
	prompt := buildPrompt(queryText, rec)
	text, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt,
		llms.WithMaxTokens(a.cfg.MaxTokens),
		llms.WithTemperature(a.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("answer: generate: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// #endregion answerer

// #region prompt

// buildPrompt frames the question for an assistant that helps someone work
// through a physical multi-step task.
func buildPrompt(queryText string, rec *belief.Record) string {
	var b strings.Builder
	b.WriteString("You assist a person performing a multi-step physical task, ")
	b.WriteString("observed through a camera. Answer briefly and concretely.\n")
	if rec != nil {
		fmt.Fprintf(&b, "\nTracked state: task %q, step %d", rec.TaskID, rec.StepIndex)
		if rec.Title != "" {
			fmt.Fprintf(&b, " (%s)", rec.Title)
		}
		fmt.Fprintf(&b, ", match confidence %s.\n", rec.Level)
	} else {
		b.WriteString("\nTracked state: none yet.\n")
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", queryText)
	return b.String()
}

// #endregion prompt
