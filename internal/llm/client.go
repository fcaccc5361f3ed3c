// Package llm wraps the Anthropic Messages API behind a small interface the
// pipeline can fake in tests. Structured outputs are obtained by forcing a
// single tool call and decoding its input payload.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/newsagent/internal/logger"
)

const (
	// DefaultMaxTokens bounds every completion the pipeline requests.
	DefaultMaxTokens = 4096
)

// Tool describes a forced tool call used to obtain structured output.
type Tool struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// Generator is the completion surface the pipeline depends on.
type Generator interface {
	// Text returns the plain text completion for a system/user prompt pair.
	Text(ctx context.Context, system, user string) (string, error)
	// Structured forces the model to call tool and decodes the call's input
	// into out.
	Structured(ctx context.Context, system, user string, tool Tool, out any) error
}

// Client is the production Generator backed by the Anthropic API.
type Client struct {
	api       anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternate API host. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.api = anthropic.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(url),
			option.WithMaxRetries(0),
		)
	}
}

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = int64(n)
		}
	}
}

// NewClient builds a Client for the given model.
func NewClient(apiKey, model string, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		api:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: DefaultMaxTokens,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Text implements Generator.
func (c *Client) Text(ctx context.Context, system, user string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("text completion: %w", err)
	}

	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			return text.Text, nil
		}
	}
	return "", errors.New("text completion: response contained no text block")
}

// Structured implements Generator. The tool choice forces exactly one call to
// tool; its JSON input is decoded into out.
func (c *Client) Structured(ctx context.Context, system, user string, tool Tool, out any) error {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.Properties,
					Required:   tool.Required,
				},
			},
		}},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: tool.Name},
		},
	})
	if err != nil {
		return fmt.Errorf("structured completion %s: %w", tool.Name, err)
	}

	for _, block := range msg.Content {
		variant, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		if decodeErr := json.Unmarshal([]byte(variant.JSON.Input.Raw()), out); decodeErr != nil {
			return fmt.Errorf("decode %s payload: %w", tool.Name, decodeErr)
		}
		return nil
	}
	return fmt.Errorf("structured completion %s: response contained no tool call", tool.Name)
}
