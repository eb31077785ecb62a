// Package anthropic adapts the Anthropic Messages API to the model
// client used by the dimension extractor's AI fallback.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Config controls the Claude-backed model client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-3-5-haiku-latest"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 64
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	return c
}

// Client calls the Anthropic Messages API with a single user prompt and
// returns the model's text reply.
type Client struct {
	api    anthropic.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a Claude client. The API key is required.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic client: api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	api := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)
	return &Client{api: api, cfg: cfg, logger: logger}, nil
}

// Complete sends the prompt as a single user message and concatenates
// the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages call: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return "", fmt.Errorf("anthropic messages call: empty reply")
	}

	c.logger.Debug("model reply received",
		zap.String("model", c.cfg.Model),
		zap.Duration("duration", time.Since(start)),
	)
	return reply.String(), nil
}
