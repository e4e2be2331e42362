// Package llm talks to an OpenAI-compatible chat-completions API in
// streaming mode. The default endpoint is Perplexity's.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by NewClient when no API key is set.
var ErrNotConfigured = errors.New("llm: api key not configured")

// Request is one chat turn: a system prompt and the user's message.
type Request struct {
	System string
	User   string
}

// Streamer streams a completion, calling onDelta with each text increment
// in order. An error from onDelta aborts the stream and is returned.
type Streamer interface {
	Stream(ctx context.Context, req Request, onDelta func(text string) error) error
}

// Config selects the endpoint and model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the transport; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Client is a Streamer backed by go-openai.
type Client struct {
	api    *openai.Client
	model  string
	logger *slog.Logger
}

// compile-time check that *Client implements Streamer
var _ Streamer = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		api:    openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Stream opens the upstream stream and relays content deltas. It returns
// nil once the provider signals completion. Cancelling ctx closes the
// upstream connection.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("llm: opening stream: %w", err)
	}
	defer stream.Close()

	chunks := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			c.logger.Debug("upstream stream finished", slog.Int("chunks", chunks))
			return nil
		}
		if err != nil {
			return fmt.Errorf("llm: reading stream: %w", err)
		}
		chunks++

		if len(resp.Choices) == 0 {
			continue
		}
		if err := onDelta(resp.Choices[0].Delta.Content); err != nil {
			return err
		}
	}
}
