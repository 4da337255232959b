package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/sashabaranov/go-openai"
)

// Options configures the completion endpoint and sampling parameters
type Options struct {
	BaseURL     string // OpenAI-compatible API root, e.g. https://api.openai.com/v1
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Client implements domain.ChatClient against any OpenAI-compatible API
type Client struct {
	client *openai.Client
	opts   Options
	logger *slog.Logger
}

var _ domain.ChatClient = (*Client)(nil)

// NewClient creates a chat completion client
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	// Streaming replies can take a while; the caller's context bounds them
	config.HTTPClient = &http.Client{Timeout: 5 * time.Minute}

	logger.Info("initializing chat client", "model", opts.Model, "baseURL", config.BaseURL)
	return &Client{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
		logger: logger,
	}
}

func (c *Client) buildRequest(req domain.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Turns)+1)
	if req.Instruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instruction,
		})
	}
	for _, turn := range req.Turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    mapRole(turn.Role),
			Content: turn.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		TopP:        c.opts.TopP,
	}
}

func mapRole(role domain.ChatRole) string {
	switch role {
	case domain.ChatRoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.ChatRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// Complete sends the conversation and returns the whole reply
func (c *Client) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	c.logger.Debug("chat completion", "model", c.opts.Model, "turns", len(req.Turns))

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		c.logger.Error("chat completion failed", "error", err)
		return "", fmt.Errorf("%w: %w", domain.ErrChatRequestFailure, err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("chat completion returned no choices")
		return "", fmt.Errorf("%w: no choices returned", domain.ErrChatRequestFailure)
	}

	c.logger.Debug("chat completion done", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

// Stream sends the conversation and delivers the reply as it arrives
func (c *Client) Stream(ctx context.Context, req domain.ChatRequest, onChunk func(delta string)) error {
	c.logger.Debug("chat stream", "model", c.opts.Model, "turns", len(req.Turns))

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		c.logger.Error("chat stream failed to start", "error", err)
		return fmt.Errorf("%w: %w", domain.ErrChatRequestFailure, err)
	}
	defer stream.Close()

	received := 0
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			c.logger.Error("chat stream interrupted", "error", err, "chunks", received)
			return fmt.Errorf("%w: %w", domain.ErrChatRequestFailure, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			received++
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}

	if received == 0 {
		return fmt.Errorf("%w: empty reply", domain.ErrChatRequestFailure)
	}
	c.logger.Debug("chat stream done", "chunks", received)
	return nil
}
