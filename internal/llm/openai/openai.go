package openai

import (
	"context"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Client implements llm.Completer with the OpenAI chat completions API.
type Client struct {
	api       *goopenai.Client
	model     string
	maxTokens int
}

// New creates a client; BaseURL may point at any OpenAI-compatible gateway.
func New(cfg config.OpenAISettings) *Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		oc.BaseURL = base
	}
	return &Client{
		api:       goopenai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends the prompt and the attachment as one multi-part user message.
func (c *Client) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{
					Type: goopenai.ChatMessagePartTypeText,
					Text: prompt,
				},
				{
					Type: goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{
						URL:    att.DataURL(),
						Detail: goopenai.ImageURLDetailAuto,
					},
				},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
