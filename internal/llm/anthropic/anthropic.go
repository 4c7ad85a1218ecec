package anthropic

import (
	"context"
	"encoding/base64"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Client implements llm.Completer with the Anthropic Messages API.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int
}

// New creates a client. SDK level retries are disabled; a failed call is reported as is.
func New(cfg config.AnthropicSettings) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends the attachment block followed by the prompt and concatenates the text blocks of the reply.
func (c *Client) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(attachmentBlock(att), anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return b.String(), nil
}

// attachmentBlock maps the attachment onto the content block the API expects for its type.
// Unknown types are sent as images and left for the API to reject.
func attachmentBlock(att llm.Attachment) anthropic.ContentBlockParamUnion {
	encoded := base64.StdEncoding.EncodeToString(att.Data)
	switch {
	case att.MIME == "application/pdf":
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: encoded})
	case strings.HasPrefix(att.MIME, "text/"):
		return anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: string(att.Data)})
	default:
		return anthropic.NewImageBlockBase64(att.MIME, encoded)
	}
}
