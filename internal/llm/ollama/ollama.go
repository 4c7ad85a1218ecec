package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Client implements llm.Completer against a local Ollama server with a vision model.
type Client struct {
	api   *ollama.Client
	model string
}

// New creates a client for cfg.Host. Timeouts come from the caller's context.
func New(cfg config.OllamaSettings) (*Client, error) {
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
	}
	return &Client{api: ollama.NewClient(u, &http.Client{}), model: cfg.Model}, nil
}

// Complete runs a single generate request with the attachment as an image and joins the streamed chunks.
func (c *Client) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	var text strings.Builder
	req := &ollama.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: []ollama.ImageData{att.Data},
	}
	if err := c.api.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", err
	}
	if text.Len() == 0 {
		return "", llm.ErrEmptyResponse
	}
	return text.String(), nil
}
