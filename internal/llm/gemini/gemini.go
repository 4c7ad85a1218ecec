package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

// Client implements llm.Completer with the Gemini generateContent API.
type Client struct {
	genai *genai.Client
	model string
}

// New creates a Gemini API client. The context is only used for client construction.
func New(ctx context.Context, cfg config.GeminiSettings) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{genai: gc, model: cfg.Model}, nil
}

// Complete sends the prompt followed by the raw attachment bytes as an inline part.
func (c *Client) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	mimeType := att.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(att.Data, mimeType),
		}, genai.RoleUser),
	}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", llm.ErrEmptyResponse
	}
	text := resp.Text()
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}
