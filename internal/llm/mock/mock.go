package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

var (
	_ llm.Completer = (*Client)(nil)
	_ llm.Completer = (*Recorder)(nil)
)

// Client is an offline llm.Completer that describes the attachment instead of reading it.
type Client struct {
	delay  time.Duration
	prefix string
}

// New creates a mock client.
func New(cfg config.MockSettings) *Client {
	return &Client{delay: cfg.Delay, prefix: cfg.Prefix}
}

// Complete waits for the configured delay and returns a small Markdown document.
func (c *Client) Complete(ctx context.Context, _ string, att llm.Attachment) (string, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("# %s\n\n`%s` (%s, %d bytes)\n", c.prefix, att.Name, att.MIME, len(att.Data)), nil
}

// Call is one request seen by a Recorder.
type Call struct {
	Prompt     string
	Attachment llm.Attachment
}

// Recorder is a test double that captures every call and answers with Response or Err.
// When Fn is set it decides the answer instead.
type Recorder struct {
	Response string
	Err      error
	Fn       func(ctx context.Context, prompt string, att llm.Attachment) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Complete(ctx context.Context, prompt string, att llm.Attachment) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Prompt: prompt, Attachment: att})
	r.mu.Unlock()
	if r.Fn != nil {
		return r.Fn(ctx, prompt, att)
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Response, nil
}

// Calls returns a copy of the captured calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}
