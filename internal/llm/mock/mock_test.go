package mock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
)

func TestMockLLM_Complete(t *testing.T) {
	cfg := config.MockSettings{
		Delay:  0,
		Prefix: "MockPrefix",
	}
	c := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	md, err := c.Complete(ctx, "prompt", llm.Attachment{Name: "scan.png", MIME: "image/png", Data: []byte("fakeimagedata")})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if !strings.HasPrefix(md, "# MockPrefix") {
		t.Fatalf("Complete missing prefix heading, got: %q", md)
	}
	if !strings.Contains(md, "image/png") || !strings.Contains(md, "scan.png") {
		t.Fatalf("Complete missing attachment info, got: %q", md)
	}
}

func TestMockLLM_RespectsContextCancel(t *testing.T) {
	cfg := config.MockSettings{
		Delay:  200 * time.Millisecond,
		Prefix: "x",
	}
	c := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := c.Complete(ctx, "p", llm.Attachment{Data: []byte("x")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation error, got %v", err)
	}
}

func TestRecorder_CapturesCalls(t *testing.T) {
	r := &Recorder{Response: "ok"}
	for _, name := range []string{"a.png", "b.pdf"} {
		if _, err := r.Complete(context.Background(), "same prompt", llm.Attachment{Name: name}); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	calls := r.Calls()
	if len(calls) != 2 || calls[0].Attachment.Name != "a.png" || calls[1].Attachment.Name != "b.pdf" {
		t.Fatalf("unexpected calls: %+v", calls)
	}

	r.Err = errors.New("boom")
	if _, err := r.Complete(context.Background(), "p", llm.Attachment{}); err == nil || err.Error() != "boom" {
		t.Fatalf("expected configured error, got %v", err)
	}
}
