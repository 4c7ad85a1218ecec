package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty completion")

// Attachment is a file payload sent alongside a prompt.
type Attachment struct {
	Name string // display name, usually the base name of the source file
	MIME string // best-effort media type, e.g. image/png or application/pdf
	Data []byte
}

// Completer defines the capability to answer a text prompt about one attached file.
type Completer interface {
	// Complete sends prompt and att to the model and returns the generated text unmodified.
	Complete(ctx context.Context, prompt string, att Attachment) (string, error)
}

// ProviderError reports a non-2xx answer from an HTTP based provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewAttachment labels data with a media type sniffed from its content, falling
// back to the extension of name when the content is not recognised.
func NewAttachment(name string, data []byte) Attachment {
	return Attachment{Name: name, MIME: DetectMIME(name, data), Data: data}
}
