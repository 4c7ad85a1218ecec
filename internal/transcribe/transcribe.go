// Package transcribe converts a document or image into Markdown with a single
// call to a multimodal model.
package transcribe

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/jo-hoe/ocrmd/internal/llm"
)

// Prompt is the instruction sent with every file. It never varies per call.
const Prompt = "Extract the content of the attached file as Markdown. " +
	"Use Markdown formatting for headings, lists, and paragraphs. " +
	"Write math and Greek symbols in LaTeX, delimited by $ or $$. " +
	"Write tables in Markdown table format. " +
	"Write code in fenced Markdown code blocks, and use code blocks only for code. " +
	"Write simple diagrams as mermaid code blocks. " +
	"Do not add any commentary or delimiters to your response."

// Transcriber sends files to a model and returns its Markdown verbatim.
// It holds no mutable state and is safe for concurrent use.
type Transcriber struct {
	completer llm.Completer
}

// New returns a Transcriber backed by c.
func New(c llm.Completer) *Transcriber {
	return &Transcriber{completer: c}
}

// Transcribe reads the file at path and returns the model's text for it.
// Errors are *FileAccessError or *ExternalCallError.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - reading caller-provided input is the purpose
	if err != nil {
		return "", &FileAccessError{Path: path, Err: err}
	}
	return t.complete(ctx, filepath.Base(path), data)
}

// TranscribeReader is Transcribe for content that is already open, such as an upload.
func (t *Transcriber) TranscribeReader(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &FileAccessError{Path: name, Err: err}
	}
	return t.complete(ctx, name, data)
}

func (t *Transcriber) complete(ctx context.Context, name string, data []byte) (string, error) {
	text, err := t.completer.Complete(ctx, Prompt, llm.NewAttachment(name, data))
	if err != nil {
		return "", &ExternalCallError{Err: err}
	}
	if text == "" {
		return "", &ExternalCallError{Err: llm.ErrEmptyResponse}
	}
	return text, nil
}
