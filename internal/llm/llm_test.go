package llm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProviderError_Message(t *testing.T) {
	err := &ProviderError{Provider: "aiproxy", StatusCode: 429, Body: "quota exceeded"}
	msg := err.Error()
	if !strings.Contains(msg, "aiproxy") || !strings.Contains(msg, "429") || !strings.Contains(msg, "quota exceeded") {
		t.Fatalf("unexpected message: %q", msg)
	}

	wrapped := fmt.Errorf("call: %w", err)
	var pe *ProviderError
	if !errors.As(wrapped, &pe) || pe.StatusCode != 429 {
		t.Fatalf("errors.As failed on wrapped provider error")
	}
}
