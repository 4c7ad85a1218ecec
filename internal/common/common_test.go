package common

import "testing"

func TestProviderName_Aliases(t *testing.T) {
	cases := map[string]string{
		"":          ProviderGemini,
		"Google":    ProviderGemini,
		" claude ":  ProviderAnthropic,
		"OpenAI":    ProviderOpenAI,
		"something": "something",
	}
	for in, want := range cases {
		if got := ProviderName(in); got != want {
			t.Fatalf("ProviderName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConstantsValues(t *testing.T) {
	if ContentTypeJSON != "application/json" {
		t.Fatalf("ContentTypeJSON = %q", ContentTypeJSON)
	}
	if ContentTypeMarkdown != "text/markdown; charset=utf-8" {
		t.Fatalf("ContentTypeMarkdown = %q", ContentTypeMarkdown)
	}
	if HeaderAPIKey != "X-API-Key" {
		t.Fatalf("HeaderAPIKey = %q", HeaderAPIKey)
	}
	if HeaderPrefer != "Prefer" || PreferRespondAsync != "respond-async" {
		t.Fatalf("prefer constants mismatch: %q %q", HeaderPrefer, PreferRespondAsync)
	}
	if PathHealthz != "/healthz" || PathMetrics != "/metrics" || PathTranscriptions != "/v1/transcriptions" {
		t.Fatalf("paths mismatch: %q, %q, %q", PathHealthz, PathMetrics, PathTranscriptions)
	}
	if DefaultQueueCapacity <= 0 || DefaultWorkerCount <= 0 {
		t.Fatalf("defaults should be positive")
	}
	if MarkdownExt != ".md" || UploadsDirName == "" {
		t.Fatalf("file constants mismatch")
	}
	if StatusCompleted != "completed" || StatusFailed != "failed" {
		t.Fatalf("status constants mismatch")
	}
}
