package common

import "strings"

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderAPIKey        = "X-API-Key" // #nosec G101 - header name constant, not a credential
	HeaderPrefer        = "Prefer"
	PreferRespondAsync  = "respond-async"
	ContentTypeJSON     = "application/json"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// API paths
const (
	PathHealthz        = "/healthz"
	PathMetrics        = "/metrics"
	PathTranscriptions = "/v1/transcriptions"
)

// Defaults and limits
const (
	DefaultQueueCapacity = 128
	DefaultWorkerCount   = 4
	SQLiteBusyTimeoutMS  = 5000
)

// LLM provider names
const (
	ProviderMock      = "mock"
	ProviderAIProxy   = "aiproxy"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderName returns the canonical provider name, resolving aliases.
// An empty name selects gemini.
func ProviderName(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case "", "google":
		return ProviderGemini
	case "claude":
		return ProviderAnthropic
	default:
		return p
	}
}

// Target types
const (
	TargetNone  = "none"
	TargetFile  = "file"
	TargetMinio = "minio"
)

// Files
const (
	MarkdownExt    = ".md"
	UploadsDirName = "uploads"
	OutputDirName  = "output"
)

// Callback status strings
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
