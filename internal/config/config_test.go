package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/ocrmd/internal/common"
)

func TestParseByteSize_K8sAndCommonUnits(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024", 1024},
		{"1Ki", 1024},
		{"1KiB", 1024},
		{"2Mi", 2 * 1024 * 1024},
		{"2MiB", 2 * 1024 * 1024},
		{"3Gi", 3 * 1024 * 1024 * 1024},
		{"3GiB", 3 * 1024 * 1024 * 1024},
		{"10KB", 10 * 1000},
		{"10MB", 10 * 1000 * 1000},
		{"2GB", 2 * 1000 * 1000 * 1000},
	}
	for _, c := range cases {
		got, err := ParseByteSize(c.in)
		if err != nil {
			t.Fatalf("ParseByteSize(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseByteSize(%q) = %d, want %d", c.in, got, c.want)
		}
	}
	// invalid
	for _, bad := range []string{"", "bad", "12XB"} {
		if _, err := ParseByteSize(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizePathPrefix(t *testing.T) {
	if got := normalizePathPrefix(`foo\bar`); got != "foo/bar/" {
		t.Fatalf("normalizePathPrefix backslashes = %q", got)
	}
	if got := normalizePathPrefix("./docs"); got != "docs/" {
		t.Fatalf("normalizePathPrefix removes leading ./ = %q", got)
	}
	if got := normalizePathPrefix(""); got != "" {
		t.Fatalf("normalizePathPrefix empty = %q", got)
	}
}

func TestLoad_WithEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	// Use env expansion for secrets
	t.Setenv("TEST_MINIO_SECRET", "secret123")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	yaml := `
server:
  address: ":0"
  readTimeout: 1s
  writeTimeout: 2s
  idleTimeout: 3s
  maxUploadSize: 1Mi
  workerCount: 2
  storageDir: "` + escapeBackslashes(dir) + `"
  apiKey: "key123"
  shutdownGrace: 5s
  transcribeTimeout: 90s
  callbackRetries: 2
  callbackBackoff: 1s
  logLevel: debug

llm:
  provider: "OpenAI"
  openai:
    model: "gpt-4.1"

target:
  type: "minio"
  name: "archive"
  minio:
    endpoint: "localhost:9000"
    accessKey: "minio"
    secretKey: "${TEST_MINIO_SECRET}"
    bucket: "markdown"
    prefix: "./inbox"
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load config: %v", err)
	}

	// Server assertions
	if cfg.Server.Addr != ":0" {
		t.Fatalf("address = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 1*time.Second || cfg.Server.WriteTimeout != 2*time.Second || cfg.Server.IdleTimeout != 3*time.Second {
		t.Fatalf("timeouts not parsed correctly")
	}
	if cfg.Server.TranscribeTimeout != 90*time.Second {
		t.Fatalf("transcribeTimeout = %v", cfg.Server.TranscribeTimeout)
	}
	if uint64(cfg.Server.MaxUploadSize) != 1024*1024 {
		t.Fatalf("maxUploadSize not parsed: %d", cfg.Server.MaxUploadSize)
	}
	if cfg.Server.APIKey != "key123" {
		t.Fatalf("apiKey mismatch")
	}
	if cfg.Server.DatabasePath != filepath.Join(dir, "ocrmd.db") {
		t.Fatalf("databasePath should default under storageDir, got %s", cfg.Server.DatabasePath)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("log level = %v", cfg.SlogLevel())
	}

	// LLM
	if cfg.LLM.Provider != common.ProviderOpenAI {
		t.Fatalf("provider should be normalized, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.OpenAI.APIKey != "sk-from-env" {
		t.Fatalf("OPENAI_API_KEY fallback not applied")
	}
	if cfg.LLM.Model() != "gpt-4.1" {
		t.Fatalf("model = %q", cfg.LLM.Model())
	}

	// Target
	if cfg.Target.Type != common.TargetMinio || cfg.Target.Name != "archive" {
		t.Fatalf("target type/name mismatch: %+v", cfg.Target)
	}
	if cfg.Target.Minio.SecretKey != "secret123" {
		t.Fatalf("env expansion for secret failed")
	}
	if cfg.Target.Minio.Prefix != "inbox/" {
		t.Fatalf("prefix not normalized: %q", cfg.Target.Minio.Prefix)
	}
}

func TestLoad_ImplicitMissingUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OCRMD_CONFIG", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != common.ProviderGemini || cfg.LLM.Gemini.Model != "gemini-2.0-flash" {
		t.Fatalf("default provider/model mismatch: %q %q", cfg.LLM.Provider, cfg.LLM.Gemini.Model)
	}
	if cfg.LLM.Gemini.APIKey != "g-key" {
		t.Fatalf("GOOGLE_API_KEY fallback not applied")
	}
	if cfg.Target.Type != common.TargetNone {
		t.Fatalf("default target = %q", cfg.Target.Type)
	}
	if cfg.Server.WorkerCount != common.DefaultWorkerCount {
		t.Fatalf("workerCount default = %d", cfg.Server.WorkerCount)
	}
}

func TestLoad_ExplicitMissingFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestRead_OverrideBeforeFinalize(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("llm:\n  provider: gemini\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected missing gemini key to fail Load")
	}

	cfg, err := Read(p)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	cfg.LLM.Provider = "mock"
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize after override: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("defaults not applied by Finalize: %q", cfg.Server.Addr)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cases := map[string]string{
		"unknown provider": "llm:\n  provider: nope\n",
		"missing key":      "llm:\n  provider: claude\n",
		"unknown target":   "llm:\n  provider: mock\ntarget:\n  type: ftp\n",
		"minio bucket":     "llm:\n  provider: mock\ntarget:\n  type: minio\n  minio:\n    endpoint: localhost:9000\n",
	}
	for name, body := range cases {
		p := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLLMConfig_SetModel(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{Provider: "mock"}}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	cfg.LLM.Provider = common.ProviderOllama
	cfg.LLM.SetModel("  llava ")
	if cfg.LLM.Ollama.Model != "llava" || cfg.LLM.Model() != "llava" {
		t.Fatalf("SetModel did not apply: %+v", cfg.LLM.Ollama)
	}
	cfg.LLM.SetModel("")
	if cfg.LLM.Ollama.Model != "llava" {
		t.Fatalf("empty SetModel should be a no-op")
	}
}

func TestParseLogLevel(t *testing.T) {
	if ParseLogLevel("WARN") != slog.LevelWarn || ParseLogLevel("error") != slog.LevelError || ParseLogLevel("") != slog.LevelInfo {
		t.Fatalf("ParseLogLevel mapping mismatch")
	}
}

func escapeBackslashes(p string) string {
	// On Windows, YAML literal may require escaping backslashes
	return strings.ReplaceAll(p, `\`, `\\`)
}
