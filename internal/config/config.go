package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/ocrmd/internal/common"
)

const (
	envConfigPath     = "OCRMD_CONFIG"
	defaultConfigPath = "config.yaml"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Target TargetConfig `yaml:"target"`
}

// ServerConfig holds HTTP server and runtime settings.
type ServerConfig struct {
	Addr              string        `yaml:"address"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	MaxUploadSize     ByteSize      `yaml:"maxUploadSize"`
	WorkerCount       int           `yaml:"workerCount"`
	StorageDir        string        `yaml:"storageDir"`
	APIKey            string        `yaml:"apiKey"`            // optional static API key header (X-API-Key)
	DatabasePath      string        `yaml:"databasePath"`      // optional, overrides default storageDir/ocrmd.db
	ShutdownGrace     time.Duration `yaml:"shutdownGrace"`     // time to wait for workers before forced stop
	TranscribeTimeout time.Duration `yaml:"transcribeTimeout"` // upper bound for one provider call, 0 = none
	CallbackRetries   int           `yaml:"callbackRetries"`   // number of callback attempts
	CallbackBackoff   time.Duration `yaml:"callbackBackoff"`   // base backoff duration
	LogLevel          string        `yaml:"logLevel"`          // debug|info|warn|error
}

// LLMConfig selects provider and provider-specific options.
type LLMConfig struct {
	Provider  string            `yaml:"provider"` // mock|aiproxy|openai|gemini|anthropic|ollama
	Mock      MockSettings      `yaml:"mock"`
	AIProxy   AIProxySettings   `yaml:"aiproxy"`
	OpenAI    OpenAISettings    `yaml:"openai"`
	Gemini    GeminiSettings    `yaml:"gemini"`
	Anthropic AnthropicSettings `yaml:"anthropic"`
	Ollama    OllamaSettings    `yaml:"ollama"`
}

// MockSettings config for the mock LLM.
type MockSettings struct {
	Delay  time.Duration `yaml:"delay"`
	Prefix string        `yaml:"prefix"`
}

// AIProxySettings config for the AI Proxy (OpenAI-compatible) LLM.
type AIProxySettings struct {
	BaseURL     string  `yaml:"baseUrl"`     // e.g. http://localhost:8900
	APIKey      string  `yaml:"apiKey"`      // optional
	Model       string  `yaml:"model"`       // e.g. gpt-5
	Temperature float32 `yaml:"temperature"` // optional
	MaxTokens   int     `yaml:"maxTokens"`   // optional
}

// OpenAISettings config for the OpenAI chat completions API.
type OpenAISettings struct {
	APIKey    string `yaml:"apiKey"`  // falls back to OPENAI_API_KEY
	BaseURL   string `yaml:"baseUrl"` // optional, for compatible gateways
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// GeminiSettings config for the Gemini API.
type GeminiSettings struct {
	APIKey  string `yaml:"apiKey"`  // falls back to GEMINI_API_KEY, then GOOGLE_API_KEY
	BaseURL string `yaml:"baseUrl"` // optional endpoint override
	Model   string `yaml:"model"`
}

// AnthropicSettings config for the Anthropic Messages API.
type AnthropicSettings struct {
	APIKey    string `yaml:"apiKey"`  // falls back to ANTHROPIC_API_KEY
	BaseURL   string `yaml:"baseUrl"` // optional endpoint override
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"maxTokens"`
}

// OllamaSettings config for a local Ollama server.
type OllamaSettings struct {
	Host  string `yaml:"host"` // falls back to OLLAMA_HOST
	Model string `yaml:"model"`
}

// TargetConfig selects where finished Markdown is written.
type TargetConfig struct {
	Type  string            `yaml:"type"` // none|file|minio
	Name  string            `yaml:"name"`
	File  FileTargetConfig  `yaml:"file"`
	Minio MinioTargetConfig `yaml:"minio"`
}

// FileTargetConfig writes <name>.md next to the source or into OutputDir.
type FileTargetConfig struct {
	OutputDir string `yaml:"outputDir"` // empty = next to the source file
	Overwrite bool   `yaml:"overwrite"`
}

// MinioTargetConfig uploads Markdown to an S3 compatible bucket.
type MinioTargetConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
}

// ByteSize represents a size in bytes that unmarshals from strings like "10Mi", "20MB", "512KiB", "1024".
type ByteSize uint64

// UnmarshalYAML implements yaml unmarshalling for ByteSize.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseByteSize(value.Value)
		if err != nil {
			return err
		}
		*b = ByteSize(parsed)
		return nil
	}
	return fmt.Errorf("invalid bytesize node kind: %v", value.Kind)
}

// ParseByteSize parses a string like "10Mi", "20MB", "512KiB", "1024" into bytes.
// Kubernetes-style binary suffixes (Ki, Mi, Gi, Ti) are accepted alongside
// everything go-humanize understands.
func ParseByteSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	up := strings.ToUpper(s)
	for _, suffix := range []string{"KI", "MI", "GI", "TI"} {
		if strings.HasSuffix(up, suffix) {
			s += "B"
			break
		}
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return v, nil
}

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, it tries OCRMD_CONFIG, then "config.yaml"; a missing implicit
// file yields the defaults, a missing explicit one is an error.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without defaults and validation, for callers that override fields first.
func Read(path string) (*Config, error) {
	implicit := false
	if path == "" {
		if env := os.Getenv(envConfigPath); env != "" {
			path = env
		} else {
			path = defaultConfigPath
			implicit = true
		}
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - reading sanitized config file path is expected
	switch {
	case err == nil:
		// Expand environment variables in file content.
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case implicit && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	return &cfg, nil
}

// Finalize applies defaults and environment fallbacks, then validates.
// Call it again after changing fields programmatically (e.g. from CLI flags).
func (c *Config) Finalize() error {
	applyDefaults(c)
	applyEnvFallbacks(c)
	return validate(c)
}

// EnsureStorageDir creates the storage directory used by the HTTP service.
func (c *Config) EnsureStorageDir() error {
	if c.Server.StorageDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.Server.StorageDir, 0o750); err != nil {
		return fmt.Errorf("ensure storageDir: %w", err)
	}
	return nil
}

// SlogLevel maps Server.LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLogLevel(c.Server.LogLevel)
}

// ParseLogLevel maps debug|info|warn|error to a slog level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetModel overrides the model of the selected provider.
func (l *LLMConfig) SetModel(model string) {
	model = strings.TrimSpace(model)
	if model == "" {
		return
	}
	switch l.Provider {
	case common.ProviderAIProxy:
		l.AIProxy.Model = model
	case common.ProviderOpenAI:
		l.OpenAI.Model = model
	case common.ProviderGemini:
		l.Gemini.Model = model
	case common.ProviderAnthropic:
		l.Anthropic.Model = model
	case common.ProviderOllama:
		l.Ollama.Model = model
	}
}

// Model returns the model name of the selected provider, empty for mock.
func (l *LLMConfig) Model() string {
	switch l.Provider {
	case common.ProviderAIProxy:
		return l.AIProxy.Model
	case common.ProviderOpenAI:
		return l.OpenAI.Model
	case common.ProviderGemini:
		return l.Gemini.Model
	case common.ProviderAnthropic:
		return l.Anthropic.Model
	case common.ProviderOllama:
		return l.Ollama.Model
	}
	return ""
}

func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 60 * time.Second
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = ByteSize(20 * 1024 * 1024) // 20 MiB default
	}
	if cfg.Server.WorkerCount <= 0 {
		cfg.Server.WorkerCount = common.DefaultWorkerCount
	}
	if cfg.Server.StorageDir == "" {
		cfg.Server.StorageDir = "data"
	}
	if cfg.Server.DatabasePath == "" {
		cfg.Server.DatabasePath = filepath.Join(cfg.Server.StorageDir, "ocrmd.db")
	}
	if cfg.Server.ShutdownGrace == 0 {
		cfg.Server.ShutdownGrace = 15 * time.Second
	}
	if cfg.Server.CallbackRetries == 0 {
		cfg.Server.CallbackRetries = 3
	}
	if cfg.Server.CallbackBackoff == 0 {
		cfg.Server.CallbackBackoff = 2 * time.Second
	}
	if strings.TrimSpace(cfg.Server.LogLevel) == "" {
		cfg.Server.LogLevel = "info"
	}

	// LLM defaults
	cfg.LLM.Provider = common.ProviderName(cfg.LLM.Provider)
	if cfg.LLM.Mock.Prefix == "" {
		cfg.LLM.Mock.Prefix = "Transcribed by Mock"
	}
	if strings.TrimSpace(cfg.LLM.AIProxy.BaseURL) == "" {
		cfg.LLM.AIProxy.BaseURL = "http://localhost:8900"
	}
	if strings.TrimSpace(cfg.LLM.AIProxy.Model) == "" {
		cfg.LLM.AIProxy.Model = "gpt-5"
	}
	if strings.TrimSpace(cfg.LLM.OpenAI.Model) == "" {
		cfg.LLM.OpenAI.Model = "gpt-4o"
	}
	if strings.TrimSpace(cfg.LLM.Gemini.Model) == "" {
		cfg.LLM.Gemini.Model = "gemini-2.0-flash"
	}
	if strings.TrimSpace(cfg.LLM.Anthropic.Model) == "" {
		cfg.LLM.Anthropic.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.LLM.Anthropic.MaxTokens <= 0 {
		cfg.LLM.Anthropic.MaxTokens = 8192
	}
	if strings.TrimSpace(cfg.LLM.Ollama.Model) == "" {
		cfg.LLM.Ollama.Model = "llama3.2-vision"
	}

	// Target defaults
	cfg.Target.Type = strings.ToLower(strings.TrimSpace(cfg.Target.Type))
	if cfg.Target.Type == "" {
		cfg.Target.Type = common.TargetNone
	}
	if cfg.Target.Name == "" {
		cfg.Target.Name = cfg.Target.Type
	}
	cfg.Target.Minio.Prefix = normalizePathPrefix(cfg.Target.Minio.Prefix)
	if cfg.Target.Minio.Region == "" {
		cfg.Target.Minio.Region = "us-east-1"
	}
}

// applyEnvFallbacks fills credentials from the providers' conventional environment variables.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.OpenAI.APIKey == "" {
		cfg.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.Gemini.APIKey == "" {
		cfg.LLM.Gemini.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	if cfg.LLM.Anthropic.APIKey == "" {
		cfg.LLM.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.Ollama.Host == "" {
		cfg.LLM.Ollama.Host = os.Getenv("OLLAMA_HOST")
	}
	if cfg.LLM.Ollama.Host == "" {
		cfg.LLM.Ollama.Host = "http://localhost:11434"
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case common.ProviderMock, common.ProviderAIProxy, common.ProviderOllama:
	case common.ProviderOpenAI:
		if strings.TrimSpace(cfg.LLM.OpenAI.APIKey) == "" {
			return errors.New("llm.openai.apiKey is required (or set OPENAI_API_KEY)")
		}
	case common.ProviderGemini:
		if strings.TrimSpace(cfg.LLM.Gemini.APIKey) == "" {
			return errors.New("llm.gemini.apiKey is required (or set GEMINI_API_KEY)")
		}
	case common.ProviderAnthropic:
		if strings.TrimSpace(cfg.LLM.Anthropic.APIKey) == "" {
			return errors.New("llm.anthropic.apiKey is required (or set ANTHROPIC_API_KEY)")
		}
	default:
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}

	switch cfg.Target.Type {
	case common.TargetNone, common.TargetFile:
	case common.TargetMinio:
		m := cfg.Target.Minio
		if strings.TrimSpace(m.Endpoint) == "" {
			return errors.New("target.minio.endpoint is required")
		}
		if strings.TrimSpace(m.Bucket) == "" {
			return errors.New("target.minio.bucket is required")
		}
	default:
		return fmt.Errorf("unsupported target type %q", cfg.Target.Type)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func normalizePathPrefix(p string) string {
	if p == "" {
		return p
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasSuffix(p, "/") {
		p = p + "/"
	}
	// Remove leading "./"
	p = strings.TrimPrefix(p, "./")
	return p
}
