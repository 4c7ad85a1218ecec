// Package provider builds the llm.Completer selected in configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/jo-hoe/ocrmd/internal/common"
	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
	"github.com/jo-hoe/ocrmd/internal/llm/aiproxy"
	"github.com/jo-hoe/ocrmd/internal/llm/anthropic"
	"github.com/jo-hoe/ocrmd/internal/llm/gemini"
	"github.com/jo-hoe/ocrmd/internal/llm/mock"
	"github.com/jo-hoe/ocrmd/internal/llm/ollama"
	"github.com/jo-hoe/ocrmd/internal/llm/openai"
)

// New returns the completer for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	switch common.ProviderName(cfg.Provider) {
	case common.ProviderMock:
		return mock.New(cfg.Mock), nil
	case common.ProviderAIProxy:
		return aiproxy.New(cfg.AIProxy), nil
	case common.ProviderOpenAI:
		return openai.New(cfg.OpenAI), nil
	case common.ProviderGemini:
		return gemini.New(ctx, cfg.Gemini)
	case common.ProviderAnthropic:
		return anthropic.New(cfg.Anthropic), nil
	case common.ProviderOllama:
		return ollama.New(cfg.Ollama)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
