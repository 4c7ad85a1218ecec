// Package app wires configuration into the concrete components shared by the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/jo-hoe/ocrmd/internal/common"
	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/llm"
	"github.com/jo-hoe/ocrmd/internal/llm/provider"
	"github.com/jo-hoe/ocrmd/internal/metrics"
	"github.com/jo-hoe/ocrmd/internal/targets"
	fileTarget "github.com/jo-hoe/ocrmd/internal/targets/file"
	minioTarget "github.com/jo-hoe/ocrmd/internal/targets/minio"
)

// NewLogger returns a text logger for terminals and a JSON logger otherwise.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewCompleter builds the configured provider, instrumented when m is non-nil.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, m *metrics.Metrics) (llm.Completer, error) {
	c, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if m != nil {
		c = m.Instrument(common.ProviderName(cfg.Provider), c)
	}
	return c, nil
}

// NewTargets registers the configured target. The registry is empty for type none.
func NewTargets(cfg config.TargetConfig) (*targets.Registry, error) {
	reg := targets.NewRegistry()
	switch cfg.Type {
	case common.TargetNone, "":
	case common.TargetFile:
		t, err := fileTarget.New(cfg.Name, cfg.File)
		if err != nil {
			return nil, fmt.Errorf("init file target: %w", err)
		}
		reg.Add(t)
	case common.TargetMinio:
		t, err := minioTarget.New(cfg.Name, cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio target: %w", err)
		}
		reg.Add(t)
	default:
		return nil, fmt.Errorf("unsupported target type %q", cfg.Type)
	}
	return reg, nil
}

// NewServerTargets is NewTargets for the HTTP service. Uploads live in a scratch
// directory, so a file target without outputDir writes to <storageDir>/output.
func NewServerTargets(cfg *config.Config) (*targets.Registry, error) {
	tc := cfg.Target
	if tc.Type == common.TargetFile && tc.File.OutputDir == "" {
		tc.File.OutputDir = filepath.Join(cfg.Server.StorageDir, common.OutputDirName)
	}
	return NewTargets(tc)
}
