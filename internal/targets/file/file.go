package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	appcfg "github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/targets"
)

// ErrExists is returned when the output file is already present and overwrite is off.
var ErrExists = errors.New("output file already exists")

// Target writes Markdown files to the local filesystem.
type Target struct {
	name string
	cfg  appcfg.FileTargetConfig
}

// New creates a file Target. An empty OutputDir writes next to the source file.
func New(name string, cfg appcfg.FileTargetConfig) (*Target, error) {
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("ensure output dir: %w", err)
		}
	}
	return &Target{name: name, cfg: cfg}, nil
}

func (t *Target) Name() string { return t.name }

func (t *Target) Post(ctx context.Context, req targets.TargetRequest) (targets.TargetResult, error) {
	if err := ctx.Err(); err != nil {
		return targets.TargetResult{}, err
	}
	fullPath, err := t.OutputPath(req)
	if err != nil {
		return targets.TargetResult{}, err
	}
	if err := writeFile(fullPath, []byte(req.Markdown), t.cfg.Overwrite); err != nil {
		return targets.TargetResult{}, err
	}
	abs, err := filepath.Abs(fullPath)
	if err != nil {
		abs = fullPath
	}
	return targets.TargetResult{TargetName: t.name, Location: "file:" + filepath.ToSlash(abs)}, nil
}

// OutputPath returns the file Post would write for req.
func (t *Target) OutputPath(req targets.TargetRequest) (string, error) {
	dir := t.cfg.OutputDir
	if dir == "" {
		if req.SourcePath == "" {
			return "", errors.New("no output dir configured and no source path given")
		}
		dir = filepath.Dir(req.SourcePath)
	}
	return filepath.Join(dir, req.MarkdownName()), nil
}

func writeFile(path string, data []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(filepath.Clean(path), flags, 0o644) // #nosec G302 G304 - output path built from configured dir
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("open output: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
