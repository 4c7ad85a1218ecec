package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appcfg "github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/targets"
)

func TestFileTarget_WritesSibling(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	tg, err := New("local", appcfg.FileTargetConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := tg.Post(context.Background(), targets.TargetRequest{JobID: "j", Markdown: "# Scan\n", SourcePath: src, FileName: "scan.png"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	out := filepath.Join(dir, "scan.md")
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != "# Scan\n" {
		t.Fatalf("unexpected content %q", b)
	}
	if res.TargetName != "local" || !strings.HasPrefix(res.Location, "file:") || !strings.HasSuffix(res.Location, "/scan.md") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFileTarget_OutputDirAndOverwrite(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "out")
	req := targets.TargetRequest{JobID: "j", Markdown: "first", SourcePath: "/elsewhere/upload-123.pdf", FileName: "paper.pdf"}

	tg, err := New("out", appcfg.FileTargetConfig{OutputDir: outDir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := tg.Post(context.Background(), req); err != nil {
		t.Fatalf("Post: %v", err)
	}

	req.Markdown = "second"
	if _, err := tg.Post(context.Background(), req); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if b, _ := os.ReadFile(filepath.Join(outDir, "paper.md")); string(b) != "first" {
		t.Fatalf("existing file modified: %q", b)
	}

	over, err := New("out", appcfg.FileTargetConfig{OutputDir: outDir, Overwrite: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := over.Post(context.Background(), req); err != nil {
		t.Fatalf("Post with overwrite: %v", err)
	}
	if b, _ := os.ReadFile(filepath.Join(outDir, "paper.md")); string(b) != "second" {
		t.Fatalf("expected overwritten content, got %q", b)
	}
}

func TestFileTarget_NoDirNoSource(t *testing.T) {
	tg, _ := New("local", appcfg.FileTargetConfig{})
	if _, err := tg.Post(context.Background(), targets.TargetRequest{Markdown: "x", FileName: "a.png"}); err == nil {
		t.Fatalf("expected error without output dir or source path")
	}
}

func TestFileTarget_CanceledContext(t *testing.T) {
	tg, _ := New("local", appcfg.FileTargetConfig{OutputDir: t.TempDir()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tg.Post(ctx, targets.TargetRequest{Markdown: "x", FileName: "a.png"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
