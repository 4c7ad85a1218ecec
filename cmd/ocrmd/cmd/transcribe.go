package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/jo-hoe/ocrmd/internal/app"
	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/jobs"
	"github.com/jo-hoe/ocrmd/internal/llm"
	"github.com/jo-hoe/ocrmd/internal/processor"
	"github.com/jo-hoe/ocrmd/internal/targets"
	fileTarget "github.com/jo-hoe/ocrmd/internal/targets/file"
	"github.com/jo-hoe/ocrmd/internal/transcribe"
)

const cliTargetName = "cli"

type transcribeOptions struct {
	outDir    string
	toStdout  bool
	overwrite bool
	provider  string
	model     string
	workers   int
}

var transcribeOpts transcribeOptions

var transcribeCmd = &cobra.Command{
	Use:   "transcribe FILE...",
	Short: "Transcribe local files to Markdown",
	Long: `Transcribe local files to Markdown.

Every file is sent to the configured model; the result is written as
<name>.md next to the file, into --out, or printed with --stdout.
Inputs that would write the same .md file are rejected before any model call.
Files are processed concurrently. The command fails if any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) {
			if transcribeOpts.provider != "" {
				c.LLM.Provider = transcribeOpts.provider
			}
		})
		if err != nil {
			return err
		}
		cfg.LLM.SetModel(transcribeOpts.model)
		if transcribeOpts.workers > 0 {
			cfg.Server.WorkerCount = transcribeOpts.workers
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		completer, err := app.NewCompleter(ctx, cfg.LLM, nil)
		if err != nil {
			return err
		}
		b := &batch{
			cfg:       cfg,
			opts:      transcribeOpts,
			completer: completer,
			stdout:    cmd.OutOrStdout(),
			stderr:    cmd.ErrOrStderr(),
		}
		return b.run(ctx, args)
	},
}

func init() {
	f := transcribeCmd.Flags()
	f.StringVarP(&transcribeOpts.outDir, "out", "o", "", "write Markdown files into this directory instead of next to the inputs")
	f.BoolVar(&transcribeOpts.toStdout, "stdout", false, "print Markdown to stdout instead of writing files")
	f.BoolVarP(&transcribeOpts.overwrite, "force", "f", false, "overwrite existing .md files")
	f.StringVarP(&transcribeOpts.provider, "provider", "p", "", "llm provider (gemini|openai|anthropic|ollama|aiproxy|mock)")
	f.StringVarP(&transcribeOpts.model, "model", "m", "", "model name for the selected provider")
	f.IntVarP(&transcribeOpts.workers, "workers", "w", 0, "concurrent transcriptions (default server.workerCount)")
}

// batch runs a set of local files through the same queue and worker the HTTP service uses.
type batch struct {
	cfg       *config.Config
	opts      transcribeOptions
	completer llm.Completer
	stdout    io.Writer
	stderr    io.Writer
}

type fileResult struct {
	path     string
	markdown string
	location string
	err      string
}

func (b *batch) run(ctx context.Context, args []string) error {
	logger := newLogger(b.cfg)

	paths := lo.Uniq(lo.Map(args, func(p string, _ int) string {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return filepath.Clean(p)
	}))

	reg := targets.NewRegistry()
	targetName := ""
	if !b.opts.toStdout {
		t, err := fileTarget.New(cliTargetName, config.FileTargetConfig{OutputDir: b.opts.outDir, Overwrite: b.opts.overwrite})
		if err != nil {
			return err
		}
		if err := checkOutputCollisions(t, paths); err != nil {
			return err
		}
		reg.Add(t)
		targetName = cliTargetName
	}

	var mu sync.Mutex
	results := make(map[string]fileResult, len(paths))
	collect := processor.FuncNotifier(func(_ context.Context, ev processor.Event) error {
		mu.Lock()
		defer mu.Unlock()
		results[ev.Path] = fileResult{path: ev.Path, markdown: ev.Markdown, location: ev.Location, err: ev.Message}
		return nil
	})

	store := jobs.NewMemoryStore()
	worker := processor.New(logger, b.cfg, store, transcribe.New(b.completer), reg)
	worker.Notifier = collect

	queue := jobs.NewQueue(logger, len(paths), b.cfg.Server.WorkerCount)
	if err := queue.Start(ctx, worker); err != nil {
		return err
	}
	for _, p := range paths {
		job := jobs.Job{
			ID:         uuid.NewString(),
			SourcePath: p,
			FileName:   filepath.Base(p),
			TargetName: targetName,
			Stage:      jobs.StageQueued,
			CreatedAt:  time.Now().UTC(),
		}
		if err := store.CreateJob(&job); err != nil {
			return err
		}
		if err := queue.Enqueue(jobs.WorkItem{Job: job}); err != nil {
			return fmt.Errorf("enqueue %s: %w", p, err)
		}
	}
	queue.Drain()

	return b.report(paths, results)
}

// checkOutputCollisions rejects inputs that would be written to the same .md file,
// such as scan.png and scan.jpg, or equal base names with --out.
func checkOutputCollisions(t *fileTarget.Target, paths []string) error {
	byOutput := lo.GroupBy(paths, func(p string) string {
		out, err := t.OutputPath(targets.TargetRequest{SourcePath: p, FileName: filepath.Base(p)})
		if err != nil {
			return p
		}
		return out
	})
	var clashes []string
	for out, inputs := range byOutput {
		if len(inputs) > 1 {
			clashes = append(clashes, fmt.Sprintf("%s <- %s", out, strings.Join(inputs, ", ")))
		}
	}
	if len(clashes) == 0 {
		return nil
	}
	sort.Strings(clashes)
	return fmt.Errorf("inputs share an output file, rename them or transcribe them separately:\n  %s", strings.Join(clashes, "\n  "))
}

// report prints results in input order and returns an error when any file failed.
func (b *batch) report(paths []string, results map[string]fileResult) error {
	failed := 0
	for i, p := range paths {
		res, ok := results[p]
		if !ok {
			res = fileResult{path: p, err: "not processed"}
		}
		if res.err != "" {
			failed++
			_, _ = fmt.Fprintf(b.stderr, "error: %s: %s\n", p, res.err)
			continue
		}
		if b.opts.toStdout {
			if i > 0 {
				_, _ = fmt.Fprintln(b.stdout)
			}
			_, _ = io.WriteString(b.stdout, res.markdown)
			continue
		}
		_, _ = fmt.Fprintf(b.stderr, "wrote %s\n", res.location)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
