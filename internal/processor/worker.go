package processor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/jobs"
	"github.com/jo-hoe/ocrmd/internal/metrics"
	"github.com/jo-hoe/ocrmd/internal/targets"
	"github.com/jo-hoe/ocrmd/internal/transcribe"
)

// Worker implements jobs.Processor: transcribe, write to the target, record the outcome.
type Worker struct {
	Log         *slog.Logger
	Cfg         *config.Config
	Store       jobs.Store
	Transcriber *transcribe.Transcriber
	Targets     *targets.Registry
	Notifier    Notifier         // defaults to a CallbackNotifier
	Metrics     *metrics.Metrics // optional
}

// Ensure Worker implements jobs.Processor
var _ jobs.Processor = (*Worker)(nil)

func New(log *slog.Logger, cfg *config.Config, store jobs.Store, tr *transcribe.Transcriber, regs *targets.Registry) *Worker {
	return &Worker{
		Log:         log,
		Cfg:         cfg,
		Store:       store,
		Transcriber: tr,
		Targets:     regs,
		Notifier: &CallbackNotifier{
			Client:  &http.Client{Timeout: 30 * time.Second},
			Retries: cfg.Server.CallbackRetries,
			Backoff: cfg.Server.CallbackBackoff,
			Log:     log,
		},
	}
}

func (w *Worker) Process(ctx context.Context, item jobs.WorkItem) (err error) {
	job := item.Job
	if w.Metrics != nil {
		finished := w.Metrics.JobStarted()
		defer func() { finished(err) }()
	}

	now := time.Now().UTC()
	if err := w.Store.UpdateStage(job.ID, jobs.StageTranscribing, &now); err != nil {
		return fmt.Errorf("update stage to transcribing: %w", err)
	}

	md, err := w.transcribe(ctx, job)
	if err != nil {
		w.fail(ctx, job, err)
		return err
	}

	if err := w.Store.UpdateStage(job.ID, jobs.StageWriting, nil); err != nil {
		w.fail(ctx, job, fmt.Errorf("update stage to writing: %w", err))
		return err
	}

	var res targets.TargetResult
	if job.TargetName != "" {
		t, ok := w.Targets.Get(job.TargetName)
		if !ok {
			err := fmt.Errorf("target %q not registered", job.TargetName)
			w.fail(ctx, job, err)
			return err
		}
		res, err = t.Post(ctx, targets.TargetRequest{
			JobID:      job.ID,
			Markdown:   md,
			SourcePath: job.SourcePath,
			FileName:   job.FileName,
			Unique:     renamedUpload(job),
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			err = fmt.Errorf("write to target %s: %w", job.TargetName, err)
			w.fail(ctx, job, err)
			return err
		}
	}

	if err := w.Store.SaveResult(job.ID, md, res.Location, time.Now().UTC()); err != nil {
		err = fmt.Errorf("save result: %w", err)
		w.fail(ctx, job, err)
		return err
	}
	w.Log.Info("transcription stored", "job_id", job.ID, "file", job.FileName, "bytes", len(md), "location", res.Location)

	w.notify(ctx, Event{
		Kind:        EventSuccess,
		JobID:       job.ID,
		Path:        job.SourcePath,
		FileName:    job.FileName,
		CallbackURL: deref(job.CallbackURL),
		Markdown:    md,
		Target:      res.TargetName,
		Location:    res.Location,
	})
	return nil
}

// transcribe labels the attachment with the original file name when the source is a renamed upload.
func (w *Worker) transcribe(ctx context.Context, job jobs.Job) (string, error) {
	if d := w.Cfg.Server.TranscribeTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if !renamedUpload(job) {
		return w.Transcriber.Transcribe(ctx, job.SourcePath)
	}
	f, err := os.Open(filepath.Clean(job.SourcePath))
	if err != nil {
		return "", &transcribe.FileAccessError{Path: job.SourcePath, Err: err}
	}
	defer func() { _ = f.Close() }()
	return w.Transcriber.TranscribeReader(ctx, job.FileName, f)
}

// renamedUpload reports whether the source was stored under a name other than the one the client sent.
func renamedUpload(job jobs.Job) bool {
	return job.FileName != "" && job.FileName != filepath.Base(job.SourcePath)
}

func (w *Worker) fail(ctx context.Context, job jobs.Job, err error) {
	if saveErr := w.Store.SaveError(job.ID, err.Error(), time.Now().UTC()); saveErr != nil {
		w.Log.Error("save job error failed", "job_id", job.ID, "err", saveErr)
	}
	w.notify(ctx, Event{
		Kind:        EventError,
		JobID:       job.ID,
		Path:        job.SourcePath,
		FileName:    job.FileName,
		CallbackURL: deref(job.CallbackURL),
		Message:     err.Error(),
	})
}

func (w *Worker) notify(ctx context.Context, ev Event) {
	if w.Notifier == nil {
		return
	}
	if err := w.Notifier.Notify(ctx, ev); err != nil {
		w.Log.Warn("notification failed", "job_id", ev.JobID, "event", ev.Kind, "err", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
