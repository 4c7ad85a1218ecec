package jobs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

// storeFactories runs each contract test against both implementations.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			return s
		},
		"memory": func() Store { return NewMemoryStore() },
	}
}

func TestStore_JobLifecycle(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer func() { _ = store.Close() }()

			now := time.Now().UTC().Truncate(time.Second)
			job := &Job{
				ID:          "job-1",
				SourcePath:  "/tmp/uploads/abc.png",
				FileName:    "scan.png",
				MimeType:    "image/png",
				TargetName:  "local",
				CallbackURL: strPtr("http://example.com/callback"),
				Stage:       StageQueued,
				CreatedAt:   now,
			}
			if err := store.CreateJob(job); err != nil {
				t.Fatalf("CreateJob: %v", err)
			}

			start := now.Add(time.Second)
			if err := store.UpdateStage(job.ID, StageTranscribing, &start); err != nil {
				t.Fatalf("UpdateStage: %v", err)
			}
			if err := store.UpdateStage(job.ID, StageWriting, nil); err != nil {
				t.Fatalf("UpdateStage writing: %v", err)
			}
			mid, err := store.GetJob(job.ID)
			if err != nil {
				t.Fatalf("GetJob: %v", err)
			}
			if mid.Stage != StageWriting || mid.StartedAt == nil || !mid.StartedAt.Equal(start) {
				t.Fatalf("unexpected job after stage updates: %+v", mid)
			}

			comp := now.Add(2 * time.Second)
			md := "# Scan\n\n| a | b |\n|---|---|\n"
			if err := store.SaveResult(job.ID, md, "file:/docs/scan.md", comp); err != nil {
				t.Fatalf("SaveResult: %v", err)
			}
			got, err := store.GetJob(job.ID)
			if err != nil {
				t.Fatalf("GetJob: %v", err)
			}
			if got.Stage != StageCompleted || !got.Stage.Terminal() {
				t.Fatalf("expected completed, got %s", got.Stage)
			}
			if got.Markdown == nil || *got.Markdown != md {
				t.Fatalf("markdown mismatch: %v", got.Markdown)
			}
			if got.TargetLocation == nil || *got.TargetLocation != "file:/docs/scan.md" {
				t.Fatalf("location mismatch: %v", got.TargetLocation)
			}
			if got.CallbackURL == nil || *got.CallbackURL != "http://example.com/callback" {
				t.Fatalf("callback mismatch: %v", got.CallbackURL)
			}
			if got.FileName != "scan.png" || got.SourcePath != job.SourcePath {
				t.Fatalf("file fields mismatch: %+v", got)
			}
			if got.CompletedAt == nil || !got.CompletedAt.Equal(comp) {
				t.Fatalf("completedAt mismatch: %v", got.CompletedAt)
			}

			if err := store.SaveError(job.ID, "boom", now.Add(3*time.Second)); err != nil {
				t.Fatalf("SaveError: %v", err)
			}
			failed, err := store.GetJob(job.ID)
			if err != nil {
				t.Fatalf("GetJob after error: %v", err)
			}
			if failed.Stage != StageFailed || failed.ErrorMessage == nil || *failed.ErrorMessage != "boom" {
				t.Fatalf("unexpected failed job: %+v", failed)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer func() { _ = store.Close() }()

			if _, err := store.GetJob("missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetJob: expected ErrNotFound, got %v", err)
			}
			if err := store.UpdateStage("missing", StageWriting, nil); !errors.Is(err, ErrNotFound) {
				t.Fatalf("UpdateStage: expected ErrNotFound, got %v", err)
			}
			if err := store.SaveError("missing", "x", time.Now()); !errors.Is(err, ErrNotFound) {
				t.Fatalf("SaveError: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_CreateRejectsInvalid(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer func() { _ = store.Close() }()

			if err := store.CreateJob(nil); err == nil {
				t.Fatalf("expected error for nil job")
			}
			if err := store.CreateJob(&Job{}); err == nil {
				t.Fatalf("expected error for missing id")
			}
			j := &Job{ID: "dup", SourcePath: "a", FileName: "a", MimeType: "text/plain"}
			if err := store.CreateJob(j); err != nil {
				t.Fatalf("CreateJob: %v", err)
			}
			if j.Stage != StageQueued || j.CreatedAt.IsZero() {
				t.Fatalf("defaults not applied: %+v", j)
			}
			if err := store.CreateJob(&Job{ID: "dup", SourcePath: "a", FileName: "a", MimeType: "text/plain"}); err == nil {
				t.Fatalf("expected duplicate id error")
			}
		})
	}
}

func TestStore_ListJobsNewestFirst(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			defer func() { _ = store.Close() }()

			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c", "d"} {
				j := &Job{ID: id, SourcePath: id, FileName: id + ".png", MimeType: "image/png", CreatedAt: base.Add(time.Duration(i) * 100 * time.Millisecond)}
				if err := store.CreateJob(j); err != nil {
					t.Fatalf("CreateJob %s: %v", id, err)
				}
			}

			got, err := store.ListJobs(3)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			if len(got) != 3 || got[0].ID != "d" || got[1].ID != "c" || got[2].ID != "b" {
				ids := make([]string, 0, len(got))
				for _, j := range got {
					ids = append(ids, j.ID)
				}
				t.Fatalf("unexpected order %v", ids)
			}

			all, err := store.ListJobs(0)
			if err != nil {
				t.Fatalf("ListJobs all: %v", err)
			}
			if len(all) != 4 {
				t.Fatalf("expected 4 jobs, got %d", len(all))
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	if err := s.CreateJob(&Job{ID: "x", FileName: "x.png"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.SaveResult("x", "md", "", time.Now()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	a, _ := s.GetJob("x")
	*a.Markdown = "changed"
	b, _ := s.GetJob("x")
	if *b.Markdown != "md" {
		t.Fatalf("store state leaked through returned job: %q", *b.Markdown)
	}
	if b.TargetLocation != nil {
		t.Fatalf("empty location should stay nil, got %q", *b.TargetLocation)
	}
}
