package jobs

import (
	"errors"
	"time"
)

// Stage represents the lifecycle stage of a transcription job.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageTranscribing Stage = "transcribing"
	StageWriting      Stage = "writing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ErrNotFound is returned by Store.GetJob for unknown IDs.
var ErrNotFound = errors.New("job not found")

// Job describes a single file transcription and where its Markdown went.
type Job struct {
	ID             string     // UUIDv4
	SourcePath     string     // file handed to the transcriber (upload temp file or local path)
	FileName       string     // original file name, used for naming the output
	MimeType       string     // sniffed mime type
	TargetName     string     // configured target name, empty when Markdown is only kept here
	CallbackURL    *string    // optional callback
	Stage          Stage      // current stage
	Markdown       *string    // transcription result once completed
	ErrorMessage   *string    // last error, if any
	TargetLocation *string    // result location reported by the target
	CreatedAt      time.Time  // creation time
	StartedAt      *time.Time // when processing actually started
	CompletedAt    *time.Time // when finished (success or failure)
}

// Store defines persistence for Jobs and their lifecycle.
type Store interface {
	CreateJob(job *Job) error
	UpdateStage(id string, stage Stage, startedAt *time.Time) error
	SaveResult(id string, markdown, location string, completedAt time.Time) error
	SaveError(id string, errMsg string, completedAt time.Time) error
	GetJob(id string) (*Job, error)
	// ListJobs returns the most recently created jobs first; limit <= 0 means all.
	ListJobs(limit int) ([]*Job, error)
	Close() error
}

func validateNewJob(job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job.ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Stage == "" {
		job.Stage = StageQueued
	}
	return nil
}
