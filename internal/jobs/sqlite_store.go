package jobs

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/ocrmd/internal/common"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Busy timeout to avoid SQLITE_BUSY in concurrent access.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, common.SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcription_jobs (
		id TEXT PRIMARY KEY,
		source_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		target_name TEXT NOT NULL,
		callback_url TEXT,
		stage TEXT NOT NULL,
		markdown TEXT,
		error_message TEXT,
		target_location TEXT,
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_transcription_jobs_created ON transcription_jobs (created_at DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const selectColumns = `id, source_path, file_name, mime_type, target_name, callback_url, stage,
	markdown, error_message, target_location, created_at, started_at, completed_at`

func (s *SQLiteStore) CreateJob(job *Job) error {
	if err := validateNewJob(job); err != nil {
		return err
	}
	var cb *string
	if job.CallbackURL != nil && *job.CallbackURL != "" {
		cb = job.CallbackURL
	}

	_, err := s.db.Exec(
		`INSERT INTO transcription_jobs (id, source_path, file_name, mime_type, target_name, callback_url, stage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourcePath, job.FileName, job.MimeType, job.TargetName, cb, string(job.Stage), formatTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateStage(id string, stage Stage, startedAt *time.Time) error {
	var res sql.Result
	var err error
	// started_at is only touched when provided.
	if startedAt != nil {
		res, err = s.db.Exec(`UPDATE transcription_jobs SET stage = ?, started_at = ? WHERE id = ?`, string(stage), formatTime(*startedAt), id)
	} else {
		res, err = s.db.Exec(`UPDATE transcription_jobs SET stage = ? WHERE id = ?`, string(stage), id)
	}
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SaveResult(id string, markdown, location string, completedAt time.Time) error {
	var loc *string
	if location != "" {
		loc = &location
	}
	res, err := s.db.Exec(`UPDATE transcription_jobs
		SET markdown = ?, target_location = ?, stage = ?, error_message = NULL, completed_at = ?
		WHERE id = ?`,
		markdown, loc, string(StageCompleted), formatTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) SaveError(id string, errMsg string, completedAt time.Time) error {
	res, err := s.db.Exec(`UPDATE transcription_jobs
		SET error_message = ?, stage = ?, completed_at = ?
		WHERE id = ?`,
		errMsg, string(StageFailed), formatTime(completedAt), id,
	)
	if err != nil {
		return fmt.Errorf("save error: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+selectColumns+` FROM transcription_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM transcription_jobs ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var cb, markdown, errMsg, loc, started, completed sql.NullString
	var stage, created string

	if err := row.Scan(
		&job.ID,
		&job.SourcePath,
		&job.FileName,
		&job.MimeType,
		&job.TargetName,
		&cb,
		&stage,
		&markdown,
		&errMsg,
		&loc,
		&created,
		&started,
		&completed,
	); err != nil {
		return nil, err
	}

	job.Stage = Stage(stage)
	job.CallbackURL = nullString(cb)
	job.Markdown = nullString(markdown)
	job.ErrorMessage = nullString(errMsg)
	job.TargetLocation = nullString(loc)
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		job.CreatedAt = t
	}
	job.StartedAt = nullTime(started)
	job.CompletedAt = nullTime(completed)
	return &job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
