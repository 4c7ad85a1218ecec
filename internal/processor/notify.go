package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/ocrmd/internal/common"
	"github.com/jo-hoe/ocrmd/internal/jobs"
)

// EventKind distinguishes finished jobs.
type EventKind string

const (
	EventSuccess EventKind = "success"
	EventError   EventKind = "error"
)

// Event is emitted once per processed job.
type Event struct {
	Kind        EventKind
	JobID       string
	Path        string // transcribed file
	FileName    string
	CallbackURL string
	Markdown    string // success only
	Target      string // success only, empty without a target
	Location    string // success only, empty without a target
	Message     string // error only
}

// Notifier receives job events. Errors are logged by the Worker and never fail a job.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// FuncNotifier adapts a function to Notifier.
type FuncNotifier func(ctx context.Context, ev Event) error

func (f FuncNotifier) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiNotifier fans an event out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CallbackNotifier POSTs a JSON payload to the job's callback URL with linear backoff.
type CallbackNotifier struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration
	Log     *slog.Logger
}

type callbackPayload struct {
	JobID  string          `json:"job_id"`
	Status string          `json:"status"` // completed|failed
	Stage  string          `json:"stage"`
	Error  *string         `json:"error,omitempty"`
	Result *callbackResult `json:"result,omitempty"`
}

type callbackResult struct {
	FileName string `json:"file_name"`
	Target   string `json:"target,omitempty"`
	Location string `json:"location,omitempty"`
	Markdown string `json:"markdown"`
}

// Notify does nothing for events without a callback URL.
func (n *CallbackNotifier) Notify(ctx context.Context, ev Event) error {
	if ev.CallbackURL == "" {
		return nil
	}
	payload := callbackPayload{JobID: ev.JobID}
	switch ev.Kind {
	case EventSuccess:
		payload.Status = common.StatusCompleted
		payload.Stage = string(jobs.StageCompleted)
		payload.Result = &callbackResult{
			FileName: ev.FileName,
			Target:   ev.Target,
			Location: ev.Location,
			Markdown: ev.Markdown,
		}
	default:
		msg := ev.Message
		payload.Status = common.StatusFailed
		payload.Stage = string(jobs.StageFailed)
		payload.Error = &msg
	}
	return n.sendWithRetry(ctx, ev.CallbackURL, payload)
}

func (n *CallbackNotifier) sendWithRetry(ctx context.Context, url string, payload callbackPayload) error {
	max := n.Retries
	if max <= 0 {
		max = 3
	}
	backoff := n.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		err := n.postJSON(ctx, url, payload)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return err
		}
		if n.Log != nil {
			n.Log.Debug("callback attempt failed", "job_id", payload.JobID, "attempt", attempt, "err", err)
		}
		if attempt == max {
			break
		}
		timer := time.NewTimer(time.Duration(attempt) * backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (n *CallbackNotifier) postJSON(ctx context.Context, url string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", common.ContentTypeJSON)

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback status %d", resp.StatusCode)
	}
	return nil
}
