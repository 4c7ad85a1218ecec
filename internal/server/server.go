package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jo-hoe/ocrmd/internal/common"
	"github.com/jo-hoe/ocrmd/internal/config"
	"github.com/jo-hoe/ocrmd/internal/jobs"
	"github.com/jo-hoe/ocrmd/internal/metrics"
	"github.com/jo-hoe/ocrmd/internal/storage"
	"github.com/jo-hoe/ocrmd/internal/transcribe"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type Service struct {
	Log       *slog.Logger
	Cfg       *config.Config
	Store     jobs.Store
	Queue     *jobs.Queue
	Uploader  *storage.Uploader
	Processor jobs.Processor
	Metrics   *metrics.Metrics // optional, serves /metrics when set
}

// NewHTTPServer builds the http.Server with routes and middleware.
func NewHTTPServer(svc *Service) *http.Server {
	return &http.Server{
		Addr:         svc.Cfg.Server.Addr,
		Handler:      svc.Handler(),
		ReadTimeout:  svc.Cfg.Server.ReadTimeout,
		WriteTimeout: svc.Cfg.Server.WriteTimeout,
		IdleTimeout:  svc.Cfg.Server.IdleTimeout,
	}
}

// Handler returns the routed handler wrapped in logging and recovery middleware.
func (svc *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+common.PathHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if svc.Metrics != nil {
		mux.Handle(http.MethodGet+" "+common.PathMetrics, svc.Metrics.Handler())
	}

	mux.HandleFunc(http.MethodPost+" "+common.PathTranscriptions, svc.withCommon(svc.handleCreateTranscription))
	mux.HandleFunc(http.MethodGet+" "+common.PathTranscriptions, svc.withCommon(svc.handleListTranscriptions))
	mux.HandleFunc(http.MethodGet+" "+common.PathTranscriptions+"/{id}", svc.withCommon(svc.handleGetTranscription))

	return loggingMiddleware(recoveryMiddleware(mux, svc.Log), svc.Log)
}

func (svc *Service) withCommon(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Enforce API key if configured
		if key := strings.TrimSpace(svc.Cfg.Server.APIKey); key != "" {
			if r.Header.Get(common.HeaderAPIKey) != key {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		// Enforce max body size; leave room for the multipart envelope
		if max := safeInt64(svc.Cfg.Server.MaxUploadSize); max > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max+64*1024)
		}
		next.ServeHTTP(w, r)
	}
}

type createResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

func (svc *Service) handleCreateTranscription(w http.ResponseWriter, r *http.Request) {
	maxUpload := safeInt64(svc.Cfg.Server.MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fileHeader := r.MultipartForm.File["file"]
	if len(fileHeader) == 0 {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	uploaded := fileHeader[0]

	callbackURLPtr, err := parseOptionalURL(r.FormValue("callback_url"))
	if err != nil {
		http.Error(w, "invalid callback_url", http.StatusBadRequest)
		return
	}
	prefer := strings.ToLower(strings.TrimSpace(r.Header.Get(common.HeaderPrefer)))
	async := strings.Contains(prefer, common.PreferRespondAsync)
	// Synchronous callers get the result in the response; callbacks are for async jobs only.
	if !async {
		callbackURLPtr = nil
	}

	srcPath, cleanup, mimeType, err := svc.Uploader.SaveMultipart(uploaded, maxUpload)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "upload failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	// The worker cleans up for async jobs; everything else is removed here.
	defer func() {
		if cleanup != nil {
			_ = cleanup()
		}
	}()

	job := jobs.Job{
		ID:          uuid.NewString(),
		SourcePath:  srcPath,
		FileName:    path.Base(strings.ReplaceAll(uploaded.Filename, "\\", "/")),
		MimeType:    mimeType,
		TargetName:  svc.targetName(),
		CallbackURL: callbackURLPtr,
		Stage:       jobs.StageQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if err := svc.Store.CreateJob(&job); err != nil {
		svc.Log.Error("persist job", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	svc.Log.Info("job created", "job_id", job.ID, "file", job.FileName, "mime", mimeType, "target", job.TargetName)

	if async {
		if err := svc.Queue.Enqueue(jobs.WorkItem{Job: job, Cleanup: cleanup}); err != nil {
			_ = svc.Store.SaveError(job.ID, err.Error(), time.Now().UTC())
			http.Error(w, "queue full, try later", http.StatusServiceUnavailable)
			return
		}
		cleanup = nil
		svc.Log.Info("job enqueued", "job_id", job.ID)
		writeJSON(w, http.StatusAccepted, createResponse{
			JobID:     job.ID,
			StatusURL: path.Join(common.PathTranscriptions, job.ID),
		})
		return
	}

	// Synchronous path: process inline and return the Markdown itself.
	if err := svc.Processor.Process(r.Context(), jobs.WorkItem{Job: job}); err != nil {
		svc.Log.Error("processing failed", "job_id", job.ID, "err", err)
		var extErr *transcribe.ExternalCallError
		if errors.As(err, &extErr) {
			http.Error(w, extErr.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	done, err := svc.Store.GetJob(job.ID)
	if err != nil || done.Markdown == nil {
		svc.Log.Error("load finished job", "job_id", job.ID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", common.ContentTypeMarkdown)
	w.Header().Set("X-Job-Id", job.ID)
	if done.TargetLocation != nil {
		w.Header().Set("Content-Location", *done.TargetLocation)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, *done.Markdown)
}

func (svc *Service) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	job, err := svc.Store.GetJob(id)
	if errors.Is(err, jobs.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		svc.Log.Error("load job", "job_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobToOut(job, true))
}

func (svc *Service) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}
	list, err := svc.Store.ListJobs(limit)
	if err != nil {
		svc.Log.Error("list jobs", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": lo.Map(list, func(j *jobs.Job, _ int) jobOut { return jobToOut(j, false) }),
	})
}

func (svc *Service) targetName() string {
	if svc.Cfg.Target.Type == common.TargetNone {
		return ""
	}
	return svc.Cfg.Target.Name
}

type jobOut struct {
	JobID        string        `json:"job_id"`
	FileName     string        `json:"file_name"`
	MimeType     string        `json:"mime_type"`
	Stage        string        `json:"stage"`
	CreatedAt    time.Time     `json:"created_at"`
	StartedAt    *time.Time    `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at"`
	Error        *string       `json:"error"`
	Markdown     *string       `json:"markdown,omitempty"`
	TargetResult *targetResult `json:"target_result,omitempty"`
}

type targetResult struct {
	Target   string `json:"target"`
	Location string `json:"location"`
}

func jobToOut(job *jobs.Job, withMarkdown bool) jobOut {
	out := jobOut{
		JobID:       job.ID,
		FileName:    job.FileName,
		MimeType:    job.MimeType,
		Stage:       string(job.Stage),
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Error:       job.ErrorMessage,
	}
	if withMarkdown {
		out.Markdown = job.Markdown
	}
	if job.TargetLocation != nil {
		out.TargetResult = &targetResult{Target: job.TargetName, Location: *job.TargetLocation}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", common.ContentTypeJSON)
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(v)
}

func safeInt64(u config.ByteSize) int64 {
	if u > config.ByteSize(math.MaxInt64) {
		return math.MaxInt64
	}
	return int64(u) // #nosec G115 - safe cast after explicit upper-bound check
}

func parseOptionalURL(s string) (*string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil, nil
	}
	u, err := url.ParseRequestURI(v)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("callback_url must be http or https")
	}
	return &v, nil
}

func loggingMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &writeWrap{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.code,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

type writeWrap struct {
	http.ResponseWriter
	code int
}

func (w *writeWrap) WriteHeader(statusCode int) {
	w.code = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func recoveryMiddleware(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
