package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// MemoryStore keeps jobs in process memory. Used by the CLI where nothing outlives the run.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) CreateJob(job *Job) error {
	if err := validateNewJob(job); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("insert job: duplicate id %s", job.ID)
	}
	cp := cloneJob(job)
	s.jobs[job.ID] = cp
	return nil
}

func (s *MemoryStore) UpdateStage(id string, stage Stage, startedAt *time.Time) error {
	return s.update(id, func(j *Job) {
		j.Stage = stage
		if startedAt != nil {
			t := startedAt.UTC()
			j.StartedAt = &t
		}
	})
}

func (s *MemoryStore) SaveResult(id string, markdown, location string, completedAt time.Time) error {
	return s.update(id, func(j *Job) {
		t := completedAt.UTC()
		j.Stage = StageCompleted
		j.Markdown = &markdown
		j.ErrorMessage = nil
		if location != "" {
			j.TargetLocation = &location
		}
		j.CompletedAt = &t
	})
}

func (s *MemoryStore) SaveError(id string, errMsg string, completedAt time.Time) error {
	return s.update(id, func(j *Job) {
		t := completedAt.UTC()
		j.Stage = StageFailed
		j.ErrorMessage = &errMsg
		j.CompletedAt = &t
	})
}

func (s *MemoryStore) GetJob(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (s *MemoryStore) ListJobs(limit int) ([]*Job, error) {
	s.mu.RLock()
	all := lo.Map(lo.Values(s.jobs), func(j *Job, _ int) *Job { return cloneJob(j) })
	s.mu.RUnlock()

	sort.SliceStable(all, func(a, b int) bool {
		if all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].ID < all[b].ID
		}
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	return nil
}

// cloneJob copies the job and its pointer fields so callers never share state with the store.
func cloneJob(j *Job) *Job {
	cp := *j
	cp.CallbackURL = clonePtr(j.CallbackURL)
	cp.Markdown = clonePtr(j.Markdown)
	cp.ErrorMessage = clonePtr(j.ErrorMessage)
	cp.TargetLocation = clonePtr(j.TargetLocation)
	cp.StartedAt = clonePtr(j.StartedAt)
	cp.CompletedAt = clonePtr(j.CompletedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
