package job

import (
	"sync"
	"time"
)

// Store is the in-memory job bookkeeping used for status polling. Retention
// is process-lifetime; purging old jobs is left to whatever replaces this
// store in a multi-process deployment.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*Job),
	}
}

func (s *Store) Add(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrNotFound
	}
	return job, nil
}

func (s *Store) SetStatus(job *Job, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Status = status
	job.UpdatedAt = time.Now()
}

func (s *Store) Complete(job *Job, result *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Status = StatusSuccess
	job.Result = result
	job.UpdatedAt = time.Now()
}

func (s *Store) Fail(job *Job, stage, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Status = StatusFailure
	job.Failure = &Failure{Stage: stage, Message: message}
	job.UpdatedAt = time.Now()
}

// Status returns a polling snapshot of a job. The result payload is only
// exposed once the job is terminal.
func (s *Store) Status(id string) (*JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrNotFound
	}

	status := &JobStatus{
		JobID:  job.ID,
		Status: job.Status,
		Ready:  job.Status.Terminal(),
	}
	if status.Ready {
		status.Result = job.Result
		status.Error = job.Failure
	}
	return status, nil
}
