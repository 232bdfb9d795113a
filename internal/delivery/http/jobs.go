package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
)

// Job tracks a background quote
type Job struct {
	ID          string         `json:"id"`
	Partner     string         `json:"partner"`
	Status      JobStatus      `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      *QuoteResponse `json:"result,omitempty"`
}

// JobStore keeps recent jobs in a bounded, expiring LRU
type JobStore struct {
	mu   sync.Mutex
	jobs *expirable.LRU[string, Job]
	now  func() time.Time
}

func NewJobStore(size int, ttl time.Duration) *JobStore {
	if size <= 0 {
		size = 1024
	}
	return &JobStore{
		jobs: expirable.NewLRU[string, Job](size, nil, ttl),
		now:  time.Now,
	}
}

// Create registers a pending job
func (s *JobStore) Create(partner string) Job {
	job := Job{ID: uuid.NewString(), Partner: partner, Status: JobPending, CreatedAt: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs.Add(job.ID, job)
	return job
}

// Complete stores the result of a job. Jobs that already expired are dropped.
func (s *JobStore) Complete(id string, result *QuoteResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs.Peek(id)
	if !ok {
		return
	}
	now := s.now()
	job.Status = JobDone
	job.CompletedAt = &now
	job.Result = result
	s.jobs.Add(id, job)
}

func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs.Get(id)
}
