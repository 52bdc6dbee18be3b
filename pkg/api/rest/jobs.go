package rest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

// JobState is the lifecycle of one asynchronous training job (§4.12).
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// job is one submitted training run. Its cancel func is the
// context.CancelFunc the cancel route (§5) invokes; the worker goroutine
// observes the resulting context.Canceled through clustering.Engine's own
// ctx.Err() polling rather than through any bespoke flag.
type job struct {
	mu sync.Mutex

	ID        string
	CallerID  string
	State     JobState
	Request   TrainRequest
	Result    *clustering.RunResult
	Err       error
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time

	cancel  context.CancelFunc
	release func()
}

func (j *job) snapshot() job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return job{
		ID:        j.ID,
		CallerID:  j.CallerID,
		State:     j.State,
		Request:   j.Request,
		Result:    j.Result,
		Err:       j.Err,
		CreatedAt: j.CreatedAt,
		StartedAt: j.StartedAt,
		EndedAt:   j.EndedAt,
	}
}

func (j *job) finish(state JobState, result *clustering.RunResult, err error) {
	j.mu.Lock()
	j.State = state
	j.Result = result
	j.Err = err
	j.EndedAt = time.Now()
	j.mu.Unlock()
}

// jobStore is a process-local, in-memory job registry. A production
// deployment spanning multiple processes would back this with a shared
// store; that is outside this module's scope (§1 non-goals: single-process
// training service).
type jobStore struct {
	mu   sync.RWMutex
	byID map[string]*job
}

func newJobStore() *jobStore {
	return &jobStore{byID: make(map[string]*job)}
}

func (s *jobStore) put(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[j.ID] = j
}

func (s *jobStore) get(id string) (*job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.byID[id]
	return j, ok
}

func (s *jobStore) counts() map[JobState]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[JobState]int, 5)
	for _, j := range s.byID {
		out[j.snapshot().State]++
	}
	return out
}

// errJobNotFound is returned by handlers when a job id is unknown.
var errJobNotFound = fmt.Errorf("rest: job not found")
