// Package quota enforces per-caller admission limits on training jobs.
// It repurposes the teacher's tenant/namespace quota shape (pkg/tenant in
// the retrieval pack) for a clustering caller instead of a vector
// namespace: a JobQuota bounds how much work one caller may have in
// flight or request in a single call, and a JobUsage tracks what that
// caller currently has running.
package quota

import (
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
)

// JobQuota bounds one caller's training-job footprint.
type JobQuota struct {
	MaxConcurrentJobs int // 0 or negative = unlimited
	MaxKValue         int
	MaxReplicates     int
	MaxInstances      int
}

// JobUsage tracks a caller's current admitted jobs.
type JobUsage struct {
	RunningJobs  int
	LastJobTime  time.Time
	TotalAdmitted int64
	TotalRejected int64
}

// caller bundles one caller's quota and usage behind its own mutex,
// mirroring the teacher's per-Tenant locking rather than a single
// manager-wide lock guarding every field.
type caller struct {
	mu    sync.Mutex
	quota JobQuota
	usage JobUsage
}

// Manager admits or rejects training jobs per caller. A caller exceeding
// MaxConcurrentJobs is rejected immediately rather than queued, matching
// the teacher's immediate-rejection style in CreateTenant/quota checks.
type Manager struct {
	mu      sync.RWMutex
	callers map[string]*caller
	// defaultQuota is applied the first time a callerID is seen.
	defaultQuota JobQuota
}

// NewManager builds a Manager that admits previously-unseen callers under
// defaultQuota.
func NewManager(defaultQuota JobQuota) *Manager {
	return &Manager{
		callers:      make(map[string]*caller),
		defaultQuota: defaultQuota,
	}
}

// SetQuota installs (or replaces) the quota for a specific caller, for
// operators who grant a caller a non-default allowance.
func (m *Manager) SetQuota(callerID string, q JobQuota) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.lockedCaller(callerID)
	c.mu.Lock()
	c.quota = q
	c.mu.Unlock()
}

func (m *Manager) lockedCaller(callerID string) *caller {
	if c, ok := m.callers[callerID]; ok {
		return c
	}
	c := &caller{quota: m.defaultQuota}
	m.callers[callerID] = c
	return c
}

func (m *Manager) callerFor(callerID string) *caller {
	m.mu.RLock()
	c, ok := m.callers[callerID]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lockedCaller(callerID)
}

// Admit checks params and instanceCount against callerID's quota and, if
// they fit, reserves a running-job slot. The returned release func must be
// called exactly once, when the job finishes (success, failure, or
// cancellation), to free the slot. A caller over MaxConcurrentJobs, or a
// request whose K/replicates/instance count exceeds the allowance, is
// rejected immediately — it is never queued.
func (m *Manager) Admit(callerID string, params clustering.Parameters, instanceCount int) (release func(), err error) {
	c := m.callerFor(callerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkQuota(c.quota, params, instanceCount, c.usage.RunningJobs); err != nil {
		c.usage.TotalRejected++
		return nil, err
	}

	c.usage.RunningJobs++
	c.usage.LastJobTime = time.Now()
	c.usage.TotalAdmitted++

	var once sync.Once
	release = func() {
		once.Do(func() {
			c.mu.Lock()
			c.usage.RunningJobs--
			if c.usage.RunningJobs < 0 {
				c.usage.RunningJobs = 0
			}
			c.mu.Unlock()
		})
	}
	return release, nil
}

func checkQuota(q JobQuota, params clustering.Parameters, instanceCount, running int) error {
	if q.MaxConcurrentJobs > 0 && running >= q.MaxConcurrentJobs {
		return fmt.Errorf("quota: caller has %d jobs running, max concurrent is %d", running, q.MaxConcurrentJobs)
	}
	if q.MaxKValue > 0 && params.K > q.MaxKValue {
		return fmt.Errorf("quota: k_value %d exceeds caller max %d", params.K, q.MaxKValue)
	}
	if q.MaxReplicates > 0 && params.NReplicates > q.MaxReplicates {
		return fmt.Errorf("quota: n_replicates %d exceeds caller max %d", params.NReplicates, q.MaxReplicates)
	}
	if q.MaxInstances > 0 && instanceCount > q.MaxInstances {
		return fmt.Errorf("quota: %d instances exceeds caller max %d", instanceCount, q.MaxInstances)
	}
	return nil
}

// Usage returns a snapshot of callerID's current usage. It reports the
// zero value, not an error, for a caller never seen by Admit/SetQuota —
// usage is informational, unlike admission which must fail closed.
func (m *Manager) Usage(callerID string) JobUsage {
	m.mu.RLock()
	c, ok := m.callers[callerID]
	m.mu.RUnlock()
	if !ok {
		return JobUsage{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// ActiveJobs returns the total RunningJobs across every known caller, as
// reported under "active_jobs" by GET /v1/stats. The mlclusters_active_jobs
// gauge is kept separately, by Metrics.JobStarted and Metrics.JobFinished.
func (m *Manager) ActiveJobs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, c := range m.callers {
		c.mu.Lock()
		total += c.usage.RunningJobs
		c.mu.Unlock()
	}
	return total
}
