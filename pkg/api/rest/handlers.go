package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/vector/internal/clustering"
	"github.com/therealutkarshpriyadarshi/vector/pkg/api/rest/middleware"
	"github.com/therealutkarshpriyadarshi/vector/pkg/config"
	"github.com/therealutkarshpriyadarshi/vector/pkg/observability"
	"github.com/therealutkarshpriyadarshi/vector/pkg/quota"
)

// Handler wires the clustering Engine facade, the quota manager, and
// observability into the training service's HTTP surface. Where the
// teacher's Handler held a gRPC client, this one holds the Engine
// directly — there is nothing to proxy to (§10).
type Handler struct {
	engine   *clustering.Engine
	quota    *quota.Manager
	metrics  *observability.Metrics
	log      *observability.Logger
	jobs     *jobStore
	training config.TrainingConfig
}

// NewHandler creates a new REST API handler.
func NewHandler(engine *clustering.Engine, quotaMgr *quota.Manager, metrics *observability.Metrics, log *observability.Logger, training config.TrainingConfig) *Handler {
	return &Handler{
		engine:   engine,
		quota:    quotaMgr,
		metrics:  metrics,
		log:      log,
		jobs:     newJobStore(),
		training: training,
	}
}

// HealthCheck handles GET /v1/health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// GetStats handles GET /v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"active_jobs": h.quota.ActiveJobs(),
		"jobs_by_state": h.jobs.counts(),
	}, http.StatusOK)
}

// SubmitTrain handles POST /v1/train.
func (h *Handler) SubmitTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Instances) == 0 {
		writeError(w, "instances must not be empty", http.StatusUnprocessableEntity)
		return
	}

	params, err := req.toParameters(h.training.DefaultMaxIterations, h.training.DefaultEpsilon, h.training.DefaultNReplicates)
	if err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	if err := params.Validate(); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}

	callerID := "anonymous"
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok && claims.CallerID != "" {
		callerID = claims.CallerID
	}

	release, err := h.quota.Admit(callerID, params, len(req.Instances))
	if err != nil {
		writeError(w, err.Error(), http.StatusTooManyRequests)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		ID:        uuid.NewString(),
		CallerID:  callerID,
		State:     JobPending,
		Request:   req,
		CreatedAt: time.Now(),
		cancel:    cancel,
		release:   release,
	}
	h.jobs.put(j)
	h.metrics.JobStarted()
	h.log.WithJob(j.ID, j.CallerID).Info("training job submitted", map[string]interface{}{"instances": len(req.Instances)})

	go h.runJob(ctx, j, params)

	writeJSON(w, JobStatusResponse{
		JobID:     j.ID,
		State:     JobPending,
		CreatedAt: j.CreatedAt.UTC().Format(time.RFC3339),
	}, http.StatusAccepted)
}

// runJob executes a job's training run in its own goroutine. It always
// calls j.release exactly once, regardless of outcome.
func (h *Handler) runJob(ctx context.Context, j *job, params clustering.Parameters) {
	defer j.release()

	j.mu.Lock()
	j.State = JobRunning
	j.StartedAt = time.Now()
	j.mu.Unlock()

	targets := distinctTargets(j.Request.Targets)
	var result *clustering.RunResult
	var err error

	if params.MiniBatchMode {
		stream := newSliceStream(j.Request.toInstances())
		batchCount := j.Request.BatchCount
		if batchCount <= 0 {
			batchCount = 1
		}
		result, err = h.engine.TrainMiniBatch(ctx, params, stream, targets, batchCount, j.Request.BatchPercent, clustering.NoopProgress{})
	} else {
		result, err = h.engine.Train(ctx, params, j.Request.toInstances(), targets)
	}

	jobLog := h.log.WithJob(j.ID, j.CallerID)
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		j.finish(JobCancelled, result, err)
		h.metrics.JobFinished("cancelled")
		jobLog.Warn("training job cancelled")
	case err != nil:
		j.finish(JobFailed, nil, err)
		h.metrics.JobFinished("failed")
		jobLog.Error("training job failed", map[string]interface{}{"error": err.Error()})
	default:
		j.finish(JobDone, result, nil)
		h.metrics.JobFinished("done")
		h.metrics.RecordEVA(result.Score)
		h.metrics.RecordClustersDropped(result.Clustering.DroppedClusters)
	}
}

// GetTrainStatus handles GET /v1/train/{job_id}.
func (h *Handler) GetTrainStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	j, ok := h.jobs.get(jobID)
	if !ok {
		writeError(w, errJobNotFound.Error(), http.StatusNotFound)
		return
	}

	snap := j.snapshot()
	resp := JobStatusResponse{
		JobID:     snap.ID,
		State:     snap.State,
		CreatedAt: snap.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !snap.StartedAt.IsZero() {
		resp.StartedAt = snap.StartedAt.UTC().Format(time.RFC3339)
	}
	if !snap.EndedAt.IsZero() {
		resp.EndedAt = snap.EndedAt.UTC().Format(time.RFC3339)
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if snap.State == JobDone && snap.Result != nil {
		result := toTrainResult(snap.Result)
		resp.Result = &result
	}
	writeJSON(w, resp, http.StatusOK)
}

// CancelTrain handles POST /v1/train/{job_id}/cancel.
func (h *Handler) CancelTrain(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	j, ok := h.jobs.get(jobID)
	if !ok {
		writeError(w, errJobNotFound.Error(), http.StatusNotFound)
		return
	}

	snap := j.snapshot()
	if snap.State == JobDone || snap.State == JobFailed || snap.State == JobCancelled {
		writeError(w, fmt.Sprintf("job %s already finished with state %s", jobID, snap.State), http.StatusConflict)
		return
	}
	j.cancel()
	writeJSON(w, map[string]interface{}{"job_id": jobID, "state": "cancelling"}, http.StatusAccepted)
}

// statusForError maps a clustering sentinel error to the HTTP status the
// teacher's REST handlers would give a failed gRPC call (§7).
func statusForError(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return http.StatusConflict
	case errors.Is(err, clustering.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, clustering.ErrEmptyInput), errors.Is(err, clustering.ErrDegenerateInit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, clustering.ErrInsufficientMemory):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}

// splitTrainPath separates "/v1/train/{job_id}" and "/v1/train/{job_id}/cancel"
// into a job id and whether the cancel suffix was present.
func splitTrainPath(path string) (jobID string, isCancel bool) {
	trimmed := strings.TrimPrefix(path, "/v1/train/")
	if strings.HasSuffix(trimmed, "/cancel") {
		return strings.TrimSuffix(trimmed, "/cancel"), true
	}
	return trimmed, false
}
