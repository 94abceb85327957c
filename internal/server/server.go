package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/copyleftdev/hive/internal/config"
	"github.com/copyleftdev/hive/internal/logging"
	"github.com/copyleftdev/hive/internal/metrics"
	"github.com/copyleftdev/hive/internal/optimization"
	"github.com/copyleftdev/hive/internal/optimization/colony"
)

var (
	errRateLimited = errors.New("submission rate exceeded")
	errNotFound    = errors.New("optimization not found")
	errClosed      = errors.New("server is shutting down")
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StartRequest describes a run. Nil fields take the configured defaults.
type StartRequest struct {
	NumBees   *int     `json:"num_bees,omitempty"`
	MaxIter   *int     `json:"max_iter,omitempty"`
	Limit     *int     `json:"limit,omitempty"`
	Lower     *float64 `json:"lower,omitempty"`
	Upper     *float64 `json:"upper,omitempty"`
	Seed      *int64   `json:"seed,omitempty"`
	Objective string   `json:"objective,omitempty"`
}

// Job tracks one optimization run.
// All fields are guarded by Server.jobsMu.
type Job struct {
	ID          string
	Status      Status
	Objective   string
	Config      colony.Config
	StartTime   time.Time
	EndTime     *time.Time
	Iteration   int
	Best        *optimization.Solution
	History     []optimization.Iteration
	Evaluations int
	Err         string
	LastUpdated time.Time
}

// Server exposes colony runs as asynchronous jobs over HTTP and JSON-RPC.
type Server struct {
	cfg     *config.Config
	logger  Logger
	metrics *metrics.Metrics

	limiter *rate.Limiter
	workers *semaphore.Weighted

	// ctx is cancelled by Close; pending jobs stop waiting for a worker.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobs   map[string]*Job
	jobsMu sync.RWMutex
}

// NewServer creates a new server instance with the given config, logger and
// metrics.
func NewServer(cfg *config.Config, logger Logger, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		limiter: rate.NewLimiter(rate.Limit(cfg.Optimization.SubmitRate), cfg.Optimization.SubmitBurst),
		workers: semaphore.NewWeighted(int64(cfg.Optimization.WorkerCount)),
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*Job),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/optimizations", s.handleList)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		var req StartRequest
		if err = decodeParam(request.Params, &req); err == nil {
			result, err = s.startJob(req)
		}
	case "optimization.status":
		var req struct {
			ID string `json:"optimization_id"`
		}
		if err = decodeParam(request.Params, &req); err == nil {
			result, err = s.jobStatus(req.ID)
		}
	case "optimization.list":
		result = s.listJobs()
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		code := -32000
		if errors.Is(err, optimization.ErrInvalidConfig) || errors.Is(err, optimization.ErrUnknownObjective) {
			code = -32602
		}
		s.respondWithError(w, code, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// decodeParam decodes the first positional parameter into v. Missing
// parameters leave v untouched.
func decodeParam(params []json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params[0], v); err != nil {
		return optimization.WrapError(err, "invalid params").WithField("params")
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Warn("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// colonyConfig merges req over the configured defaults and enforces the
// service limits.
func (s *Server) colonyConfig(req StartRequest) (colony.Config, string, error) {
	name := req.Objective
	if name == "" {
		name = s.cfg.Colony.Objective
	}
	objective, err := optimization.LookupObjective(name)
	if err != nil {
		return colony.Config{}, "", err
	}

	cc := colony.Config{
		NumBees:    s.cfg.Colony.NumBees,
		MaxIter:    s.cfg.Colony.MaxIter,
		Limit:      s.cfg.Colony.Limit,
		Lower:      s.cfg.Colony.Lower,
		Upper:      s.cfg.Colony.Upper,
		Objective:  objective,
		RandomSeed: s.cfg.Colony.Seed,
	}
	if req.NumBees != nil {
		cc.NumBees = *req.NumBees
	}
	if req.MaxIter != nil {
		cc.MaxIter = *req.MaxIter
	}
	if req.Limit != nil {
		cc.Limit = *req.Limit
	}
	if req.Lower != nil {
		cc.Lower = *req.Lower
	}
	if req.Upper != nil {
		cc.Upper = *req.Upper
	}
	if req.Seed != nil {
		cc.RandomSeed = *req.Seed
	}

	if err := cc.Validate(); err != nil {
		return colony.Config{}, "", err
	}
	if cc.NumBees > s.cfg.Optimization.MaxBees {
		return colony.Config{}, "", optimization.InvalidConfigf("num_bees",
			"exceeds service limit %d", s.cfg.Optimization.MaxBees).WithComponent("server")
	}
	if cc.MaxIter > s.cfg.Optimization.MaxIterations {
		return colony.Config{}, "", optimization.InvalidConfigf("max_iter",
			"exceeds service limit %d", s.cfg.Optimization.MaxIterations).WithComponent("server")
	}
	return cc, name, nil
}

// startJob validates req, registers a pending job and starts it in the
// background.
func (s *Server) startJob(req StartRequest) (interface{}, error) {
	if s.ctx.Err() != nil {
		return nil, errClosed
	}
	if !s.limiter.Allow() {
		return nil, errRateLimited
	}

	cc, name, err := s.colonyConfig(req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &Job{
		ID:          "opt_" + xid.New().String(),
		Status:      StatusPending,
		Objective:   name,
		Config:      cc,
		StartTime:   now,
		LastUpdated: now,
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	evicted := s.evictLocked()
	s.jobsMu.Unlock()

	if evicted > 0 {
		s.logger.Debug("Evicted finished optimizations", map[string]interface{}{
			"evicted": evicted,
			"max":     s.cfg.Optimization.MaxJobs,
		})
	}

	s.wg.Add(1)
	go s.runJob(job)

	s.logger.Info("Optimization queued", map[string]interface{}{
		"optimization_id": job.ID,
		"objective":       name,
		"num_bees":        cc.NumBees,
		"max_iter":        cc.MaxIter,
	})

	return map[string]interface{}{
		"optimization_id": job.ID,
		"status":          StatusPending,
	}, nil
}

// runJob waits for a worker slot and executes the run. Runs are not
// preemptible; only jobs still waiting for a slot observe Close.
func (s *Server) runJob(job *Job) {
	defer s.wg.Done()

	if err := s.workers.Acquire(s.ctx, 1); err != nil {
		s.finishJob(job, nil, errClosed)
		return
	}
	defer s.workers.Release(1)

	s.jobsMu.Lock()
	job.Status = StatusRunning
	job.LastUpdated = time.Now()
	cc := job.Config
	s.jobsMu.Unlock()

	progress := optimization.ObserverFunc(func(it optimization.Iteration) {
		best := it.Best
		s.jobsMu.Lock()
		job.Iteration = it.Number
		job.Best = &best
		job.LastUpdated = time.Now()
		s.jobsMu.Unlock()
	})

	jobLogger := s.logger.WithFields(map[string]interface{}{"optimization_id": job.ID})
	done := s.metrics.RunStarted(job.Objective)

	opt, err := colony.New(cc,
		colony.WithObserver(progress),
		colony.WithObserver(s.metrics.Observer(job.Objective)),
		colony.WithLogger(jobLogger.Zap()),
	)
	var res *optimization.Result
	if err == nil {
		res, err = opt.Run()
	}

	if err != nil {
		done(string(StatusFailed))
	} else {
		done(string(StatusCompleted))
	}
	s.finishJob(job, res, err)
}

func (s *Server) finishJob(job *Job, res *optimization.Result, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	if err != nil {
		job.Status = StatusFailed
		job.Err = err.Error()
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": job.ID,
			"error":           err.Error(),
		})
		return
	}

	best := res.Best
	job.Status = StatusCompleted
	job.Best = &best
	job.History = res.History
	job.Iteration = res.Iterations
	job.Evaluations = res.Evaluations

	s.logger.Info("Optimization completed", map[string]interface{}{
		"optimization_id": job.ID,
		"best_x":          best.X,
		"best_f":          best.Value,
		"evaluations":     res.Evaluations,
	})
}

// evictLocked drops the oldest finished jobs while the table is over
// capacity. Pending and running jobs are never evicted. jobsMu must be held.
func (s *Server) evictLocked() int {
	excess := len(s.jobs) - s.cfg.Optimization.MaxJobs
	if excess <= 0 {
		return 0
	}

	finished := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.EndTime != nil {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		if finished[i].EndTime.Equal(*finished[j].EndTime) {
			return finished[i].ID < finished[j].ID
		}
		return finished[i].EndTime.Before(*finished[j].EndTime)
	})

	n := min(excess, len(finished))
	for _, job := range finished[:n] {
		delete(s.jobs, job.ID)
	}
	return n
}

// jobStatus returns the current status of a job, including its history
// once it has completed.
func (s *Server) jobStatus(id string) (interface{}, error) {
	if id == "" {
		return nil, optimization.InvalidConfigf("optimization_id", "is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, errNotFound
	}

	response := summarize(job)
	if len(job.History) > 0 {
		response["history"] = job.History
	}
	return response, nil
}

// listJobs returns a summary of every job ordered by start time.
func (s *Server) listJobs() []map[string]interface{} {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})

	out := make([]map[string]interface{}, len(jobs))
	for i, job := range jobs {
		out[i] = summarize(job)
	}
	return out
}

// summarize must be called with jobsMu held.
func summarize(job *Job) map[string]interface{} {
	progress := 1.0
	if job.Config.MaxIter > 0 {
		progress = float64(job.Iteration) / float64(job.Config.MaxIter)
	}
	if job.Status == StatusPending {
		progress = 0
	}

	response := map[string]interface{}{
		"optimization_id": job.ID,
		"status":          job.Status,
		"objective":       job.Objective,
		"progress":        progress,
		"iteration":       job.Iteration,
		"max_iter":        job.Config.MaxIter,
		"start_time":      job.StartTime.Format(time.RFC3339),
		"last_update":     job.LastUpdated.Format(time.RFC3339),
	}
	if job.EndTime != nil {
		response["end_time"] = job.EndTime.Format(time.RFC3339)
	}
	if job.Best != nil {
		response["best_solution"] = *job.Best
	}
	if job.Evaluations > 0 {
		response["evaluations"] = job.Evaluations
	}
	if job.Err != "" {
		response["error"] = job.Err
	}
	return response
}

// Close stops accepting jobs, fails the ones still waiting for a worker and
// waits for running ones to finish.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("Invalid request body: %v", err),
		})
		return
	}

	result, err := s.startJob(req)
	if err != nil {
		s.writeJSON(w, httpStatus(err), map[string]interface{}{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, result)
}

// handleStatus handles the HTTP GET /status/{id} endpoint for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, httpStatus(err), map[string]interface{}{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleList handles GET /optimizations
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"optimizations": s.listJobs(),
	})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, optimization.ErrInvalidConfig), errors.Is(err, optimization.ErrUnknownObjective):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before committing the status so that an encoding
// failure can still be reported as a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{
			"error": "failed to encode response: " + err.Error(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
