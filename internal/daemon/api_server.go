package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/jobstore"
	"mediaflow/internal/logging"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
	"mediaflow/internal/workflow"
)

// maxRequestBytes caps submitted request bodies.
const maxRequestBytes = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.handler = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.daemon.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.daemon.metrics.Handler())
	}
	if cfg.Storage.Backend == config.StorageLocal && cfg.Storage.LocalDir != "" {
		r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(cfg.Storage.LocalDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(cfg.Paths.APIToken))
		r.Get("/status", s.handleStatus)
		r.Get("/activities", s.handleActivities)
		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/result", s.handleResult)
		r.Get("/jobs/{id}/results/{activity}", s.handleActivityResult)
	})

	if len(cfg.Paths.AllowedOrigins) == 0 {
		return r
	}
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Paths.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No write timeout: result endpoints block until the job finishes.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.server = nil
	s.listener = nil
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Storage:      status.Storage,
		Jobs:         api.StateCounts(status.Jobs),
		History:      api.StateCounts(status.History),
		Staging: api.StagingStatus{
			Dir:         status.StagingDir,
			Directories: status.StagingDirs,
			Bytes:       status.StagingBytes,
		},
		Checks:       api.FromChecks(status.Checks),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) handleActivities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ActivitiesResponse{Activities: s.daemon.manager.Registry().Names()})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req request.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, services.Invalid("body", "decode request: %v", err))
		return
	}

	ctx := r.Context()
	if id := middleware.GetReqID(ctx); id != "" {
		ctx = services.WithRequestID(ctx, id)
	}
	job, err := s.daemon.manager.Submit(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{ID: job.ID(), State: string(job.Status().State)})
		return
	}
	result, err := job.Wait(r.Context())
	if err != nil {
		s.writeJobError(w, job, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobstore.Filter{}
	for _, value := range query["status"] {
		for _, state := range strings.Split(value, ",") {
			if state = strings.TrimSpace(state); state != "" {
				filter.States = append(filter.States, workflow.State(state))
			}
		}
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, services.Invalid("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	records, err := s.daemon.store.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	jobs := make([]api.Job, 0, len(records))
	for i := range records {
		if job, ok := s.daemon.manager.Job(records[i].ID); ok {
			jobs = append(jobs, liveView(job))
			continue
		}
		jobs = append(jobs, api.FromRecord(&records[i]))
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if job, ok := s.daemon.manager.Job(id); ok {
		s.writeJSON(w, http.StatusOK, api.JobResponse{Job: liveView(job)})
		return
	}
	record, err := s.daemon.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromRecord(record)})
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if job, ok := s.daemon.manager.Job(id); ok {
		result, err := job.Wait(r.Context())
		if err != nil {
			s.writeJobError(w, job, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromResult(result))
		return
	}

	record, err := s.finishedRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if record.State == workflow.StateFailed {
		s.writeRecordError(w, record)
		return
	}
	var result map[string]any
	if err := json.Unmarshal(record.Result, &result); err != nil {
		s.writeError(w, fmt.Errorf("decode stored result of job %s: %w", id, err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ResultResponse{ID: record.ID, Request: record.Request, Result: result})
}

func (s *apiServer) handleActivityResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	activity := chi.URLParam(r, "activity")
	if job, ok := s.daemon.manager.Job(id); ok {
		value, err := job.Get(r.Context(), activity)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ActivityResultResponse{ID: id, Activity: activity, Result: value})
		return
	}

	record, err := s.finishedRecord(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, task := range record.Tasks {
		if task.Activity == activity && task.State == workflow.TaskFailed {
			s.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: task.Error, Kind: "activity", Failed: record.Failed})
			return
		}
	}
	var results map[string]json.RawMessage
	if len(record.Result) > 0 {
		if err := json.Unmarshal(record.Result, &results); err != nil {
			s.writeError(w, fmt.Errorf("decode stored result of job %s: %w", id, err))
			return
		}
	}
	value, ok := results[activity]
	if !ok {
		s.writeError(w, services.Wrap(services.ErrNotFound, "job", id, "no stored result for activity "+activity, nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ActivityResultResponse{ID: id, Activity: activity, Result: value})
}

// finishedRecord loads a job that is no longer held in memory. Such a job
// can only be answered from history once it is terminal.
func (s *apiServer) finishedRecord(ctx context.Context, id string) (*jobstore.Job, error) {
	record, err := s.daemon.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.State.Terminal() {
		return nil, services.Wrap(services.ErrNotFound, "job", id, "job is not held by this daemon", nil)
	}
	return record, nil
}

func liveView(job *workflow.Job) api.Job {
	status := job.Status()
	var result map[string]any
	if status.State == workflow.StateCompleted {
		result = job.Results()
	}
	return api.FromStatus(status, result)
}

// statusCode maps the error taxonomy onto HTTP status codes.
func statusCode(err error) int {
	if jobFailure(err) {
		return http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) api.ErrorResponse {
	body := api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	return body
}

// jobFailure reports whether err is a job or activity failure. Those are
// server-side outcomes whatever marker the underlying cause wraps.
func jobFailure(err error) bool {
	var staged *services.StagingError
	var failed *services.ActivityError
	var deadline *services.DeadlineExceededError
	var heartbeat *services.HeartbeatTimeoutError
	return errors.As(err, &staged) ||
		errors.As(err, &failed) ||
		errors.As(err, &deadline) ||
		errors.As(err, &heartbeat)
}

func (s *apiServer) writeJobError(w http.ResponseWriter, job *workflow.Job, err error) {
	body := errorBody(err)
	body.Failed = job.Status().Failed
	s.writeJSON(w, statusCode(err), body)
}

func (s *apiServer) writeRecordError(w http.ResponseWriter, record *jobstore.Job) {
	s.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
		Error:  record.Error,
		Kind:   record.ErrorKind,
		Failed: record.Failed,
	})
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusCode(err), errorBody(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}
