package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaflow/internal/activity"
	"mediaflow/internal/api"
	"mediaflow/internal/config"
	"mediaflow/internal/metrics"
	"mediaflow/internal/request"
	"mediaflow/internal/services"
	"mediaflow/internal/staging"
	"mediaflow/internal/storage"
	"mediaflow/internal/testsupport"
	"mediaflow/internal/workflow"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestDaemon(t *testing.T, cfg *config.Config, registrations ...workflow.Registration) *Daemon {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	// nil admits inputFile paths; tests exercising confinement set their own.
	if cfg.Staging.AllowedLocalRoots == nil {
		cfg.Staging.AllowedLocalRoots = []string{os.TempDir()}
	}
	store := testsupport.MustOpenStore(t, cfg)
	registry, err := workflow.NewRegistry(registrations...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	manager := workflow.NewManager(cfg, registry, staging.New(cfg),
		storage.NewLocal(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL, ""),
		workflow.WithHistory(store),
		workflow.WithInvoker(activity.NewInvoker(activity.WithSleeper(noSleep))),
	)
	d, err := New(cfg, store, manager, nil, WithMetrics(metrics.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})
	return d
}

func metadata(value any) workflow.Registration {
	return workflow.Registration{
		Name:      request.VideoMetadata,
		NewParams: request.NewVideoMetadataParams,
		Run: func(context.Context, *workflow.TaskEnv, request.Params) (any, error) {
			return value, nil
		},
	}
}

func failing(name string, err error) workflow.Registration {
	return workflow.Registration{
		Name:      name,
		NewParams: request.NewAudioWaveformParams,
		Run: func(context.Context, *workflow.TaskEnv, request.Params) (any, error) {
			return nil, err
		},
	}
}

func inputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, w.Body.String(), err)
		}
	}
	return w.Code
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, metadata(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSubmitWaitReturnsAggregatedResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, metadata(map[string]any{"duration": 12.5}))
	h := d.api.handler
	file := inputFile(t)

	var result api.ResultResponse
	code := doJSON(t, h, http.MethodPost, "/api/jobs?wait=true", request.Request{
		File:       file,
		Activities: []string{request.VideoMetadata},
	}, &result)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if result.Request.File != file {
		t.Fatalf("request not echoed: %+v", result.Request)
	}
	meta, ok := result.Result[request.VideoMetadata].(map[string]any)
	if !ok || meta["duration"] != 12.5 {
		t.Fatalf("unexpected result: %+v", result.Result)
	}

	var job api.JobResponse
	if code := doJSON(t, h, http.MethodGet, "/api/jobs/"+result.ID, nil, &job); code != http.StatusOK {
		t.Fatalf("get job status = %d", code)
	}
	if !job.Job.Live || job.Job.State != string(workflow.StateCompleted) {
		t.Fatalf("unexpected job view: %+v", job.Job)
	}

	var activityResult api.ActivityResultResponse
	code = doJSON(t, h, http.MethodGet, "/api/jobs/"+result.ID+"/results/"+request.VideoMetadata, nil, &activityResult)
	if code != http.StatusOK || activityResult.Activity != request.VideoMetadata {
		t.Fatalf("activity result: %d %+v", code, activityResult)
	}

	var list api.JobListResponse
	if code := doJSON(t, h, http.MethodGet, "/api/jobs?status=completed&limit=5", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != result.ID {
		t.Fatalf("unexpected list: %+v", list.Jobs)
	}
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newTestDaemon(t, cfg, metadata(1)).api.handler

	cases := []struct {
		name  string
		body  any
		field string
	}{
		{"unknown activity", request.Request{File: "/in.mp4", Activities: []string{"video-upscale"}}, "activities"},
		{"missing file", request.Request{Activities: []string{request.VideoMetadata}}, "file"},
		{"unknown field", map[string]any{"file": "/in.mp4", "activities": []string{request.VideoMetadata}, "priority": 1}, "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body api.ErrorResponse
			code := doJSON(t, h, http.MethodPost, "/api/jobs", tc.body, &body)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d (%+v)", code, body)
			}
			if body.Kind != "validation" {
				t.Fatalf("kind = %q", body.Kind)
			}
			if !strings.HasPrefix(body.Field, tc.field) {
				t.Fatalf("field = %q, want %q", body.Field, tc.field)
			}
		})
	}
}

func TestResultFallsBackToHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newTestDaemon(t, cfg, metadata(1))
	ctx := context.Background()

	req := request.Request{File: "/in.mp4", Activities: []string{request.VideoMetadata}}
	now := time.Now()
	if err := d.store.RecordSubmitted(ctx, "old-job", req, now); err != nil {
		t.Fatal(err)
	}
	if err := d.store.RecordCompleted(ctx, "old-job", map[string]any{request.VideoMetadata: 7}, now); err != nil {
		t.Fatal(err)
	}

	var result api.ResultResponse
	if code := doJSON(t, d.api.handler, http.MethodGet, "/api/jobs/old-job/result", nil, &result); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if result.Result[request.VideoMetadata] != float64(7) {
		t.Fatalf("unexpected result: %+v", result.Result)
	}

	var missing api.ErrorResponse
	if code := doJSON(t, d.api.handler, http.MethodGet, "/api/jobs/old-job/results/audio-waveform", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	if code := doJSON(t, d.api.handler, http.MethodGet, "/api/jobs/nope", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
}

func TestAPIRequiresTokenWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	h := newTestDaemon(t, cfg, metadata(1)).api.handler

	req := httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/activities", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var activities api.ActivitiesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &activities); err != nil {
		t.Fatal(err)
	}
	if len(activities.Activities) != 1 || activities.Activities[0] != request.VideoMetadata {
		t.Fatalf("unexpected activities: %v", activities.Activities)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics should not require a token, got %d", w.Code)
	}
}

func TestArtifactsServedFromLocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	h := newTestDaemon(t, cfg, metadata(1)).api.handler

	path := filepath.Join(cfg.Storage.LocalDir, "job", "image-thumbnail", "abc.png")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/artifacts/job/image-thumbnail/abc.png", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "png" {
		t.Fatalf("unexpected artifact response: %d %q", w.Code, w.Body.String())
	}
}

func TestFailedJobReportsServerError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	stepErr := services.Wrap(services.ErrValidation, "waveform", "decode", "unsupported sample format", nil)
	d := newTestDaemon(t, cfg, metadata(1), failing(request.AudioWaveform, stepErr))
	h := d.api.handler
	file := inputFile(t)

	cases := []struct {
		name       string
		file       string
		activities []string
		kind       string
		failed     string
	}{
		{"activity wraps validation marker", file, []string{request.VideoMetadata, request.AudioWaveform}, "validation", request.AudioWaveform},
		{"missing input", filepath.Join(filepath.Dir(file), "missing.mp4"), []string{request.VideoMetadata}, "staging", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body api.ErrorResponse
			code := doJSON(t, h, http.MethodPost, "/api/jobs?wait=true", request.Request{
				File:       tc.file,
				Activities: tc.activities,
			}, &body)
			if code != http.StatusInternalServerError {
				t.Fatalf("status = %d (%+v)", code, body)
			}
			if body.Kind != tc.kind {
				t.Fatalf("kind = %q, want %q", body.Kind, tc.kind)
			}
			if tc.failed != "" && (len(body.Failed) != 1 || body.Failed[0] != tc.failed) {
				t.Fatalf("failed = %v", body.Failed)
			}
		})
	}

	job, err := d.manager.Submit(context.Background(), request.Request{
		File:       file,
		Activities: []string{request.AudioWaveform},
	})
	if err != nil {
		t.Fatal(err)
	}
	<-job.Done()
	var body api.ErrorResponse
	if code := doJSON(t, h, http.MethodGet, "/api/jobs/"+job.ID()+"/results/"+request.AudioWaveform, nil, &body); code != http.StatusInternalServerError {
		t.Fatalf("activity result status = %d (%+v)", code, body)
	}
	if code := doJSON(t, h, http.MethodGet, "/api/jobs/"+job.ID()+"/result", nil, &body); code != http.StatusInternalServerError {
		t.Fatalf("result status = %d (%+v)", code, body)
	}
	if code := doJSON(t, h, http.MethodGet, "/api/jobs/"+job.ID()+"/results/"+request.VideoMetadata, nil, &body); code != http.StatusNotFound {
		t.Fatalf("unrequested activity status = %d (%+v)", code, body)
	}
}

func TestSubmitConfinesLocalInputs(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "clip.mp4")
	if err := os.WriteFile(inside, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := inputFile(t)

	cases := []struct {
		name  string
		roots []string
		file  string
		want  int
	}{
		{"inside root", []string{root}, inside, http.StatusOK},
		{"outside root", []string{root}, outside, http.StatusInternalServerError},
		{"no roots configured", []string{}, inside, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Staging.AllowedLocalRoots = tc.roots
			h := newTestDaemon(t, cfg, metadata(1)).api.handler

			var body api.ErrorResponse
			code := doJSON(t, h, http.MethodPost, "/api/jobs?wait=true", request.Request{
				File:       tc.file,
				Activities: []string{request.VideoMetadata},
			}, &body)
			if code != tc.want {
				t.Fatalf("status = %d, want %d (%+v)", code, tc.want, body)
			}
			if tc.want != http.StatusOK && (body.Kind != "staging" || !strings.Contains(body.Error, "allowed_local_roots")) {
				t.Fatalf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestStartSweepsOrphansBeforeServing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := workflow.Registration{
		Name:      request.VideoMetadata,
		NewParams: request.NewVideoMetadataParams,
		Run: func(ctx context.Context, _ *workflow.TaskEnv, _ request.Params) (any, error) {
			close(started)
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	d := newTestDaemon(t, cfg, blocking)
	defer close(release)

	job, err := d.manager.Submit(context.Background(), request.Request{
		File:       inputFile(t),
		Activities: []string{request.VideoMetadata},
	})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	orphan := filepath.Join(cfg.Paths.StagingDir, "previous-run")
	if err := os.MkdirAll(orphan, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatalf("orphan should be gone once Start returns, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, job.ID())); err != nil {
		t.Fatalf("live job directory removed: %v", err)
	}
}
