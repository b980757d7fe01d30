package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/domain"
	"github.com/linkenthegreat/docex/internal/executor"
	"github.com/linkenthegreat/docex/internal/jobs"
	"github.com/linkenthegreat/docex/internal/providers"
	"github.com/linkenthegreat/docex/internal/selector"
	"github.com/linkenthegreat/docex/internal/stats"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.Job
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.Job)}
}

func (s *memStore) Save(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[job.ID] = job.Clone()
	return nil
}

func (s *memStore) Load(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.records[id]; ok {
		return job.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) LoadAll(ctx context.Context) ([]*domain.Job, error) { return nil, nil }
func (s *memStore) Delete(ctx context.Context, id string) error        { return nil }

type stubProvider struct {
	payload string
}

func (p *stubProvider) Name() string                           { return "local" }
func (p *stubProvider) Models() []string                       { return []string{"m1"} }
func (p *stubProvider) Ping(context.Context) error             { return nil }
func (p *stubProvider) Cost(model string, in, out int) float64 { return 0 }

func (p *stubProvider) Invoke(ctx context.Context, req providers.Request) (*providers.Result, error) {
	return &providers.Result{
		Payload:     json.RawMessage(p.payload),
		InputChars:  len(req.Document),
		OutputChars: len(p.payload),
	}, nil
}

type stubAvailability struct{}

func (stubAvailability) Probe(ctx context.Context) map[string]bool { return map[string]bool{"m1": true} }
func (stubAvailability) ReportSuccess(provider string)             {}
func (stubAvailability) ReportFailure(provider string, err error)  {}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, input string) (string, error) {
	return "document body", nil
}

type testApp struct {
	app  *App
	exec *executor.Executor
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	registry := jobs.NewRegistry(newMemStore(), zerolog.Nop())
	tracker := stats.NewTracker()
	prov := &stubProvider{payload: `{"items":[{"name":"Alice"}],"confidence":0.9}`}
	sel := selector.New([]selector.Strategy{
		{Name: prov.Name(), Models: prov.Models(), Local: true},
	}, prov.Name())
	exec := executor.New(context.Background(), executor.Options{
		Registry:  registry,
		Resolver:  stubResolver{},
		Selector:  sel,
		Prober:    stubAvailability{},
		Tracker:   tracker,
		Providers: map[string]providers.Provider{prov.Name(): prov},
		Logger:    zerolog.Nop(),
	})
	return &testApp{
		app:  NewApp(exec, registry, tracker, stubAvailability{}, zerolog.Nop()),
		exec: exec,
	}
}

// withURLParam injects a chi route parameter so handlers can be exercised
// without a full router.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func submitAndWait(t *testing.T, ta *testApp) string {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/extract", strings.NewReader(`{"input":"report.txt","priority":"cost"}`))
	ta.app.StartExtraction(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	id, _ := decodeBody(t, rec)["job_id"].(string)
	if id == "" {
		t.Fatalf("no job_id in response")
	}
	ta.exec.Wait()
	return id
}

func TestStartExtraction(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/agent/extract", strings.NewReader(`{"input":"report.txt","priority":"quality"}`))
	ta.app.StartExtraction(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["status"] != "started" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["job_id"] == "" {
		t.Fatalf("missing job_id")
	}
	if body["estimated_duration"].(float64) != 90 {
		t.Fatalf("estimated_duration = %v, want 90", body["estimated_duration"])
	}
	ta.exec.Wait()
}

func TestStartExtractionValidation(t *testing.T) {
	ta := newTestApp(t)
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"empty input", `{"input":"  "}`},
		{"bad priority", `{"input":"a.txt","priority":"cheap"}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/agent/extract", strings.NewReader(tc.body))
		ta.app.StartExtraction(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestExtractionStatusLifecycle(t *testing.T) {
	ta := newTestApp(t)
	id := submitAndWait(t, ta)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/agent/extract/"+id+"/status", nil)
	req = withURLParam(req, "id", id)
	ta.app.ExtractionStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	if body["status"] != "complete" {
		t.Fatalf("job status = %v, body %v", body["status"], body)
	}
	if body["progress"].(float64) != 100 {
		t.Fatalf("progress = %v, want 100", body["progress"])
	}
	if _, ok := body["results"]; !ok {
		t.Fatalf("complete status response missing results")
	}
}

func TestExtractionStatusNotFound(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/agent/extract/nope/status", nil), "id", "nope")
	ta.app.ExtractionStatus(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestExtractionResults(t *testing.T) {
	ta := newTestApp(t)
	id := submitAndWait(t, ta)

	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/agent/extract/"+id+"/results", nil), "id", id)
	ta.app.ExtractionResults(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decodeBody(t, rec)
	results, ok := body["results"].(map[string]any)
	if !ok {
		t.Fatalf("results missing: %v", body)
	}
	if _, ok := results["items"]; !ok {
		t.Fatalf("results missing items: %v", results)
	}
	meta, ok := body["metadata"].(map[string]any)
	if !ok || meta["model_used"] != "m1" {
		t.Fatalf("metadata = %v", meta)
	}
}

func TestExtractionResultsNotReady(t *testing.T) {
	ta := newTestApp(t)
	// Create a pending job directly, bypassing the executor.
	job, err := ta.app.Registry.Create(context.Background(), "slow.txt", domain.PriorityCost, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rec := httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/agent/extract/"+job.ID+"/results", nil), "id", job.ID)
	ta.app.ExtractionResults(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "not_ready" {
		t.Fatalf("error = %v, want not_ready", body["error"])
	}
}

func TestListJobsFiltersAndSorts(t *testing.T) {
	ta := newTestApp(t)
	submitAndWait(t, ta)
	submitAndWait(t, ta)

	rec := httptest.NewRecorder()
	ta.app.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/agent/jobs?status=complete", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	jobsList, ok := body["jobs"].([]any)
	if !ok || len(jobsList) != 2 {
		t.Fatalf("jobs = %v, want 2 entries", body["jobs"])
	}

	rec = httptest.NewRecorder()
	ta.app.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/agent/jobs?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus filter status = %d, want 400", rec.Code)
	}
}

func TestSystemStatus(t *testing.T) {
	ta := newTestApp(t)
	submitAndWait(t, ta)

	rec := httptest.NewRecorder()
	ta.app.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/api/agent/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	avail, ok := body["models_available"].(map[string]any)
	if !ok || avail["m1"] != true {
		t.Fatalf("models_available = %v", body["models_available"])
	}
	counts, ok := body["job_counts"].(map[string]any)
	if !ok || counts["complete"].(float64) != 1 {
		t.Fatalf("job_counts = %v", body["job_counts"])
	}
	perf, ok := body["performance"].(map[string]any)
	if !ok || perf["total_submitted"].(float64) != 1 {
		t.Fatalf("performance = %v", body["performance"])
	}
	estimates, ok := body["cost_estimates"].(map[string]any)
	if !ok || len(estimates) != 4 {
		t.Fatalf("cost_estimates = %v", body["cost_estimates"])
	}
	if body["recommended_priority"] == "" {
		t.Fatalf("missing recommended_priority")
	}
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t)
	rec := httptest.NewRecorder()
	ta.app.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
