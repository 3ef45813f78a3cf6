package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"profiler/internal/analyzer"
	"profiler/internal/backend"
	"profiler/internal/config"
	"profiler/internal/interview"
	"profiler/internal/profile"
	"profiler/internal/recall"
	"profiler/internal/store"
)

type fieldStub struct {
	name  string
	ref   string
	value string
}

func (s *fieldStub) Name() string { return s.name }

func (s *fieldStub) Analyze(ctx context.Context, in analyzer.Input) (analyzer.Result, error) {
	p := profile.NewPatch(s.name, in.Seq)
	if s.ref != "" {
		r, err := profile.ParseFieldRef(s.ref)
		if err != nil {
			return analyzer.Result{}, err
		}
		p.Add(r.Domain, r.Name, s.value)
	}
	return analyzer.Result{Patch: p}, nil
}

func newTestServer(t *testing.T) (*Server, *backend.MockClient) {
	t.Helper()

	cfg := config.InterviewConfig{
		Phases: []config.PhaseConfig{
			{
				Name:           "background",
				OpeningPrompt:  "Tell me about yourself.",
				RequiredFields: []string{"personal_info.background"},
				Analyzers:      []string{"alpha"},
				MaxRetries:     2,
			},
		},
		AnalyzerPriority: []string{"alpha"},
		AnalyzerTimeout:  "5s",
		Backpressure:     config.BackpressureQueue,
		HistoryWindow:    5,
	}

	reg := analyzer.NewRegistry()
	if err := reg.Register(&fieldStub{name: "alpha", ref: "personal_info.background", value: "stubbed"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	client := backend.NewMockClient()
	recaller := recall.Noop{}
	coord, err := interview.NewCoordinator(cfg,
		interview.NewRegistry(store.Noop{}, recaller), client, reg, recaller, store.Noop{})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return New(":0", coord), client
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestBanner(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var banner map[string]string
	decode(t, w, &banner)
	if banner["service"] != "profiler" {
		t.Errorf("banner = %v", banner)
	}
}

func TestFullInterviewOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	// Start
	w := doJSON(t, router, http.MethodPost, "/interview/start", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	var started startResponse
	decode(t, w, &started)
	if started.SessionID == "" || started.Phase != "background" || started.Prompt == "" {
		t.Fatalf("start response = %+v", started)
	}

	// Respond: stub analyzer fills the only required field, so this
	// single exchange completes the interview.
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/interview/%s/respond", started.SessionID),
		respondRequest{Message: "I was a teacher"})
	if w.Code != http.StatusOK {
		t.Fatalf("respond status = %d: %s", w.Code, w.Body.String())
	}
	var ex interview.Exchange
	decode(t, w, &ex)
	if !ex.Completed || ex.FieldCount != 1 {
		t.Fatalf("exchange = %+v", ex)
	}

	// Further respond conflicts.
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/interview/%s/respond", started.SessionID),
		respondRequest{Message: "again"})
	if w.Code != http.StatusConflict {
		t.Errorf("respond after completion status = %d", w.Code)
	}

	// Report
	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/interview/%s/report", started.SessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("report status = %d", w.Code)
	}
	var rep interview.Report
	decode(t, w, &rep)
	if !rep.Completed || len(rep.Domains) != 1 {
		t.Errorf("report = %+v", rep)
	}

	// List
	w = doJSON(t, router, http.MethodGet, "/interview/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
}

func TestRespondValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/interview/start", nil)
	var started startResponse
	decode(t, w, &started)

	path := fmt.Sprintf("/interview/%s/respond", started.SessionID)

	w = doJSON(t, router, http.MethodPost, path, respondRequest{Message: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty message status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", rec.Code)
	}
}

func TestUnknownSessionRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/interview/ghost/respond", respondRequest{Message: "hi"}},
		{http.MethodGet, "/interview/ghost/report", nil},
		{http.MethodPost, "/interview/ghost/archive", nil},
		{http.MethodDelete, "/interview/ghost/", nil},
	} {
		w := doJSON(t, router, tc.method, tc.path, tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestBackendDownMapsTo503(t *testing.T) {
	srv, client := newTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/interview/start", nil)
	var started startResponse
	decode(t, w, &started)

	client.FailWith(fmt.Errorf("wrapped: %w", backend.ErrUnavailable))
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/interview/%s/respond", started.SessionID),
		respondRequest{Message: "hello"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestArchiveAndAbortRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/interview/start", nil)
	var started startResponse
	decode(t, w, &started)

	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/interview/%s/archive", started.SessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("archive status = %d", w.Code)
	}

	// Archived session responds with 409.
	w = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/interview/%s/respond", started.SessionID),
		respondRequest{Message: "hi"})
	if w.Code != http.StatusConflict {
		t.Errorf("respond on archived status = %d", w.Code)
	}

	// Abort a second session.
	w = doJSON(t, router, http.MethodPost, "/interview/start", nil)
	var second startResponse
	decode(t, w, &second)

	w = doJSON(t, router, http.MethodDelete,
		fmt.Sprintf("/interview/%s/", second.SessionID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("abort status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/interview/%s/report", second.SessionID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("report on aborted status = %d", w.Code)
	}
}
