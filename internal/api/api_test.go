package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/wsmaster/internal/domain"
	"github.com/shaiso/wsmaster/internal/engine"
	"github.com/shaiso/wsmaster/internal/events"
	"github.com/shaiso/wsmaster/internal/repo"
)

// --- fakes ---

type fakeRuntimes struct {
	mu sync.Mutex

	startErr    error
	getErr      error
	stopErr     error
	machineErr  error
	removeErr   error
	started     []*domain.Workspace
	removed     []domain.Snapshot
	namespaces  []string
	descriptors map[string]*domain.RuntimeDescriptor
}

func newFakeRuntimes() *fakeRuntimes {
	return &fakeRuntimes{descriptors: make(map[string]*domain.RuntimeDescriptor)}
}

func (f *fakeRuntimes) Start(_ context.Context, ws *domain.Workspace, envName string, _ bool) (*domain.RuntimeDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = append(f.started, ws)
	if f.startErr != nil {
		return nil, f.startErr
	}

	env, _ := ws.Environment(envName)
	dev := domain.Machine{ID: "machine-1", WorkspaceID: ws.ID, EnvName: env.Name, Config: domain.MachineConfig{Name: "dev", Dev: true}}
	desc := &domain.RuntimeDescriptor{
		WorkspaceID: ws.ID,
		Status:      domain.RuntimeStatusRunning,
		EnvName:     env.Name,
		DevMachine:  &dev,
		Machines:    []domain.Machine{dev},
		StartedAt:   time.Now(),
	}
	f.descriptors[ws.ID] = desc
	return desc, nil
}

func (f *fakeRuntimes) Stop(context.Context, string) error { return f.stopErr }

func (f *fakeRuntimes) Get(_ context.Context, id string) (*domain.RuntimeDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	desc, ok := f.descriptors[id]
	if !ok {
		return nil, domain.NotFoundf("Workspace with id '%s' is not running.", id)
	}
	return desc, nil
}

func (f *fakeRuntimes) GetWorkspaces() map[string]domain.WorkspaceState {
	return map[string]domain.WorkspaceState{
		"ws-b": {Status: domain.RuntimeStatusStarting, EnvName: "default"},
		"ws-a": {Status: domain.RuntimeStatusRunning, EnvName: "ci"},
	}
}

func (f *fakeRuntimes) StartMachine(_ context.Context, id string, cfg domain.MachineConfig) (domain.Machine, error) {
	if f.machineErr != nil {
		return domain.Machine{}, f.machineErr
	}
	return domain.Machine{ID: "machine-2", WorkspaceID: id, Config: cfg, Runtime: domain.MachineRuntime{Ready: true}}, nil
}

func (f *fakeRuntimes) StopMachine(context.Context, string, string) error { return f.machineErr }

func (f *fakeRuntimes) GetMachine(_ context.Context, id, mid string) (domain.Machine, error) {
	if f.machineErr != nil {
		return domain.Machine{}, f.machineErr
	}
	return domain.Machine{ID: mid, WorkspaceID: id}, nil
}

func (f *fakeRuntimes) SaveMachine(_ context.Context, namespace, id, mid string) (domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.namespaces = append(f.namespaces, namespace)
	if f.machineErr != nil {
		return domain.Snapshot{}, f.machineErr
	}
	return domain.Snapshot{
		ID:          uuid.New(),
		ImageID:     "sha256:" + mid,
		Namespace:   namespace,
		WorkspaceID: id,
		MachineName: "dev",
		CreatedAt:   time.Now(),
	}, nil
}

func (f *fakeRuntimes) RemoveSnapshot(_ context.Context, s domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, s)
	return nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	createErr error
	snapshots map[uuid.UUID]domain.Snapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[uuid.UUID]domain.Snapshot)}
}

func (s *fakeSnapshotStore) Create(_ context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.snapshots[snap.ID] = *snap
	return nil
}

func (s *fakeSnapshotStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &snap, nil
}

func (s *fakeSnapshotStore) ListByWorkspace(_ context.Context, workspaceID string) ([]domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Snapshot
	for _, snap := range s.snapshots {
		if snap.WorkspaceID == workspaceID {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *fakeSnapshotStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.snapshots, id)
	return nil
}

// --- helpers ---

type testServer struct {
	runtimes  *fakeRuntimes
	snapshots *fakeSnapshotStore
	history   *events.History
	mux       *http.ServeMux
}

func catalogWorkspace() *domain.Workspace {
	return &domain.Workspace{
		ID:         "workspace123",
		Namespace:  "team",
		DefaultEnv: "default",
		Environments: []domain.Environment{{
			Name:     "default",
			Machines: []domain.MachineConfig{{Name: "dev", Dev: true}},
		}},
	}
}

func newTestServer() *testServer {
	return newTestServerWithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServerWithLogger(logger *slog.Logger) *testServer {
	ts := &testServer{
		runtimes:  newFakeRuntimes(),
		snapshots: newFakeSnapshotStore(),
		history:   events.NewHistory(10),
		mux:       http.NewServeMux(),
	}

	h := NewHandler(Config{
		Runtimes:   ts.runtimes,
		Snapshots:  ts.snapshots,
		Events:     ts.history,
		Workspaces: map[string]*domain.Workspace{"workspace123": catalogWorkspace()},
		Logger:     logger,
	})
	h.RegisterRoutes(ts.mux)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Data
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

// --- Runtime Tests ---

func TestStartRuntime_WithBody(t *testing.T) {
	ts := newTestServer()

	body, _ := json.Marshal(StartRuntimeRequest{
		Workspace: &domain.Workspace{
			DefaultEnv:   "ci",
			Environments: []domain.Environment{{Name: "ci"}},
		},
	})
	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/ws-9/runtime", string(body))
	expectStatus(t, rec, http.StatusCreated)

	resp := decodeData[RuntimeResponse](t, rec)
	if resp.WorkspaceID != "ws-9" || resp.Status != "RUNNING" || resp.EnvName != "ci" {
		t.Errorf("unexpected runtime %+v", resp)
	}
	if resp.DevMachine == nil || resp.DevMachine.ID != "machine-1" {
		t.Errorf("expected dev machine in response, got %+v", resp.DevMachine)
	}
	if ts.runtimes.started[0].ID != "ws-9" {
		t.Errorf("workspace id should be taken from path, got %q", ts.runtimes.started[0].ID)
	}
}

func TestStartRuntime_FromCatalog(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/runtime", "")
	expectStatus(t, rec, http.StatusCreated)

	if ts.runtimes.started[0].Namespace != "team" {
		t.Errorf("expected catalog workspace, got %+v", ts.runtimes.started[0])
	}
}

func TestStartRuntime_UnknownWorkspace(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/missing/runtime", "")
	expectStatus(t, rec, http.StatusNotFound)
	if detail := decodeError(t, rec); detail.Code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND code, got %s", detail.Code)
	}
}

func TestStartRuntime_BadRequests(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/runtime", `{"workspace":{"id":"ws-2"}}`)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/ws-1/runtime", `{"workspace":`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestStartRuntime_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    ErrorCode
		message string
	}{
		{
			name:    "conflict",
			err:     domain.Conflictf("Could not start workspace '%s' because its status is '%s'", "workspace123", "RUNNING"),
			status:  http.StatusConflict,
			code:    ErrCodeConflict,
			message: "Could not start workspace 'workspace123' because its status is 'RUNNING'",
		},
		{
			name:    "not found",
			err:     domain.NotFoundf("Environment 'ci' is not found in workspace 'workspace123'"),
			status:  http.StatusNotFound,
			code:    ErrCodeNotFound,
			message: "Environment 'ci' is not found in workspace 'workspace123'",
		},
		{
			name:    "typed server error",
			err:     domain.ServerErrorf("Dev machine is not found in active environment of workspace 'workspace123'"),
			status:  http.StatusInternalServerError,
			code:    ErrCodeInternalError,
			message: "Dev machine is not found in active environment of workspace 'workspace123'",
		},
		{
			name:    "untyped error",
			err:     errors.New("docker: connection refused"),
			status:  http.StatusInternalServerError,
			code:    ErrCodeInternalError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.runtimes.startErr = tt.err

			rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/runtime", "")
			expectStatus(t, rec, tt.status)

			detail := decodeError(t, rec)
			if detail.Code != tt.code || detail.Message != tt.message {
				t.Errorf("expected %s %q, got %s %q", tt.code, tt.message, detail.Code, detail.Message)
			}
		})
	}
}

func TestGetRuntime(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/runtime", "")
	expectStatus(t, rec, http.StatusNotFound)
	if detail := decodeError(t, rec); detail.Message != "Workspace with id 'workspace123' is not running." {
		t.Errorf("unexpected message %q", detail.Message)
	}

	ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/runtime", "")

	rec = ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/runtime", "")
	expectStatus(t, rec, http.StatusOK)
	if resp := decodeData[RuntimeResponse](t, rec); len(resp.Machines) != 1 {
		t.Errorf("expected 1 machine, got %d", len(resp.Machines))
	}
}

func TestStopRuntime(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodDelete, "/api/v1/workspaces/workspace123/runtime", "")
	expectStatus(t, rec, http.StatusNoContent)

	ts.runtimes.stopErr = domain.Conflictf("Could not stop workspace 'workspace123' because its status is 'STARTING'")
	rec = ts.do(t, http.MethodDelete, "/api/v1/workspaces/workspace123/runtime", "")
	expectStatus(t, rec, http.StatusConflict)
}

func TestListWorkspaces(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces", "")
	expectStatus(t, rec, http.StatusOK)

	list := decodeData[[]WorkspaceStateResponse](t, rec)
	if len(list) != 2 || list[0].WorkspaceID != "ws-a" || list[1].Status != "STARTING" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestListWorkspaces_StatusFilter(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces?status=running", "")
	expectStatus(t, rec, http.StatusOK)

	list := decodeData[[]WorkspaceStateResponse](t, rec)
	if len(list) != 1 || list[0].WorkspaceID != "ws-a" {
		t.Errorf("expected only ws-a, got %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/workspaces?status=PAUSED", "")
	expectStatus(t, rec, http.StatusBadRequest)
}

// --- Machine Tests ---

func TestStartMachine(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines",
		`{"name":"db","type":"docker","source":{"type":"image","location":"postgres:16"}}`)
	expectStatus(t, rec, http.StatusCreated)

	m := decodeData[MachineResponse](t, rec)
	if m.Name != "db" || m.Config.Source.Location != "postgres:16" || !m.Ready {
		t.Errorf("unexpected machine %+v", m)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines", `{"type":"docker"}`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestStartMachine_ValidationError(t *testing.T) {
	ts := newTestServer()
	ts.runtimes.machineErr = domain.WrapServer(fmt.Errorf("start machine: %w",
		engine.NewValidationError("db", "source.type", `unsupported source type: "dockerfile"`, engine.ErrUnsupportedSource)))

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines", `{"name":"db"}`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestMachineErrors(t *testing.T) {
	ts := newTestServer()
	ts.runtimes.machineErr = domain.NotFoundf("Machine 'm-1' is not found in workspace 'workspace123'")

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/machines/m-1", "")
	expectStatus(t, rec, http.StatusNotFound)

	ts.runtimes.machineErr = domain.Conflictf("Could not stop dev machine")
	rec = ts.do(t, http.MethodDelete, "/api/v1/workspaces/workspace123/machines/m-1", "")
	expectStatus(t, rec, http.StatusConflict)

	ts.runtimes.machineErr = nil
	rec = ts.do(t, http.MethodDelete, "/api/v1/workspaces/workspace123/machines/m-1", "")
	expectStatus(t, rec, http.StatusNoContent)
}

// --- Snapshot Tests ---

func TestSaveSnapshot(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines/m-1/snapshot", "")
	expectStatus(t, rec, http.StatusCreated)

	snap := decodeData[SnapshotResponse](t, rec)
	if snap.Namespace != "team" || snap.ImageID != "sha256:m-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if _, err := ts.snapshots.GetByID(context.Background(), snap.ID); err != nil {
		t.Errorf("snapshot should be persisted: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines/m-1/snapshot", `{"namespace":"other"}`)
	expectStatus(t, rec, http.StatusCreated)
	if ts.runtimes.namespaces[1] != "other" {
		t.Errorf("expected namespace from body, got %q", ts.runtimes.namespaces[1])
	}
}

func TestSaveSnapshot_StoreFailureRemovesImage(t *testing.T) {
	ts := newTestServer()
	ts.snapshots.createErr = errors.New("db is down")

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/workspace123/machines/m-1/snapshot", "")
	expectStatus(t, rec, http.StatusInternalServerError)

	if len(ts.runtimes.removed) != 1 || ts.runtimes.removed[0].ImageID != "sha256:m-1" {
		t.Errorf("expected orphaned image removed, got %v", ts.runtimes.removed)
	}
}

func TestListAndRemoveSnapshots(t *testing.T) {
	ts := newTestServer()

	snap := domain.Snapshot{ID: uuid.New(), ImageID: "sha256:abc", WorkspaceID: "workspace123"}
	if err := ts.snapshots.Create(context.Background(), &snap); err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/snapshots", "")
	expectStatus(t, rec, http.StatusOK)
	if list := decodeData[[]SnapshotResponse](t, rec); len(list) != 1 || list[0].ID != snap.ID {
		t.Errorf("unexpected list %+v", list)
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/snapshots/"+snap.ID.String(), "")
	expectStatus(t, rec, http.StatusNoContent)
	if len(ts.runtimes.removed) != 1 {
		t.Error("snapshot image should be removed")
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/snapshots/"+snap.ID.String(), "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = ts.do(t, http.MethodDelete, "/api/v1/snapshots/not-a-uuid", "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestRemoveSnapshot_EngineFailureKeepsRecord(t *testing.T) {
	ts := newTestServer()
	ts.runtimes.removeErr = errors.New("image is in use")

	snap := domain.Snapshot{ID: uuid.New(), ImageID: "sha256:abc", WorkspaceID: "workspace123"}
	ts.snapshots.Create(context.Background(), &snap)

	rec := ts.do(t, http.MethodDelete, "/api/v1/snapshots/"+snap.ID.String(), "")
	expectStatus(t, rec, http.StatusInternalServerError)

	if _, err := ts.snapshots.GetByID(context.Background(), snap.ID); err != nil {
		t.Error("record should be kept when image removal fails")
	}
}

// --- Event Tests ---

func TestListEvents(t *testing.T) {
	ts := newTestServer()

	for _, et := range []domain.EventType{domain.EventStarting, domain.EventRunning, domain.EventStopping, domain.EventStopped} {
		ts.history.Record(context.Background(), domain.NewWorkspaceEvent(et, "workspace123", ""))
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/events?limit=2", "")
	expectStatus(t, rec, http.StatusOK)

	list := decodeData[[]EventResponse](t, rec)
	if len(list) != 2 || list[0].Type != "STOPPING" || list[1].Type != "STOPPED" {
		t.Errorf("expected last 2 events, got %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/workspaces/workspace123/events?limit=abc", "")
	expectStatus(t, rec, http.StatusBadRequest)
}

// --- Middleware Tests ---

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := Chain(RequestID(), Logging(logger), Recovery(logger))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusInternalServerError)
	out := buf.String()
	if !strings.Contains(out, `msg="panic recovered"`) || !strings.Contains(out, "request_id=req-42") {
		t.Errorf("panic should be logged with request id, got %s", out)
	}
	if !strings.Contains(out, "level=ERROR msg=\"http request\"") || !strings.Contains(out, "status=500") {
		t.Errorf("access line should be logged as error with status 500, got %s", out)
	}
}

func TestRequestID(t *testing.T) {
	ts := newTestServer()

	rec := ts.do(t, http.MethodGet, "/api/v1/workspaces", "")
	generated := rec.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(generated); err != nil {
		t.Errorf("expected generated uuid request id, got %q", generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "client-id" {
		t.Errorf("expected client request id to be echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workspaces", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); len(got) > 128 {
		t.Errorf("oversized request id should be replaced, got %d bytes", len(got))
	}
}

func TestLogging_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	ts := newTestServerWithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ts.runtimes.machineErr = errors.New("registry unavailable")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workspaces/ws-7/machines/m-1", nil)
	req.Header.Set(HeaderRequestID, "req-7")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)

	var errLine string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `msg="internal error"`) {
			errLine = line
		}
	}
	if errLine == "" {
		t.Fatalf("expected internal error to be logged, got %s", buf.String())
	}
	for _, want := range []string{"request_id=req-7", "workspace_id=ws-7", "machine_id=m-1"} {
		if !strings.Contains(errLine, want) {
			t.Errorf("handler log line missing %s: %s", want, errLine)
		}
	}
	if !strings.Contains(buf.String(), `route="GET /api/v1/workspaces/{id}/machines/{mid}"`) {
		t.Errorf("access line should carry the route pattern, got %s", buf.String())
	}
}

func TestLogging_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "status=418") {
		t.Errorf("expected logged status 418, got %s", buf.String())
	}
}

func TestLogging_CountsBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("hello"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "bytes=5") || !strings.Contains(buf.String(), "level=INFO") {
		t.Errorf("expected info line with bytes=5, got %s", buf.String())
	}
}
