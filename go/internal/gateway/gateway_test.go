package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/exam"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/rotation"
	"github.com/mcdev12/osce/go/internal/stations"
	"github.com/mcdev12/osce/go/internal/store"
)

type testEnv struct {
	srv   *httptest.Server
	store *store.MemoryStore
	hub   *Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	bus := events.NewBus()
	runner := exam.NewRunner(st, bus, exam.WithClock(clockwork.NewFakeClock()))
	svc := exam.NewService(runner, st, stations.NewSet(), nil)
	hub := NewHub(DefaultHubConfig(), func(ctx context.Context) (any, error) {
		return runner.View(ctx)
	})
	bus.Subscribe(hub)

	ctx, cancel := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	NewExamHandler(svc, hub).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-runnerDone
	})
	return &testEnv{srv: srv, store: st, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func (e *testEnv) view(t *testing.T, method, path string, wantStatus int) rotation.View {
	t.Helper()
	status, body := e.do(t, method, path, "", "")
	if status != wantStatus {
		t.Fatalf("%s %s = %d (%s), want %d", method, path, status, body, wantStatus)
	}
	var v rotation.View
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestExamLifecycle(t *testing.T) {
	env := newTestEnv(t)

	v := env.view(t, http.MethodPost, "/api/exam/start", http.StatusOK)
	if !v.Running || v.Phase != models.PhaseRead || len(v.Candidates) != 5 {
		t.Fatalf("view after start = %+v", v)
	}

	if status, body := env.do(t, http.MethodPost, "/api/exam/start", "", ""); status != http.StatusConflict {
		t.Fatalf("second start = %d (%s), want 409", status, body)
	}

	if v := env.view(t, http.MethodPost, "/api/exam/pause", http.StatusOK); !v.Paused {
		t.Fatalf("expected paused, got %+v", v)
	}
	if v := env.view(t, http.MethodPost, "/api/exam/toggle", http.StatusOK); v.Paused {
		t.Fatalf("expected resumed, got %+v", v)
	}
	if v := env.view(t, http.MethodPost, "/api/exam/skip", http.StatusOK); v.Phase != models.PhaseActivity {
		t.Fatalf("expected activity after skip, got %s", v.Phase)
	}
	if v := env.view(t, http.MethodPost, "/api/exam/restart", http.StatusOK); v.Phase != models.PhaseActivity || v.Round != 0 {
		t.Fatalf("restart view = %+v", v)
	}
	if v := env.view(t, http.MethodPost, "/api/exam/stop", http.StatusOK); v.Running {
		t.Fatalf("expected stopped, got %+v", v)
	}
	if v := env.view(t, http.MethodGet, "/api/exam", http.StatusOK); v.Running {
		t.Fatalf("expected stopped, got %+v", v)
	}
}

func TestRecoveryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/recovery", "", "")
	if status != http.StatusOK || strings.TrimSpace(string(body)) != `{"available":false}` {
		t.Fatalf("recovery = %d %s", status, body)
	}
	if status, _ := env.do(t, http.MethodPost, "/api/exam/restore", "", ""); status != http.StatusNotFound {
		t.Fatalf("restore without snapshot = %d, want 404", status)
	}
	if status, _ := env.do(t, http.MethodPost, "/api/exam/discard", "", ""); status != http.StatusNotFound {
		t.Fatalf("discard without snapshot = %d, want 404", status)
	}
}

func TestStationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/stations", "application/json",
		`{"name":"Suturing","activity_minutes":7,"feedback_minutes":3}`)
	if status != http.StatusCreated {
		t.Fatalf("add = %d (%s)", status, body)
	}
	var added models.Station
	if err := json.Unmarshal(body, &added); err != nil {
		t.Fatalf("decode station: %v", err)
	}
	if added.ID != 6 || added.Name != "Suturing" {
		t.Fatalf("added = %+v", added)
	}

	status, body = env.do(t, http.MethodPatch, fmt.Sprintf("/api/stations/%d", added.ID), "application/json", `{"name":"Wound Closure"}`)
	if status != http.StatusOK || !strings.Contains(string(body), "Wound Closure") {
		t.Fatalf("update = %d (%s)", status, body)
	}

	if status, _ := env.do(t, http.MethodPost, "/api/stations", "application/json", `{"name":"","activity_minutes":7,"feedback_minutes":3}`); status != http.StatusBadRequest {
		t.Fatalf("invalid add = %d, want 400", status)
	}
	if status, _ := env.do(t, http.MethodDelete, "/api/stations/99", "", ""); status != http.StatusNotFound {
		t.Fatalf("delete unknown = %d, want 404", status)
	}
	if status, _ := env.do(t, http.MethodDelete, "/api/stations/abc", "", ""); status != http.StatusBadRequest {
		t.Fatalf("delete bad id = %d, want 400", status)
	}
	if status, _ := env.do(t, http.MethodDelete, fmt.Sprintf("/api/stations/%d", added.ID), "", ""); status != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", status)
	}

	status, body = env.do(t, http.MethodPost, "/api/stations/reorder", "application/json", `{"from":0,"to":4}`)
	if status != http.StatusOK {
		t.Fatalf("reorder = %d (%s)", status, body)
	}
	var list []models.Station
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 5 || list[4].ID != 1 {
		t.Fatalf("reordered = %+v", list)
	}
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/config?format=yaml", "", "")
	if status != http.StatusOK || !strings.Contains(string(body), "num_candidates: 5") {
		t.Fatalf("get yaml = %d (%s)", status, body)
	}

	if status, _ := env.do(t, http.MethodPut, "/api/config", "application/json", `{"num_candidates":0}`); status != http.StatusBadRequest {
		t.Fatalf("invalid put = %d, want 400", status)
	}

	status, body = env.do(t, http.MethodPut, "/api/config", "application/yaml", "num_candidates: 7\nread_seconds: 0\n")
	if status != http.StatusOK {
		t.Fatalf("put = %d (%s)", status, body)
	}
	var got config.Settings
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if got.NumCandidates != 7 || got.ReadSeconds != 0 {
		t.Fatalf("settings = %+v", got)
	}

	if status, _ := env.do(t, http.MethodPost, "/api/config/save", "", ""); status != http.StatusNoContent {
		t.Fatalf("save = %d, want 204", status)
	}
	if ok, _ := env.store.Has(context.Background(), store.KeyConfig); !ok {
		t.Fatalf("settings not saved to store")
	}

	if v := env.view(t, http.MethodPost, "/api/exam/start", http.StatusOK); len(v.Candidates) != 7 || v.Phase != models.PhaseActivity {
		t.Fatalf("exam did not use saved settings: %+v", v)
	}
}

type wsEnvelope struct {
	Type string `json:"type"`
}

func TestWebsocketFeed(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/exam"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first wsEnvelope
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first.Type != MessageTypeState {
		t.Fatalf("first message type = %q, want %q", first.Type, MessageTypeState)
	}

	env.view(t, http.MethodPost, "/api/exam/start", http.StatusOK)

	var types []string
	for len(types) < 2 {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read event: %v", err)
		}
		types = append(types, msg.Type)
	}
	want := []string{string(events.EventTypeExamStarted), string(events.EventTypePhaseStarted)}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	status, body := env.do(t, http.MethodGet, "/ws/stats", "", "")
	var stats Stats
	if err := json.Unmarshal(body, &stats); err != nil || status != http.StatusOK {
		t.Fatalf("stats = %d (%s)", status, body)
	}
	if stats.TotalConnections != 1 || stats.Broadcasts < 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestEventDuringInitialStateReachesDisplay(t *testing.T) {
	var hub *Hub
	hub = NewHub(DefaultHubConfig(), func(ctx context.Context) (any, error) {
		ev, err := events.New("s", events.EventTypeExamPaused, time.Now(), events.ExamPausedPayload{})
		if err != nil {
			return nil, err
		}
		hub.broadcast(ev)
		return map[string]bool{"running": true}, nil
	})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		hub.closeAll()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var types []string
	for len(types) < 2 {
		var msg wsEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (got %v)", err, types)
		}
		types = append(types, msg.Type)
	}
	want := []string{string(events.EventTypeExamPaused), MessageTypeState}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("messages (-want +got):\n%s", diff)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %w", rotation.ErrConfiguration, rotation.ErrAlreadyRunning), http.StatusConflict},
		{fmt.Errorf("%w: zero candidates", rotation.ErrConfiguration), http.StatusBadRequest},
		{fmt.Errorf("%w: bad", rotation.ErrStateCorruption), http.StatusUnprocessableEntity},
		{exam.ErrNoRecovery, http.StatusNotFound},
		{stations.ErrStationNotFound, http.StatusNotFound},
		{stations.ErrLastStation, http.StatusConflict},
		{config.ErrInvalidSettings, http.StatusBadRequest},
		{exam.ErrRunnerStopped, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

func TestHealthChecker(t *testing.T) {
	st := store.NewMemory()
	runner := exam.NewRunner(st, nil, exam.WithClock(clockwork.NewFakeClock()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx)
	}()

	h := NewHealthChecker(st, fakeConn(true), runner, nil)
	if got := h.Check(context.Background()); !got.Healthy || !got.RunnerActive || !got.NATSConnected {
		t.Fatalf("healthy check = %+v", got)
	}

	h = NewHealthChecker(st, fakeConn(false), runner, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/details", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	cancel()
	<-done
	got := NewHealthChecker(st, nil, runner, nil).Check(context.Background())
	if got.Healthy || got.RunnerActive || got.NATSEnabled {
		t.Fatalf("check after runner stopped = %+v", got)
	}
}
