package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/sitetime/internal/dashboard"
	"github.com/goodtune/sitetime/internal/host"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/storage/bolt"
	"github.com/goodtune/sitetime/internal/tracker"
	"github.com/rs/zerolog"
)

var epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server  *httptest.Server
	tracker *tracker.Tracker
	store   *bolt.Store
	clock   *tracker.TestClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "sitetime.bolt"), storage.DefaultKey)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tabs, err := host.NewRegistry(0)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	clock := tracker.NewTestClock(epoch)
	tr := tracker.New(store, tabs, tracker.Config{Clock: clock}, zerolog.Nop())
	if err := tr.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize tracker: %v", err)
	}

	srv := NewServer(Config{Now: clock.Now}, tabs, tr, store, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, tracker: tr, store: store, clock: clock}
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	var body map[string]interface{}
	if code := env.get(t, "/health", &body); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestTabUpdatedStartsSession(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/events/tab-updated",
		`{"tab_id":1,"window_id":1,"url":"https://www.a.com/x","status":"complete","active":true}`)
	expectStatus(t, resp, http.StatusNoContent)

	session, ok := env.tracker.Current()
	if !ok || session.Domain != "a.com" {
		t.Fatalf("expected session on a.com, got %+v (%v)", session, ok)
	}
}

func TestTabUpdatedWhileLoadingIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/events/tab-updated",
		`{"tab_id":1,"window_id":1,"url":"https://a.com/","status":"loading","active":true}`)
	expectStatus(t, resp, http.StatusNoContent)

	if _, ok := env.tracker.Current(); ok {
		t.Fatal("loading tab should not start a session")
	}
}

func TestTabActivatedFlushesPreviousDomain(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.post(t, "/api/events/tab-updated",
		`{"tab_id":1,"window_id":1,"url":"https://a.com/","status":"complete","active":true}`), http.StatusNoContent)
	expectStatus(t, env.post(t, "/api/events/tab-updated",
		`{"tab_id":2,"window_id":1,"url":"https://b.com/","status":"complete","active":false}`), http.StatusNoContent)

	env.clock.Advance(30 * time.Second)
	expectStatus(t, env.post(t, "/api/events/tab-activated", `{"tab_id":2,"window_id":1}`), http.StatusNoContent)

	var data storage.AccumulatedMap
	if code := env.get(t, "/api/data", &data); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if got := data.Get("2024-01-01", "a.com"); got != 30 {
		t.Fatalf("a.com = %d, want 30", got)
	}

	var summary dashboard.Summary
	if code := env.get(t, "/api/stats?range=today", &summary); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if summary.Total != "30s" || summary.TopSite != "a.com" || len(summary.Rows) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	session, _ := env.tracker.Current()
	if session.Domain != "b.com" {
		t.Fatalf("expected session on b.com, got %q", session.Domain)
	}
}

func TestStatsDefaultsAndRanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.store.Save(ctx, storage.AccumulatedMap{
		"2023-12-31": {"b.com": 50},
		"2024-01-01": {"a.com": 100},
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var summary dashboard.Summary
	env.get(t, "/api/stats", &summary)
	if summary.Range != dashboard.RangeToday || summary.Total != "1m 40s" {
		t.Fatalf("unexpected default summary %+v", summary)
	}

	env.get(t, "/api/stats?range=last-7-days", &summary)
	if summary.Range != dashboard.RangeWeek || summary.TotalSeconds != 150 {
		t.Fatalf("unexpected week summary %+v", summary)
	}
}

func TestStatsEmpty(t *testing.T) {
	env := newTestEnv(t)

	var summary dashboard.Summary
	env.get(t, "/api/stats?range=all-time", &summary)
	if summary.EmptyMessage != dashboard.EmptyMessage || summary.TopSite != "-" || summary.Total != "0s" {
		t.Fatalf("unexpected empty summary %+v", summary)
	}
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		path string
		body string
	}{
		{"/api/events/tab-activated", `{not json`},
		{"/api/events/tab-activated", `{"window_id":1}`},
		{"/api/events/tab-updated", `{"url":"https://a.com"}`},
		{"/api/events/tab-removed", `{}`},
		{"/api/events/window-focus", `{}`},
	}

	for _, tt := range tests {
		resp := env.post(t, tt.path, tt.body)
		expectStatus(t, resp, http.StatusBadRequest)

		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			t.Fatalf("decode error response: %v", err)
		}
		if errResp.Code != http.StatusBadRequest || errResp.Error != "Bad Request" {
			t.Fatalf("unexpected error response %+v", errResp)
		}
	}

	var errResp ErrorResponse
	if code := env.get(t, "/api/stats?range=month", &errResp); code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", code)
	}
}

func TestTabRemoved(t *testing.T) {
	env := newTestEnv(t)

	expectStatus(t, env.post(t, "/api/events/tab-removed", `{"tab_id":5}`), http.StatusNotFound)

	expectStatus(t, env.post(t, "/api/events/tab-updated",
		`{"tab_id":5,"window_id":1,"url":"https://a.com/","status":"loading"}`), http.StatusNoContent)
	expectStatus(t, env.post(t, "/api/events/tab-removed", `{"tab_id":5}`), http.StatusNoContent)
}

func TestWindowFocusAndSuspend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expectStatus(t, env.post(t, "/api/events/tab-updated",
		`{"tab_id":1,"window_id":1,"url":"https://a.com/","status":"complete","active":true}`), http.StatusNoContent)
	env.clock.Advance(10 * time.Second)

	expectStatus(t, env.post(t, "/api/events/window-focus", `{"window_id":-1}`), http.StatusNoContent)
	if env.tracker.WindowFocused() {
		t.Fatal("expected window to be unfocused")
	}

	expectStatus(t, env.post(t, "/api/events/window-focus", `{"window_id":1}`), http.StatusNoContent)
	session, ok := env.tracker.Current()
	if !ok || session.Domain != "a.com" {
		t.Fatalf("expected session to resume on a.com, got %+v", session)
	}

	env.clock.Advance(5 * time.Second)
	expectStatus(t, env.post(t, "/api/events/suspend", ``), http.StatusNoContent)

	data, err := env.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := data.Get("2024-01-01", "a.com"); got != 15 {
		t.Fatalf("a.com = %d, want 15", got)
	}
}

func TestWatchStreamsChanges(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/api/data/watch", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, ":") {
		t.Fatalf("expected subscription comment, got %q (%v)", line, err)
	}

	if err := env.store.Save(context.Background(), storage.AccumulatedMap{"2024-01-01": {"a.com": 7}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if event != "change" {
		t.Fatalf("event %q, want change", event)
	}
	decoded, err := storage.Decode([]byte(data))
	if err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if decoded.Get("2024-01-01", "a.com") != 7 {
		t.Fatalf("unexpected event data %v", decoded)
	}
}

func TestCORSPreflight(t *testing.T) {
	tabs, err := host.NewRegistry(0)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	store, err := bolt.Open(filepath.Join(t.TempDir(), "cors.bolt"), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	tr := tracker.New(store, tabs, tracker.Config{}, zerolog.Nop())
	srv := NewServer(Config{AllowedOrigins: []string{"chrome-extension://abc"}}, tabs, tr, store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/api/events/tab-activated", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "chrome-extension://abc" {
		t.Fatalf("allow origin %q", got)
	}
}
