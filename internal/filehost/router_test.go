package filehost

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Chris-1010/claude-branch-visualiser/internal/chat"
	"github.com/Chris-1010/claude-branch-visualiser/internal/remote"
	"github.com/Chris-1010/claude-branch-visualiser/internal/session"
	"github.com/Chris-1010/claude-branch-visualiser/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testEnv opens a temp store with two files and returns a router over it.
func testEnv(t *testing.T, password string) (*store.Store, http.Handler, *prometheus.Registry) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "host.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for _, f := range []*store.ChatFile{
		{ID: "1", Name: "plan.json", LastUpdated: "2025-01-01T00:00:00Z",
			Messages: []chat.Message{{UUID: "a", Sender: chat.SenderHuman, Text: "plan it"}}},
		{ID: "2", Name: "my notes.json", LastUpdated: "2025-02-01T00:00:00Z",
			Messages: []chat.Message{{UUID: "b", Sender: chat.SenderHuman, Text: "note"}, {UUID: "c", ParentUUID: "b"}}},
	} {
		if err := st.SaveFile(ctx, f); err != nil {
			t.Fatal(err)
		}
	}

	reg := prometheus.NewRegistry()
	return st, NewRouter(st, password, reg, quiet), reg
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListFiles(t *testing.T) {
	_, h, _ := testEnv(t, "pw")
	rec := do(t, h, "/files?password=pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var files []remote.FileInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %+v", files)
	}
	if files[0].Name != "my notes" || files[0].Extension != "json" || files[0].Updated != "2025-02-01T00:00:00Z" {
		t.Errorf("first entry = %+v", files[0])
	}
}

func TestPasswordRequired(t *testing.T) {
	_, h, _ := testEnv(t, "pw")
	for _, target := range []string{"/files", "/files?password=nope", "/files/plan.json"} {
		if rec := do(t, h, target); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", target, rec.Code)
		}
	}

	_, open, _ := testEnv(t, "")
	if rec := do(t, open, "/files?password="); rec.Code != http.StatusUnauthorized {
		t.Errorf("empty configured password should reject, got %d", rec.Code)
	}
}

func TestGetFile(t *testing.T) {
	_, h, reg := testEnv(t, "pw")
	rec := do(t, h, "/files/my%20notes.json?password=pw")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	exp, err := chat.ParseExport(rec.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(exp.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(exp.Messages))
	}

	if rec := do(t, h, "/files/missing.json?password=pw"); rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", rec.Code)
	}

	// Metrics are collected for routed requests.
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) == 0 {
		t.Error("no metrics registered")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h, _ := testEnv(t, "pw")
	do(t, h, "/files?password=pw")
	do(t, h, "/files?password=bad")

	rec := do(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `cbv_filehost_requests_total{code="200",route="/files"} 1`) {
		t.Errorf("missing 200 counter:\n%s", body)
	}
	if !strings.Contains(body, `cbv_filehost_requests_total{code="401",route="/files"} 1`) {
		t.Errorf("missing 401 counter:\n%s", body)
	}
}

func TestServedCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.served.Inc()
	m.served.Inc()
	if got := testutil.ToFloat64(m.served); got != 2 {
		t.Errorf("served = %v, want 2", got)
	}
}

// TestSyncAgainstHost runs the real client and session manager against the
// router over HTTP.
func TestSyncAgainstHost(t *testing.T) {
	_, h, _ := testEnv(t, "pw")
	srv := httptest.NewServer(h)
	defer srv.Close()

	local, err := store.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer local.Close()

	ctx := context.Background()
	m := session.New(local, quiet)
	if err := m.Load(ctx); err != nil {
		t.Fatal(err)
	}
	client, err := remote.New(srv.URL, remote.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Sync(ctx, client); !errors.Is(err, session.ErrNoCredential) {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}

	m.SetPassword(ctx, "wrong")
	if _, err := m.Sync(ctx, client); !errors.Is(err, remote.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if m.Password() != "" {
		t.Error("rejected password should be cleared")
	}

	m.SetPassword(ctx, "pw")
	report, err := m.Sync(ctx, client)
	if err != nil {
		t.Fatal(err)
	}
	if report.Downloaded != 2 {
		t.Errorf("report = %+v", report)
	}
	if f := m.FileByName("my notes.json"); f == nil || len(f.Tree) != 1 {
		t.Error("synced file missing or tree not built")
	}

	report, _ = m.Sync(ctx, client)
	if report.Skipped != 2 || report.Changed() {
		t.Errorf("second report = %+v", report)
	}
}
