package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"telecom-console/internal/metrics"
)

type memorySink struct {
	mu      sync.Mutex
	reports []Report
	err     error
	calls   int32
	block   chan struct{}
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, r Report) error {
	atomic.AddInt32(&s.calls, 1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memorySink) snapshot() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

func TestReporterDeliversPayload(t *testing.T) {
	sink := &memorySink{}
	r := New(Options{Sink: sink, PagePath: "/admin/menu", UserAgent: "ua-test"})

	inner := errors.New("connection refused")
	r.Report("loadPage", fmt.Errorf("fetch users: %w", inner), Extra{URL: "/admin/users?page=1&size=10"})
	r.Report("addUser", errors.New("boom"), Extra{Detail: map[string]interface{}{"code": 500}})

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("delivered=%d want=2", len(got))
	}
	byAction := map[string]Report{}
	for _, rep := range got {
		byAction[rep.Action] = rep
	}

	load := byAction["loadPage"]
	if load.URL != "/admin/users?page=1&size=10" {
		t.Fatalf("url=%q", load.URL)
	}
	if load.Message != "fetch users: connection refused" {
		t.Fatalf("message=%q", load.Message)
	}
	if load.Stack == nil || *load.Stack != "caused by: connection refused" {
		t.Fatalf("stack=%v", load.Stack)
	}
	if load.UserAgent != "ua-test" {
		t.Fatalf("userAgent=%q", load.UserAgent)
	}

	add := byAction["addUser"]
	if add.URL != "/admin/menu" {
		t.Fatalf("default url=%q want=/admin/menu", add.URL)
	}
	if add.Stack != nil {
		t.Fatalf("stack=%v want nil", *add.Stack)
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
}

func TestReportJSONShape(t *testing.T) {
	raw, err := json.Marshal(Report{Action: "a", Message: "m", URL: "/u", UserAgent: "ua"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"action":"a","message":"m","stack":null,"url":"/u","userAgent":"ua","detail":null}`
	if string(raw) != want {
		t.Fatalf("got=%s want=%s", raw, want)
	}
}

func TestReporterNeverBlocksWhenSinkHangs(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	r := New(Options{Sink: sink, QueueSize: 2, MaxInFlight: 1, WriteTimeout: time.Second})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Report("flood", errors.New("x"), Extra{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Report blocked on a hanging sink")
	}
	close(sink.block)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = r.Close(ctx)

	// queue(2) + one in flight at most; the rest are dropped
	if n := len(sink.snapshot()); n > 4 {
		t.Fatalf("delivered=%d, expected overflow to be dropped", n)
	}
}

func TestReporterSwallowsSinkErrorsAndTripsBreaker(t *testing.T) {
	sink := &memorySink{err: errors.New("sink down")}
	r := New(Options{
		Sink:        sink,
		SinkName:    "trip-test",
		MaxInFlight: 1,
		SinkPolicy:  SinkPolicy{Trips: 3, Cooldown: time.Minute},
	})
	for i := 0; i < 10; i++ {
		r.Report("x", errors.New("y"), Extra{})
	}
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if calls := atomic.LoadInt32(&sink.calls); calls != 3 {
		t.Fatalf("sink calls=%d want=3 (breaker should open after 3 failures)", calls)
	}
	if got := testutil.ToFloat64(metrics.ReportSinkState.WithLabelValues("trip-test")); got != 2 {
		t.Fatalf("sink state=%v want=2 (open)", got)
	}
	if got := testutil.ToFloat64(metrics.ReportSinkTripsTotal.WithLabelValues("trip-test")); got != 1 {
		t.Fatalf("trips=%v want=1", got)
	}
}

func TestReporterNilAndClosedAreSafe(t *testing.T) {
	var nilReporter *Reporter
	nilReporter.Report("x", nil, Extra{})
	if err := nilReporter.Close(context.Background()); err != nil {
		t.Fatalf("nil Close err=%v", err)
	}

	r := New(Options{Sink: &memorySink{}})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	r.Report("after-close", errors.New("x"), Extra{})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("second Close err=%v", err)
	}
}

func TestNilErrorMessage(t *testing.T) {
	sink := &memorySink{}
	r := New(Options{Sink: sink})
	r.Report("nil-error", nil, Extra{})
	_ = r.Close(context.Background())
	got := sink.snapshot()
	if len(got) != 1 || got[0].Message != "unknown error" || got[0].Stack != nil {
		t.Fatalf("got=%+v", got)
	}
}

func TestHTTPSinkPostsJSON(t *testing.T) {
	var (
		mu   sync.Mutex
		body map[string]interface{}
		ct   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/logs/frontend" {
			http.Error(w, "unexpected", http.StatusNotFound)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		ct = r.Header.Get("Content-Type")
		_ = json.Unmarshal(raw, &body)
		mu.Unlock()
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.Client(), srv.URL+"/logs/frontend")
	err := sink.Write(context.Background(), Report{
		Action:  "handleRequest-error",
		Message: "请求失败，状态码：500",
		URL:     "/admin/users",
		Detail:  map[string]interface{}{"status": 500},
	})
	if err != nil {
		t.Fatalf("Write err=%v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	if body["action"] != "handleRequest-error" || body["stack"] != nil {
		t.Fatalf("body=%v", body)
	}
	detail, ok := body["detail"].(map[string]interface{})
	if !ok || detail["status"] != float64(500) {
		t.Fatalf("detail=%v", body["detail"])
	}
}

func TestHTTPSinkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	sink := NewHTTPSink(srv.Client(), srv.URL)
	if err := sink.Write(context.Background(), Report{Action: "x"}); err == nil {
		t.Fatalf("expected error for 502")
	}
}

func TestSQLiteSinkJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.db")
	sink, err := NewSQLiteSink(path)
	if err != nil {
		t.Fatalf("NewSQLiteSink err=%v", err)
	}
	defer sink.Close()

	stack := "caused by: eof"
	ctx := context.Background()
	if err := sink.Write(ctx, Report{Action: "first", Message: "m1", URL: "/a"}); err != nil {
		t.Fatalf("Write err=%v", err)
	}
	if err := sink.Write(ctx, Report{Action: "second", Message: "m2", Stack: &stack, Detail: map[string]interface{}{"k": "v"}}); err != nil {
		t.Fatalf("Write err=%v", err)
	}

	got, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent err=%v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want=2", len(got))
	}
	if got[0].Action != "second" || got[1].Action != "first" {
		t.Fatalf("order=%s,%s want second,first", got[0].Action, got[1].Action)
	}
	if got[0].Stack == nil || *got[0].Stack != stack {
		t.Fatalf("stack=%v", got[0].Stack)
	}
	if d, ok := got[0].Detail.(map[string]interface{}); !ok || d["k"] != "v" {
		t.Fatalf("detail=%v", got[0].Detail)
	}
	if got[1].Stack != nil || got[1].Detail != nil {
		t.Fatalf("first report should have null stack/detail: %+v", got[1])
	}

	var _ Journal = sink
}
