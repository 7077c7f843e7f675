package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"telecom-console/internal/config"
	"telecom-console/internal/gateway"
	"telecom-console/internal/report"
)

type fakeReporter struct {
	mu      sync.Mutex
	actions []string
	msgs    []string
	details []interface{}
}

func (f *fakeReporter) Report(action string, err error, extra report.Extra) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.msgs = append(f.msgs, err.Error())
	f.details = append(f.details, extra.Detail)
}

type userServer struct {
	mu       sync.Mutex
	requests []string
	handlers map[string]http.HandlerFunc
}

func (s *userServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
	h := s.handlers[r.Method+" "+r.URL.Path]
	s.mu.Unlock()
	if h == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h(w, r)
}

func (s *userServer) set(key string, h http.HandlerFunc) {
	s.mu.Lock()
	s.handlers[key] = h
	s.mu.Unlock()
}

func (s *userServer) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1]
}

func (s *userServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newController(t *testing.T, handlers map[string]http.HandlerFunc) (*Controller, *userServer, *fakeReporter) {
	t.Helper()
	us := &userServer{handlers: handlers}
	srv := httptest.NewServer(us)
	t.Cleanup(srv.Close)

	cfg := &config.Config{BaseURL: srv.URL, Account: "42"}
	config.ApplyDefaults(cfg)
	rep := &fakeReporter{}
	gw := gateway.New(gateway.Options{Client: srv.Client(), Reporter: rep})
	return New(Options{Gateway: gw, Config: cfg, Reporter: rep}), us, rep
}

func profileHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /user/42":                jsonHandler(200, `{"account":42,"name":"A","phone":"555","packageId":1,"balance":100}`),
		"GET /user/42/remaining-time": jsonHandler(200, `{"usedDurationText":"2小时","remainingDurationText":"10小时"}`),
	}
}

func TestFetchRendersProfile(t *testing.T) {
	c, us, _ := newController(t, profileHandlers())

	v, err := c.Fetch(context.Background(), TriggerInitial)
	if err != nil {
		t.Fatalf("Fetch err=%v", err)
	}
	want := View{
		Account: "42", Name: "A", Phone: "555", PackageID: "1", Balance: "100",
		UsedDurationText: "2小时", RemainingDurationText: "10小时",
	}
	if v != want {
		t.Fatalf("view=%+v want=%+v", v, want)
	}
	if v.BalanceText() != "￥100" {
		t.Fatalf("balance text=%q", v.BalanceText())
	}
	if got, loaded := c.View(); !loaded || got != want {
		t.Fatalf("stored view=%+v loaded=%v", got, loaded)
	}
	if us.count() != 2 {
		t.Fatalf("requests=%d want 2", us.count())
	}
}

func TestFetchDefaultsMissingDurations(t *testing.T) {
	h := profileHandlers()
	h["GET /user/42/remaining-time"] = jsonHandler(200, `{"usedDurationText":null}`)
	c, _, _ := newController(t, h)

	v, err := c.Fetch(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Fetch err=%v", err)
	}
	if v.UsedDurationText != "0小时" || v.RemainingDurationText != "0小时" {
		t.Fatalf("durations=%q/%q", v.UsedDurationText, v.RemainingDurationText)
	}
}

func TestFetchFailureKeepsView(t *testing.T) {
	c, us, _ := newController(t, profileHandlers())
	if _, err := c.Fetch(context.Background(), TriggerInitial); err != nil {
		t.Fatal(err)
	}

	us.set("GET /user/42/remaining-time", jsonHandler(500, `{"message":"服务不可用"}`))
	_, err := c.Fetch(context.Background(), TriggerInterval)
	if err == nil {
		t.Fatalf("expected failure")
	}
	if v, _ := c.View(); v.Name != "A" || v.UsedDurationText != "2小时" {
		t.Fatalf("view changed on failure: %+v", v)
	}
	out := c.HandleError(err, FetchFailure)
	if out.Kind != ShowResult || out.Text != "服务不可用" {
		t.Fatalf("outcome=%+v", out)
	}
}

func TestRechargeRejectsNonPositiveWithoutRequest(t *testing.T) {
	c, us, _ := newController(t, profileHandlers())
	for _, text := range []string{"0", "-5", "", "abc", "Infinity"} {
		if _, err := ParseAmount(text); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) err=%v", text, err)
		}
	}
	for _, amt := range []float64{0, -5} {
		if _, err := c.Recharge(context.Background(), amt); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Recharge(%v) err=%v", amt, err)
		}
	}
	if us.count() != 0 {
		t.Fatalf("requests issued: %d", us.count())
	}
	if ErrInvalidAmount.Error() != "请输入大于0的金额" {
		t.Fatalf("alert=%q", ErrInvalidAmount.Error())
	}
}

func TestRechargePatchesBalanceWithoutRefetch(t *testing.T) {
	h := profileHandlers()
	h["POST /user/42/recharge"] = jsonHandler(200, `{"newBalance":150}`)
	c, us, _ := newController(t, h)
	if _, err := c.Fetch(context.Background(), TriggerInitial); err != nil {
		t.Fatal(err)
	}

	amt, err := ParseAmount("50")
	if err != nil {
		t.Fatalf("ParseAmount err=%v", err)
	}
	if ConfirmRechargePrompt(amt) != "确认充值 50 元？" {
		t.Fatalf("prompt=%q", ConfirmRechargePrompt(amt))
	}
	before := us.count()
	res, err := c.Recharge(context.Background(), amt)
	if err != nil {
		t.Fatalf("Recharge err=%v", err)
	}
	if res.Refetched || us.count() != before+1 {
		t.Fatalf("unexpected follow-up fetch: requests=%d", us.count())
	}
	v, _ := c.View()
	if v.BalanceText() != "￥150" {
		t.Fatalf("balance=%q", v.BalanceText())
	}
	if !strings.Contains(us.last(), "amount=50") {
		t.Fatalf("request=%q", us.last())
	}
}

func TestRechargeWithoutNewBalanceRefetches(t *testing.T) {
	h := profileHandlers()
	h["POST /user/42/recharge"] = jsonHandler(200, `{"message":"充值成功"}`)
	c, us, _ := newController(t, h)

	res, err := c.Recharge(context.Background(), 12.5)
	if err != nil {
		t.Fatalf("Recharge err=%v", err)
	}
	if !res.Refetched || res.RefreshErr != nil || res.Balance != "100" || res.Message != "充值成功" {
		t.Fatalf("result=%+v", res)
	}
	if us.count() != 3 {
		t.Fatalf("requests=%d", us.count())
	}
}

func TestRechargeNullNewBalancePatchesWithoutRefetch(t *testing.T) {
	h := profileHandlers()
	h["POST /user/42/recharge"] = jsonHandler(200, `{"message":"充值成功","newBalance":null}`)
	c, us, _ := newController(t, h)

	res, err := c.Recharge(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recharge err=%v", err)
	}
	if res.Refetched || us.count() != 1 {
		t.Fatalf("null newBalance should not refetch: refetched=%v requests=%d", res.Refetched, us.count())
	}
	v, _ := c.View()
	if v.BalanceText() != "￥null" {
		t.Fatalf("got=%q want=%q", v.BalanceText(), "￥null")
	}
}

func TestChangePackage(t *testing.T) {
	h := profileHandlers()
	h["POST /user/42/change-package"] = func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("packageId") == "3" {
			_, _ = w.Write([]byte(`{"success":true,"message":"套餐变更成功","newPackage":3}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}
	c, _, _ := newController(t, h)

	res, err := c.ChangePackage(context.Background(), "3")
	if err != nil || res.PackageID != "3" || res.Message != "套餐变更成功" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	res, err = c.ChangePackage(context.Background(), "7")
	if err != nil || res.PackageID != "7" {
		t.Fatalf("fallback res=%+v err=%v", res, err)
	}
	if !strings.Contains(res.Message, `"success": true`) {
		t.Fatalf("result text=%q", res.Message)
	}
	if v, _ := c.View(); v.PackageID != "7" {
		t.Fatalf("view package=%q", v.PackageID)
	}
	want := "确认购买并且将套餐更改为：3 ?\n新套餐将直接覆盖旧套餐,且费用立即扣除。"
	if ConfirmChangePrompt("3") != want {
		t.Fatalf("prompt=%q", ConfirmChangePrompt("3"))
	}
}

func TestChangePackageInsufficientBalance(t *testing.T) {
	h := profileHandlers()
	h["POST /user/42/change-package"] = jsonHandler(400, `{"error":"Insufficient Balance for package"}`)
	c, _, rep := newController(t, h)

	_, err := c.ChangePackage(context.Background(), "2")
	if err == nil {
		t.Fatalf("expected failure")
	}
	out := c.HandleError(err, ChangeFailure)
	if out.Kind != AlertInsufficient || out.Text != "余额不足，请先充值。" {
		t.Fatalf("outcome=%+v", out)
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	last := len(rep.actions) - 1
	if rep.actions[last] != ActionInsufficientBalance || rep.msgs[last] != "Insufficient Balance for package" {
		t.Fatalf("report=%s %s", rep.actions[last], rep.msgs[last])
	}
	data, _ := json.Marshal(rep.details[last])
	if string(data) != `{"error":"Insufficient Balance for package"}` {
		t.Fatalf("detail=%s", data)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		kind     OutcomeKind
		text     string
		action   string
	}{
		{name: "chinese insufficient", err: errors.New("账户余额不足"), fallback: RechargeFailed, kind: AlertInsufficient, text: InsufficientBalanceAlert, action: ActionInsufficientBalance},
		{name: "message", err: errors.New("boom"), fallback: RechargeFailed, kind: ShowResult, text: "boom", action: ActionAPIError},
		{name: "body message wins", err: &gateway.HTTPError{Status: 400, Message: "x", Body: gateway.Body(`{"msg":"from body"}`)}, kind: ShowResult, text: "from body", action: ActionAPIError},
		{name: "fallback", err: errors.New(""), fallback: FetchFailure, kind: AlertFallback, text: FetchFailure, action: ActionAPIError},
		{name: "generic", err: nil, kind: AlertFallback, text: GenericFailure, action: ActionAPIError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.err, tt.fallback)
			if out.Kind != tt.kind || out.Text != tt.text || out.ReportAction != tt.action {
				t.Fatalf("got=%+v", out)
			}
		})
	}
}

func TestResultText(t *testing.T) {
	tests := map[string]string{
		`{"message":"ok"}`: "ok",
		`"plain"`:          "plain",
		`{"a":1}`:          "{\n  \"a\": 1\n}",
	}
	for in, want := range tests {
		if got := ResultText(gateway.Body(in)); got != want {
			t.Errorf("ResultText(%s)=%q want=%q", in, got, want)
		}
	}
}

func TestPackageDetail(t *testing.T) {
	desc, price := PackageDetail(config.Package{ID: 1, Duration: "100小时", Cost: "30"})
	if desc != "100小时" || price != "30 元" {
		t.Fatalf("detail=%q %q", desc, price)
	}
	if _, price := PackageDetail(config.Package{ID: 2}); price != "—" {
		t.Fatalf("empty cost price=%q", price)
	}
}

func TestLoginToast(t *testing.T) {
	if _, ok := LoginToast(&config.Config{LoginMsg: " null "}); ok {
		t.Fatalf("null login message should not toast")
	}
	if msg, ok := LoginToast(&config.Config{LoginMsg: " 登录成功 "}); !ok || msg != "登录成功" {
		t.Fatalf("toast=%q %v", msg, ok)
	}
}

func TestAutoRefresherVisibility(t *testing.T) {
	var interval, visible atomic.Int32
	a := NewAutoRefresher(15*time.Millisecond, func(tr Trigger) {
		switch tr {
		case TriggerInterval:
			interval.Add(1)
		case TriggerVisible:
			visible.Add(1)
		}
	})
	a.Start()
	a.Start()
	time.Sleep(80 * time.Millisecond)
	if interval.Load() < 2 {
		t.Fatalf("interval refreshes=%d", interval.Load())
	}

	a.SetVisible(false)
	if a.Running() {
		t.Fatalf("timer still armed while hidden")
	}
	time.Sleep(5 * time.Millisecond)
	frozen := interval.Load()
	time.Sleep(60 * time.Millisecond)
	if interval.Load() != frozen {
		t.Fatalf("refreshed while hidden: %d -> %d", frozen, interval.Load())
	}

	a.SetVisible(true)
	a.SetVisible(true)
	if visible.Load() != 1 {
		t.Fatalf("visible refreshes=%d want 1", visible.Load())
	}
	if !a.Running() {
		t.Fatalf("timer not re-armed")
	}

	a.Stop()
	time.Sleep(5 * time.Millisecond)
	frozen = interval.Load()
	time.Sleep(40 * time.Millisecond)
	if interval.Load() != frozen {
		t.Fatalf("refreshed after stop")
	}
}
