// Package gateway wraps every REST call of the console: JSON encoding,
// response normalisation, the failure taxonomy and diagnostic reporting.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"telecom-console/internal/debug"
	"telecom-console/internal/metrics"
	"telecom-console/internal/perf"
	"telecom-console/internal/report"
)

const (
	ActionHTTPError = "handleRequest-error"
	ActionNetwork   = "handleRequest-network"
	ActionParse     = "handleRequest-parse"
)

// Reporter receives diagnostic events. *report.Reporter satisfies it.
type Reporter interface {
	Report(action string, err error, extra report.Extra)
}

type Options struct {
	Client    *http.Client
	Reporter  Reporter
	UserAgent string
	Debug     *debug.Logger
}

// Gateway issues REST calls. It never retries and imposes no timeout of its
// own; the caller's context governs cancellation.
type Gateway struct {
	client    *http.Client
	reporter  Reporter
	userAgent string
	dbg       *debug.Logger
}

func New(opts Options) *Gateway {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{
		client:    client,
		reporter:  opts.Reporter,
		userAgent: opts.UserAgent,
		dbg:       opts.Debug,
	}
}

func (g *Gateway) Get(ctx context.Context, rawURL string) (Body, error) {
	return g.Do(ctx, http.MethodGet, rawURL, nil)
}

func (g *Gateway) Post(ctx context.Context, rawURL string, body interface{}) (Body, error) {
	return g.Do(ctx, http.MethodPost, rawURL, body)
}

func (g *Gateway) Put(ctx context.Context, rawURL string, body interface{}) (Body, error) {
	return g.Do(ctx, http.MethodPut, rawURL, body)
}

func (g *Gateway) Delete(ctx context.Context, rawURL string) (Body, error) {
	return g.Do(ctx, http.MethodDelete, rawURL, nil)
}

// GetJSON is Get for callers that need the body itself: an empty or
// malformed 2xx body returns *ParseError instead of {}.
func (g *Gateway) GetJSON(ctx context.Context, rawURL string) (Body, error) {
	return g.do(ctx, http.MethodGet, rawURL, nil, true)
}

// Do sends one request. A nil body sends no payload; []byte, json.RawMessage
// and string bodies are sent as-is, anything else is JSON encoded.
//
// A 2xx response resolves to its JSON body, or {} when the body is empty or
// malformed. Non-2xx responses return *HTTPError, transport failures return
// *NetworkError. Both are reported before returning.
func (g *Gateway) Do(ctx context.Context, method, rawURL string, body interface{}) (Body, error) {
	return g.do(ctx, method, rawURL, body, false)
}

func (g *Gateway) do(ctx context.Context, method, rawURL string, body interface{}, strict bool) (Body, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, rawURL, err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, rawURL, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := RequestIDFrom(ctx)
	req.Header.Set(RequestIDHeader, reqID)
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	seq := g.dbg.Begin()
	g.dbg.LogRequest(seq, method, rawURL, payload)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, g.networkFailure(seq, method, rawURL, reqID, start, err)
	}
	defer resp.Body.Close()

	buf := perf.AcquireByteBuffer()
	defer perf.ReleaseByteBuffer(buf)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, g.networkFailure(seq, method, rawURL, reqID, start, err)
	}
	data := bytes.Clone(buf.Bytes())
	elapsed := time.Since(start)

	metrics.GatewayRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.GatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	g.dbg.LogResponse(seq, method, resp.StatusCode, data, elapsed, nil)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return g.success(method, rawURL, data, strict)
	}

	httpErr := &HTTPError{
		Status: resp.StatusCode,
		Method: method,
		URL:    rawURL,
	}
	if json.Valid(data) {
		httpErr.Body = Body(data)
	}
	httpErr.Message = MessageOf(httpErr.Body)
	if httpErr.Message == "" {
		httpErr.Message = statusMessage(resp.StatusCode)
	}
	slog.Debug("REST 请求失败", "request_id", reqID, "method", method, "url", rawURL, "status", resp.StatusCode, "message", httpErr.Message)
	g.report(ActionHTTPError, httpErr, method, rawURL)
	return nil, httpErr
}

// success 宽松模式下空体和坏 JSON 都按 {} 处理；严格模式交给调用方上报
func (g *Gateway) success(method, rawURL string, data []byte, strict bool) (Body, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		if strict {
			return nil, &ParseError{Method: method, URL: rawURL, Err: errEmptyBody}
		}
		return emptyObject, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		slog.Debug("响应 JSON 解析失败", "method", method, "url", rawURL, "error", err)
		if strict {
			return nil, &ParseError{Method: method, URL: rawURL, Err: err}
		}
		g.report(ActionParse, fmt.Errorf("parse response: %w", err), method, rawURL)
		return emptyObject, nil
	}
	return Body(data), nil
}

func (g *Gateway) networkFailure(seq int64, method, rawURL, reqID string, start time.Time, err error) error {
	elapsed := time.Since(start)
	metrics.GatewayRequestsTotal.WithLabelValues(method, "network").Inc()
	metrics.GatewayRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	g.dbg.LogResponse(seq, method, 0, nil, elapsed, err)

	netErr := &NetworkError{Method: method, URL: rawURL, Err: err}
	if !errors.Is(err, context.Canceled) {
		slog.Debug("REST 网络错误", "request_id", reqID, "method", method, "url", rawURL, "error", err)
		g.report(ActionNetwork, netErr, method, rawURL)
	}
	return netErr
}

func (g *Gateway) report(action string, err error, method, rawURL string) {
	if g.reporter == nil {
		return
	}
	g.reporter.Report(action, err, report.Extra{URL: reportURL(rawURL), Method: method})
}

// reportURL keeps the path and query of an absolute URL.
func reportURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

func encodeBody(body interface{}) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return data, nil
}
