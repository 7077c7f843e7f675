package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"telecom-console/internal/config"
)

// NopSink discards every report (report_sink_mode=off).
type NopSink struct{}

func (NopSink) Write(context.Context, Report) error { return nil }
func (NopSink) Close() error                        { return nil }

// HTTPSink posts reports as JSON to the backend log endpoint. The response
// body is ignored.
type HTTPSink struct {
	client *http.Client
	url    string
}

func NewHTTPSink(client *http.Client, url string) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{client: client, url: url}
}

func (s *HTTPSink) Write(ctx context.Context, r Report) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("log sink returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPSink) Close() error { return nil }

// NewSink selects the sink named by cfg.ReportSinkMode.
func NewSink(cfg *config.Config, client *http.Client) (Sink, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.ReportSinkMode))
	switch mode {
	case "", "http":
		return NewHTTPSink(client, cfg.SinkURL()), nil
	case "redis":
		return NewRedisSink(cfg.ReportRedisAddr, cfg.ReportRedisPassword, cfg.ReportRedisDB, cfg.ReportRedisKey, cfg.ReportRedisMaxLen)
	case "sqlite":
		return NewSQLiteSink(cfg.ReportSQLitePath)
	case "off", "none":
		return NopSink{}, nil
	default:
		return nil, fmt.Errorf("unsupported report_sink_mode: %s", mode)
	}
}

// NewSinkOrNop is NewSink for the running console: a sink that cannot be
// opened degrades to NopSink so diagnostics never stop the caller.
func NewSinkOrNop(cfg *config.Config, client *http.Client) Sink {
	sink, err := NewSink(cfg, client)
	if err != nil {
		slog.Warn("诊断上报 sink 初始化失败，改为丢弃", "mode", cfg.ReportSinkMode, "error", err)
		return NopSink{}
	}
	return sink
}

// Journal is implemented by sinks that can list what they stored.
type Journal interface {
	Recent(ctx context.Context, limit int) ([]Report, error)
}
