// Package report 前端诊断上报：尽力而为、异步、永不阻塞调用方
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"telecom-console/internal/metrics"
)

// ErrClosed is returned by sinks used after Close.
var ErrClosed = errors.New("report sink closed")

// Report is the payload accepted by the diagnostic sink. Stack and Detail
// serialize as null when absent.
type Report struct {
	Action    string      `json:"action"`
	Message   string      `json:"message"`
	Stack     *string     `json:"stack"`
	URL       string      `json:"url"`
	UserAgent string      `json:"userAgent"`
	Detail    interface{} `json:"detail"`
	Method    string      `json:"-"`
	CreatedAt time.Time   `json:"-"`
}

// Extra carries optional context for a report.
type Extra struct {
	URL    string
	Method string
	Detail interface{}
}

// Sink delivers reports somewhere durable or remote.
type Sink interface {
	Write(ctx context.Context, r Report) error
	Close() error
}

type Options struct {
	Sink Sink
	// SinkName labels the sink in logs and metrics (the sink mode).
	SinkName     string
	SinkPolicy   SinkPolicy
	PagePath     string
	UserAgent    string
	QueueSize    int
	MaxInFlight  int64
	WriteTimeout time.Duration
}

// Reporter accepts reports from any goroutine and delivers them in the
// background. Report never blocks and never fails.
type Reporter struct {
	sink         *guardedSink
	pagePath     string
	userAgent    string
	writeTimeout time.Duration
	sem          *semaphore.Weighted
	maxInFlight  int64

	mu     sync.RWMutex
	closed bool
	queue  chan Report

	worker   sync.WaitGroup
	inflight sync.WaitGroup
}

func New(opts Options) *Reporter {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 4
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.SinkName == "" {
		opts.SinkName = "report-sink"
	}
	r := &Reporter{
		sink:         newGuardedSink(opts.SinkName, opts.Sink, opts.SinkPolicy),
		pagePath:     opts.PagePath,
		userAgent:    opts.UserAgent,
		writeTimeout: opts.WriteTimeout,
		sem:          semaphore.NewWeighted(opts.MaxInFlight),
		maxInFlight:  opts.MaxInFlight,
		queue:        make(chan Report, opts.QueueSize),
	}
	r.worker.Add(1)
	go r.run()
	return r
}

// Report submits a diagnostic event. It is safe on a nil Reporter.
func (r *Reporter) Report(action string, err error, extra Extra) {
	if r == nil {
		return
	}
	rep := r.build(action, err, extra)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		metrics.ReportsTotal.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case r.queue <- rep:
		metrics.ReportQueueDepth.Inc()
	default:
		metrics.ReportsTotal.WithLabelValues("dropped").Inc()
		slog.Debug("诊断上报队列已满，丢弃", "action", action)
	}
}

func (r *Reporter) build(action string, err error, extra Extra) Report {
	url := r.pagePath
	if extra.URL != "" {
		url = extra.URL
	}
	return Report{
		Action:    action,
		Message:   messageOf(err),
		Stack:     stackOf(err),
		URL:       url,
		UserAgent: r.userAgent,
		Detail:    extra.Detail,
		Method:    extra.Method,
		CreatedAt: time.Now(),
	}
}

func (r *Reporter) run() {
	defer r.worker.Done()
	for rep := range r.queue {
		metrics.ReportQueueDepth.Dec()
		// Acquire never fails with a background context.
		_ = r.sem.Acquire(context.Background(), 1)
		r.inflight.Add(1)
		go func(rep Report) {
			defer r.inflight.Done()
			defer r.sem.Release(1)
			r.deliver(rep)
		}(rep)
	}
}

func (r *Reporter) deliver(rep Report) {
	defer func() {
		if p := recover(); p != nil {
			metrics.ReportsTotal.WithLabelValues("failed").Inc()
			slog.Debug("诊断上报 panic", "action", rep.Action, "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	err := r.sink.Write(ctx, rep)
	switch {
	case err == nil:
		metrics.ReportsTotal.WithLabelValues("sent").Inc()
	case errors.Is(err, errSinkOpen):
		metrics.ReportsTotal.WithLabelValues("rejected").Inc()
		slog.Debug("诊断上报熔断中，跳过", "action", rep.Action)
	default:
		metrics.ReportsTotal.WithLabelValues("failed").Inc()
		slog.Debug("诊断上报失败", "action", rep.Action, "error", err)
	}
}

// Close stops accepting reports, waits for queued ones until ctx expires and
// closes the sink.
func (r *Reporter) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.worker.Wait()
		r.inflight.Wait()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	if err := r.sink.sink.Close(); err != nil && waitErr == nil {
		return err
	}
	return waitErr
}

func messageOf(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// stackOf renders the wrap chain below the top-level error, if any.
func stackOf(err error) *string {
	if err == nil {
		return nil
	}
	var lines []string
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		lines = append(lines, fmt.Sprintf("caused by: %s", cause.Error()))
	}
	if len(lines) == 0 {
		return nil
	}
	stack := strings.Join(lines, "\n")
	return &stack
}
