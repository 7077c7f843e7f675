package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"telecom-console/internal/metrics"
)

// SinkPolicy 诊断 sink 的熔断策略：连续失败 Trips 次后停止投递，
// Cooldown 之后放行一条试探。
type SinkPolicy struct {
	Trips    uint32
	Cooldown time.Duration
}

// DefaultSinkPolicy 日志端点挂掉时最多浪费 5 次请求，30 秒后再试
func DefaultSinkPolicy() SinkPolicy {
	return SinkPolicy{Trips: 5, Cooldown: 30 * time.Second}
}

// guardedSink 熔断期间的报告直接丢弃，不再打到已经失效的 sink
type guardedSink struct {
	name string
	sink Sink
	cb   *gobreaker.CircuitBreaker
}

func newGuardedSink(name string, sink Sink, p SinkPolicy) *guardedSink {
	if p.Trips == 0 {
		p.Trips = DefaultSinkPolicy().Trips
	}
	if p.Cooldown <= 0 {
		p.Cooldown = DefaultSinkPolicy().Cooldown
	}
	metrics.ReportSinkState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	g := &guardedSink{name: name, sink: sink}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     p.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= p.Trips
		},
		// Close 时超时的写入不算 sink 故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: g.stateChanged,
	})
	return g
}

func (g *guardedSink) stateChanged(name string, from, to gobreaker.State) {
	metrics.ReportSinkState.WithLabelValues(name).Set(stateValue(to))
	if to == gobreaker.StateOpen {
		metrics.ReportSinkTripsTotal.WithLabelValues(name).Inc()
		slog.Warn("诊断上报 sink 不可用，暂停投递", "sink", name, "from", from.String())
		return
	}
	slog.Info("诊断上报 sink 状态变化", "sink", name, "from", from.String(), "to", to.String())
}

// Write 经熔断器写入；熔断中返回 errSinkOpen
func (g *guardedSink) Write(ctx context.Context, rep Report) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.sink.Write(ctx, rep)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errSinkOpen
	}
	return err
}

var errSinkOpen = errors.New("report sink circuit open")

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
