package drive

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/pilote/journal"
	"github.com/hazyhaar/pilote/kit"
)

var (
	metricToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pilote",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})
	metricToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pilote",
		Name:      "tool_duration_seconds",
		Help:      "Tool invocation latency in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"tool"})
	metricSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pilote",
		Name:      "sessions_open",
		Help:      "Browser sessions currently open.",
	})
)

// MetricsHandler serves the prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// withMetrics counts and times every invocation of one tool endpoint.
func withMetrics(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			metricToolCalls.WithLabelValues(tool, outcome).Inc()
			metricToolDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// withJournal records every invocation of one tool endpoint in the call
// journal. A nil store makes it a passthrough.
func (svc *Service) withJournal(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			if svc.journal != nil {
				e := &journal.Entry{
					Session:    kit.GetSessionID(ctx),
					Tool:       tool,
					Outcome:    "ok",
					DurationUs: time.Since(start).Microseconds(),
				}
				if err != nil {
					e.Outcome = "error"
					e.Detail = err.Error()
				}
				svc.journal.RecordAsync(e)
			}
			return resp, err
		}
	}
}
