package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	domain "github.com/ethica-ai/ethica-relay/internal/domain/analysis"
)

// Metrics holds process-wide request and relay counters.
type Metrics struct {
	requests   atomic.Uint64
	inFlight   atomic.Int64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	relayLive  atomic.Uint64
	relayFalls atomic.Uint64
	relayGone  atomic.Uint64
	byReason   map[domain.Reason]*atomic.Uint64
	started    time.Time
}

func newMetrics() *Metrics {
	m := &Metrics{started: time.Now(), byReason: map[domain.Reason]*atomic.Uint64{}}
	for _, r := range domain.Reasons {
		if r != domain.ReasonCanceled {
			m.byReason[r] = new(atomic.Uint64)
		}
	}
	return m
}

var globalMetrics = newMetrics()

// RecordRelay counts one relay outcome. Fallbacks are broken down by reason
// because callers cannot tell them apart from live results. Calls the caller
// abandoned are counted on their own.
func RecordRelay(out domain.Outcome) {
	switch {
	case !out.IsFallback():
		globalMetrics.relayLive.Add(1)
		return
	case out.Reason == domain.ReasonCanceled:
		globalMetrics.relayGone.Add(1)
		return
	}
	globalMetrics.relayFalls.Add(1)
	c, ok := globalMetrics.byReason[out.Reason]
	if !ok {
		c = globalMetrics.byReason[domain.ReasonTransport]
	}
	c.Add(1)
}

// GetMetrics returns a snapshot of the counters plus runtime stats.
func GetMetrics() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	reasons := make(map[string]uint64, len(globalMetrics.byReason))
	for r, c := range globalMetrics.byReason {
		reasons[string(r)] = c.Load()
	}

	return map[string]interface{}{
		"requests_total":       globalMetrics.requests.Load(),
		"requests_in_progress": globalMetrics.inFlight.Load(),
		"requests_success":     globalMetrics.succeeded.Load(),
		"requests_failed":      globalMetrics.failed.Load(),
		"relay_live":           globalMetrics.relayLive.Load(),
		"relay_fallback":       globalMetrics.relayFalls.Load(),
		"relay_canceled":       globalMetrics.relayGone.Load(),
		"fallback_reasons":     reasons,
		"uptime_seconds":       time.Since(globalMetrics.started).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics. Responses below 400 count as
// successes; the relay answers 200 even when it serves a fallback.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		globalMetrics.requests.Add(1)
		globalMetrics.inFlight.Add(1)
		defer globalMetrics.inFlight.Add(-1)

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode < 400 {
			globalMetrics.succeeded.Add(1)
		} else {
			globalMetrics.failed.Add(1)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
