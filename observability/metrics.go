package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type rpcMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// TippingMetrics wraps collectors tracking quota ledger health.
type TippingMetrics struct {
	tips          *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	debitLatency  prometheus.Histogram
	capRemaining  *prometheus.GaugeVec
	pauseEngaged  prometheus.Gauge
	batchSize     prometheus.Histogram
	sweepTotal    prometheus.Counter
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *rpcMetrics

	tippingMetricsOnce sync.Once
	tippingRegistry    *TippingMetrics
)

// RPCMetrics returns the lazily-initialised registry used to record JSON-RPC
// handler activity.
func RPCMetrics() *rpcMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &rpcMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipvault",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipvault",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "tipvault",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.errors,
			rpcRegistry.latency,
		)
	})
	return rpcRegistry
}

// Observe records the outcome of an RPC request. The status code should be the
// HTTP status that was ultimately written to the response writer.
func (m *rpcMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// Tipping exposes the metrics registry for the tipping engines.
func Tipping() *TippingMetrics {
	tippingMetricsOnce.Do(func() {
		tippingRegistry = &TippingMetrics{
			tips: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "tips_total",
				Help:      "Count of settled tips segmented by entry point.",
			}, []string{"entry"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "rejections_total",
				Help:      "Count of rejected tips segmented by entry point and reason.",
			}, []string{"entry", "reason"}),
			debitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "debit_duration_seconds",
				Help:      "Latency distribution for ledger debit-and-transfer calls.",
				Buckets:   prometheus.DefBuckets,
			}),
			capRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "cap_remaining",
				Help:      "Remaining supply cap in integer units segmented by scope.",
			}, []string{"scope"}),
			pauseEngaged: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "pause_engaged",
				Help:      "Indicates whether the tipping pause guard is active (1) or not (0).",
			}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "batch_size",
				Help:      "Distribution of entry counts for batch tip submissions.",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			}),
			sweepTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tipvault",
				Subsystem: "tipping",
				Name:      "unclaimed_sweeps_total",
				Help:      "Count of post-season unclaimed withdrawal sweeps.",
			}),
		}
		prometheus.MustRegister(
			tippingRegistry.tips,
			tippingRegistry.rejections,
			tippingRegistry.debitLatency,
			tippingRegistry.capRemaining,
			tippingRegistry.pauseEngaged,
			tippingRegistry.batchSize,
			tippingRegistry.sweepTotal,
		)
	})
	return tippingRegistry
}

// RecordTip increments the settled tip counter for the supplied entry point.
func (m *TippingMetrics) RecordTip(entry string) {
	if m == nil {
		return
	}
	m.tips.WithLabelValues(labelEntry(entry)).Inc()
}

// RecordRejection increments the rejection counter. Reasons should be stable
// strings such as "insufficient_allowance" or "proof_invalid" so dashboards
// and alerts remain consistent.
func (m *TippingMetrics) RecordRejection(entry, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.rejections.WithLabelValues(labelEntry(entry), reason).Inc()
}

// ObserveDebit records the processing latency for a ledger debit.
func (m *TippingMetrics) ObserveDebit(d time.Duration) {
	if m == nil {
		return
	}
	m.debitLatency.Observe(d.Seconds())
}

// RecordCapRemaining updates the remaining cap gauge for a scope such as
// "season" or "program".
func (m *TippingMetrics) RecordCapRemaining(scope string, remaining *big.Int) {
	if m == nil {
		return
	}
	if scope = strings.TrimSpace(scope); scope == "" {
		scope = "unknown"
	}
	m.capRemaining.WithLabelValues(scope).Set(bigToFloat(remaining))
}

// SetPause toggles the pause_engaged gauge.
func (m *TippingMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.pauseEngaged.Set(1)
		return
	}
	m.pauseEngaged.Set(0)
}

// ObserveBatch records the entry count of a batch submission.
func (m *TippingMetrics) ObserveBatch(entries int) {
	if m == nil {
		return
	}
	if entries < 0 {
		entries = 0
	}
	m.batchSize.Observe(float64(entries))
}

// RecordSweep increments the unclaimed sweep counter.
func (m *TippingMetrics) RecordSweep() {
	if m == nil {
		return
	}
	m.sweepTotal.Inc()
}

func labelEntry(entry string) string {
	trimmed := strings.TrimSpace(entry)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
