package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/ackwire/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ackwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ackwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ackwire",
			Name:      "frames_total",
			Help:      "Frames read or written.",
		},
		[]string{"direction", "mode"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ackwire",
			Name:      "frame_bytes",
			Help:      "Frame payload size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ackwire",
			Name:      "protocol_errors_total",
			Help:      "Protocol errors by kind.",
		},
		[]string{"kind"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ackwire",
			Name:      "requests_total",
			Help:      "Session requests answered, by kind and status.",
		},
		[]string{"kind", "status"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ackwire",
			Name:      "sessions_active",
			Help:      "Live login sessions.",
		},
	)
	connsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ackwire",
			Name:      "connections_active",
			Help:      "Open protocol connections.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			frames, frameBytes, protocolErrors,
			requests, sessionsActive, connsActive,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordFrame counts one frame of size payload bytes.
func RecordFrame(direction, mode string, size int) {
	RegisterMetrics()
	frames.WithLabelValues(direction, mode).Inc()
	frameBytes.WithLabelValues(direction).Observe(float64(size))
}

// RecordProtocolError counts err under its protocol kind. Nil is ignored.
func RecordProtocolError(err error) {
	if err == nil {
		return
	}
	RegisterMetrics()
	kind, ok := protocol.KindOf(err)
	label := "unknown"
	if ok {
		label = kind.String()
	}
	protocolErrors.WithLabelValues(label).Inc()
}

func RecordRequest(kind string, status string) {
	RegisterMetrics()
	requests.WithLabelValues(kind, status).Inc()
}

func SetSessionsActive(n int) {
	RegisterMetrics()
	sessionsActive.Set(float64(n))
}

func ConnOpened() {
	RegisterMetrics()
	connsActive.Inc()
}

func ConnClosed() {
	RegisterMetrics()
	connsActive.Dec()
}
