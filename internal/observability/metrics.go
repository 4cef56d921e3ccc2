package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storeDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Metrics holds all Prometheus metric instruments for the workflow core.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Progression metrics
	StageAdvancesTotal      *prometheus.CounterVec
	ProgressCompletionsTotal *prometheus.CounterVec
	AdvanceConflictsTotal   prometheus.Counter
	EvaluationDuration      prometheus.Histogram

	// Document metrics
	DocumentDecisionsTotal *prometheus.CounterVec

	// Audit metrics
	AuditWritesTotal        *prometheus.CounterVec
	AuditWriteFailuresTotal prometheus.Counter

	// Realtime metrics
	RealtimeRooms        prometheus.Gauge
	RealtimeMembers      prometheus.Gauge
	RealtimeEventsTotal  *prometheus.CounterVec
	RealtimeDroppedTotal prometheus.Counter

	// Reminder metrics
	ReminderSendsTotal    *prometheus.CounterVec
	ReminderTickDuration  prometheus.Histogram
	ReminderSkippedTotal  prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagegate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		StageAdvancesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_stage_advances_total",
			Help: "Total number of stage transitions.",
		}, []string{"workflow_id", "trigger"}),
		ProgressCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_progress_completions_total",
			Help: "Total number of participants completing a workflow.",
		}, []string{"workflow_id"}),
		AdvanceConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_advance_conflicts_total",
			Help: "Total number of optimistic-lock conflicts during advance.",
		}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagegate_evaluation_duration_seconds",
			Help:    "Advancement evaluation duration in seconds.",
			Buckets: storeDurationBuckets,
		}),

		DocumentDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_document_decisions_total",
			Help: "Total number of document decisions.",
		}, []string{"decision"}),

		AuditWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_audit_writes_total",
			Help: "Total number of audit entries written.",
		}, []string{"action", "table"}),
		AuditWriteFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_audit_write_failures_total",
			Help: "Total number of swallowed audit write failures.",
		}),

		RealtimeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stagegate_realtime_rooms",
			Help: "Number of rooms with at least one member.",
		}),
		RealtimeMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stagegate_realtime_members",
			Help: "Number of active room memberships.",
		}),
		RealtimeEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_realtime_events_total",
			Help: "Total number of relayed realtime events.",
		}, []string{"kind"}),
		RealtimeDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_realtime_dropped_total",
			Help: "Total number of events dropped on full client buffers.",
		}),

		ReminderSendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stagegate_reminder_sends_total",
			Help: "Total number of reminder send attempts.",
		}, []string{"status"}),
		ReminderTickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagegate_reminder_tick_duration_seconds",
			Help:    "Reminder scheduler tick duration in seconds.",
			Buckets: storeDurationBuckets,
		}),
		ReminderSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stagegate_reminder_skipped_total",
			Help: "Total number of participants skipped by the reminder de-duplication window.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StageAdvancesTotal,
		m.ProgressCompletionsTotal,
		m.AdvanceConflictsTotal,
		m.EvaluationDuration,
		m.DocumentDecisionsTotal,
		m.AuditWritesTotal,
		m.AuditWriteFailuresTotal,
		m.RealtimeRooms,
		m.RealtimeMembers,
		m.RealtimeEventsTotal,
		m.RealtimeDroppedTotal,
		m.ReminderSendsTotal,
		m.ReminderTickDuration,
		m.ReminderSkippedTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordStageAdvance records a stage transition. Trigger is "manual" or
// "auto".
func (m *Metrics) RecordStageAdvance(workflowID, trigger string) {
	m.StageAdvancesTotal.WithLabelValues(workflowID, trigger).Inc()
}

// RecordProgressCompletion records a participant completing a workflow.
func (m *Metrics) RecordProgressCompletion(workflowID string) {
	m.ProgressCompletionsTotal.WithLabelValues(workflowID).Inc()
}

// RecordAdvanceConflict records an optimistic-lock conflict during advance.
func (m *Metrics) RecordAdvanceConflict() {
	m.AdvanceConflictsTotal.Inc()
}

// ObserveEvaluationDuration records how long an advancement evaluation took.
func (m *Metrics) ObserveEvaluationDuration(d time.Duration) {
	m.EvaluationDuration.Observe(d.Seconds())
}

// RecordDocumentDecision records a document decision.
func (m *Metrics) RecordDocumentDecision(decision string) {
	m.DocumentDecisionsTotal.WithLabelValues(decision).Inc()
}

// RecordAuditWrite records a successful audit entry write.
func (m *Metrics) RecordAuditWrite(action, table string) {
	m.AuditWritesTotal.WithLabelValues(action, table).Inc()
}

// RecordAuditWriteFailure records a swallowed audit write failure.
func (m *Metrics) RecordAuditWriteFailure() {
	m.AuditWriteFailuresTotal.Inc()
}

// RecordRealtimeEvent records a relayed event of the given kind.
func (m *Metrics) RecordRealtimeEvent(kind string) {
	m.RealtimeEventsTotal.WithLabelValues(kind).Inc()
}

// RecordRealtimeDrop records an event dropped on a full client buffer.
func (m *Metrics) RecordRealtimeDrop() {
	m.RealtimeDroppedTotal.Inc()
}

// SetRealtimePresence updates the room and membership gauges.
func (m *Metrics) SetRealtimePresence(rooms, members int) {
	m.RealtimeRooms.Set(float64(rooms))
	m.RealtimeMembers.Set(float64(members))
}

// RecordReminderSend records a reminder send attempt outcome.
func (m *Metrics) RecordReminderSend(status string) {
	m.ReminderSendsTotal.WithLabelValues(status).Inc()
}

// RecordReminderSkipped records a participant skipped by the de-duplication
// window.
func (m *Metrics) RecordReminderSkipped() {
	m.ReminderSkippedTotal.Inc()
}

// ObserveReminderTick records the duration of a reminder scheduler tick.
func (m *Metrics) ObserveReminderTick(d time.Duration) {
	m.ReminderTickDuration.Observe(d.Seconds())
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pathPattern, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pathPattern).Observe(duration.Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
