package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/types"
)

const namespace = "tradebot"

// Metrics holds the Prometheus collectors for the decision cycle.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec // labels: outcome
	CycleDuration      prometheus.Histogram
	OrdersTotal        *prometheus.CounterVec // labels: side, simulated
	CyclesSkipped      prometheus.Counter
	LastCycleTimestamp prometheus.Gauge

	health *HealthStatus
}

// New creates the collectors and registers them with reg. A nil reg uses the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished decision cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one decision cycle",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders accepted by the exchange",
		}, []string{"side", "simulated"}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Scheduled triggers skipped because a cycle was already running",
		}),
		LastCycleTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last decision cycle finished",
		}),
		health: NewHealthStatus(),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.OrdersTotal,
		m.CyclesSkipped,
		m.LastCycleTimestamp,
	)
	return m
}

// Health returns the status served on /healthz.
func (m *Metrics) Health() *HealthStatus { return m.health }

// RecordOutcome updates the collectors for a finished cycle.
func (m *Metrics) RecordOutcome(ctx context.Context, o *types.Outcome) {
	m.CyclesTotal.WithLabelValues(string(o.Kind)).Inc()
	m.CycleDuration.Observe(o.Duration.Seconds())
	finished := o.Started.Add(o.Duration)
	if finished.IsZero() {
		finished = time.Now()
	}
	m.LastCycleTimestamp.Set(float64(finished.UnixNano()) / 1e9)
	if o.Kind == types.Executed && o.Order != nil {
		simulated := "false"
		if o.Result != nil && o.Result.Simulated {
			simulated = "true"
		}
		m.OrdersTotal.WithLabelValues(string(o.Order.Side), simulated).Inc()
	}
	m.health.setLastCycle(finished, o.Kind)
}

// RecordSkip counts a trigger dropped by the single-flight guard.
func (m *Metrics) RecordSkip() {
	m.CyclesSkipped.Inc()
}

// HealthStatus reports the last cycle on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	LastCycleAt      time.Time `json:"last_cycle_at"`
	LastOutcome      string    `json:"last_outcome"`
	ConsecutiveFails int       `json:"consecutive_failures"`
	StartedAt        time.Time `json:"started_at"`
}

func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) setLastCycle(t time.Time, kind types.OutcomeKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCycleAt = t
	h.LastOutcome = string(kind)
	if kind.Failed() {
		h.ConsecutiveFails++
	} else {
		h.ConsecutiveFails = 0
	}
}

// ServeHTTP handles the /healthz endpoint. The bot counts as degraded after
// three failed cycles in a row.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if h.ConsecutiveFails >= 3 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	lastCycle := ""
	if !h.LastCycleAt.IsZero() {
		lastCycle = h.LastCycleAt.Format(time.RFC3339)
	}
	body := struct {
		Status           string `json:"status"`
		Uptime           string `json:"uptime"`
		LastCycleAt      string `json:"last_cycle_at"`
		LastOutcome      string `json:"last_outcome"`
		ConsecutiveFails int    `json:"consecutive_failures"`
	}{
		Status:           status,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		LastCycleAt:      lastCycle,
		LastOutcome:      h.LastOutcome,
		ConsecutiveFails: h.ConsecutiveFails,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server exposes /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer serves gatherer on /metrics. A nil gatherer uses the default registry.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

// Handler returns the server mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens in the background until Shutdown is called.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info(ctx, "Metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server stopped", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
