// Package metrics exposes dispatch counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tradeScope/internal/dispatch"
	"tradeScope/internal/model"
)

// Recorder counts dispatched blocks, candidates and outcomes.
type Recorder struct {
	blocks     *prometheus.CounterVec
	candidates *prometheus.CounterVec
	trades     *prometheus.CounterVec
	failures   *prometheus.CounterVec
	warnings   *prometheus.CounterVec
}

// NewRecorder registers the counters with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradescope",
			Name:      "blocks_dispatched_total",
			Help:      "Blocks passed through the dispatcher.",
		}, []string{"chain"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradescope",
			Name:      "decode_candidates_total",
			Help:      "Instructions or logs routed to a decoder.",
		}, []string{"chain"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradescope",
			Name:      "trade_events_total",
			Help:      "Trade events produced, by instruction type.",
		}, []string{"chain", "type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradescope",
			Name:      "decode_failures_total",
			Help:      "Candidates that failed to decode.",
		}, []string{"chain"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradescope",
			Name:      "decode_warnings_total",
			Help:      "Degraded decodes, such as amounts read as zero.",
		}, []string{"chain", "kind"}),
	}
	for _, c := range []prometheus.Collector{r.blocks, r.candidates, r.trades, r.failures, r.warnings} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// Observe records one dispatched block. A nil Recorder is a no-op.
func (r *Recorder) Observe(chain model.Chain, events model.TradeEvents, report dispatch.Report) {
	if r == nil {
		return
	}
	label := chain.String()
	r.blocks.WithLabelValues(label).Inc()
	r.candidates.WithLabelValues(label).Add(float64(report.Candidates))
	r.failures.WithLabelValues(label).Add(float64(report.Failed))
	for _, event := range events.Events {
		typ := "unknown"
		if event.Instruction != nil && event.Instruction.Type != "" {
			typ = event.Instruction.Type
		}
		r.trades.WithLabelValues(label, typ).Inc()
	}
	for _, warning := range report.Warnings {
		r.warnings.WithLabelValues(label, warning.Kind).Inc()
	}
}

// Server serves /metrics for a gatherer.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

func NewServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server start", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
