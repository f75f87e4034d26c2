// Package metrics holds the Prometheus instrumentation for the pipeline.
// Components take a *Metrics and treat a nil receiver as "metrics disabled",
// so tests and library embedders can skip registration entirely.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics for the stream client.
type Metrics struct {
	FramesTotal     prometheus.Counter
	DecodeErrors    prometheus.Counter
	Reconnects      prometheus.Counter
	TicksTotal      prometheus.Counter
	CandlesTotal    prometheus.Counter
	DispatchTotal   *prometheus.CounterVec // labels: channel
	IndicatorDur    prometheus.Histogram
	IndicatorsTotal prometheus.Counter
}

// New registers and returns all Prometheus metrics on the default registry.
func New() *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_frames_total",
			Help: "Total wire frames decoded",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_decode_errors_total",
			Help: "Total wire messages dropped due to decode failure",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_reconnects_total",
			Help: "Total reconnection attempts",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_ticks_total",
			Help: "Total live ticks ingested",
		}),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_candles_total",
			Help: "Total candles assembled or updated",
		}),
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qxstream_dispatch_total",
			Help: "Total payloads dispatched, by channel",
		}, []string{"channel"}),
		IndicatorDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qxstream_indicator_compute_seconds",
			Help:    "Indicator recomputation duration",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		IndicatorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qxstream_indicators_total",
			Help: "Total indicator results produced",
		}),
	}

	prometheus.MustRegister(
		m.FramesTotal,
		m.DecodeErrors,
		m.Reconnects,
		m.TicksTotal,
		m.CandlesTotal,
		m.DispatchTotal,
		m.IndicatorDur,
		m.IndicatorsTotal,
	)

	return m
}

// ObserveIndicator records one indicator computation. Nil-safe.
func (m *Metrics) ObserveIndicator(d time.Duration) {
	if m == nil {
		return
	}
	m.IndicatorDur.Observe(d.Seconds())
	m.IndicatorsTotal.Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listener starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics listener stopped", zap.Error(err))
	}
}
