package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Outcomes counts finished orchestrations by method tag ("failed" when no campaign)
	Outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_outcomes_total",
			Help: "Finished campaign orchestrations by method",
		},
		[]string{"method"},
	)

	// TierResults counts tier attempts by tier and result
	TierResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_tier_results_total",
			Help: "Tier attempts by tier and result",
		},
		[]string{"tier", "result"},
	)

	// CapabilityCalls counts sub-capability invocations
	CapabilityCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_subcapability_calls_total",
			Help: "Sub-capability invocations by capability and result",
		},
		[]string{"capability", "result"},
	)

	// InferenceRetries counts rate-limit retries of inference calls
	InferenceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_inference_retries_total",
			Help: "Inference calls retried after a rate-limit signal",
		},
	)

	// SynthesisDuration tracks end-to-end orchestration time
	SynthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campaign_synthesis_seconds",
			Help:    "End-to-end orchestration time by method",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method"},
	)
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// ResultLabel maps a boolean outcome to a label value
func ResultLabel(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
