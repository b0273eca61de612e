package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/extract"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
	"github.com/spawn-mcp/campaign-synth/pkg/metrics"
	"github.com/spawn-mcp/campaign-synth/pkg/retry"
	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

const (
	tierOne       = "tier1"
	tierSynthesis = "tier2_synthesis"
)

// tryTier1 asks the model to call the capabilities itself and return the
// finished campaign. It is all or nothing: any failure or an output that
// misses the schema yields false.
func (o *Orchestrator) tryTier1(ctx context.Context, r *run) (types.CampaignResult, bool) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.tier1")
	defer span.End()

	if !o.deps.Timeouts.HasInferenceBudget(ctx) {
		r.log.Warn("Skipping tool-calling inference, deadline too close")
		metrics.TierResults.WithLabelValues(tierOne, metrics.ResultSkipped).Inc()
		span.SetAttributes(attribute.String("result", metrics.ResultSkipped))
		return nil, false
	}

	text, err := o.infer(ctx, r, inference.Request{
		Prompt: tier1Prompt(r.req),
		Tools:  o.tools(r),
		Model:  o.opts.Tier1Model,
	})
	if err != nil {
		r.log.Warn("Tool-calling inference failed", zap.Error(err))
		metrics.TierResults.WithLabelValues(tierOne, metrics.ResultFailure).Inc()
		span.SetAttributes(attribute.String("result", metrics.ResultFailure))
		return nil, false
	}

	obj, ok := extract.Extract(text, types.ResultKeys)
	if !ok || !campaign.Valid(obj) {
		r.log.Info("Tool-calling inference returned no valid campaign",
			zap.Int("response_chars", len(text)),
			zap.Strings("invalid_keys", campaign.InvalidKeys(obj)))
		metrics.TierResults.WithLabelValues(tierOne, metrics.ResultFailure).Inc()
		span.SetAttributes(attribute.String("result", metrics.ResultFailure))
		return nil, false
	}

	metrics.TierResults.WithLabelValues(tierOne, metrics.ResultSuccess).Inc()
	span.SetAttributes(attribute.String("result", metrics.ResultSuccess))
	return types.CampaignResult(obj), true
}

// infer runs one inference call to completion under the inference timeout,
// retrying rate-limit failures per the backoff policy.
func (o *Orchestrator) infer(ctx context.Context, r *run, req inference.Request) (string, error) {
	cfg := o.opts.Retry
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.InferenceRetries.Inc()
		r.log.Warn("Inference rate limited, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	return retry.ExecuteWithRetry(ctx, func() (string, error) {
		callCtx, cancel := o.deps.Timeouts.WithTimeout(ctx, timeout.OpInference)
		defer cancel()

		events, err := o.deps.Inference.Invoke(callCtx, req)
		if err != nil {
			return "", err
		}
		text, err := inference.Collect(callCtx, events)
		if err != nil && timeout.IsTimeout(err) {
			err = &timeout.TimeoutError{Operation: timeout.OpInference, Timeout: o.deps.Timeouts.GetTimeout(ctx, timeout.OpInference)}
		}
		return text, err
	}, cfg)
}
