package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/extract"
	"github.com/spawn-mcp/campaign-synth/pkg/gateway"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
	"github.com/spawn-mcp/campaign-synth/pkg/metrics"
	"github.com/spawn-mcp/campaign-synth/pkg/store"
	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// runTier2 gathers facts through the capabilities one at a time, reads the
// aggregated record back, and asks the model only to narrate it. The result
// is always complete; errors are limited to the image precondition.
func (o *Orchestrator) runTier2(ctx context.Context, r *run) (campaign.Reconciliation, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.tier2")
	defer span.End()

	for _, c := range gateway.Capabilities {
		subjectID, ownerID := r.ids()
		res := o.invoke(ctx, r, c, tier2Payload(r.req, c, subjectID, ownerID))

		// a fatal capability creates the record and must name it
		if res.Success && (res.SubjectID != "" || !c.Fatal()) {
			r.adopt(c, res)
			continue
		}
		if !c.Fatal() {
			r.log.Warn("Capability failed, continuing",
				zap.String("capability", c.String()),
				zap.String("error", res.Error))
			continue
		}

		reason := res.Error
		if res.Success {
			reason = "no subject id returned"
		}
		span.SetAttributes(attribute.String("result", c.String()+"_failed"))
		return campaign.Reconciliation{}, cerrors.Newf(cerrors.ErrPreconditionFailed, "%s failed: %s", c, reason).
			WithContext("capability", c.String()).
			WithContext("correlation_id", r.req.CorrelationID)
	}

	subjectID, ownerID := r.ids()
	key := store.Key{SubjectID: subjectID, OwnerID: ownerID}
	readCtx, cancel := o.deps.Timeouts.WithTimeout(ctx, timeout.OpStoreRead)
	record, err := store.ReadAfterWrite(readCtx, o.deps.Store, key, o.opts.Poll)
	cancel()
	if err != nil {
		span.SetAttributes(attribute.String("result", "record_missing"))
		return campaign.Reconciliation{}, cerrors.Wrapf(err, cerrors.ErrPreconditionFailed,
			"could not read subject record %s after image analysis", key).
			WithContext("subject_id", subjectID).
			WithContext("owner_id", ownerID)
	}

	candidate := o.synthesizeFromRecord(ctx, r, subjectID, record)
	rec := campaign.Reconcile(candidate, record)

	metrics.TierResults.WithLabelValues("tier2", metrics.ResultLabel(rec.AIComplete())).Inc()
	span.SetAttributes(
		attribute.Bool("ai_complete", rec.AIComplete()),
		attribute.StringSlice("fallback_keys", rec.FallbackKeys),
	)
	if !rec.AIComplete() {
		r.log.Warn("Campaign completed from aggregated facts", zap.Strings("fallback_keys", rec.FallbackKeys))
	}
	return rec, nil
}

// synthesizeFromRecord runs the tool-free inference call. Any object in the
// reply is a candidate; nil means nothing usable came back.
func (o *Orchestrator) synthesizeFromRecord(ctx context.Context, r *run, subjectID string, record types.SubjectRecord) map[string]any {
	if !o.deps.Timeouts.HasInferenceBudget(ctx) {
		r.log.Warn("Skipping synthesis inference, deadline too close")
		metrics.TierResults.WithLabelValues(tierSynthesis, metrics.ResultSkipped).Inc()
		return nil
	}

	text, err := o.infer(ctx, r, inference.Request{
		Prompt: synthesisPrompt(subjectID, record, r.req),
		Model:  o.opts.SynthesisModel,
	})
	if err != nil {
		r.log.Warn("Synthesis inference failed", zap.Error(err))
		metrics.TierResults.WithLabelValues(tierSynthesis, metrics.ResultFailure).Inc()
		return nil
	}

	candidate, ok := extract.Extract(text, nil)
	if !ok {
		r.log.Info("Synthesis inference returned no JSON object", zap.Int("response_chars", len(text)))
		metrics.TierResults.WithLabelValues(tierSynthesis, metrics.ResultFailure).Inc()
		return nil
	}
	metrics.TierResults.WithLabelValues(tierSynthesis, metrics.ResultSuccess).Inc()
	return candidate
}

// adopt records the ids a successful Tier 2 capability reported. The image
// result names the record; a cultural owner id overrides the requested owner.
func (r *run) adopt(c gateway.Capability, res gateway.Result) {
	switch c {
	case gateway.Image:
		r.remember(res.SubjectID, res.OwnerID)
		subjectID, ownerID := r.ids()
		r.log.Info("Image analysis complete", zap.String("subject_id", subjectID), zap.String("owner_id", ownerID))
	case gateway.Cultural:
		r.remember("", res.OwnerID)
	}
}

func tier2Payload(req types.CampaignRequest, c gateway.Capability, subjectID, ownerID string) gateway.Payload {
	switch c {
	case gateway.Image:
		return imagePayload(req)
	case gateway.Enrichment:
		return enrichmentPayload(req, subjectID, ownerID)
	default:
		return culturalPayload(req, subjectID, ownerID)
	}
}

func imagePayload(req types.CampaignRequest) gateway.Payload {
	product := map[string]any{
		"name":        req.Product.Name,
		"description": req.Product.Description,
		"category":    req.Product.Category,
		"user_id":     req.OwnerID,
	}
	s3 := map[string]any{}
	if !req.ImageRef.IsZero() {
		s3["bucket"] = req.ImageRef.Bucket
		s3["key"] = req.ImageRef.Key
	}
	if req.ImageURL != "" {
		product["image_url"] = req.ImageURL
		s3["url"] = req.ImageURL
	}
	return gateway.Payload{
		"product_info": product,
		"s3_info":      s3,
		"user_id":      req.OwnerID,
	}
}

func enrichmentPayload(req types.CampaignRequest, subjectID, ownerID string) gateway.Payload {
	info := map[string]any{"objectives": nonNil(req.Objectives)}
	if req.BudgetRange != "" {
		info["budget_range"] = req.BudgetRange
	}
	if req.Timeline != "" {
		info["timeline"] = req.Timeline
	}
	return gateway.Payload{
		"product_id":    subjectID,
		"user_id":       ownerID,
		"campaign_info": info,
	}
}

func culturalPayload(req types.CampaignRequest, subjectID, ownerID string) gateway.Payload {
	return gateway.Payload{
		"product_id":     subjectID,
		"user_id":        ownerID,
		"target_markets": nonNil(req.TargetMarkets),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
