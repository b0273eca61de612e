// Package orchestrator runs the campaign synthesis state machine: a
// tool-calling inference attempt, then a sequential fact-gathering tier that
// always ends in a schema-valid campaign.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/gateway"
	"github.com/spawn-mcp/campaign-synth/pkg/imageref"
	"github.com/spawn-mcp/campaign-synth/pkg/inference"
	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/metrics"
	"github.com/spawn-mcp/campaign-synth/pkg/retry"
	"github.com/spawn-mcp/campaign-synth/pkg/store"
	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

const statusCampaignGenerated = "campaign_generated"

// Publisher receives every finished outcome.
type Publisher interface {
	Publish(ctx context.Context, o *types.Outcome) error
}

// Deps are the collaborators of an Orchestrator. Inference, Gateway and Store
// are required.
type Deps struct {
	Inference inference.Service
	Gateway   gateway.Invoker
	Store     store.Store
	Locator   imageref.Locator
	Publisher Publisher
	Timeouts  *timeout.Manager
	Logger    *zap.Logger
}

// Options tune an Orchestrator.
type Options struct {
	// Retry wraps every inference call. Zero uses retry.DefaultConfig.
	Retry retry.Config
	Poll  store.PollConfig
	// Tier1Model and SynthesisModel override the inference service default.
	Tier1Model     string
	SynthesisModel string
	Now            func() time.Time
}

// Orchestrator produces campaigns. It holds no per-request state and is safe
// for concurrent use.
type Orchestrator struct {
	deps   Deps
	opts   Options
	tracer trace.Tracer
	logger *zap.Logger
}

// New validates deps and applies defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Inference == nil:
		return nil, cerrors.New(cerrors.ErrMissingRequired, "inference service is required")
	case deps.Gateway == nil:
		return nil, cerrors.New(cerrors.ErrMissingRequired, "gateway is required")
	case deps.Store == nil:
		return nil, cerrors.New(cerrors.ErrMissingRequired, "aggregation store is required")
	}
	if deps.Timeouts == nil {
		deps.Timeouts = timeout.NewManager(5*time.Minute, 0)
	}
	if opts.Retry.MaxAttempts == 0 && opts.Retry.Strategy == nil {
		opts.Retry = retry.DefaultConfig
	}
	if opts.Poll == (store.PollConfig{}) {
		opts.Poll = store.DefaultPollConfig
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		tracer: otel.Tracer("github.com/spawn-mcp/campaign-synth/orchestrator"),
		logger: logger.OrNop(deps.Logger),
	}, nil
}

// run is the per-request state shared by the tiers and the tool handlers.
type run struct {
	req types.CampaignRequest
	log *zap.Logger

	mu        sync.Mutex
	trace     []types.State
	subjectID string
	ownerID   string
	// completed holds the successful result of each capability; each one
	// writes the subject record at most once per run.
	completed map[gateway.Capability]gateway.Result
}

func (r *run) completedResult(c gateway.Capability) (gateway.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.completed[c]
	return res, ok
}

func (r *run) complete(c gateway.Capability, res gateway.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completed == nil {
		r.completed = map[gateway.Capability]gateway.Result{}
	}
	r.completed[c] = res
}

// invoke calls the capability unless it already succeeded in this run, in
// which case the earlier result is returned. Tier 1 retries and Tier 2 both
// go through here.
func (o *Orchestrator) invoke(ctx context.Context, r *run, c gateway.Capability, p gateway.Payload) gateway.Result {
	if res, ok := r.completedResult(c); ok {
		r.log.Debug("Reusing capability result", zap.String("capability", c.String()))
		return res
	}
	res := o.deps.Gateway.Invoke(ctx, c, p)
	if res.Success {
		r.complete(c, res)
	}
	return res
}

func (r *run) enter(s types.State) {
	r.mu.Lock()
	r.trace = append(r.trace, s)
	r.mu.Unlock()
	r.log.Info("Orchestration state", zap.String("state", string(s)))
}

// remember records the ids a capability reported. Empty values never
// overwrite known ones.
func (r *run) remember(subjectID, ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subjectID != "" {
		r.subjectID = subjectID
	}
	if ownerID != "" {
		r.ownerID = ownerID
	}
}

func (r *run) ids() (string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subjectID, r.ownerID
}

// Synthesize runs the state machine for req. The returned outcome is never
// nil. A non-nil error accompanies a failed outcome and is only returned when
// the image capability failed or its record could not be read back.
func (o *Orchestrator) Synthesize(ctx context.Context, req types.CampaignRequest) (*types.Outcome, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	if req.OwnerID == "" {
		req.OwnerID = types.DefaultOwnerID
	}
	started := o.opts.Now()

	ctx, span := o.tracer.Start(ctx, "orchestrator.synthesize", trace.WithAttributes(
		attribute.String("correlation_id", req.CorrelationID),
		attribute.String("product", req.Product.Name),
	))
	defer span.End()

	r := &run{
		req:     req,
		log:     o.logger.With(zap.String("correlation_id", req.CorrelationID)),
		ownerID: req.OwnerID,
	}
	r.enter(types.StateStart)
	r.req.ImageURL = o.locateImage(ctx, r)

	out := &types.Outcome{CorrelationID: req.CorrelationID, StartedAt: started}
	err := o.synthesize(ctx, r, out)

	r.enter(types.StateDone)
	out.SubjectID, out.OwnerID = r.ids()
	out.Trace = append([]types.State(nil), r.trace...)
	out.Duration = o.opts.Now().Sub(started)

	methodLabel := string(out.Method)
	if !out.Success {
		methodLabel = "failed"
		span.SetStatus(codes.Error, out.Error)
	}
	span.SetAttributes(attribute.String("method", methodLabel))
	metrics.Outcomes.WithLabelValues(methodLabel).Inc()
	metrics.SynthesisDuration.WithLabelValues(methodLabel).Observe(out.Duration.Seconds())

	r.log.Info("Campaign synthesis finished",
		zap.Bool("success", out.Success),
		zap.String("method", methodLabel),
		zap.String("warning", out.Warning),
		zap.Duration("elapsed", out.Duration))

	o.finish(ctx, r, out)
	return out, err
}

func (o *Orchestrator) synthesize(ctx context.Context, r *run, out *types.Outcome) error {
	result, ok := o.tryTier1(ctx, r)
	r.enter(types.StateTier1Attempted)
	if ok {
		out.Success = true
		out.Method = types.MethodTier1ToolCalling
		out.Campaign = result
		return nil
	}

	r.enter(types.StateTier2Running)
	rec, err := o.runTier2(ctx, r)
	if err != nil {
		out.Error = err.Error()
		return err
	}

	out.Success = true
	out.Campaign = rec.Result
	if rec.AIComplete() {
		out.Method = types.MethodTier2Synthesis
	} else {
		out.Method = types.MethodTier2AggregatedFall
		out.Warning = fallbackWarning(rec.FallbackKeys)
	}
	return nil
}

// locateImage returns the URL prompts and capabilities should use for the
// product image. Locator failures degrade to the public object URL.
func (o *Orchestrator) locateImage(ctx context.Context, r *run) string {
	req := r.req
	if req.ImageURL != "" || req.ImageRef.IsZero() {
		return req.ImageURL
	}
	if o.deps.Locator != nil {
		u, err := o.deps.Locator.Locate(ctx, *req.ImageRef)
		if err == nil {
			return u
		}
		r.log.Warn("Image locator failed, using public URL", zap.Error(err))
	}
	return imageref.PublicURL(*req.ImageRef)
}

// finish stamps the subject record and publishes the outcome. Both are best
// effort.
func (o *Orchestrator) finish(ctx context.Context, r *run, out *types.Outcome) {
	ctx = context.WithoutCancel(ctx)

	if out.Success && out.SubjectID != "" {
		key := store.Key{SubjectID: out.SubjectID, OwnerID: out.OwnerID}
		err := o.deps.Store.Merge(ctx, key, map[string]any{
			types.FieldStatus:            statusCampaignGenerated,
			types.FieldCampaignMethod:    string(out.Method),
			types.FieldCampaignGenerated: o.opts.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			r.log.Warn("Failed to stamp campaign status", zap.String("subject_id", out.SubjectID), zap.Error(err))
		}
	}

	if o.deps.Publisher != nil {
		if err := o.deps.Publisher.Publish(ctx, out); err != nil {
			r.log.Warn("Failed to publish outcome", zap.Error(err))
		}
	}
}

func fallbackWarning(keys []string) string {
	return fmt.Sprintf("campaign sections built without AI output: %s", strings.Join(keys, ", "))
}
