// Package gateway invokes the image, enrichment and cultural capabilities
// and normalizes whatever envelope they answer with into a Result.
package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/metrics"
	"github.com/spawn-mcp/campaign-synth/pkg/timeout"
)

// Payload holds the parameters of one capability call.
type Payload map[string]any

// Result is the normalized answer of a capability.
type Result struct {
	Success   bool           `json:"success"`
	SubjectID string         `json:"subject_id,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Transport moves an encoded request to a capability and returns the raw reply.
type Transport interface {
	Invoke(ctx context.Context, c Capability, body []byte) ([]byte, error)
}

// FuncTransport adapts a function to Transport, for in-process capabilities.
type FuncTransport func(ctx context.Context, c Capability, body []byte) ([]byte, error)

// Invoke calls f.
func (f FuncTransport) Invoke(ctx context.Context, c Capability, body []byte) ([]byte, error) {
	return f(ctx, c, body)
}

// Invoker is what the orchestrator needs from the gateway.
type Invoker interface {
	Invoke(ctx context.Context, c Capability, p Payload) Result
}

// BreakerSettings tunes the per-capability circuit breakers.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Gateway is the single entry point for capability calls.
type Gateway struct {
	transport Transport
	breakers  map[Capability]*cb.CircuitBreaker
	settings  BreakerSettings
	timeouts  *timeout.Manager
	logger    *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithTimeouts bounds every call by the subcapability timeout.
func WithTimeouts(m *timeout.Manager) Option {
	return func(g *Gateway) { g.timeouts = m }
}

// WithBreakers replaces the default breaker settings.
func WithBreakers(s BreakerSettings) Option {
	return func(g *Gateway) { g.settings = s }
}

// New creates a gateway over transport.
func New(transport Transport, opts ...Option) *Gateway {
	g := &Gateway{
		transport: transport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logger.OrNop(g.logger)
	g.breakers = newBreakers(g.settings, g.logger)
	return g
}

func newBreakers(s BreakerSettings, log *zap.Logger) map[Capability]*cb.CircuitBreaker {
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	out := make(map[Capability]*cb.CircuitBreaker, len(Capabilities))
	for _, c := range Capabilities {
		out[c] = cb.NewCircuitBreaker(cb.Settings{
			Name:        c.String(),
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts cb.Counts) bool {
				return counts.ConsecutiveFailures >= s.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to cb.State) {
				log.Warn("Circuit breaker state change",
					zap.String("capability", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return out
}

// Invoke calls capability c with p. It never returns a Go error: transport
// faults, open breakers and unreadable replies all become Success=false.
func (g *Gateway) Invoke(ctx context.Context, c Capability, p Payload) Result {
	start := time.Now()
	res := g.invoke(ctx, c, p)

	metrics.CapabilityCalls.WithLabelValues(c.String(), metrics.ResultLabel(res.Success)).Inc()
	fields := []zap.Field{
		zap.String("capability", c.String()),
		zap.Bool("success", res.Success),
		zap.String("subject_id", res.SubjectID),
		zap.Duration("elapsed", time.Since(start)),
	}
	if res.Success {
		g.logger.Info("Capability call finished", fields...)
	} else {
		g.logger.Warn("Capability call failed", append(fields, zap.String("error", res.Error))...)
	}
	return res
}

func (g *Gateway) invoke(ctx context.Context, c Capability, p Payload) Result {
	body, err := encodeRequest(c, p)
	if err != nil {
		return Result{Error: fmt.Sprintf("encode request: %v", err)}
	}

	if g.timeouts != nil {
		var cancel context.CancelFunc
		ctx, cancel = g.timeouts.WithTimeout(ctx, timeout.OpSubcapability)
		defer cancel()
	}

	breaker, ok := g.breakers[c]
	if !ok {
		return Result{Error: fmt.Sprintf("unknown capability %d", int(c))}
	}

	raw, err := breaker.Execute(func() (interface{}, error) {
		return g.transport.Invoke(ctx, c, body)
	})
	if err != nil {
		if stderrors.Is(err, cb.ErrOpenState) || stderrors.Is(err, cb.ErrTooManyRequests) {
			return Result{Error: fmt.Sprintf("%s unavailable: circuit open", c)}
		}
		if timeout.IsTimeout(err) {
			err = &timeout.TimeoutError{Operation: c.String(), Timeout: g.callTimeout(ctx)}
		}
		return Result{Error: err.Error()}
	}

	res, kind, err := parseResponse(raw.([]byte))
	if err != nil {
		return Result{Error: err.Error()}
	}
	g.logger.Debug("Capability response parsed", zap.String("capability", c.String()), zap.Stringer("envelope", kind))
	return res
}

func (g *Gateway) callTimeout(ctx context.Context) time.Duration {
	if g.timeouts == nil {
		return 0
	}
	return g.timeouts.GetTimeout(ctx, timeout.OpSubcapability)
}

// encodeRequest builds the action-group request. Parameter values that are
// not strings travel JSON-encoded, which is what the deployed handlers parse.
func encodeRequest(c Capability, p Payload) ([]byte, error) {
	params := make(map[string]string, len(p))
	for k, v := range p {
		switch t := v.(type) {
		case string:
			params[k] = t
		case nil:
			continue
		default:
			b, err := json.Marshal(t)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", k, err)
			}
			params[k] = string(b)
		}
	}
	return json.Marshal(map[string]any{
		"actionGroup": c.String(),
		"function":    c.Function(),
		"parameters":  params,
	})
}

// DecodeRequest is the inverse of the request encoding, for in-process
// capabilities and tests.
func DecodeRequest(body []byte) (group, function string, params map[string]string, err error) {
	var req struct {
		ActionGroup string            `json:"actionGroup"`
		Function    string            `json:"function"`
		Parameters  map[string]string `json:"parameters"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return "", "", nil, err
	}
	return req.ActionGroup, req.Function, req.Parameters, nil
}
