// Package inference is the contract with the hosted model: a streaming call
// that may bind tools, and the collector that turns its events into text or
// a coded error.
package inference

import (
	"context"
	"strings"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
)

// EventKind tags a stream event.
type EventKind int

const (
	// Chunk carries a piece of generated text.
	Chunk EventKind = iota
	// InternalError reports a service-side failure.
	InternalError
	// ValidationError reports a rejected request.
	ValidationError
	// RateLimit reports throttling.
	RateLimit
)

func (k EventKind) String() string {
	switch k {
	case Chunk:
		return "chunk"
	case InternalError:
		return "internal_error"
	case ValidationError:
		return "validation_error"
	case RateLimit:
		return "rate_limit"
	}
	return "unknown"
}

// Event is one item of an inference stream.
type Event struct {
	Kind    EventKind
	Text    string
	Message string
}

// Param is a string parameter of a tool.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// ToolHandler runs a tool call and returns the structured reply the model sees.
type ToolHandler func(ctx context.Context, args map[string]any) map[string]any

// Tool is a function the model may call while generating.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     ToolHandler
}

// Request is one inference call.
type Request struct {
	Prompt string
	Tools  []Tool
	// Model overrides the service default when set.
	Model string
}

// Service is a streaming inference backend. The returned channel is closed
// when the stream ends; error events are terminal.
type Service interface {
	Invoke(ctx context.Context, req Request) (<-chan Event, error)
}

// Collect concatenates the chunks of a stream. Inline error events become
// coded errors: internal → CS-1005, validation → CS-3003, rate limit → CS-1003.
// The stream is always drained.
func Collect(ctx context.Context, events <-chan Event) (string, error) {
	var (
		sb       strings.Builder
		firstErr error
	)
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return sb.String(), firstErr
			}
			if ev.Kind == Chunk {
				sb.WriteString(ev.Text)
				continue
			}
			if firstErr == nil {
				firstErr = eventError(ev)
			}
		}
	}
}

func eventError(ev Event) error {
	msg := ev.Message
	if msg == "" {
		msg = ev.Kind.String()
	}
	switch ev.Kind {
	case RateLimit:
		return cerrors.New(cerrors.ErrRateLimit, msg)
	case ValidationError:
		return cerrors.New(cerrors.ErrUpstreamValidation, msg)
	default:
		return cerrors.New(cerrors.ErrServiceUnavailable, msg)
	}
}
