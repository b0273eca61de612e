package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
)

// ErrorCategory groups codes by their leading digit
type ErrorCategory string

// Error codes. The digit after "CS-" selects the category.
const (
	// Infrastructure (1xxx)
	ErrConnectionFailed   = "CS-1001" // Network connectivity issues
	ErrTimeout            = "CS-1002" // Operation timeout
	ErrRateLimit          = "CS-1003" // Upstream throttled the call
	ErrServiceUnavailable = "CS-1005" // Upstream reported an internal failure
	ErrCircuitOpen        = "CS-1006" // Calls short-circuited by an open breaker

	// Validation (3xxx)
	ErrInvalidInput       = "CS-3001" // Request could not be normalized
	ErrMissingRequired    = "CS-3002" // Missing required field
	ErrUpstreamValidation = "CS-3003" // Upstream rejected the request shape

	// Operation (4xxx)
	ErrResourceNotFound   = "CS-4004" // Resource not found
	ErrPreconditionFailed = "CS-4010" // A mandatory step did not complete

	// System (5xxx)
	ErrInternalError    = "CS-5001" // Unexpected internal error
	ErrRetriesExhausted = "CS-5002" // Retry budget used up
)

// ErrorSeverity orders errors from most to least severe
type ErrorSeverity int

const (
	SeverityCritical ErrorSeverity = iota
	SeverityHigh
	SeverityMedium
	SeverityLow
)

// CampaignError is a coded error carrying enough context to log and route it
type CampaignError struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	Category      ErrorCategory  `json:"category"`
	Severity      ErrorSeverity  `json:"severity"`
	Retryable     bool           `json:"retryable"`
	CorrelationID string         `json:"correlation_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Context       map[string]any `json:"context,omitempty"`
	Stack         []string       `json:"stack,omitempty"`

	cause error
}

// Error implements the error interface
func (e *CampaignError) Error() string {
	if e.cause != nil && e.cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause
func (e *CampaignError) Unwrap() error {
	return e.cause
}

// ShouldRetry reports whether the code is retryable and not critical.
func (e *CampaignError) ShouldRetry() bool {
	return e.Retryable && e.Severity != SeverityCritical
}

// WithContext attaches a key/value for logs and returns e.
func (e *CampaignError) WithContext(key string, value any) *CampaignError {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// ToJSON renders the error for logs and tool responses.
func (e *CampaignError) ToJSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":%q,"message":%q}`, e.Code, e.Message)
	}
	return string(b)
}

// New creates a coded error with category, severity and retryability derived from the code
func New(code string, message string) *CampaignError {
	category, class := classify(code)
	return &CampaignError{
		Code:          code,
		Message:       message,
		Category:      category,
		Severity:      class.severity,
		Retryable:     class.retryable,
		CorrelationID: uuid.NewString(),
		OccurredAt:    time.Now().UTC(),
		Stack:         callers(),
	}
}

// Newf is New with a formatted message
func Newf(code string, format string, args ...any) *CampaignError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error under a code. Wrapping a CampaignError keeps its
// correlation id but re-derives the routing fields from the new code.
func Wrap(err error, code string) *CampaignError {
	if err == nil {
		return nil
	}

	var ce *CampaignError
	if stderrors.As(err, &ce) && ce.Code == code {
		return ce
	}

	wrapped := New(code, err.Error())
	wrapped.cause = err
	if ce != nil {
		wrapped.CorrelationID = ce.CorrelationID
	}
	return wrapped
}

// Wrapf wraps err under code with a message of its own
func Wrapf(err error, code string, format string, args ...any) *CampaignError {
	if err == nil {
		return nil
	}
	wrapped := New(code, fmt.Sprintf(format, args...))
	wrapped.cause = err
	var ce *CampaignError
	if stderrors.As(err, &ce) {
		wrapped.CorrelationID = ce.CorrelationID
	}
	return wrapped
}

// CodeOf returns the code of the outermost CampaignError in err's chain, or "".
func CodeOf(err error) string {
	var ce *CampaignError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// HasCode reports whether any CampaignError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var ce *CampaignError
		if !stderrors.As(err, &ce) {
			return false
		}
		if ce.Code == code {
			return true
		}
		err = ce.cause
	}
	return false
}

// IsRateLimit reports whether err is an upstream throttling signal
func IsRateLimit(err error) bool {
	return HasCode(err, ErrRateLimit)
}

// IsPrecondition reports whether err marks a mandatory step that did not complete
func IsPrecondition(err error) bool {
	return HasCode(err, ErrPreconditionFailed)
}

// codeClass holds the routing fields derived from a code.
type codeClass struct {
	severity  ErrorSeverity
	retryable bool
}

var codeClasses = map[string]codeClass{
	ErrConnectionFailed:   {SeverityMedium, true},
	ErrTimeout:            {SeverityMedium, true},
	ErrRateLimit:          {SeverityMedium, true},
	ErrServiceUnavailable: {SeverityHigh, true},
	ErrCircuitOpen:        {SeverityMedium, false},
	ErrPreconditionFailed: {SeverityHigh, false},
	ErrRetriesExhausted:   {SeverityHigh, false},
	ErrInternalError:      {SeverityCritical, false},
}

// categories maps the leading digit of a code to its category.
var categories = map[byte]ErrorCategory{
	'1': "infrastructure",
	'3': "validation",
	'4': "operation",
	'5': "system",
}

func classify(code string) (ErrorCategory, codeClass) {
	category := ErrorCategory("unknown")
	if n := len("CS-"); len(code) > n {
		if c, ok := categories[code[n]]; ok {
			category = c
		}
	}
	class, ok := codeClasses[code]
	if !ok {
		class = codeClass{severity: SeverityLow}
	}
	return category, class
}

// callers records up to ten frames above New.
func callers() []string {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	var stack []string
	for {
		f, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Function))
		if !more {
			break
		}
	}
	return stack
}
