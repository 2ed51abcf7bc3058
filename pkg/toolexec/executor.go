package toolexec

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/algojuke/discovery/pkg/tracing"
)

// Executor holds the retry and tracing settings shared by every tool.
type Executor struct {
	retryDelay time.Duration
	sleep      func(context.Context, time.Duration) error
	tracer     *tracing.Tracer
	logger     *log.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithRetryDelay overrides the fixed delay before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Executor) { e.retryDelay = d }
}

// WithSleep replaces the delay implementation, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithTracer records every call as a span under the caller's trace.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithLogger sets the logger for retries and failures.
func WithLogger(l *log.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an Executor with a 1s retry delay and no tracing.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		retryDelay: DefaultRetryDelay,
		sleep:      sleepContext,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Logger returns the executor's logger so tools log through the same sink.
func (e *Executor) Logger() *log.Logger {
	return e.logger
}

// Result is a successful tool output.
type Result[T any] struct {
	Value      T
	WasRetried bool
	Attempts   int
}

// Execute validates input, runs fn with at most one retry and records a span.
// Every returned error is a *ToolError.
func Execute[In, Out any](ctx context.Context, e *Executor, tool string, input In, fn func(context.Context, In) (Out, error)) (Result[Out], error) {
	var zero Result[Out]
	ctx, span := e.tracer.Start(ctx, tool, input)

	if v, ok := any(input).(Validator); ok {
		if err := v.Validate(); err != nil {
			te := e.toToolError(tool, err, false, false)
			te.Code = CodeValidation
			te.Retryable = false
			span.EndError(te, false, false)
			return zero, te
		}
	}

	var policy RetryPolicy
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx, input)
		if err == nil {
			span.EndSuccess(out)
			return Result[Out]{Value: out, WasRetried: policy.WasRetried(), Attempts: attempt}, nil
		}

		retryable := IsRetryable(err)
		if policy.OnFailure(retryable && ctx.Err() == nil) {
			e.logger.Printf("toolexec: %s attempt %d failed, retrying in %s: %v", tool, attempt, e.retryDelay, err)
			if serr := e.sleep(ctx, e.retryDelay); serr != nil {
				te := e.toToolError(tool, fmt.Errorf("%w (retry abandoned: %v)", err, serr), retryable, false)
				span.EndError(te, te.Retryable, false)
				return zero, te
			}
			continue
		}

		te := e.toToolError(tool, err, retryable, policy.WasRetried())
		e.logger.Printf("toolexec: %s failed code=%s retryable=%t wasRetried=%t: %v", tool, te.Code, te.Retryable, te.WasRetried, err)
		span.EndError(te, te.Retryable, te.WasRetried)
		return zero, te
	}
}

func (e *Executor) toToolError(tool string, err error, retryable, wasRetried bool) *ToolError {
	if existing, ok := AsToolError(err); ok {
		te := *existing
		if te.Tool == "" {
			te.Tool = tool
		}
		if te.Code == "" {
			te.Code = CodeFor(err)
		}
		te.WasRetried = wasRetried
		if te.Cause == nil && existing != err {
			te.Cause = err
		}
		return &te
	}
	return &ToolError{
		Tool:       tool,
		Code:       CodeFor(err),
		Detail:     err.Error(),
		Retryable:  retryable,
		WasRetried: wasRetried,
		Cause:      err,
	}
}
