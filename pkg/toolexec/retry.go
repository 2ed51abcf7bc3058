package toolexec

import (
	"context"
	"time"
)

// DefaultRetryDelay is the fixed wait between the first and second attempt.
const DefaultRetryDelay = time.Second

// RetryState is the position of a call in the single-retry policy.
type RetryState int

const (
	NotRetried RetryState = iota
	Retried
	Exhausted
)

func (s RetryState) String() string {
	switch s {
	case NotRetried:
		return "not_retried"
	case Retried:
		return "retried"
	default:
		return "exhausted"
	}
}

// RetryPolicy allows exactly one retry. Transitions:
//
//	NotRetried --retryable failure--> Retried
//	NotRetried --other failure------> Exhausted
//	Retried    --any failure--------> Exhausted
type RetryPolicy struct {
	state   RetryState
	retried bool
}

// State returns the current state.
func (p *RetryPolicy) State() RetryState {
	return p.state
}

// WasRetried reports whether a second attempt was made.
func (p *RetryPolicy) WasRetried() bool {
	return p.retried
}

// OnFailure records a failed attempt and reports whether another attempt is allowed.
func (p *RetryPolicy) OnFailure(retryable bool) bool {
	if p.state == NotRetried && retryable {
		p.state = Retried
		p.retried = true
		return true
	}
	p.state = Exhausted
	return false
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
