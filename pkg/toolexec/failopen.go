package toolexec

import (
	"context"
	"log"
)

// FailOpen runs an annotation lookup whose failure must not fail the tool
// call. On error it logs and returns fallback.
func FailOpen[T any](ctx context.Context, logger *log.Logger, what string, fallback T, fn func(context.Context) (T, error)) T {
	v, err := fn(ctx)
	if err != nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("toolexec: %s failed, continuing without it: %v", what, err)
		return fallback
	}
	return v
}
