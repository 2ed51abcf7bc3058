package toolexec

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// httpStatusError is implemented by HTTP client errors.
type httpStatusError interface {
	HTTPStatus() int
}

var (
	nonRetryablePatterns = []string{
		"validation",
		"invalid",
		"unauthorized",
		"forbidden",
		"not found",
		"bad request",
	}
	retryablePatterns = []string{
		"timeout",
		"timed out",
		"rate limit",
		"too many requests",
		"econnreset",
		"econnrefused",
		"etimedout",
		"connection reset",
		"connection refused",
		"broken pipe",
		"socket hang up",
		"temporarily unavailable",
		"service unavailable",
	}
)

// IsRetryable classifies err in a fixed order: an explicit flag on the error,
// then transport status codes, then message patterns (non-retryable first).
// Anything unclassified is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var flagged explicitlyRetryable
	if errors.As(err, &flagged) {
		return flagged.IsRetryable()
	}

	if retryable, ok := classifyStatus(err); ok {
		return retryable
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return true
}

// classifyStatus maps HTTP, gRPC and Postgres status codes. ok is false when
// err carries no status that decides the question.
func classifyStatus(err error) (retryable bool, ok bool) {
	var he httpStatusError
	if errors.As(err, &he) {
		switch he.HTTPStatus() {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true, true
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false, true
		}
	}

	if s, isStatus := status.FromError(err); isStatus && s.Code() != codes.OK {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded:
			return true, true
		case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied, codes.NotFound:
			return false, true
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			pgErr.Code == "40001", // serialization failure
			pgErr.Code == "40P01", // deadlock
			pgErr.Code == "53300", // too many connections
			pgErr.Code == "57P01": // admin shutdown
			return true, true
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "42"):
			return false, true
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return false, true
	case errors.Is(err, context.DeadlineExceeded):
		return true, true
	}
	return false, false
}

// CodeFor picks the stable code surfaced for err.
func CodeFor(err error) Code {
	if err == nil {
		return ""
	}
	if te, ok := AsToolError(err); ok && te.Code != "" {
		return te.Code
	}

	var he httpStatusError
	if errors.As(err, &he) {
		switch code := he.HTTPStatus(); {
		case code == http.StatusTooManyRequests:
			return CodeRateLimited
		case code == http.StatusNotFound:
			return CodeNotFound
		case code == http.StatusBadRequest:
			return CodeValidation
		case code == http.StatusGatewayTimeout:
			return CodeTimeout
		case code >= 500:
			return CodeAIServiceUnavailable
		}
	}

	if s, isStatus := status.FromError(err); isStatus {
		switch s.Code() {
		case codes.ResourceExhausted:
			return CodeRateLimited
		case codes.DeadlineExceeded:
			return CodeTimeout
		case codes.NotFound:
			return CodeNotFound
		case codes.InvalidArgument:
			return CodeValidation
		case codes.Unavailable:
			return CodeAIServiceUnavailable
		}
	}

	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	if errors.As(err, &pgErr) || errors.As(err, &connErr) {
		return CodeDatabase
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return CodeValidation
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return CodeRateLimited
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return CodeTimeout
	case strings.Contains(msg, "not found"):
		return CodeNotFound
	case strings.Contains(msg, "database"), strings.Contains(msg, "sql"), strings.Contains(msg, "postgres"):
		return CodeDatabase
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return CodeAIServiceUnavailable
	}
	return CodeInternal
}
