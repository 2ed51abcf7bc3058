package toolexec

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type statusErr struct {
	code int
	msg  string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) HTTPStatus() int { return e.code }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "explicit true beats message", err: WithRetryable(errors.New("invalid thing"), true), want: true},
		{name: "explicit false beats status", err: WithRetryable(&statusErr{503, "x"}, false), want: false},
		{name: "tool error flag", err: &ToolError{Code: CodeValidation}, want: false},
		{name: "429", err: &statusErr{429, "x"}, want: true},
		{name: "503", err: &statusErr{503, "x"}, want: true},
		{name: "504", err: &statusErr{504, "x"}, want: true},
		{name: "400", err: &statusErr{400, "timeout in body"}, want: false},
		{name: "401", err: &statusErr{401, "x"}, want: false},
		{name: "403", err: &statusErr{403, "x"}, want: false},
		{name: "404 wrapped", err: fmt.Errorf("catalogue: %w", &statusErr{404, "x"}), want: false},
		{name: "500 falls through to default", err: &statusErr{500, "boom"}, want: true},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "x"), want: true},
		{name: "grpc invalid argument", err: status.Error(codes.InvalidArgument, "x"), want: false},
		{name: "pg connection exception", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "context canceled", err: fmt.Errorf("lookup: %w", context.Canceled), want: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: true},
		{name: "non-retryable pattern wins over retryable", err: errors.New("invalid request: timeout must be positive"), want: false},
		{name: "unauthorized", err: errors.New("Unauthorized"), want: false},
		{name: "not found", err: errors.New("track not found"), want: false},
		{name: "connection refused", err: errors.New("connect: connection refused"), want: true},
		{name: "econnreset", err: errors.New("read ECONNRESET"), want: true},
		{name: "rate limit", err: errors.New("Rate limit reached"), want: true},
		{name: "temporarily unavailable", err: errors.New("resource temporarily unavailable"), want: true},
		{name: "unclassified defaults to retryable", err: errors.New("something odd"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "tool error keeps code", err: &ToolError{Code: CodeNotFound}, want: CodeNotFound},
		{name: "429", err: &statusErr{429, "x"}, want: CodeRateLimited},
		{name: "502", err: &statusErr{502, "x"}, want: CodeAIServiceUnavailable},
		{name: "grpc deadline", err: status.Error(codes.DeadlineExceeded, "x"), want: CodeTimeout},
		{name: "pg error", err: &pgconn.PgError{Code: "42P01"}, want: CodeDatabase},
		{name: "ctx deadline", err: context.DeadlineExceeded, want: CodeTimeout},
		{name: "message timeout", err: errors.New("upstream timed out"), want: CodeTimeout},
		{name: "message refused", err: errors.New("connection refused"), want: CodeAIServiceUnavailable},
		{name: "fallback", err: errors.New("nil pointer"), want: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeFor(tt.err))
		})
	}
}

func TestDisplayNameAndMessages(t *testing.T) {
	assert.Equal(t, "Semantic search", DisplayName("semanticSearch"))
	assert.Equal(t, "Batch metadata", DisplayName("batch_metadata"))
	assert.Equal(t, "Suggest playlist", DisplayName("suggest-playlist"))
	assert.Equal(t, "This tool", DisplayName(""))

	assert.Equal(t, "Semantic search is temporarily unavailable. Please try again in a moment.",
		UserMessage("semanticSearch", CodeAIServiceUnavailable, "", "dial tcp: refused"))
	assert.NotContains(t, UserMessage("semanticSearch", CodeInternal, "", "secret stack"), "secret")
	assert.Contains(t, UserMessage("semanticSearch", CodeValidation, "limit", "must be between 1 and 50 (got 80)"), `"limit"`)
}

func TestValidators(t *testing.T) {
	assert.NoError(t, StringLength("q", "abc", 1, 3))
	assert.Error(t, StringLength("q", "", 1, 3))
	assert.Error(t, StringLength("q", "abcd", 1, 3))
	assert.NoError(t, StringLength("q", "ééé", 1, 3), "length counts characters, not bytes")

	assert.NoError(t, IntRange("limit", 50, 1, 50))
	assert.Error(t, IntRange("limit", 0, 1, 50))

	assert.NoError(t, OneOf("searchType", "both", "tracks", "albums", "both"))
	assert.Error(t, OneOf("searchType", "artists", "tracks", "albums", "both"))

	assert.NoError(t, ItemCount("isrcs", 0, 0, 100))
	assert.Error(t, ItemCount("isrcs", 101, 0, 100))

	code, err := ISRC("isrc", "usrc17607839")
	assert.NoError(t, err)
	assert.Equal(t, "USRC17607839", code)
	_, err = ISRC("isrc", "nope")
	te, ok := AsToolError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, te.Code)
}
