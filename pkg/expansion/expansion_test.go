package expansion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algojuke/discovery/internal/httpclient"
)

func TestParseQueries(t *testing.T) {
	tests := []struct {
		name    string
		content string
		max     int
		want    []string
		wantErr bool
	}{
		{name: "object", content: `{"queries":["sad breakup ballads","songs about lost love"]}`, max: 3, want: []string{"sad breakup ballads", "songs about lost love"}},
		{name: "array", content: `["a one","b two"]`, max: 3, want: []string{"a one", "b two"}},
		{name: "fenced", content: "```json\n{\"queries\":[\"x\"]}\n```", max: 3, want: []string{"x"}},
		{name: "dedupe and trim", content: `{"queries":[" Rain ","rain","",  "storm"]}`, max: 3, want: []string{"Rain", "storm"}},
		{name: "capped", content: `["a","b","c","d"]`, max: 2, want: []string{"a", "b"}},
		{name: "max out of range", content: `["a","b","c","d"]`, max: 9, want: []string{"a", "b", "c"}},
		{name: "empty list", content: `{"queries":[]}`, max: 3, wantErr: true},
		{name: "garbage", content: `not json`, max: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQueries(tt.content, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAIExpander_Expand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "melancholic songs about lost love", req.Messages[1].Content)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"queries\":[\"melancholic heartbreak\",\"grieving a past relationship\"]}"}}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIExpander(httpclient.New(httpclient.Config{BaseURL: srv.URL}), "", 3)
	got, err := e.Expand(context.Background(), "melancholic songs about lost love")
	require.NoError(t, err)
	assert.Equal(t, []string{"melancholic heartbreak", "grieving a past relationship"}, got)
}

func TestOpenAIExpander_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewOpenAIExpander(httpclient.New(httpclient.Config{BaseURL: srv.URL}), "", 3)
	_, err := e.Expand(context.Background(), "anything")
	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 503, httpErr.StatusCode)
}

func TestPassthrough(t *testing.T) {
	got, err := Passthrough{}.Expand(context.Background(), "  night drive ")
	require.NoError(t, err)
	assert.Equal(t, []string{"night drive"}, got)

	_, err = Passthrough{}.Expand(context.Background(), " ")
	assert.ErrorIs(t, err, ErrNoQueries)
}
