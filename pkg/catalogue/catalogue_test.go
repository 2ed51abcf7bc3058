package catalogue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algojuke/discovery/internal/httpclient"
)

func TestClient_Search(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tracks": [{"isrc":"USRC17607839","catalogId":"1","title":"Teardrop","artist":"Massive Attack"}],
			"albums": [{"catalogId":"a1","title":"Mezzanine","artist":"Massive Attack"}]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	resp, err := c.Search(context.Background(), SearchRequest{Query: "teardrop", Type: SearchTracks, Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, "limit=5&q=teardrop&type=tracks", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, resp.Tracks, 1)
	assert.Equal(t, "Teardrop", resp.Tracks[0].Title)
	assert.Nil(t, resp.Albums, "tracks-only search drops albums")
}

func TestClient_SearchDefaultsToBoth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "both", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "").Search(context.Background(), SearchRequest{Query: "x"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Tracks)
	assert.NotNil(t, resp.Albums)
}

func TestClient_SearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWith(httpclient.New(httpclient.Config{BaseURL: srv.URL}))
	_, err := c.Search(context.Background(), SearchRequest{Query: "x"})
	require.Error(t, err)

	var httpErr *httpclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, httpErr.IsRateLimited())
}
