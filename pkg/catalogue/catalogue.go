// Package catalogue searches the streaming catalogue for tracks and albums
// that may not be indexed yet.
package catalogue

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/algojuke/discovery/internal/httpclient"
)

// SearchType selects which entity kinds a search returns.
type SearchType string

const (
	SearchTracks SearchType = "tracks"
	SearchAlbums SearchType = "albums"
	SearchBoth   SearchType = "both"
)

// Track is a catalogue track.
type Track struct {
	ISRC        string `json:"isrc"`
	CatalogID   string `json:"catalogId"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	DurationMs  int    `json:"durationMs,omitempty"`
	ArtworkURL  string `json:"artworkUrl,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

// Album is a catalogue album.
type Album struct {
	CatalogID   string `json:"catalogId"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	TrackCount  int    `json:"trackCount,omitempty"`
	ArtworkURL  string `json:"artworkUrl,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
}

type SearchRequest struct {
	Query string
	Type  SearchType
	Limit int
}

type SearchResponse struct {
	Tracks []Track `json:"tracks"`
	Albums []Album `json:"albums"`
}

// Searcher is the catalogue collaborator used by the catalogue search tool.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// Client talks to the catalogue HTTP API.
type Client struct {
	http *httpclient.Client
}

// NewClient creates a catalogue client for baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return NewClientWith(httpclient.New(httpclient.Config{
		BaseURL:     baseURL,
		BearerToken: apiKey,
	}))
}

// NewClientWith wraps an existing HTTP client.
func NewClientWith(c *httpclient.Client) *Client {
	return &Client{http: c}
}

// Search issues GET /search?q=&type=&limit=. HTTP failures are returned
// unwrapped enough for the tool classifier to see the status code.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	t := req.Type
	if t == "" {
		t = SearchBoth
	}
	q := url.Values{}
	q.Set("q", req.Query)
	q.Set("type", string(t))
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	var out SearchResponse
	if err := c.http.GetJSON(ctx, "/search", q, &out); err != nil {
		return nil, fmt.Errorf("catalogue search: %w", err)
	}
	switch t {
	case SearchTracks:
		out.Albums = nil
	case SearchAlbums:
		out.Tracks = nil
	}
	if out.Tracks == nil && t != SearchAlbums {
		out.Tracks = []Track{}
	}
	if out.Albums == nil && t != SearchTracks {
		out.Albums = []Album{}
	}
	return &out, nil
}

var _ Searcher = (*Client)(nil)
