// Package embedding turns text into the dense and sparse vectors stored in,
// and queried against, the track index.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/algojuke/discovery/internal/httpclient"
	"github.com/algojuke/discovery/pkg/vectorstore"
)

// Provider defines the minimal dense embed API.
type Provider interface {
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string // Returns the active model name for metadata
}

// Vectors is the dense+sparse pair for one input text.
type Vectors struct {
	Dense  []float32
	Sparse vectorstore.SparseVector
}

// Encoder pairs a dense provider with the sparse term encoder so queries and
// indexed documents always share both encodings.
type Encoder struct {
	Dense  Provider
	Sparse *SparseEncoder
}

// NewEncoder builds an Encoder.
func NewEncoder(dense Provider, sparse *SparseEncoder) *Encoder {
	return &Encoder{Dense: dense, Sparse: sparse}
}

// Encode embeds every text densely in one provider call and sparsely in-process.
func (e *Encoder) Encode(ctx context.Context, texts []string) ([]Vectors, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	dense, err := e.Dense.EmbedText(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(dense) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(dense), len(texts))
	}
	out := make([]Vectors, len(texts))
	for i, t := range texts {
		out[i] = Vectors{Dense: dense[i], Sparse: e.Sparse.Encode(t)}
	}
	return out, nil
}

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client *httpclient.Client
	model  string
	dim    int
}

// NewOpenAIProvider creates a provider. dim is checked against every returned vector.
func NewOpenAIProvider(client *httpclient.Client, model string, dim int) *OpenAIProvider {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIProvider{client: client, model: model, dim: dim}
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	var decoded openAIResponse
	if err := p.client.PostJSON(ctx, "/embeddings", openAIRequest{Model: p.model, Input: texts, Dimensions: p.dim}, &decoded); err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, errors.New("embedding count mismatch")
	}
	out := make([][]float32, len(texts))
	for i, d := range decoded.Data {
		idx := d.Index
		if idx < 0 || idx >= len(texts) || out[idx] != nil {
			idx = i
		}
		if p.dim > 0 && len(d.Embedding) != p.dim {
			return nil, fmt.Errorf("embedding dimension %d, expected %d", len(d.Embedding), p.dim)
		}
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// LocalProvider produces deterministic hashed embeddings without external services.
type LocalProvider struct {
	dim int
}

func NewLocalProvider(dim int) *LocalProvider {
	return &LocalProvider{dim: dim}
}

func (p *LocalProvider) EmbedText(_ context.Context, texts []string) ([][]float32, error) {
	if p.dim <= 0 {
		return nil, errors.New("invalid embedding dimension")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.embedOne(t)
	}
	return out, nil
}

func (p *LocalProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dim)
	for _, w := range tokenize(text) {
		vec[hashToken(w, p.dim)] += 1.0
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		n := float32(1.0 / math.Sqrt(sum))
		for i := range vec {
			vec[i] *= n
		}
	}
	return vec
}

func (p *LocalProvider) ModelName() string {
	return "local-fnv-hash"
}

func hashToken(token string, size int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(size))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*LocalProvider)(nil)
)
