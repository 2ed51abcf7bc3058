package embedding

import (
	"sort"
	"unicode"

	"github.com/algojuke/discovery/pkg/vectorstore"
)

// SparseEncoder hashes word tokens into a fixed vocabulary and weights them
// with BM25 term-frequency saturation. Document length normalisation is left
// out so the same encoder serves queries and documents.
type SparseEncoder struct {
	vocabSize int
	k1        float64
}

// NewSparseEncoder returns an encoder for the given vocabulary size.
func NewSparseEncoder(vocabSize int) *SparseEncoder {
	if vocabSize <= 0 {
		vocabSize = 30000
	}
	return &SparseEncoder{vocabSize: vocabSize, k1: 1.2}
}

// VocabSize is the sparse dimension; it must match the index column.
func (e *SparseEncoder) VocabSize() int {
	return e.vocabSize
}

// Encode returns term weights with strictly increasing indices.
func (e *SparseEncoder) Encode(text string) vectorstore.SparseVector {
	tf := make(map[uint32]float64)
	for _, tok := range tokenize(text) {
		tf[uint32(hashToken(tok, e.vocabSize))]++
	}
	if len(tf) == 0 {
		return vectorstore.SparseVector{}
	}

	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	for i, idx := range indices {
		f := tf[idx]
		values[i] = float32(f * (e.k1 + 1) / (f + e.k1))
	}
	return vectorstore.SparseVector{Indices: indices, Values: values}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\''
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "with": {}, "me": {}, "my": {},
	"some": {}, "songs": {}, "song": {}, "tracks": {}, "track": {}, "music": {},
	"about": {}, "like": {}, "i": {}, "you": {}, "this": {},
}
