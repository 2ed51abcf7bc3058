package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algojuke/discovery/pkg/isrc"
)

func TestToVectorLiteral(t *testing.T) {
	lit, err := toVectorLiteral([]float32{0.5, -1, 0.25}, 3)
	require.NoError(t, err)
	assert.Equal(t, "[0.5,-1,0.25]", lit)

	_, err = toVectorLiteral(nil, 3)
	assert.Error(t, err)

	_, err = toVectorLiteral([]float32{1, 2}, 3)
	assert.ErrorContains(t, err, "does not match dimension")
}

func TestToSparseLiteral(t *testing.T) {
	lit, err := toSparseLiteral(SparseVector{Indices: []uint32{0, 7}, Values: []float32{1.5, 0.25}}, 10)
	require.NoError(t, err)
	assert.Equal(t, "{1:1.5,8:0.25}/10", lit)

	lit, err = toSparseLiteral(SparseVector{}, 10)
	require.NoError(t, err)
	assert.Equal(t, "{}/10", lit)

	_, err = toSparseLiteral(SparseVector{Indices: []uint32{10}, Values: []float32{1}}, 10)
	assert.ErrorContains(t, err, "exceeds vocabulary size")

	_, err = toSparseLiteral(SparseVector{Indices: []uint32{1, 2}, Values: []float32{1}}, 10)
	assert.Error(t, err)
}

func TestDocumentIDs_UseDerivedKeys(t *testing.T) {
	ids := documentIDs([]string{"USRC17607839", "usrc17607839"})
	require.Len(t, ids, 2)
	assert.Equal(t, isrc.DocumentID("USRC17607839").String(), ids[0])
	assert.Equal(t, ids[0], ids[1])
}

func TestNewPgVectorStoreFromDB_RequiresDB(t *testing.T) {
	_, err := NewPgVectorStoreFromDB(nil, 4, 16)
	assert.Error(t, err)
}
