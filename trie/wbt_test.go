package trie

import (
	"fmt"
	"testing"

	"github.com/colorfulnotion/rwtrace/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLeaves(t *testing.T) {
	tree := NewWellBalancedTree(nil)
	assert.True(t, tree.RootHash().IsZero())
	_, _, err := tree.Trace(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSingleLeaf(t *testing.T) {
	tree := NewWellBalancedTree([][]byte{[]byte("a")})
	assert.Equal(t, common.ComputeLeafHash([]byte("a")), tree.RootHash())

	leaf, path, err := tree.Trace(0)
	require.NoError(t, err)
	assert.Empty(t, path)
	_, ok, err := VerifyWBT(1, 0, tree.RootHash(), leaf, path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWBTTrace(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 200} {
		values := make([][]byte, n)
		for i := range values {
			values[i] = []byte(fmt.Sprintf("value%d", i))
		}
		wbt := NewWellBalancedTree(values)
		for i := 0; i < n; i++ {
			leaf, path, err := wbt.Trace(i)
			require.NoError(t, err)
			derived, ok, err := VerifyWBT(n, i, wbt.RootHash(), leaf, path)
			require.NoError(t, err)
			require.True(t, ok, "n=%d index=%d", n, i)
			assert.Equal(t, wbt.RootHash(), derived)
		}
	}
}

func TestVerifyRejectsTamperedLeaf(t *testing.T) {
	wbt := NewWellBalancedTree([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	_, path, err := wbt.Trace(2)
	require.NoError(t, err)
	_, ok, err := VerifyWBT(3, 2, wbt.RootHash(), common.ComputeLeafHash([]byte("z")), path)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := wbt.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), v)
	assert.Contains(t, wbt.String(), "Branch Root")
}
