package trie

import (
	"errors"
	"fmt"
	"strings"

	"github.com/colorfulnotion/rwtrace/common"
)

var ErrIndexOutOfRange = errors.New("index out of range")

// WBTNode is a node in the well-balanced tree. Leaves and internal nodes
// both carry 32-byte hashes; leaves additionally keep the value they commit to.
type WBTNode struct {
	Hash  common.Hash
	Value []byte
	Left  *WBTNode
	Right *WBTNode
}

// WellBalancedTree splits every level with the larger half on the left,
// so a tree over n leaves has depth ceil(log2 n).
type WellBalancedTree struct {
	root   *WBTNode
	leaves []*WBTNode
}

// NewWellBalancedTree hashes each value into a leaf and builds the tree.
// An empty tree has the zero hash as its root.
func NewWellBalancedTree(values [][]byte) *WellBalancedTree {
	leaves := make([]*WBTNode, len(values))
	for i, v := range values {
		leaves[i] = &WBTNode{Hash: common.ComputeLeafHash(v), Value: v}
	}
	wbt := &WellBalancedTree{leaves: leaves}
	if len(leaves) == 0 {
		wbt.root = &WBTNode{}
	} else {
		wbt.root = buildTreeRecursive(leaves)
	}
	return wbt
}

func buildTreeRecursive(nodes []*WBTNode) *WBTNode {
	if len(nodes) == 1 {
		return nodes[0]
	}
	mid := (len(nodes) + 1) / 2
	left := buildTreeRecursive(nodes[:mid])
	right := buildTreeRecursive(nodes[mid:])
	return &WBTNode{Hash: common.ComputeNodeHash(left.Hash[:], right.Hash[:]), Left: left, Right: right}
}

func (tree *WellBalancedTree) RootHash() common.Hash {
	return tree.root.Hash
}

func (tree *WellBalancedTree) Len() int {
	return len(tree.leaves)
}

// Get leaf data by index.
func (tree *WellBalancedTree) Get(index int) ([]byte, error) {
	if index < 0 || index >= len(tree.leaves) {
		return nil, ErrIndexOutOfRange
	}
	return tree.leaves[index].Value, nil
}

// Trace returns the leaf hash and its sibling path ordered leaf to root.
func (tree *WellBalancedTree) Trace(index int) (common.Hash, []common.Hash, error) {
	if index < 0 || index >= len(tree.leaves) {
		return common.Hash{}, nil, ErrIndexOutOfRange
	}
	var path []common.Hash
	node, lo, hi := tree.root, 0, len(tree.leaves)
	for node.Left != nil {
		mid := lo + (hi-lo+1)/2
		if index < mid {
			path = append(path, node.Right.Hash)
			node, hi = node.Left, mid
		} else {
			path = append(path, node.Left.Hash)
			node, lo = node.Right, mid
		}
	}
	reverse(path)
	return node.Hash, path, nil
}

// VerifyWBT folds leafHash with path and compares against root.
func VerifyWBT(treeLen int, index int, root common.Hash, leafHash common.Hash, path []common.Hash) (common.Hash, bool, error) {
	if index < 0 || index >= treeLen {
		return common.Hash{}, false, ErrIndexOutOfRange
	}
	dirs := computeDirectionsForIndex(index, treeLen)
	if len(dirs) != len(path) {
		return common.Hash{}, false, fmt.Errorf("path length %d, want %d", len(path), len(dirs))
	}
	reverse(dirs)

	current := leafHash
	for i, dir := range dirs {
		sib := path[i]
		if dir == 0 {
			current = common.ComputeNodeHash(current[:], sib[:])
		} else {
			current = common.ComputeNodeHash(sib[:], current[:])
		}
	}
	return current, current == root, nil
}

// Directions from top to bottom: 0 means the leaf is in the left half.
func computeDirectionsForIndex(index, n int) []int {
	var dirs []int
	for n > 1 {
		leftCount := (n + 1) / 2
		if index < leftCount {
			dirs = append(dirs, 0)
			n = leftCount
		} else {
			dirs = append(dirs, 1)
			index -= leftCount
			n -= leftCount
		}
	}
	return dirs
}

func reverse[T any](a []T) {
	for i := 0; i < len(a)/2; i++ {
		j := len(a) - i - 1
		a[i], a[j] = a[j], a[i]
	}
}

// String renders the tree for debugging.
func (tree *WellBalancedTree) String() string {
	var sb strings.Builder
	printNode(&sb, tree.root, 0, "Root")
	return sb.String()
}

func printNode(sb *strings.Builder, node *WBTNode, level int, pos string) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", level)
	if node.Left == nil && node.Right == nil {
		fmt.Fprintf(sb, "%s[Leaf %s]: %s\n", prefix, pos, node.Hash.Short())
	} else {
		fmt.Fprintf(sb, "%s[Branch %s]: %s\n", prefix, pos, node.Hash.Short())
	}
	printNode(sb, node.Left, level+1, "Left")
	printNode(sb, node.Right, level+1, "Right")
}
