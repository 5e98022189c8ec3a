// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// This file defines algorithms related to dominance.

// Dominator tree construction ----------------------------------------
//
// We use the iterative algorithm described in Cooper, Harvey and
// Kennedy, A Simple, Fast Dominance Algorithm, 2001. Blocks that are
// unreachable from the entry have no dominator information and neither
// dominate nor are dominated by any block.

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
)

// Idom returns the block that immediately dominates b:
// its parent in the dominator tree, if any.
// The entry node (b.Index==0) does not have a parent.
func (b *BasicBlock) Idom() *BasicBlock { return b.dom.idom }

// Dominees returns the list of blocks that b immediately dominates:
// its children in the dominator tree.
func (b *BasicBlock) Dominees() []*BasicBlock { return b.dom.children }

// Dominates reports whether b dominates c.
func (b *BasicBlock) Dominates(c *BasicBlock) bool {
	if !b.dom.reachable || !c.dom.reachable {
		return false
	}
	return b.dom.pre <= c.dom.pre && c.dom.post <= b.dom.post
}

// Reachable reports whether b can be reached from the entry block, as
// of the last call to BuildDomTree.
func (b *BasicBlock) Reachable() bool { return b.dom.reachable }

type byDomPreorder []*BasicBlock

func (a byDomPreorder) Len() int           { return len(a) }
func (a byDomPreorder) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byDomPreorder) Less(i, j int) bool { return a[i].dom.pre < a[j].dom.pre }

// DomPreorder returns a new slice containing the reachable blocks of c
// in dominator tree preorder.
func (c *Code) DomPreorder() []*BasicBlock {
	order := make(byDomPreorder, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		if b.dom.reachable {
			order = append(order, b)
		}
	}
	sort.Sort(order)
	return order
}

// ReversePostorder returns the reachable blocks of c in reverse
// postorder of a depth-first traversal from the entry. Every block
// appears after all of its predecessors, except for predecessors
// reached through a retreating edge.
func (c *Code) ReversePostorder() []*BasicBlock {
	c.BuildDomTree()
	order := make([]*BasicBlock, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		if b.dom.reachable {
			order = append(order, b)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].post > order[j].post })
	return order
}

// domInfo contains a BasicBlock's dominance information.
type domInfo struct {
	idom      *BasicBlock   // immediate dominator (parent in domtree)
	children  []*BasicBlock // nodes immediately dominated by this one
	pre, post int32         // pre- and post-order numbering within domtree
	reachable bool
}

// BuildDomTree computes the dominator tree of c, unless it is already
// up to date.
func (c *Code) BuildDomTree() {
	if c.domValid {
		return
	}
	buildDomTree(c)
	c.domValid = true
}

func buildDomTree(fn *Code) {
	// Clear any previous domInfo.
	for _, b := range fn.Blocks {
		b.dom = domInfo{}
		b.post = -1
	}
	if len(fn.Blocks) == 0 {
		return
	}

	idoms := make([]*BasicBlock, len(fn.Blocks))

	order := make([]*BasicBlock, 0, len(fn.Blocks))
	seen := make([]bool, len(fn.Blocks))
	var dfs func(b *BasicBlock)
	dfs = func(b *BasicBlock) {
		if seen[b.Index] {
			return
		}
		seen[b.Index] = true
		for _, succ := range b.Succs {
			dfs(succ)
		}
		order = append(order, b)
		b.post = len(order) - 1
	}
	dfs(fn.Blocks[0])

	for i := 0; i < len(order)/2; i++ {
		o := len(order) - i - 1
		order[i], order[o] = order[o], order[i]
	}

	idoms[fn.Blocks[0].Index] = fn.Blocks[0]
	changed := true
	for changed {
		changed = false
		// iterate over all nodes in reverse postorder, except for the
		// entry node
		for _, b := range order[1:] {
			var newIdom *BasicBlock
			for _, p := range b.Preds {
				if idoms[p.Index] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					finger1 := p
					finger2 := newIdom
					for finger1 != finger2 {
						for finger1.post < finger2.post {
							finger1 = idoms[finger1.Index]
						}
						for finger2.post < finger1.post {
							finger2 = idoms[finger2.Index]
						}
					}
					newIdom = finger1
				}
			}

			if idoms[b.Index] != newIdom {
				idoms[b.Index] = newIdom
				changed = true
			}
		}
	}

	for i, b := range idoms {
		if b == nil {
			// unreachable
			continue
		}
		fn.Blocks[i].dom.reachable = true
		if i == b.Index {
			continue
		}
		fn.Blocks[i].dom.idom = b
		b.dom.children = append(b.dom.children, fn.Blocks[i])
	}

	numberDomTree(fn.Blocks[0], 0, 0)
}

// numberDomTree sets the pre- and post-order numbers of a depth-first
// traversal of the dominator tree rooted at v.  These are used to
// answer dominance queries in constant time.
func numberDomTree(v *BasicBlock, pre, post int32) (int32, int32) {
	v.dom.pre = pre
	pre++
	for _, child := range v.dom.children {
		pre, post = numberDomTree(child, pre, post)
	}
	v.dom.post = post
	post++
	return pre, post
}

// Testing utilities ----------------------------------------

// sanityCheckDomTree checks the correctness of the dominator tree by
// comparing against the dominance relation computed by a naive
// Kildall-style forward dataflow analysis (Algorithm 10.16 from the
// "Dragon" book).
func sanityCheckDomTree(f *Code) error {
	f.BuildDomTree()
	n := len(f.Blocks)

	// D[i] is the set of blocks that dominate f.Blocks[i],
	// represented as a bit-set of block indices.
	D := make([]big.Int, n)

	one := big.NewInt(1)

	// all is the set of all blocks; constant.
	var all big.Int
	all.Set(one).Lsh(&all, uint(n)).Sub(&all, one)

	// Initialization.
	for i := range f.Blocks {
		if i == 0 {
			// A root is dominated only by itself.
			D[i].SetBit(&D[0], 0, 1)
		} else {
			// All other blocks are (initially) dominated
			// by every block.
			D[i].Set(&all)
		}
	}

	// Iteration until fixed point.
	for changed := true; changed; {
		changed = false
		for i, b := range f.Blocks {
			if i == 0 || !b.dom.reachable {
				continue
			}
			// Compute intersection across reachable predecessors.
			var x big.Int
			x.Set(&all)
			for _, pred := range b.Preds {
				if pred.dom.reachable {
					x.And(&x, &D[pred.Index])
				}
			}
			x.SetBit(&x, i, 1) // a block always dominates itself.
			if D[i].Cmp(&x) != 0 {
				D[i].Set(&x)
				changed = true
			}
		}
	}

	// Check the entire relation.  O(n^2).
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b, c := f.Blocks[i], f.Blocks[j]
			if !b.dom.reachable || !c.dom.reachable {
				continue
			}
			actual := b.Dominates(c)
			expected := D[j].Bit(i) == 1
			if actual != expected {
				fmt.Fprintf(&buf, "dominates(%s, %s)==%t, want %t\n", b, c, actual, expected)
			}
		}
	}

	preorder := f.DomPreorder()
	for _, b := range preorder {
		if got := preorder[b.dom.pre]; got != b {
			fmt.Fprintf(&buf, "preorder[%d]==%s, want %s\n", b.dom.pre, got, b)
		}
	}

	if buf.Len() != 0 {
		return fmt.Errorf("dominator tree of %s is inconsistent:\n%s", f, buf.String())
	}
	return nil
}

// Printing functions ----------------------------------------

// WriteDomTree writes the dominator tree of c to buf, one block per
// line, indented by four spaces per level below the entry block.
func WriteDomTree(buf *bytes.Buffer, c *Code) {
	if len(c.Blocks) == 0 {
		return
	}
	writeDomTree(buf, c.Blocks[0], 0)
}

func writeDomTree(buf *bytes.Buffer, v *BasicBlock, indent int) {
	fmt.Fprintf(buf, "%*s%s\n", 4*indent, "", v)
	for _, child := range v.Dominees() {
		writeDomTree(buf, child, indent+1)
	}
}
