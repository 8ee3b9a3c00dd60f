// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// rbpIndex is the RB-P variant (§4.4.2): a classical red-black tree of free
// blocks keyed by payload size, with explicit parent pointers. Link field 0
// is parent, field 1 is left, field 2 is right. The color bit lives in the
// block's own header word (C1), not as a fourth link field.
//
// The tree/list nil is the virtual sentinel NullAddr (see block.go); every
// accessor below treats it uniformly rather than dereferencing a physical
// node, per the design notes' "tagged reference" option.
type rbpIndex struct {
	a    *Arena
	root int
}

func newRBPIndex(a *Arena) *rbpIndex { return &rbpIndex{a: a, root: NullAddr} }

func (t *rbpIndex) parent(n int) int {
	if n == NullAddr {
		return NullAddr
	}
	return int(t.a.readLink(n, 0))
}
func (t *rbpIndex) left(n int) int {
	if n == NullAddr {
		return NullAddr
	}
	return int(t.a.readLink(n, 1))
}
func (t *rbpIndex) right(n int) int {
	if n == NullAddr {
		return NullAddr
	}
	return int(t.a.readLink(n, 2))
}
func (t *rbpIndex) setParent(n, v int) {
	if n != NullAddr {
		t.a.writeLink(n, 0, int64(v))
	}
}
func (t *rbpIndex) setLeft(n, v int) {
	if n != NullAddr {
		t.a.writeLink(n, 1, int64(v))
	}
}
func (t *rbpIndex) setRight(n, v int) {
	if n != NullAddr {
		t.a.writeLink(n, 2, int64(v))
	}
}
func (t *rbpIndex) color(n int) Color {
	if n == NullAddr {
		return Black
	}
	return t.a.colorOf(n)
}
func (t *rbpIndex) setColor(n int, c Color) {
	if n != NullAddr {
		t.a.paint(n, c)
	}
}
func (t *rbpIndex) size(n int) int { return t.a.sizeOf(n) }

func (t *rbpIndex) rotateLeft(x int) {
	y := t.right(x)
	t.setRight(x, t.left(y))
	if t.left(y) != NullAddr {
		t.setParent(t.left(y), x)
	}
	t.setParent(y, t.parent(x))
	p := t.parent(x)
	switch {
	case p == NullAddr:
		t.root = y
	case x == t.left(p):
		t.setLeft(p, y)
	default:
		t.setRight(p, y)
	}
	t.setLeft(y, x)
	t.setParent(x, y)
}

func (t *rbpIndex) rotateRight(x int) {
	y := t.left(x)
	t.setLeft(x, t.right(y))
	if t.right(y) != NullAddr {
		t.setParent(t.right(y), x)
	}
	t.setParent(y, t.parent(x))
	p := t.parent(x)
	switch {
	case p == NullAddr:
		t.root = y
	case x == t.right(p):
		t.setRight(p, y)
	default:
		t.setLeft(p, y)
	}
	t.setRight(y, x)
	t.setParent(x, y)
}

// insert appends blk as a red BST leaf keyed by size and fixes the tree up.
// Equal sizes are tolerated and deterministically sent right of any node
// they tie with, per §4.4.2.
func (t *rbpIndex) insert(blk int) {
	sz := t.size(blk)
	t.setLeft(blk, NullAddr)
	t.setRight(blk, NullAddr)
	t.setParent(blk, NullAddr)
	t.a.paint(blk, Red)

	y := NullAddr
	x := t.root
	for x != NullAddr {
		y = x
		if sz < t.size(x) {
			x = t.left(x)
		} else {
			x = t.right(x)
		}
	}
	t.setParent(blk, y)
	switch {
	case y == NullAddr:
		t.root = blk
	case sz < t.size(y):
		t.setLeft(y, blk)
	default:
		t.setRight(y, blk)
	}
	t.insertFixup(blk)
}

func (t *rbpIndex) insertFixup(z int) {
	for t.color(t.parent(z)) == Red {
		p := t.parent(z)
		g := t.parent(p)
		if p == t.left(g) {
			y := t.right(g)
			if t.color(y) == Red {
				t.setColor(p, Black)
				t.setColor(y, Black)
				t.setColor(g, Red)
				z = g
				continue
			}
			if z == t.right(p) {
				z = p
				t.rotateLeft(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateRight(g)
		} else {
			y := t.left(g)
			if t.color(y) == Red {
				t.setColor(p, Black)
				t.setColor(y, Black)
				t.setColor(g, Red)
				z = g
				continue
			}
			if z == t.left(p) {
				z = p
				t.rotateRight(z)
				p = t.parent(z)
				g = t.parent(p)
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateLeft(g)
		}
	}
	t.setColor(t.root, Black)
}

func (t *rbpIndex) minimum(n int) int {
	for t.left(n) != NullAddr {
		n = t.left(n)
	}
	return n
}

func (t *rbpIndex) transplant(u, v int) {
	pu := t.parent(u)
	switch {
	case pu == NullAddr:
		t.root = v
	case u == t.left(pu):
		t.setLeft(pu, v)
	default:
		t.setRight(pu, v)
	}
	if v != NullAddr {
		t.setParent(v, pu)
	}
}

// bestFitPop descends goes-left-iff-size>=request, recording the last seen
// candidate, per §4.4.2.
func (t *rbpIndex) bestFitPop(request int) (int, bool) {
	cur := t.root
	best := NullAddr
	for cur != NullAddr {
		if t.size(cur) >= request {
			best = cur
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	if best == NullAddr {
		return 0, false
	}
	t.removeNode(best)
	return best, true
}

func (t *rbpIndex) remove(blk int) { t.removeNode(blk) }

func (t *rbpIndex) removeNode(z int) {
	y := z
	yColor := t.color(y)
	var x, xParent int

	switch {
	case t.left(z) == NullAddr:
		x = t.right(z)
		xParent = t.parent(z)
		t.transplant(z, t.right(z))
	case t.right(z) == NullAddr:
		x = t.left(z)
		xParent = t.parent(z)
		t.transplant(z, t.left(z))
	default:
		y = t.minimum(t.right(z))
		yColor = t.color(y)
		x = t.right(y)
		if t.parent(y) == z {
			xParent = y
		} else {
			xParent = t.parent(y)
			t.transplant(y, t.right(y))
			t.setRight(y, t.right(z))
			t.setParent(t.right(y), y)
		}
		t.transplant(z, y)
		t.setLeft(y, t.left(z))
		t.setParent(t.left(y), y)
		t.setColor(y, t.color(z))
	}

	if yColor == Black {
		t.deleteFixup(x, xParent)
	}
}

func (t *rbpIndex) deleteFixup(x, xParent int) {
	for x != t.root && t.color(x) == Black {
		if x == t.left(xParent) {
			w := t.right(xParent)
			if t.color(w) == Red {
				t.setColor(w, Black)
				t.setColor(xParent, Red)
				t.rotateLeft(xParent)
				w = t.right(xParent)
			}
			if t.color(t.left(w)) == Black && t.color(t.right(w)) == Black {
				t.setColor(w, Red)
				x = xParent
				xParent = t.parent(x)
				continue
			}
			if t.color(t.right(w)) == Black {
				t.setColor(t.left(w), Black)
				t.setColor(w, Red)
				t.rotateRight(w)
				w = t.right(xParent)
			}
			t.setColor(w, t.color(xParent))
			t.setColor(xParent, Black)
			t.setColor(t.right(w), Black)
			t.rotateLeft(xParent)
			x = t.root
			xParent = NullAddr
		} else {
			w := t.left(xParent)
			if t.color(w) == Red {
				t.setColor(w, Black)
				t.setColor(xParent, Red)
				t.rotateRight(xParent)
				w = t.left(xParent)
			}
			if t.color(t.right(w)) == Black && t.color(t.left(w)) == Black {
				t.setColor(w, Red)
				x = xParent
				xParent = t.parent(x)
				continue
			}
			if t.color(t.left(w)) == Black {
				t.setColor(t.right(w), Black)
				t.setColor(w, Red)
				t.rotateLeft(w)
				w = t.left(xParent)
			}
			t.setColor(w, t.color(xParent))
			t.setColor(xParent, Black)
			t.setColor(t.left(w), Black)
			t.rotateRight(xParent)
			x = t.root
			xParent = NullAddr
		}
	}
	t.setColor(x, Black)
}

func (t *rbpIndex) walk(fn func(blk int)) {
	var rec func(n int)
	rec = func(n int) {
		if n == NullAddr {
			return
		}
		rec(t.left(n))
		fn(n)
		rec(t.right(n))
	}
	rec(t.root)
}

// validateShape checks invariant 7: root black, no red-red, equal black
// height on every path, BST size ordering.
func (t *rbpIndex) validateShape(log func(*ErrILSEQ)) bool {
	if t.color(t.root) == Red {
		log(&ErrILSEQ{Type: ErrRBColor, Off: t.root})
		return false
	}

	ok := true
	var check func(n int, lo, hi int) int
	check = func(n int, lo, hi int) int {
		if n == NullAddr {
			return 1
		}
		sz := t.size(n)
		if sz < lo || sz > hi {
			log(&ErrILSEQ{Type: ErrRBOrder, Off: n, Arg: int64(sz)})
			ok = false
		}
		if t.color(n) == Red && t.color(t.left(n)) == Red {
			log(&ErrILSEQ{Type: ErrRBColor, Off: n})
			ok = false
		}
		if t.color(n) == Red && t.color(t.right(n)) == Red {
			log(&ErrILSEQ{Type: ErrRBColor, Off: n})
			ok = false
		}
		lh := check(t.left(n), lo, sz)
		rh := check(t.right(n), sz, hi)
		if lh != rh {
			log(&ErrILSEQ{Type: ErrRBBlackHeight, Off: n, Arg: int64(lh), Arg2: int64(rh)})
			ok = false
		}
		if t.color(n) == Black {
			return lh + 1
		}
		return lh
	}
	check(t.root, 0, 1<<62)
	return ok
}
