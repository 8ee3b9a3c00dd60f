// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// rbdIndex is the RB-D variant (§4.4.3): a red-black tree keyed by size,
// unique per size, with same-size blocks pulled off-tree into a per-size
// doubly linked list hanging off the owning tree node's dupHead field.
//
// Link field layout depends on a node's current role, distinguished by
// field 3:
//
//   - Tree node (owner): field 0 = parent, field 1 = left, field 2 = right,
//     field 3 = dupHead (NullAddr or the first duplicate).
//   - Duplicate list entry: field 0 = prev, field 1 = next, field 2 = owner
//     (meaningful only while this entry is the current list head, i.e.
//     prev == nilLink — only the head ever needs to reach back to the tree
//     node to update its dupHead), field 3 = notOwnerTag.
//
// This lets insert of an existing size and removal of a non-head duplicate
// run in O(1) with no rotation, and removal of the tree node when its list
// is non-empty promote the list head into the tree slot by relinking
// (field swap), also O(1) — the duplicate-list mechanism §4.4.3 and §9
// call out as mandatory once parent pointers or not, needed here because
// coalescing removes free blocks by address, not by key.
const notOwnerTag int64 = -2

type rbdIndex struct {
	a    *Arena
	root int
}

func newRBDIndex(a *Arena) *rbdIndex { return &rbdIndex{a: a, root: NullAddr} }

func (t *rbdIndex) field(n, idx int) int64 {
	if n == NullAddr {
		return nilLink
	}
	return t.a.readLink(n, idx)
}
func (t *rbdIndex) setField(n, idx int, v int64) {
	if n != NullAddr {
		t.a.writeLink(n, idx, v)
	}
}

func (t *rbdIndex) parent(n int) int    { return int(t.field(n, 0)) }
func (t *rbdIndex) left(n int) int      { return int(t.field(n, 1)) }
func (t *rbdIndex) right(n int) int     { return int(t.field(n, 2)) }
func (t *rbdIndex) dupHead(n int) int   { return int(t.field(n, 3)) }
func (t *rbdIndex) setParent(n, v int)  { t.setField(n, 0, int64(v)) }
func (t *rbdIndex) setLeft(n, v int)    { t.setField(n, 1, int64(v)) }
func (t *rbdIndex) setRight(n, v int)   { t.setField(n, 2, int64(v)) }
func (t *rbdIndex) setDupHead(n, v int) { t.setField(n, 3, int64(v)) }
func (t *rbdIndex) isListEntry(n int) bool {
	return t.field(n, 3) == notOwnerTag
}

func (t *rbdIndex) color(n int) Color {
	if n == NullAddr {
		return Black
	}
	return t.a.colorOf(n)
}
func (t *rbdIndex) setColor(n int, c Color) {
	if n != NullAddr {
		t.a.paint(n, c)
	}
}
func (t *rbdIndex) size(n int) int { return t.a.sizeOf(n) }

func (t *rbdIndex) rotateLeft(x int) {
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

func (t *rbdIndex) rotateRight(x int) {
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

func (t *rbdIndex) findOwner(sz int) int {
	cur := t.root
	for cur != NullAddr {
		s := t.size(cur)
		switch {
		case sz == s:
			return cur
		case sz < s:
			cur = t.left(cur)
		default:
			cur = t.right(cur)
		}
	}
	return NullAddr
}

func (t *rbdIndex) insert(blk int) {
	sz := t.size(blk)
	if owner := t.findOwner(sz); owner != NullAddr {
		head := t.dupHead(owner)
		t.setField(blk, 0, nilLink)
		t.setField(blk, 1, int64(head))
		t.setField(blk, 2, int64(owner))
		t.setField(blk, 3, notOwnerTag)
		if head != NullAddr {
			t.setField(head, 0, int64(blk))
		}
		t.setDupHead(owner, blk)
		return
	}

	t.setLeft(blk, NullAddr)
	t.setRight(blk, NullAddr)
	t.setParent(blk, NullAddr)
	t.setDupHead(blk, NullAddr)
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

func (t *rbdIndex) insertFixup(z int) {
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

func (t *rbdIndex) minimum(n int) int {
	for t.left(n) != NullAddr {
		n = t.left(n)
	}
	return n
}

func (t *rbdIndex) transplant(u, v int) {
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

func (t *rbdIndex) bestFitPop(request int) (int, bool) {
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

	if head := t.dupHead(best); head != NullAddr {
		t.unlinkListHead(best, head)
		return head, true
	}
	t.removeTreeNode(best)
	return best, true
}

// unlinkListHead pops the head of owner's duplicate list in O(1), leaving
// the tree untouched.
func (t *rbdIndex) unlinkListHead(owner, head int) {
	next := int(t.field(head, 1))
	t.setDupHead(owner, next)
	if next != NullAddr {
		t.setField(next, 0, nilLink)
		t.setField(next, 2, int64(owner))
	}
}

func (t *rbdIndex) remove(blk int) {
	if t.isListEntry(blk) {
		prev := t.field(blk, 0)
		next := t.field(blk, 1)
		if prev == nilLink {
			owner := int(t.field(blk, 2))
			t.setDupHead(owner, int(next))
		} else {
			t.setField(int(prev), 1, next)
		}
		if next != nilLink {
			t.setField(int(next), 0, prev)
			if prev == nilLink {
				owner := int(t.field(blk, 2))
				t.setField(int(next), 2, int64(owner))
			}
		}
		return
	}

	if head := t.dupHead(blk); head != NullAddr {
		t.promote(blk, head)
		return
	}
	t.removeTreeNode(blk)
}

// promote relinks the tree to replace owner with head — the first element
// of owner's duplicate list — without touching any other node's identity,
// per §4.4.3's "field swap". head keeps its own address; only its role
// changes from list entry to tree node.
func (t *rbdIndex) promote(owner, head int) {
	p, l, r, c := t.parent(owner), t.left(owner), t.right(owner), t.color(owner)
	rest := int(t.field(head, 1)) // head's list-next, read before re-purposing its fields

	switch {
	case p == NullAddr:
		t.root = head
	case owner == t.left(p):
		t.setLeft(p, head)
	default:
		t.setRight(p, head)
	}
	if l != NullAddr {
		t.setParent(l, head)
	}
	if r != NullAddr {
		t.setParent(r, head)
	}

	t.setParent(head, p)
	t.setLeft(head, l)
	t.setRight(head, r)
	t.setColor(head, c)
	t.setDupHead(head, rest)

	if rest != NullAddr {
		t.setField(rest, 0, nilLink)
		t.setField(rest, 2, int64(head))
	}
}

func (t *rbdIndex) removeTreeNode(z int) {
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

func (t *rbdIndex) deleteFixup(x, xParent int) {
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

func (t *rbdIndex) walk(fn func(blk int)) {
	var rec func(n int)
	rec = func(n int) {
		if n == NullAddr {
			return
		}
		rec(t.left(n))
		fn(n)
		for e := t.dupHead(n); e != NullAddr; e = int(t.field(e, 1)) {
			fn(e)
		}
		rec(t.right(n))
	}
	rec(t.root)
}

func (t *rbdIndex) validateShape(log func(*ErrILSEQ)) bool {
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
		if t.color(n) == Red && (t.color(t.left(n)) == Red || t.color(t.right(n)) == Red) {
			log(&ErrILSEQ{Type: ErrRBColor, Off: n})
			ok = false
		}
		for e := t.dupHead(n); e != NullAddr; e = int(t.field(e, 1)) {
			if t.size(e) != sz {
				log(&ErrILSEQ{Type: ErrDupSize, Off: e, Arg: int64(t.size(e)), Arg2: int64(sz)})
				ok = false
			}
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
