// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// rbsIndex is the RB-S variant (§4.4.4): a red-black tree of free blocks
// keyed by size with no parent field at all. Link field 0 is left, field 1
// is right, field 2 is dupHead (or, for an off-tree duplicate list entry,
// a prev/next/tag triple — see below). Insertion's fixup and node removal
// walk up by replaying the descent they just made through a small
// fixed-capacity stack held on the index value, the approach lldb itself
// avoids needing because Btree there threads parent links through the
// backing file; here there is no parent field to spend, so the stack
// stands in for it. The deletion fixup instead finds each ancestor it
// needs with a fresh search from the root (ancestorOf).
//
// Off-tree duplicates reuse the same trick as RB-D (§4.4.3) but, lacking a
// fourth field for a role tag, use listTag — a value field 2 can never
// hold as a genuine dupHead (NullAddr or a block offset) — as the
// discriminator. A duplicate list entry therefore never needs a direct
// owner back-pointer; the rare case that does need the owner (splicing out
// the current list head) re-finds it with a plain size-keyed tree search,
// in keeping with this variant having no direct ancestor links to spend on
// the common case either.
const listTag int64 = -2

// stackCap bounds the descent stack. A red-black tree's height is at most
// 2*log2(n+1); this comfortably covers every heap this package can address
// (§4.4.4 calls for "at least 50").
const stackCap = 64

type rbsIndex struct {
	a     *Arena
	root  int
	stack [stackCap]int
	sp    int
}

func newRBSIndex(a *Arena) *rbsIndex { return &rbsIndex{a: a, root: NullAddr} }

func (t *rbsIndex) push(n int) { t.stack[t.sp] = n; t.sp++ }
func (t *rbsIndex) pop() int   { t.sp--; return t.stack[t.sp] }
func (t *rbsIndex) peek(i int) int {
	if i < 0 {
		return NullAddr
	}
	return t.stack[i]
}

func (t *rbsIndex) field(n, idx int) int64 {
	if n == NullAddr {
		return nilLink
	}
	return t.a.readLink(n, idx)
}
func (t *rbsIndex) setField(n, idx int, v int64) {
	if n != NullAddr {
		t.a.writeLink(n, idx, v)
	}
}

func (t *rbsIndex) left(n int) int     { return int(t.field(n, 0)) }
func (t *rbsIndex) right(n int) int    { return int(t.field(n, 1)) }
func (t *rbsIndex) dupHead(n int) int  { return int(t.field(n, 2)) }
func (t *rbsIndex) setLeft(n, v int)   { t.setField(n, 0, int64(v)) }
func (t *rbsIndex) setRight(n, v int)  { t.setField(n, 1, int64(v)) }
func (t *rbsIndex) setDupHead(n, v int) { t.setField(n, 2, int64(v)) }
func (t *rbsIndex) isListEntry(n int) bool {
	return t.field(n, 2) == listTag
}

func (t *rbsIndex) color(n int) Color {
	if n == NullAddr {
		return Black
	}
	return t.a.colorOf(n)
}
func (t *rbsIndex) setColor(n int, c Color) {
	if n != NullAddr {
		t.a.paint(n, c)
	}
}
func (t *rbsIndex) size(n int) int { return t.a.sizeOf(n) }

// childSlot rewrites whichever of parent's two children currently holds
// old to instead hold new, or sets the root if parent is NullAddr.
func (t *rbsIndex) childSlot(parent, old, new int) {
	switch {
	case parent == NullAddr:
		t.root = new
	case t.left(parent) == old:
		t.setLeft(parent, new)
	default:
		t.setRight(parent, new)
	}
}

// rotateLeft rotates at x, whose parent (or NullAddr) is given explicitly
// since there is no parent field to read it back from, and returns the
// node now occupying x's old slot.
func (t *rbsIndex) rotateLeft(parent, x int) int {
	y := t.right(x)
	t.setRight(x, t.left(y))
	t.setLeft(y, x)
	t.childSlot(parent, x, y)
	return y
}

func (t *rbsIndex) rotateRight(parent, x int) int {
	y := t.left(x)
	t.setLeft(x, t.right(y))
	t.setRight(y, x)
	t.childSlot(parent, x, y)
	return y
}

func (t *rbsIndex) findOwner(sz int) int {
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

func (t *rbsIndex) insert(blk int) {
	sz := t.size(blk)
	if owner := t.findOwner(sz); owner != NullAddr {
		head := t.dupHead(owner)
		t.setField(blk, 0, nilLink)
		t.setField(blk, 1, int64(head))
		t.setField(blk, 2, listTag)
		if head != NullAddr {
			t.setField(head, 0, int64(blk))
		}
		t.setDupHead(owner, blk)
		return
	}

	t.setLeft(blk, NullAddr)
	t.setRight(blk, NullAddr)
	t.setDupHead(blk, NullAddr)
	t.a.paint(blk, Red)

	t.sp = 0
	cur := t.root
	for cur != NullAddr {
		t.push(cur)
		if sz < t.size(cur) {
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	if t.sp == 0 {
		t.root = blk
		t.setColor(blk, Black)
		return
	}
	parent := t.peek(t.sp - 1)
	if sz < t.size(parent) {
		t.setLeft(parent, blk)
	} else {
		t.setRight(parent, blk)
	}
	t.push(blk)
	t.insertFixup()
}

// insertFixup walks the descent stack bottom-up, replaying CLRS's
// parent/grandparent/uncle fixup by popping instead of dereferencing
// parent links.
func (t *rbsIndex) insertFixup() {
	for {
		z := t.peek(t.sp - 1)
		p := t.peek(t.sp - 2)
		if p == NullAddr || t.color(p) == Black {
			break
		}
		g := t.peek(t.sp - 3)
		gp := t.peek(t.sp - 4)

		if p == t.left(g) {
			u := t.right(g)
			if t.color(u) == Red {
				t.setColor(p, Black)
				t.setColor(u, Black)
				t.setColor(g, Red)
				t.sp -= 2 // continue fixup from g
				if t.sp == 0 {
					break
				}
				continue
			}
			if z == t.right(p) {
				t.rotateLeft(g, p)
				t.stack[t.sp-2] = z
				t.stack[t.sp-1] = p
				z, p = p, z
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateRight(gp, g)
		} else {
			u := t.left(g)
			if t.color(u) == Red {
				t.setColor(p, Black)
				t.setColor(u, Black)
				t.setColor(g, Red)
				t.sp -= 2
				if t.sp == 0 {
					break
				}
				continue
			}
			if z == t.left(p) {
				t.rotateRight(g, p)
				t.stack[t.sp-2] = z
				t.stack[t.sp-1] = p
				z, p = p, z
			}
			t.setColor(p, Black)
			t.setColor(g, Red)
			t.rotateLeft(gp, g)
		}
		break
	}
	t.setColor(t.root, Black)
}

func (t *rbsIndex) unlinkListHead(owner, head int) {
	next := int(t.field(head, 1))
	t.setDupHead(owner, next)
	if next != NullAddr {
		t.setField(next, 0, nilLink)
	}
}

func (t *rbsIndex) bestFitPop(request int) (int, bool) {
	t.sp = 0
	cur := t.root
	best := NullAddr
	bestDepth := -1
	for cur != NullAddr {
		t.push(cur)
		if t.size(cur) >= request {
			best = cur
			bestDepth = t.sp
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

	t.sp = bestDepth
	t.removeAt()
	return best, true
}

func (t *rbsIndex) remove(blk int) {
	if t.isListEntry(blk) {
		prev := t.field(blk, 0)
		next := t.field(blk, 1)
		if prev == nilLink {
			owner := t.findOwner(t.size(blk))
			t.setDupHead(owner, int(next))
		} else {
			t.setField(int(prev), 1, next)
		}
		if next != nilLink {
			t.setField(int(next), 0, prev)
		}
		return
	}

	if !t.seekTo(blk) {
		return
	}
	if head := t.dupHead(blk); head != NullAddr {
		t.promote(blk, head)
		return
	}
	t.removeAt()
}

// seekTo rebuilds the descent stack ending at blk, found by the same
// size comparison insert used to place it (ties always went
// right, so this walk is deterministic). Reports whether blk was found.
func (t *rbsIndex) seekTo(blk int) bool {
	sz := t.size(blk)
	t.sp = 0
	cur := t.root
	for cur != NullAddr {
		t.push(cur)
		if cur == blk {
			return true
		}
		if sz < t.size(cur) {
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	return false
}

// promote relinks owner's duplicate-list head into the tree slot owner
// occupies, exactly as RB-D's field swap, adapted to the parentless
// layout: the stack, which currently ends at owner, is patched in place to
// end at head instead so a caller mid-fixup sees the right ancestry.
func (t *rbsIndex) promote(owner, head int) {
	parent := t.peek(t.sp - 2)
	l, r, c := t.left(owner), t.right(owner), t.color(owner)
	rest := int(t.field(head, 1))

	t.childSlot(parent, owner, head)
	t.setLeft(head, l)
	t.setRight(head, r)
	t.setColor(head, c)
	t.setDupHead(head, rest)
	if rest != NullAddr {
		t.setField(rest, 0, nilLink)
	}
	t.stack[t.sp-1] = head
}

// removeAt deletes the node at the top of the stack (its ancestry is the
// rest of the stack below it), then restores the red-black property with
// deleteFixup.
func (t *rbsIndex) removeAt() {
	z := t.pop()
	zParent := t.peek(t.sp - 1)
	zColor := t.color(z)
	var x, xParent int

	switch {
	case t.left(z) == NullAddr:
		x = t.right(z)
		xParent = zParent
		t.childSlot(zParent, z, x)
	case t.right(z) == NullAddr:
		x = t.left(z)
		xParent = zParent
		t.childSlot(zParent, z, x)
	default:
		// Find z's in-order successor, pushing the path to it; the
		// fixup below finds ancestors with ancestorOf, not from the stack.
		succParentDepth := t.sp
		y := t.right(z)
		t.push(y)
		for t.left(y) != NullAddr {
			y = t.left(y)
			t.push(y)
		}
		zColor = t.color(y)
		x = t.right(y)
		yParent := z // y is z's right child unless the walk went left
		if t.sp-succParentDepth > 1 {
			yParent = t.peek(t.sp - 2)
		}
		if yParent == z {
			xParent = y
		} else {
			xParent = yParent
			t.childSlot(yParent, y, x)
			t.setRight(y, t.right(z))
		}
		t.childSlot(zParent, z, y)
		t.setLeft(y, t.left(z))
		t.setColor(y, t.color(z))
		t.stack[succParentDepth] = y
	}

	if zColor == Black {
		t.deleteFixup(x, xParent)
	}
}

// deleteFixup re-derives the parent of xParent by a fresh size-keyed
// search at the top of each pass, since there is no parent field; xParent
// itself is already known from removeAt. A sibling rotation that moves
// xParent down makes the old sibling its parent for the rest of the pass.
func (t *rbsIndex) deleteFixup(x, xParent int) {
	for x != t.root && t.color(x) == Black {
		grand := t.ancestorOf(xParent)
		if x == t.left(xParent) {
			w := t.right(xParent)
			if t.color(w) == Red {
				t.setColor(w, Black)
				t.setColor(xParent, Red)
				t.rotateLeft(grand, xParent)
				grand = w
				w = t.right(xParent)
			}
			if t.color(t.left(w)) == Black && t.color(t.right(w)) == Black {
				t.setColor(w, Red)
				x = xParent
				xParent = grand
				continue
			}
			if t.color(t.right(w)) == Black {
				t.setColor(t.left(w), Black)
				t.setColor(w, Red)
				t.rotateRight(xParent, w)
				w = t.right(xParent)
			}
			t.setColor(w, t.color(xParent))
			t.setColor(xParent, Black)
			t.setColor(t.right(w), Black)
			t.rotateLeft(grand, xParent)
			x = t.root
			xParent = NullAddr
		} else {
			w := t.left(xParent)
			if t.color(w) == Red {
				t.setColor(w, Black)
				t.setColor(xParent, Red)
				t.rotateRight(grand, xParent)
				grand = w
				w = t.left(xParent)
			}
			if t.color(t.right(w)) == Black && t.color(t.left(w)) == Black {
				t.setColor(w, Red)
				x = xParent
				xParent = grand
				continue
			}
			if t.color(t.left(w)) == Black {
				t.setColor(t.right(w), Black)
				t.setColor(w, Red)
				t.rotateLeft(xParent, w)
				w = t.left(xParent)
			}
			t.setColor(w, t.color(xParent))
			t.setColor(xParent, Black)
			t.setColor(t.left(w), Black)
			t.rotateRight(grand, xParent)
			x = t.root
			xParent = NullAddr
		}
	}
	t.setColor(x, Black)
}

// ancestorOf finds n's parent by a fresh size-keyed search from the root;
// deleteFixup's climb is rare enough (bounded by tree height, same as the
// rest of this variant's operations) that re-searching is cheaper than
// keeping a second stack synchronized through rotations.
func (t *rbsIndex) ancestorOf(n int) int {
	if n == NullAddr || n == t.root {
		return NullAddr
	}
	sz := t.size(n)
	parent := NullAddr
	cur := t.root
	for cur != NullAddr && cur != n {
		parent = cur
		if sz < t.size(cur) {
			cur = t.left(cur)
		} else {
			cur = t.right(cur)
		}
	}
	return parent
}

func (t *rbsIndex) walk(fn func(blk int)) {
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

func (t *rbsIndex) validateShape(log func(*ErrILSEQ)) bool {
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
