// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// rbtIndex is the RB-T variant (§4.4.5): a red-black tree of free blocks
// fixed up entirely on the way down, after Walker's well known single-pass
// top-down insertion and deletion, rather than descend-then-climb like
// RB-P or descend-then-replay-the-stack like RB-S. Link field 0 is left,
// field 1 is right, field 2 is dupHead, identical in layout and duplicate
// handling to RB-S (see rbs.go); only the rebalancing strategy differs.
//
// Top-down deletion ordinarily finishes by copying the found node's key
// into the node actually spliced out (Walker's data = size in his
// tutorial). That shortcut doesn't apply here: a block's size is its
// in-band header, inseparable from the memory it describes, and a client
// holds the block's *address* as its handle, so the node occupying a
// given tree slot cannot be swapped by overwriting fields — it must be
// relinked. The push-down pass below still does all of its rebalancing
// during the single descent; only the final splice, which needs to know
// the current parent of both the removed node and the node it might be
// replacing, falls back to two short fresh top-down searches rather than
// threaded parent pointers, since this variant keeps none.
type rbtIndex struct {
	a    *Arena
	root int
}

func newRBTIndex(a *Arena) *rbtIndex { return &rbtIndex{a: a, root: NullAddr} }

func (t *rbtIndex) field(n, idx int) int64 {
	if n == NullAddr {
		return nilLink
	}
	return t.a.readLink(n, idx)
}
func (t *rbtIndex) setField(n, idx int, v int64) {
	if n != NullAddr {
		t.a.writeLink(n, idx, v)
	}
}

func (t *rbtIndex) left(n int) int      { return int(t.field(n, 0)) }
func (t *rbtIndex) right(n int) int     { return int(t.field(n, 1)) }
func (t *rbtIndex) dupHead(n int) int   { return int(t.field(n, 2)) }
func (t *rbtIndex) setLeft(n, v int)    { t.setField(n, 0, int64(v)) }
func (t *rbtIndex) setRight(n, v int)   { t.setField(n, 1, int64(v)) }
func (t *rbtIndex) setDupHead(n, v int) { t.setField(n, 2, int64(v)) }
func (t *rbtIndex) isListEntry(n int) bool {
	return t.field(n, 2) == listTag
}

func (t *rbtIndex) child(n, dir int) int {
	if dir == 0 {
		return t.left(n)
	}
	return t.right(n)
}
func (t *rbtIndex) setChild(n, dir, v int) {
	if dir == 0 {
		t.setLeft(n, v)
	} else {
		t.setRight(n, v)
	}
}

func (t *rbtIndex) color(n int) Color {
	if n == NullAddr {
		return Black
	}
	return t.a.colorOf(n)
}
func (t *rbtIndex) setColor(n int, c Color) {
	if n != NullAddr {
		t.a.paint(n, c)
	}
}
func (t *rbtIndex) isRed(n int) bool { return n != NullAddr && t.color(n) == Red }
func (t *rbtIndex) size(n int) int   { return t.a.sizeOf(n) }

// childSlot rewrites whichever of parent's two children currently holds
// old to instead hold new, or sets the root if parent is NullAddr.
func (t *rbtIndex) childSlot(parent, old, new int) {
	switch {
	case parent == NullAddr:
		t.root = new
	case t.left(parent) == old:
		t.setLeft(parent, new)
	default:
		t.setRight(parent, new)
	}
}

// singleRotate and doubleRotate are Walker's rotation primitives: each
// returns the node that now roots the rotated subtree and leaves the
// recoloring baked in, so callers never separately touch color here.
func (t *rbtIndex) singleRotate(root, dir int) int {
	save := t.child(root, 1-dir)
	t.setChild(root, 1-dir, t.child(save, dir))
	t.setChild(save, dir, root)
	t.setColor(root, Red)
	t.setColor(save, Black)
	return save
}

func (t *rbtIndex) doubleRotate(root, dir int) int {
	save := t.child(root, 1-dir)
	t.setChild(root, 1-dir, t.singleRotate(save, 1-dir))
	return t.singleRotate(root, dir)
}

func (t *rbtIndex) findOwner(sz int) int {
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

// searchParent re-derives n's current parent with a plain size-keyed
// descent from the root. Used only by the handful of operations that need
// a node's parent after this variant's rotations may have moved it, since
// no parent field is kept.
func (t *rbtIndex) searchParent(n int) int {
	if n == t.root {
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

func (t *rbtIndex) insert(blk int) {
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

	if t.root == NullAddr {
		t.setLeft(blk, NullAddr)
		t.setRight(blk, NullAddr)
		t.setDupHead(blk, NullAddr)
		t.root = blk
		t.setColor(blk, Black)
		return
	}

	var ggp, gp, pr int = NullAddr, NullAddr, NullAddr
	cur := t.root
	dir := 0
	last := 0

	for {
		switch {
		case cur == NullAddr:
			cur = blk
			t.setLeft(cur, NullAddr)
			t.setRight(cur, NullAddr)
			t.setDupHead(cur, NullAddr)
			t.a.paint(cur, Red)
			if pr == NullAddr {
				t.root = cur
			} else {
				t.setChild(pr, dir, cur)
			}
		case t.isRed(t.left(cur)) && t.isRed(t.right(cur)):
			t.setColor(cur, Red)
			t.setColor(t.left(cur), Black)
			t.setColor(t.right(cur), Black)
		}

		if t.isRed(cur) && t.isRed(pr) {
			var newTop int
			if cur == t.child(pr, last) {
				newTop = t.singleRotate(gp, 1-last)
			} else {
				newTop = t.doubleRotate(gp, 1-last)
			}
			t.childSlot(ggp, gp, newTop)
		}

		if cur == blk {
			break
		}

		last = dir
		if sz < t.size(cur) {
			dir = 0
		} else {
			dir = 1
		}
		if gp != NullAddr {
			ggp = gp
		}
		gp = pr
		pr = cur
		cur = t.child(cur, dir)
	}

	t.setColor(t.root, Black)
}

func (t *rbtIndex) unlinkListHead(owner, head int) {
	next := int(t.field(head, 1))
	t.setDupHead(owner, next)
	if next != NullAddr {
		t.setField(next, 0, nilLink)
	}
}

func (t *rbtIndex) bestFitPop(request int) (int, bool) {
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

func (t *rbtIndex) promote(owner, head int) {
	parent := t.searchParent(owner)
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
}

func (t *rbtIndex) remove(blk int) {
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

	if head := t.dupHead(blk); head != NullAddr {
		t.promote(blk, head)
		return
	}
	t.removeTreeNode(blk)
}

// removeTreeNode descends from the root pushing red down so that whatever
// node ends up being physically spliced out is always red (or the root),
// per §4.4.5 — no separate bottom-up fixup pass follows. Equal sizes steer
// the descent left, so it ends at target itself when target has no left
// child, and otherwise at target's in-order predecessor, which is then
// relinked into target's slot.
func (t *rbtIndex) removeTreeNode(target int) {
	sz := t.size(target)
	if t.root == NullAddr {
		return
	}

	dir := 1
	var gp, pr, cur int = NullAddr, NullAddr, NullAddr

	next := t.root
	for next != NullAddr {
		last := dir
		gp, pr, cur = pr, cur, next

		if sz <= t.size(cur) {
			dir = 0
		} else {
			dir = 1
		}

		childNode := t.child(cur, dir)
		if !t.isRed(cur) && !t.isRed(childNode) {
			if t.isRed(t.child(cur, 1-dir)) {
				newTop := t.singleRotate(cur, dir)
				t.childSlot(pr, cur, newTop)
				pr = newTop
			} else if pr != NullAddr {
				sib := t.child(pr, 1-last)
				if sib != NullAddr {
					if !t.isRed(t.child(sib, 1-last)) && !t.isRed(t.child(sib, last)) {
						t.setColor(pr, Black)
						t.setColor(sib, Red)
						t.setColor(cur, Red)
					} else {
						var newTop int
						if t.isRed(t.child(sib, last)) {
							newTop = t.doubleRotate(pr, last)
						} else {
							newTop = t.singleRotate(pr, last)
						}
						t.childSlot(gp, pr, newTop)
						t.setColor(cur, Red)
						t.setColor(newTop, Red)
						t.setColor(t.left(newTop), Black)
						t.setColor(t.right(newTop), Black)
					}
				}
			}
		}

		next = t.child(cur, dir)
	}

	curParent := t.searchParent(cur)
	if cur == target {
		child := t.left(cur)
		if child == NullAddr {
			child = t.right(cur)
		}
		t.childSlot(curParent, cur, child)
	} else {
		targetLeft, targetRight := t.left(target), t.right(target)
		targetColor := t.color(target)
		targetParent := t.searchParent(target)

		child := t.left(cur) // cur is the in-order predecessor: no right child
		t.childSlot(curParent, cur, child)

		newLeft := targetLeft
		if newLeft == cur {
			newLeft = child
		}
		t.childSlot(targetParent, target, cur)
		t.setLeft(cur, newLeft)
		t.setRight(cur, targetRight)
		t.setColor(cur, targetColor)
	}

	if t.root != NullAddr {
		t.setColor(t.root, Black)
	}
}

func (t *rbtIndex) walk(fn func(blk int)) {
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

func (t *rbtIndex) validateShape(log func(*ErrILSEQ)) bool {
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
