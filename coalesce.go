// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// coalesceResult reports the outcome of merging blk with any free
// address-neighbors: the (possibly shifted left) resulting block offset and
// its combined payload size. Neither neighbor, nor blk itself, is
// re-inserted into the index; the caller decides whether the result is
// about to be split-and-allocated (C3) or indexed as free (§4.4).
type coalesceResult struct {
	blk  int
	size int
}

// coalesce implements C2. It is infallible: every free neighbor it finds is
// guaranteed, by invariant 6, to appear exactly once in the index, so
// idx.remove never fails to find what it's told to remove.
func (a *Arena) coalesce(blk int) coalesceResult {
	size := a.sizeOf(blk)

	if right := a.rightNeighbor(blk); right != a.end && !a.isAlloc(right) {
		rsize := a.sizeOf(right)
		a.idx.remove(right)
		a.freeBytes -= int64(rsize)
		size += wordSize + rsize
	}

	if !a.isLeftAlloc(blk) {
		leftFooter := wordAt(a.buf, blk-wordSize)
		leftSize := sizeOfWord(leftFooter)
		leftBlk := blk - wordSize - leftSize
		a.idx.remove(leftBlk)
		a.freeBytes -= int64(leftSize)
		size += wordSize + leftSize
		blk = leftBlk
	}

	return coalesceResult{blk: blk, size: size}
}
