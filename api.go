// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// placeAndAccount wraps place with the Capacity bookkeeping every caller of
// place needs: a split leaves a new free remainder whose payload must be
// added back to freeBytes.
func (a *Arena) placeAndAccount(blk, size, request int, leftAlloc bool) int {
	addr := a.place(blk, size, request, leftAlloc)
	if size-request >= a.minBlockSize {
		a.freeBytes += int64(size - request - wordSize)
	}
	return addr
}

// Allocate implements §4.5 Allocate. It returns NullAddr on a zero-size or
// oversize request, or when no free block large enough exists; in both
// cases the heap is left unchanged (§4.4.7, §8 B1).
func (a *Arena) Allocate(bytes int) int {
	if bytes <= 0 || bytes > a.maxRequest {
		return NullAddr
	}

	req := a.Align(bytes)
	blk, ok := a.idx.bestFitPop(req)
	if !ok {
		return NullAddr
	}

	size := a.sizeOf(blk)
	leftAlloc := a.isLeftAlloc(blk)
	a.freeBytes -= int64(size)
	return a.placeAndAccount(blk, size, req, leftAlloc)
}

// Release implements §4.5 Release: coalesce with any free neighbors (C2)
// and hand the result back to the index. Release(NullAddr) is a no-op, per
// §4.4.7.
func (a *Arena) Release(addr int) {
	if addr == NullAddr {
		return
	}

	blk := blockOf(addr)
	res := a.coalesce(blk)
	leftAlloc := a.isLeftAlloc(res.blk)

	a.writeFree(res.blk, res.size, leftAlloc, Black)
	a.idx.insert(res.blk)
	a.freeBytes += int64(res.size)

	right := res.blk + wordSize + res.size
	a.setLeftAlloc(right, false)
}

// Reallocate implements §4.5 Reallocate. reallocate(NullAddr, n) behaves as
// Allocate(n); reallocate(p, 0) behaves as Release(p) and returns NullAddr.
// Shrinking or an exact-size request (L3) always returns addr unchanged.
// Growth first attempts an in-place coalesce with a free right neighbor
// before degrading to allocate/copy/release; on inability to satisfy a
// growth request the original pointer remains valid and NullAddr is
// returned (§4.4.7).
func (a *Arena) Reallocate(addr, bytes int) int {
	if addr == NullAddr {
		return a.Allocate(bytes)
	}
	if bytes == 0 {
		a.Release(addr)
		return NullAddr
	}

	blk := blockOf(addr)
	oldSize := a.sizeOf(blk)
	req := a.Align(bytes)

	if req <= oldSize {
		a.reallocShrink(blk, oldSize, req)
		return addr
	}

	if a.reallocGrowInPlace(blk, oldSize, req) {
		return addr
	}

	newAddr := a.Allocate(bytes)
	if newAddr == NullAddr {
		return NullAddr
	}

	n := oldSize
	if req < n {
		n = req
	}
	copy(a.buf[newAddr:newAddr+n], a.buf[addr:addr+n])
	a.Release(addr)
	return newAddr
}

// reallocShrink implements L3: the block at blk, currently oldSize bytes,
// shrinks to req bytes in place. Any remainder is coalesced with a free
// right neighbor (its left neighbor is the shrunk block itself, still
// allocated) and indexed.
func (a *Arena) reallocShrink(blk, oldSize, req int) {
	if oldSize-req < a.minBlockSize {
		return // not enough slack to carve off a new free block
	}

	leftAlloc := a.isLeftAlloc(blk)
	a.writeAllocHeader(blk, req, leftAlloc)

	remBlk := blk + wordSize + req
	remSize := oldSize - req - wordSize

	right := remBlk + wordSize + remSize
	if right != a.end && !a.isAlloc(right) {
		rsize := a.sizeOf(right)
		a.idx.remove(right)
		a.freeBytes -= int64(rsize)
		remSize += wordSize + rsize
		right = remBlk + wordSize + remSize
	}

	a.writeFree(remBlk, remSize, true, Black)
	a.idx.insert(remBlk)
	a.freeBytes += int64(remSize)
	a.setLeftAlloc(right, false)
}

// reallocGrowInPlace implements the "attempt coalesce-in-place before
// moving" half of §4.5: if the right neighbor is free and, combined with
// blk, satisfies req, merge them without moving blk. Reports whether it
// succeeded.
func (a *Arena) reallocGrowInPlace(blk, oldSize, req int) bool {
	right := blk + wordSize + oldSize
	if right == a.end || a.isAlloc(right) {
		return false
	}

	rsize := a.sizeOf(right)
	combined := oldSize + wordSize + rsize
	if combined < req {
		return false
	}

	a.idx.remove(right)
	a.freeBytes -= int64(rsize)
	leftAlloc := a.isLeftAlloc(blk)
	a.placeAndAccount(blk, combined, req, leftAlloc)
	return true
}
