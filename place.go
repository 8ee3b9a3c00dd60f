// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// place implements C3: given a free block blk of payload size `size` (>=
// request), either carve it in two — allocating the head and re-indexing
// the tail — or consume it whole. leftAlloc is the LEFT_ALLOC bit the newly
// allocated block must carry, determined by its caller from the state
// coalesce left behind. Returns the client address of the allocated block.
func (a *Arena) place(blk, size, request int, leftAlloc bool) int {
	if size-request >= a.minBlockSize {
		remBlk := blk + wordSize + request
		remSize := size - request - wordSize

		a.writeAllocHeader(blk, request, leftAlloc)
		a.writeFree(remBlk, remSize, true, Black)
		a.idx.insert(remBlk)

		right := remBlk + wordSize + remSize
		a.setLeftAlloc(right, false)
	} else {
		a.writeAllocHeader(blk, size, leftAlloc)
		right := blk + wordSize + size
		a.setLeftAlloc(right, true)
	}
	return clientAddr(blk)
}
