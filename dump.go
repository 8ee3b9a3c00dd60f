// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// BlockInfo describes one block of the linear heap walk, the raw material
// for the §4.6 printer. It mirrors lldb's AllocStats in spirit: a plain data
// snapshot a caller can format however it likes, rather than the package
// doing any presentation itself.
type BlockInfo struct {
	Off       int // header word offset
	Addr      int // client address (Off + wordSize); meaningful only if Alloc
	Size      int // payload bytes
	Alloc     bool
	LeftAlloc bool
	Color     Color // meaningful for RB-* variants' free blocks only
	Indexed   bool  // present in the free-block index
}

// Stats aggregates the same counters lldb's AllocStats tracks, adapted to a
// single in-memory Arena: block counts and totals rather than Filer page
// counts, since there is no page structure here.
type Stats struct {
	TotalBlocks int
	FreeBlocks  int
	UsedBlocks  int
	FreeBytes   int64
	UsedBytes   int64
}

// Blocks performs the same linear walk Validate does, but collects a
// snapshot of every block instead of checking invariants, for use by
// internal/pp and any other introspection caller.
func (a *Arena) Blocks() []BlockInfo {
	indexed := map[int]bool{}
	a.idx.walk(func(blk int) { indexed[blk] = true })

	var out []BlockInfo
	blk := 0
	for blk != a.end {
		w := a.header(blk)
		size := sizeOfWord(w)
		alloc := isAllocWord(w)
		out = append(out, BlockInfo{
			Off:       blk,
			Addr:      clientAddr(blk),
			Size:      size,
			Alloc:     alloc,
			LeftAlloc: isLeftAllocWord(w),
			Color:     colorOfWord(w),
			Indexed:   indexed[blk],
		})
		blk += wordSize + size
	}
	return out
}

// IndexOrder returns the block offsets currently held by the free-block
// index, in the index's own traversal order (in-order for the RB-* variants,
// bucket-then-list order for SL); this is the "or of the index (tree or
// table of lists)" half of the §4.6 dump.
func (a *Arena) IndexOrder() []int {
	var out []int
	a.idx.walk(func(blk int) { out = append(out, blk) })
	return out
}

// Summarize reduces Blocks into the aggregate Stats a one-line status
// report needs.
func Summarize(blocks []BlockInfo) Stats {
	var s Stats
	for _, b := range blocks {
		s.TotalBlocks++
		if b.Alloc {
			s.UsedBlocks++
			s.UsedBytes += int64(b.Size)
		} else {
			s.FreeBlocks++
			s.FreeBytes += int64(b.Size)
		}
	}
	return s
}
