// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// Variant selects the free-block-index implementation an Arena uses, in the
// manner of lldb's FLT* constants passed to NewFLTAllocator. A heap
// initialized under one variant cannot be consumed by another; the variant
// is fixed for the lifetime of the Arena.
type Variant int

const (
	// SL: segregated free lists keyed by size class.
	SL Variant = iota
	// RBP: red-black tree of free blocks with explicit parent pointers.
	RBP
	// RBD: red-black tree, duplicate sizes pulled off-tree into per-size lists.
	RBD
	// RBS: red-black tree without parent pointers; descent stack driven.
	RBS
	// RBT: red-black tree fixed top-down on the way to the target.
	RBT
)

func (v Variant) String() string {
	switch v {
	case SL:
		return "SL"
	case RBP:
		return "RB-P"
	case RBD:
		return "RB-D"
	case RBS:
		return "RB-S"
	case RBT:
		return "RB-T"
	default:
		return "?"
	}
}

// metadataBytes returns the number of payload bytes the variant's in-band
// link fields need, excluding the footer word. Used to compute MinBlockSize
// (§4.1).
func (v Variant) metadataBytes() int {
	switch v {
	case SL:
		return 2 * wordSize // prev, next
	case RBP:
		return 3 * wordSize // parent, left, right
	case RBD:
		return 4 * wordSize // parent, left, right, dupHead
	case RBS, RBT:
		return 3 * wordSize // left, right, dupHead
	default:
		panic("memar: invalid variant")
	}
}

// freeIndex is the C4 contract every variant implements. All operations are
// expressed in terms of block header offsets (blk), never client addresses.
type freeIndex interface {
	// insert adds blk, whose header already carries its final size, to the
	// index. blk must not currently be indexed.
	insert(blk int)

	// bestFitPop removes and returns a free block of size >= request,
	// preferring the smallest such block; ok is false if none exists.
	bestFitPop(request int) (blk int, ok bool)

	// remove takes blk, currently indexed, out of the index. blk's header
	// size is used to find it; variants that need exact identity (not just
	// size) use it to disambiguate same-size blocks.
	remove(blk int)

	// walk calls fn once for every block currently in the index, for
	// Validate and the pretty printer. Order is index-specific.
	walk(fn func(blk int))
}

// linkFieldOffset computes the absolute byte offset of the idx'th
// word-sized link field in a free block's payload (field 0 starts right
// after the header word).
func linkFieldOffset(blk, idx int) int { return blk + wordSize + idx*wordSize }

func (a *Arena) readLink(blk, idx int) int64 {
	return int64(wordAt(a.buf, linkFieldOffset(blk, idx)))
}

func (a *Arena) writeLink(blk, idx int, v int64) {
	setWordAt(a.buf, linkFieldOffset(blk, idx), uint64(v))
}
