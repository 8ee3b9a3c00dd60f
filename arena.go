// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

import "github.com/cznic/mathutil"

// MaxRequestSize is the implementation-defined ceiling on a single
// Allocate/Reallocate request, per §4.4.7 ("MAX_REQUEST_SIZE"). It is
// derived per Arena from the region size (>= H/2, per §6), not a package
// constant, since H varies by caller.

// DiffVerdict is a per-slot verdict code produced by HeapDiff, per §4.5.
type DiffVerdict int

const (
	DiffOK DiffVerdict = iota
	DiffMismatch
	DiffOutOfBounds
	DiffHeapContinues
)

// Arena is a single-threaded allocator instance bound to one caller-provided
// []byte region, selected free-block-index Variant, and Init-time layout.
// It is the public API surface of C5; it is not safe for concurrent use, in
// the manner of lldb's own Allocator and Filer types (§5).
type Arena struct {
	buf     []byte
	variant Variant
	idx     freeIndex

	end          int // offset of the end-sentinel header word
	minBlockSize int // header + footer + variant metadata, total bytes
	maxRequest   int
	freeBytes    int64
}

// MinHeapBytes returns the smallest region length Init will accept for the
// given variant: room for the end sentinel plus one minimally-sized free
// block.
func MinHeapBytes(v Variant) int {
	return wordSize + wordSize + wordSize + v.metadataBytes()
}

// NewArena is equivalent to allocating region and calling Init on it; it
// exists for callers (tests, cmd/memtrace) that want both steps in one call,
// mirroring lldb's NewAllocator(f, flt) constructor shape.
func NewArena(region []byte, v Variant) (*Arena, error) {
	a := &Arena{}
	if err := a.Init(region, v); err != nil {
		return nil, err
	}
	return a, nil
}

// Init binds the Arena to region. region must be word-aligned in length and
// at least MinHeapBytes(v) long. On success a single free block occupies all
// of region save the end sentinel, per §4.5.
func (a *Arena) Init(region []byte, v Variant) error {
	n := len(region)
	if v < SL || v > RBT {
		return &ErrINVAL{"memar: unknown variant", int(v)}
	}
	if n%wordSize != 0 {
		return &ErrINVAL{"memar: region length is not word-aligned", n}
	}
	if n < MinHeapBytes(v) {
		return &ErrINVAL{"memar: region smaller than MinHeapBytes", n}
	}

	a.buf = region
	a.variant = v
	a.minBlockSize = wordSize + wordSize + v.metadataBytes()
	a.maxRequest = mathutil.Max(n-a.minBlockSize, n/2)
	a.end = n - wordSize
	a.freeBytes = 0

	switch v {
	case SL:
		a.idx = newSLIndex(a)
	case RBP:
		a.idx = newRBPIndex(a)
	case RBD:
		a.idx = newRBDIndex(a)
	case RBS:
		a.idx = newRBSIndex(a)
	case RBT:
		a.idx = newRBTIndex(a)
	default:
		return &ErrINVAL{"memar: unknown variant", int(v)}
	}

	// End sentinel: ALLOC=1, size=0. Its LEFT_ALLOC mirrors the first
	// block's ALLOC bit, which is false (free), set below via writeFree.
	a.setHeader(a.end, encodeHeader(0, true, false, Black))

	firstSize := a.end - wordSize
	a.writeFree(0, firstSize, true, Black)
	a.idx.insert(0)
	a.freeBytes = int64(firstSize)
	return nil
}

// minPayload is the smallest payload size any free block may carry: just
// enough to hold the variant's in-band link fields and the footer word.
func (a *Arena) minPayload() int { return a.minBlockSize - wordSize }

// Align exposes the rounding §4.5 performs on every incoming request: the
// smallest word-multiple payload size >= bytes that still leaves room for
// the variant's free-block metadata once the block is released.
func (a *Arena) Align(bytes int) int {
	return mathutil.Max(roundUp8(bytes), a.minPayload())
}

// Capacity returns the sum of free payload bytes, maintained incrementally
// across every Allocate/Reallocate/Release so it is O(1); Validate
// independently recomputes the same total via a linear walk and compares
// the two, per P1.
func (a *Arena) Capacity() int64 { return a.freeBytes }

// Variant reports which free-block-index implementation this Arena uses.
func (a *Arena) Variant() Variant { return a.variant }

// MaxRequestSize reports the largest single request Allocate/Reallocate
// will honor for this Arena.
func (a *Arena) MaxRequestSize() int { return a.maxRequest }

// rightNeighbor returns the header offset of blk's immediate right
// neighbor, or a.end if blk is the last real block (§4.2).
func (a *Arena) rightNeighbor(blk int) int {
	return blk + wordSize + a.sizeOf(blk)
}

// HeapDiff compares an expected sequence of client addresses (as produced
// by a harness replaying a §6 request script) against the addresses
// actually recorded, reporting a verdict per slot. It performs no mutation
// and is part of the public introspection surface (§4.5), used by
// cmd/memtrace to check recorded layouts.
func HeapDiff(expected, actual []int) []DiffVerdict {
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	out := make([]DiffVerdict, n)
	for i := 0; i < n; i++ {
		switch {
		case i >= len(expected):
			out[i] = DiffHeapContinues
		case i >= len(actual):
			out[i] = DiffOutOfBounds
		case expected[i] != actual[i]:
			out[i] = DiffMismatch
		default:
			out[i] = DiffOK
		}
	}
	return out
}
