// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

import "github.com/cznic/mathutil"

// Validate performs the linear heap walk and the index walk described in
// §4.6 and checks every invariant in §3. Detected violations are reported
// to log (nil is treated as "collect nothing, report nothing"); Validate
// itself never aborts the caller and always returns whether the heap was
// found consistent, in the manner of lldb's Verify(bitmap, log, stats)
// except that here the "bitmap" bookkeeping collapses to two in-memory
// sets, since the whole region already lives in process memory.
func (a *Arena) Validate(log func(error) bool) bool {
	if log == nil {
		log = nolog
	}

	ok := true
	report := func(e *ErrILSEQ) {
		ok = false
		log(e)
	}

	indexed := map[int]int{}
	a.idx.walk(func(blk int) { indexed[blk]++ })
	seenFree := map[int]bool{}

	// maxSteps bounds the walk against a corrupted size field that could
	// otherwise stall blk in place or send it looping; no well-formed heap
	// can have more blocks than word-sized slots, so this can never trip on
	// valid input.
	maxSteps := mathutil.Max(a.end/wordSize, 1)

	var linearFree int64
	prevAlloc := true
	blk := 0
	for step := 0; blk != a.end; step++ {
		if blk < 0 || blk > a.end || step > maxSteps {
			report(&ErrILSEQ{Type: ErrWalkOverrun, Off: blk})
			return false
		}

		w := a.header(blk)
		size := sizeOfWord(w)
		alloc := isAllocWord(w)
		leftAlloc := isLeftAllocWord(w)

		if leftAlloc != prevAlloc {
			report(&ErrILSEQ{Type: ErrLeftAllocMismatch, Off: blk, Expected: prevAlloc, Got: leftAlloc})
		}

		if !alloc {
			if !prevAlloc {
				report(&ErrILSEQ{Type: ErrAdjacentFree, Off: blk})
			}

			foot := wordAt(a.buf, footerOffset(blk, size))
			if foot != w {
				report(&ErrILSEQ{Type: ErrFooterMismatch, Off: blk, Arg: int64(w), Arg2: int64(foot)})
			}

			switch n := indexed[blk]; {
			case n == 0:
				report(&ErrILSEQ{Type: ErrNotIndexed, Off: blk})
			case n > 1:
				report(&ErrILSEQ{Type: ErrDoubleIndexed, Off: blk, Arg: int64(n)})
			}

			seenFree[blk] = true
			linearFree += int64(size)
		}

		prevAlloc = alloc
		blk += wordSize + size
	}

	if blk != a.end {
		report(&ErrILSEQ{Type: ErrWalkShort, Off: blk})
	}

	for ib := range indexed {
		if !seenFree[ib] {
			// an index entry that is not a free block of the linear walk
			report(&ErrILSEQ{Type: ErrOther, Off: ib})
		}
	}

	if linearFree != a.freeBytes {
		report(&ErrILSEQ{Type: ErrCapacityMismatch, Arg: linearFree, Arg2: a.freeBytes})
	}

	if sv, isRB := a.idx.(shapeValidator); isRB {
		if !sv.validateShape(func(e *ErrILSEQ) { report(e) }) {
			ok = false
		}
	}

	return ok
}

var nolog = func(error) bool { return false }

// shapeValidator is implemented by the red-black variants to additionally
// check invariants 7 and 8 (color/height/order and duplicate-list
// consistency). SL has no tree shape to verify and does not implement it.
type shapeValidator interface {
	validateShape(log func(*ErrILSEQ)) bool
}
