// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

import "fmt"

// ErrType enumerates the kinds of structural violation ErrILSEQ can carry,
// mirroring the Type field of lldb's own ErrILSEQ.
type ErrType int

// Structural violation kinds detected only by Validate. None of these are
// ever produced by Allocate/Reallocate/Release themselves.
const (
	ErrOther ErrType = iota
	ErrAdjacentFree
	ErrFooterMismatch
	ErrLeftAllocMismatch
	ErrNotIndexed
	ErrDoubleIndexed
	ErrWalkOverrun
	ErrWalkShort
	ErrCapacityMismatch
	ErrRBColor
	ErrRBBlackHeight
	ErrRBOrder
	ErrDupSize
)

func (t ErrType) String() string {
	switch t {
	case ErrAdjacentFree:
		return "two free blocks are address-adjacent"
	case ErrFooterMismatch:
		return "free block header/footer mismatch"
	case ErrLeftAllocMismatch:
		return "LEFT_ALLOC bit disagrees with left neighbor's ALLOC bit"
	case ErrNotIndexed:
		return "free block missing from the free-block index"
	case ErrDoubleIndexed:
		return "block present in the free-block index more than once"
	case ErrWalkOverrun:
		return "linear heap walk ran past the end sentinel"
	case ErrWalkShort:
		return "linear heap walk did not reach the end sentinel"
	case ErrCapacityMismatch:
		return "capacity() disagrees with the independent linear walk"
	case ErrRBColor:
		return "red node has a red child"
	case ErrRBBlackHeight:
		return "unequal black-node count on root-to-nil paths"
	case ErrRBOrder:
		return "red-black tree size ordering violated"
	case ErrDupSize:
		return "duplicate-list entry size disagrees with its owning node"
	default:
		return "internal error"
	}
}

// ErrINVAL reports caller/API misuse detected by Init: a region whose length
// is not word-aligned or is below MinHeapBytes, or an unknown Variant. It is
// a "caller error" in the sense of §7: non-fatal. Allocate, Reallocate and
// Release return no error values; they report failure through NullAddr.
type ErrINVAL struct {
	Msg string
	Arg interface{}
}

func (e *ErrINVAL) Error() string {
	if e.Arg != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Arg)
	}
	return e.Msg
}

// ErrILSEQ reports a structural violation found by Validate: an
// implementation bug, never caller misuse. Off is the byte offset within the
// arena where the problem was observed.
type ErrILSEQ struct {
	Type     ErrType
	Off      int
	Arg      int64
	Arg2     int64
	Expected bool
	Got      bool
}

func (e *ErrILSEQ) Error() string {
	return fmt.Sprintf("memar: %s at offset %#x (arg=%d arg2=%d)", e.Type, e.Off, e.Arg, e.Arg2)
}
