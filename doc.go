// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package memar implements a single-threaded dynamic memory allocator that
operates over a caller-provided, contiguous []byte region. It provides the
classical Allocate/Reallocate/Release trio plus introspection (Align,
Capacity, HeapDiff) and a structural Validate, in the manner of
github.com/cznic/exp/lldb's Allocator, but addressing in-memory byte offsets
instead of Filer-backed atom handles.

Word

The native machine word is 8 bytes. All block sizes and offsets are
multiples of the word. The low three bits of a block's size field are
therefore free to carry tag bits.

Header word

Every block, allocated or free, begins with a single header word:

	bits [3..63]  payload size in bytes, always a multiple of 8
	bit  0        ALLOC:      1 if the block is allocated
	bit  1        LEFT_ALLOC: 1 if the immediate left neighbor is allocated
	bit  2        COLOR:      red-black tree variants only; 1 = red

A footer word, bit-identical to the header, occupies the last word of every
*free* block's payload. Allocated blocks carry no footer; those bytes belong
to the caller.

Heap region

Init is given a []byte of length H. A single word-sized end sentinel,
ALLOC=1 size=0, is written at the last word of the region; this removes a
special case from right-edge coalescing. The remaining bytes form one large
free block.

Free-block index

The free-block index is variant specific; see sl.go (segregated lists),
rbp.go (red-black with parent pointers), rbd.go (red-black, duplicate sizes
pulled off-tree), rbs.go (red-black, parentless, explicit descent stack) and
rbt.go (red-black, fixed top-down). A heap initialized under one variant
cannot be consumed by another: the index metadata is written in-band into
free blocks' payload bytes and its shape differs by variant.

Content wiping

When a block is released its payload is not wiped; the caller is responsible
for scrubbing sensitive content before release, as lldb documents for its
own Free.

No method in this package returns io.EOF; callers observe exhaustion and
misuse through the null address sentinel NullAddr, through the *ErrINVAL
that Init returns for an unusable region or variant, and through Validate,
never through panics on well-formed input.

*/
package memar
