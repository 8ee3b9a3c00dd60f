// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

import (
	"math/rand"
	"testing"
)

var allVariants = []Variant{SL, RBP, RBD, RBS, RBT}

func mustArena(t *testing.T, v Variant, n int) *Arena {
	t.Helper()
	a, err := NewArena(make([]byte, n), v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func mustValid(t *testing.T, a *Arena) {
	t.Helper()
	if !a.Validate(func(e error) bool { t.Error(e); return true }) {
		t.Fatal("heap invalid")
	}
}

func TestInitSingleFreeBlock(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 4096)
			mustValid(t, a)
			if a.Capacity() <= 0 {
				t.Fatalf("capacity = %d, want > 0", a.Capacity())
			}
			if n := len(a.IndexOrder()); n != 1 {
				t.Fatalf("index holds %d blocks after Init, want 1", n)
			}
		})
	}
}

func TestInitRejectsUnaligned(t *testing.T) {
	var a Arena
	if err := a.Init(make([]byte, 17), RBP); err == nil {
		t.Fatal("expected error for unaligned region")
	}
}

func TestInitRejectsUndersize(t *testing.T) {
	var a Arena
	if err := a.Init(make([]byte, wordSize), RBP); err == nil {
		t.Fatal("expected error for undersize region")
	}
}

func TestAlign(t *testing.T) {
	a := mustArena(t, RBP, 4096)
	for _, bytes := range []int{0, 1, 7, 8, 9, 100, 4000} {
		r := a.Align(bytes)
		if r%wordSize != 0 {
			t.Fatalf("Align(%d) = %d, not word-aligned", bytes, r)
		}
		if r < bytes {
			t.Fatalf("Align(%d) = %d, shrank the request", bytes, r)
		}
		if r < a.minPayload() {
			t.Fatalf("Align(%d) = %d, below minPayload %d", bytes, r, a.minPayload())
		}
	}
}

// TestAllocateReleaseRoundTrip exercises L1: releasing an allocation returns
// its payload to capacity(), restoring the value it had before the pair.
func TestAllocateReleaseRoundTrip(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<16)
			before := a.Capacity()

			addr := a.Allocate(64)
			if addr == NullAddr {
				t.Fatal("allocate failed")
			}
			mustValid(t, a)
			if a.Capacity() >= before {
				t.Fatalf("capacity did not shrink after allocate: before=%d after=%d", before, a.Capacity())
			}

			a.Release(addr)
			mustValid(t, a)
			if a.Capacity() != before {
				t.Fatalf("capacity after release = %d, want %d (full coalesce back)", a.Capacity(), before)
			}
		})
	}
}

func TestAllocateZeroOrOversizeFails(t *testing.T) {
	a := mustArena(t, RBP, 4096)
	if a.Allocate(0) != NullAddr {
		t.Fatal("Allocate(0) should fail")
	}
	if a.Allocate(-1) != NullAddr {
		t.Fatal("Allocate(-1) should fail")
	}
	if a.Allocate(a.MaxRequestSize()+1) != NullAddr {
		t.Fatal("Allocate(max+1) should fail")
	}
	mustValid(t, a)
}

func TestReleaseNullAddrIsNoop(t *testing.T) {
	a := mustArena(t, RBP, 4096)
	before := a.Capacity()
	a.Release(NullAddr)
	if a.Capacity() != before {
		t.Fatal("Release(NullAddr) mutated capacity")
	}
}

// TestReallocateShrinkGrow covers L3 (shrink/no-op) and the coalesce-in-place
// growth path of Reallocate.
func TestReallocateShrinkGrow(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<16)

			addr := a.Allocate(256)
			if addr == NullAddr {
				t.Fatal("allocate failed")
			}

			same := a.Reallocate(addr, 256)
			if same != addr {
				t.Fatalf("Reallocate to same size moved: %d -> %d", addr, same)
			}

			shrunk := a.Reallocate(addr, 32)
			if shrunk != addr {
				t.Fatalf("Reallocate shrink moved: %d -> %d", addr, shrunk)
			}
			mustValid(t, a)

			grown := a.Reallocate(addr, 512)
			if grown == NullAddr {
				t.Fatal("Reallocate grow failed")
			}
			mustValid(t, a)

			a.Release(grown)
			mustValid(t, a)
		})
	}
}

func TestReallocateNullActsAsAllocate(t *testing.T) {
	a := mustArena(t, RBP, 4096)
	addr := a.Reallocate(NullAddr, 64)
	if addr == NullAddr {
		t.Fatal("Reallocate(NullAddr, n) should behave as Allocate(n)")
	}
	mustValid(t, a)
}

func TestReallocateZeroActsAsRelease(t *testing.T) {
	a := mustArena(t, RBP, 4096)
	before := a.Capacity()
	addr := a.Allocate(64)
	if a.Reallocate(addr, 0) != NullAddr {
		t.Fatal("Reallocate(addr, 0) should return NullAddr")
	}
	if a.Capacity() != before {
		t.Fatal("Reallocate(addr, 0) did not fully release")
	}
}

// TestCoalesceBothNeighbors frees a run of three adjacent blocks in an order
// that forces both a left- and a right-neighbor merge (§4.2 C2).
func TestCoalesceBothNeighbors(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<16)
			before := a.Capacity()

			x := a.Allocate(64)
			y := a.Allocate(64)
			z := a.Allocate(64)
			if x == NullAddr || y == NullAddr || z == NullAddr {
				t.Fatal("setup allocate failed")
			}

			a.Release(x)
			a.Release(z)
			mustValid(t, a)
			a.Release(y) // merges with both now-free neighbors
			mustValid(t, a)

			if a.Capacity() != before {
				t.Fatalf("capacity = %d after full release, want %d", a.Capacity(), before)
			}
		})
	}
}

// TestBestFitPrefersSmallest exercises the free-index contract directly:
// given two free blocks both big enough, bestFitPop must return the smaller.
func TestBestFitPrefersSmallest(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<16)

			small := a.Allocate(64)
			filler := a.Allocate(16) // keeps small and big from coalescing together
			big := a.Allocate(512)
			tail := a.Allocate(64) // keeps big from coalescing with the remaining free tail
			if small == NullAddr || filler == NullAddr || big == NullAddr || tail == NullAddr {
				t.Fatal("setup allocate failed")
			}
			a.Release(small)
			a.Release(big)
			mustValid(t, a)

			// A request that either free block could satisfy must come
			// back at the smaller "small" block's address.
			got := a.Allocate(32)
			if got != small {
				t.Fatalf("bestFitPop returned %d, want the smaller free block %d", got, small)
			}
		})
	}
}

// TestDuplicateSizeBlocks targets the RB-D/RB-S/RB-T off-tree duplicate-list
// machinery directly: several same-size free blocks must all round-trip
// through insert/bestFitPop without disturbing tree shape.
func TestDuplicateSizeBlocks(t *testing.T) {
	for _, v := range []Variant{RBD, RBS, RBT} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<17)

			const n = 8
			addrs := make([]int, n)
			for i := range addrs {
				addrs[i] = a.Allocate(128)
				if addrs[i] == NullAddr {
					t.Fatalf("setup allocate %d failed", i)
				}
				// a filler right after each 128-byte block keeps it from
				// coalescing with the next one once both are freed.
				if a.Allocate(16) == NullAddr {
					t.Fatalf("filler allocate %d failed", i)
				}
			}

			for _, addr := range addrs {
				a.Release(addr)
			}
			mustValid(t, a)

			// Pop them back out: bestFitPop serves the first n-1 requests of
			// this exact size from the duplicate list and the last one by
			// removing the owning tree node.
			for i := 0; i < n; i++ {
				got := a.Allocate(128)
				if got == NullAddr {
					t.Fatalf("pop %d of duplicate-sized block failed", i)
				}
			}
			mustValid(t, a)
		})
	}
}

// TestDuplicateListSpliceNonHead releases several same-size blocks, then
// reallocates (and so removes) one that is not the most-recently-released
// list head, exercising the O(1) non-head splice path.
func TestDuplicateListSpliceNonHead(t *testing.T) {
	for _, v := range []Variant{RBD, RBS, RBT} {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<16)

			a1 := a.Allocate(96)
			f1 := a.Allocate(16)
			a2 := a.Allocate(96)
			f2 := a.Allocate(16)
			a3 := a.Allocate(96)
			f3 := a.Allocate(16) // keeps a3 from coalescing with the free tail
			if a1 == NullAddr || a2 == NullAddr || a3 == NullAddr || f1 == NullAddr || f2 == NullAddr || f3 == NullAddr {
				t.Fatal("setup allocate failed")
			}

			// release in order a1, a2, a3: a1 owns the size in the tree and
			// its dup-list head is a3, then a2.
			a.Release(a1)
			a.Release(a2)
			a.Release(a3)
			mustValid(t, a)

			// Growing f1 in place absorbs its free right neighbor a2, which
			// sits behind the list head a3, so the index must splice a2 out
			// of the middle of the chain.
			if got := a.Reallocate(f1, 64); got != f1 {
				t.Fatalf("Reallocate(f1, 64) moved: %d -> %d", f1, got)
			}
			mustValid(t, a)

			// Consume what is left of the chain through Allocate, validating
			// shape/dup-size invariants throughout.
			for i := 0; i < 3; i++ {
				if a.Allocate(96) == NullAddr {
					t.Fatalf("reuse %d of duplicate chain failed", i)
				}
				mustValid(t, a)
			}
		})
	}
}

// TestRandomizedWorkload runs a seeded random sequence of
// allocate/reallocate/release against every variant and validates after
// every single operation, the same "correctness program" style cmd/memtrace
// runs against a script.
func TestRandomizedWorkload(t *testing.T) {
	for _, v := range allVariants {
		v := v
		t.Run(v.String(), func(t *testing.T) {
			a := mustArena(t, v, 1<<18)
			rng := rand.New(rand.NewSource(1))
			live := map[int]bool{}

			for i := 0; i < 2000; i++ {
				switch {
				case len(live) == 0 || rng.Intn(3) != 0:
					n := 1 + rng.Intn(500)
					addr := a.Allocate(n)
					if addr != NullAddr {
						live[addr] = true
					}
				case rng.Intn(2) == 0:
					addr := pickLive(live, rng)
					n := 1 + rng.Intn(500)
					newAddr := a.Reallocate(addr, n)
					if newAddr != NullAddr {
						delete(live, addr)
						live[newAddr] = true
					}
				default:
					addr := pickLive(live, rng)
					a.Release(addr)
					delete(live, addr)
				}

				if !a.Validate(func(e error) bool { t.Fatal(e); return false }) {
					t.Fatalf("heap invalid after op %d", i)
				}
			}
		})
	}
}

func pickLive(live map[int]bool, rng *rand.Rand) int {
	target := rng.Intn(len(live))
	i := 0
	for addr := range live {
		if i == target {
			return addr
		}
		i++
	}
	panic("unreachable")
}

// TestHeapDiff exercises C5's heap_diff verdicts directly.
func TestHeapDiff(t *testing.T) {
	cases := []struct {
		name     string
		expected []int
		actual   []int
		want     []DiffVerdict
	}{
		{"exact match", []int{8, 16, 24}, []int{8, 16, 24}, []DiffVerdict{DiffOK, DiffOK, DiffOK}},
		{"mismatch", []int{8, 16}, []int{8, 32}, []DiffVerdict{DiffOK, DiffMismatch}},
		{"actual shorter", []int{8, 16}, []int{8}, []DiffVerdict{DiffOK, DiffOutOfBounds}},
		{"actual longer", []int{8}, []int{8, 16}, []DiffVerdict{DiffOK, DiffHeapContinues}},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			got := HeapDiff(c.expected, c.actual)
			if len(got) != len(c.want) {
				t.Fatalf("len(got) = %d, want %d", len(got), len(c.want))
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("slot %d: got %v, want %v", i, got[i], c.want[i])
				}
			}
		})
	}
}

func TestVariantString(t *testing.T) {
	want := map[Variant]string{SL: "SL", RBP: "RB-P", RBD: "RB-D", RBS: "RB-S", RBT: "RB-T"}
	for v, s := range want {
		if got := v.String(); got != s {
			t.Fatalf("%d.String() = %q, want %q", v, got, s)
		}
	}
}
