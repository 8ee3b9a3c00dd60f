// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memar

// slIndex is the SL variant of the C4 free-block index: a fixed table of
// NUM_BUCKETS segregated free lists keyed by size class, in the spirit of
// lldb's canned FLTPowersOf2/FLTFib tables (flt.go) but with the
// head/prev/next links carried in-band in each free block instead of in a
// side Filer-backed table, since here the "file" the Filer abstracted over
// is the arena's own byte region.
//
// Link field 0 is prev, field 1 is next (see linkFieldOffset).
const numBuckets = 17

type slIndex struct {
	a         *Arena
	thr       [numBuckets]int // minimum payload size admitted to each bucket
	head      [numBuckets]int // NullAddr if empty
}

func newSLIndex(a *Arena) *slIndex {
	base := a.minPayload()
	s := &slIndex{a: a}
	for i := 0; i < numBuckets; i++ {
		s.head[i] = NullAddr
	}
	// Buckets 0..6: exact-size classes spaced by one word, starting at the
	// smallest payload a free block can have.
	for i := 0; i < 7; i++ {
		s.thr[i] = base + i*wordSize
	}
	// Buckets 7..15: power-of-two ranges [2^k, 2^(k+1)), k = 7..15, closing
	// the gap above the last exact bucket (an implementation choice the
	// spec leaves open — "the test suite must not assume strict size
	// ordering within a bucket").
	for k := 7; k <= 15; k++ {
		s.thr[k] = 1 << uint(k)
	}
	// Bucket 16: catch-all overflow.
	s.thr[16] = 1 << 16
	return s
}

// bucketOf returns the bucket a free block of payload size `size` belongs
// to: the largest bucket whose threshold is <= size.
func (s *slIndex) bucketOf(size int) int {
	idx := 0
	for i := numBuckets - 1; i >= 0; i-- {
		if size >= s.thr[i] {
			idx = i
			break
		}
	}
	return idx
}

func (s *slIndex) prev(blk int) int64 { return s.a.readLink(blk, 0) }
func (s *slIndex) next(blk int) int64 { return s.a.readLink(blk, 1) }
func (s *slIndex) setPrev(blk int, v int64) { s.a.writeLink(blk, 0, v) }
func (s *slIndex) setNext(blk int, v int64) { s.a.writeLink(blk, 1, v) }

// insert pushes blk at the head of its bucket's list; intra-bucket order is
// deliberately loose (§4.4.1).
func (s *slIndex) insert(blk int) {
	size := s.a.sizeOf(blk)
	b := s.bucketOf(size)
	old := s.head[b]
	s.setPrev(blk, nilLink)
	s.setNext(blk, int64(old))
	if old != NullAddr {
		s.setPrev(old, int64(blk))
	}
	s.head[b] = blk
}

func (s *slIndex) unlinkFromBucket(blk, b int) {
	p, n := s.prev(blk), s.next(blk)
	if p == nilLink {
		if int(n) == NullAddr {
			s.head[b] = NullAddr
		} else {
			s.head[b] = int(n)
		}
	} else {
		s.setNext(int(p), n)
	}
	if n != nilLink {
		s.setPrev(int(n), p)
	}
}

// bestFitPop scans the bucket owning `request`, then subsequent buckets,
// for the first block whose size satisfies the request, per §4.4.1.
func (s *slIndex) bestFitPop(request int) (int, bool) {
	start := s.bucketOf(request)
	for b := start; b < numBuckets; b++ {
		for cur := s.head[b]; cur != NullAddr; cur = int(s.next(cur)) {
			if s.a.sizeOf(cur) >= request {
				s.unlinkFromBucket(cur, b)
				return cur, true
			}
		}
	}
	return 0, false
}

func (s *slIndex) remove(blk int) {
	b := s.bucketOf(s.a.sizeOf(blk))
	s.unlinkFromBucket(blk, b)
}

func (s *slIndex) walk(fn func(blk int)) {
	for b := 0; b < numBuckets; b++ {
		for cur := s.head[b]; cur != NullAddr; cur = int(s.next(cur)) {
			fn(cur)
		}
	}
}
