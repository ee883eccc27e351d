// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bitset provides a fixed-size bitmap indexed by slice number.
package bitset

import "math/bits"

// Set tracks membership of indices in [0, Len()) using one bit per index,
// packed into uint64 words (64 indices per word).
//
// Set is not safe for concurrent use; callers serialize access.
type Set struct {
	// words is the bitmap. Word index = i / 64, bit position = i % 64.
	words []uint64

	// n is the number of addressable indices.
	n int

	// count caches the population count so Len-style queries are O(1).
	count int
}

// New creates a set able to hold indices in [0, n). All bits start clear.
// A non-positive n yields an empty set that ignores every index.
func New(n int) *Set {
	if n < 0 {
		n = 0
	}
	return &Set{
		words: make([]uint64, (n+63)/64),
		n:     n,
	}
}

// Len returns the number of addressable indices.
func (s *Set) Len() int {
	return s.n
}

// Add sets bit i. Out-of-range indices are ignored.
func (s *Set) Add(i int) {
	if i < 0 || i >= s.n {
		return
	}
	w, b := i>>6, uint(i&63)
	if s.words[w]&(1<<b) == 0 {
		s.words[w] |= 1 << b
		s.count++
	}
}

// Remove clears bit i. Out-of-range indices are ignored.
func (s *Set) Remove(i int) {
	if i < 0 || i >= s.n {
		return
	}
	w, b := i>>6, uint(i&63)
	if s.words[w]&(1<<b) != 0 {
		s.words[w] &^= 1 << b
		s.count--
	}
}

// Contains reports whether bit i is set. Returns false when out of range.
func (s *Set) Contains(i int) bool {
	if i < 0 || i >= s.n {
		return false
	}
	return s.words[i>>6]&(1<<uint(i&63)) != 0
}

// Fill sets every bit in [0, Len()).
func (s *Set) Fill() {
	full := s.n / 64
	for i := 0; i < full; i++ {
		s.words[i] = ^uint64(0)
	}
	if rem := s.n % 64; rem > 0 {
		s.words[full] = (uint64(1) << rem) - 1
	}
	s.count = s.n
}

// Clear clears every bit.
func (s *Set) Clear() {
	for i := range s.words {
		s.words[i] = 0
	}
	s.count = 0
}

// Count returns the number of set bits.
func (s *Set) Count() int {
	return s.count
}

// IsEmpty reports whether no bit is set.
func (s *Set) IsEmpty() bool {
	return s.count == 0
}

// Next returns the smallest set index >= from.
func (s *Set) Next(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	if from >= s.n {
		return 0, false
	}
	w := from >> 6
	word := s.words[w] &^ ((uint64(1) << uint(from&63)) - 1)
	for {
		if word != 0 {
			i := w*64 + bits.TrailingZeros64(word)
			if i >= s.n {
				return 0, false
			}
			return i, true
		}
		w++
		if w >= len(s.words) {
			return 0, false
		}
		word = s.words[w]
	}
}

// ForEach calls fn for each set index in ascending order until fn
// returns false. fn may remove the index it is visiting.
func (s *Set) ForEach(fn func(i int) bool) {
	if fn == nil {
		return
	}
	for w := range s.words {
		word := s.words[w]
		for word != 0 {
			b := bits.TrailingZeros64(word)
			i := w*64 + b
			if i >= s.n {
				return
			}
			if !fn(i) {
				return
			}
			word &^= 1 << uint(b)
		}
	}
}
