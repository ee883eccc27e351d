// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bitset

import "testing"

func TestSet_New(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantLen int
	}{
		{"zero", 0, 0},
		{"negative", -4, 0},
		{"single word", 3, 3},
		{"word boundary", 64, 64},
		{"multi word", 130, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.n)
			if s.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", s.Len(), tt.wantLen)
			}
			if !s.IsEmpty() {
				t.Error("new set should be empty")
			}
		})
	}
}

func TestSet_AddRemove(t *testing.T) {
	s := New(10)

	s.Add(3)
	s.Add(3)
	if !s.Contains(3) {
		t.Error("Contains(3) = false after Add")
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (Add is idempotent)", s.Count())
	}

	s.Remove(3)
	s.Remove(3)
	if s.Contains(3) {
		t.Error("Contains(3) = true after Remove")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
}

func TestSet_OutOfRange(t *testing.T) {
	s := New(5)
	s.Add(-1)
	s.Add(5)
	s.Add(1000)
	if !s.IsEmpty() {
		t.Errorf("out-of-range Add changed the set, Count() = %d", s.Count())
	}
	if s.Contains(-1) || s.Contains(5) {
		t.Error("out-of-range Contains should be false")
	}
	s.Remove(7) // must not panic
}

func TestSet_FillClear(t *testing.T) {
	for _, n := range []int{1, 3, 63, 64, 65, 200} {
		s := New(n)
		s.Fill()
		if s.Count() != n {
			t.Errorf("n=%d: Count() after Fill = %d", n, s.Count())
		}
		for i := 0; i < n; i++ {
			if !s.Contains(i) {
				t.Fatalf("n=%d: Contains(%d) = false after Fill", n, i)
			}
		}
		if s.Contains(n) {
			t.Errorf("n=%d: Fill set a bit past the end", n)
		}
		s.Clear()
		if !s.IsEmpty() {
			t.Errorf("n=%d: not empty after Clear", n)
		}
	}
}

func TestSet_Next(t *testing.T) {
	s := New(200)
	for _, i := range []int{0, 63, 64, 150} {
		s.Add(i)
	}

	var got []int
	for i, ok := s.Next(0); ok; i, ok = s.Next(i + 1) {
		got = append(got, i)
	}
	want := []int{0, 63, 64, 150}
	if len(got) != len(want) {
		t.Fatalf("Next walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Next walk = %v, want %v", got, want)
			break
		}
	}

	if _, ok := s.Next(151); ok {
		t.Error("Next(151) should report no more indices")
	}
	if _, ok := s.Next(500); ok {
		t.Error("Next past the end should report false")
	}
}

func TestSet_ForEach(t *testing.T) {
	s := New(70)
	s.Fill()

	visited := 0
	s.ForEach(func(i int) bool {
		s.Remove(i)
		visited++
		return true
	})
	if visited != 70 {
		t.Errorf("visited %d indices, want 70", visited)
	}
	if !s.IsEmpty() {
		t.Error("removing during ForEach should empty the set")
	}

	s.Fill()
	visited = 0
	s.ForEach(func(i int) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Errorf("early stop visited %d, want 5", visited)
	}
}
