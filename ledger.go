package slicefield

import "github.com/gogpu/slicefield/internal/bitset"

// Ledger tracks which slices of one atlas layer need regeneration.
//
// It keeps two pieces of state that are deliberately not a single source
// of truth:
//   - the dirty set, which schedules rasterization
//   - the watermark, which gates whole-field completeness and persistence
//
// After InvalidateAll the watermark may still equal the slice count while
// the dirty set is full; IsFullyGenerated requires both.
//
// The watermark is an exclusive count: MarkValid(i) raises it to at
// least i+1, so marking every index in [0, SliceCount) reaches SliceCount.
//
// Ledger is not safe for concurrent use.
type Ledger struct {
	watermark int
	invalid   *bitset.Set
}

// NewLedger creates a ledger for sliceCount slices in the just-constructed
// state: watermark 0 and every slice dirty.
func NewLedger(sliceCount int) *Ledger {
	l := &Ledger{invalid: bitset.New(sliceCount)}
	l.Reset()
	return l
}

// SliceCount returns the number of slices tracked.
func (l *Ledger) SliceCount() int { return l.invalid.Len() }

// Watermark returns the validity watermark.
func (l *Ledger) Watermark() int { return l.watermark }

// Reset returns the ledger to its just-constructed state.
func (l *Ledger) Reset() {
	l.watermark = 0
	l.invalid.Fill()
}

// InvalidateAll marks every slice dirty. The watermark is untouched.
func (l *Ledger) InvalidateAll() {
	l.invalid.Fill()
}

// Validate clears the dirty flag of slice i.
func (l *Ledger) Validate(i int) {
	l.invalid.Remove(i)
}

// MarkValid raises the watermark to cover slice i.
func (l *Ledger) MarkValid(i int) {
	if i < 0 {
		return
	}
	l.watermark = max(l.watermark, i+1)
}

// markValidCapped raises the watermark to cover slice i without letting
// it exceed limit.
func (l *Ledger) markValidCapped(i, limit int) {
	if i < 0 {
		return
	}
	l.watermark = min(max(l.watermark, i+1), limit)
}

// setComplete clears the dirty set and forces the watermark, as after a
// whole-atlas replace.
func (l *Ledger) setComplete(watermark int) {
	l.invalid.Clear()
	l.watermark = watermark
}

// IsFullyGenerated reports whether the watermark covers every slice and
// no slice is dirty.
func (l *Ledger) IsFullyGenerated() bool {
	return l.watermark >= l.invalid.Len() && l.invalid.IsEmpty()
}

// NeedsWork reports whether any slice is dirty.
func (l *Ledger) NeedsWork() bool {
	return !l.invalid.IsEmpty()
}

// IsInvalid reports whether slice i is dirty.
func (l *Ledger) IsInvalid(i int) bool {
	return l.invalid.Contains(i)
}

// InvalidCount returns the number of dirty slices.
func (l *Ledger) InvalidCount() int {
	return l.invalid.Count()
}

// NextInvalid returns the lowest dirty slice index >= from.
func (l *Ledger) NextInvalid(from int) (int, bool) {
	return l.invalid.Next(from)
}

// ForEachInvalid calls fn for each dirty slice in ascending order until fn
// returns false.
func (l *Ledger) ForEachInvalid(fn func(i int) bool) {
	l.invalid.ForEach(fn)
}
