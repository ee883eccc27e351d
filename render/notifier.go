// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"slices"
	"sync"
)

// LossNotifier is a device-loss subscription list. Allocators embed it to
// implement Allocator.OnDeviceLost.
//
// The zero value is ready to use. LossNotifier is safe for concurrent use.
type LossNotifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]func()
}

// Subscribe registers fn and returns a cancel func that removes it.
// A nil fn is ignored and yields a no-op cancel.
func (n *LossNotifier) Subscribe(fn func()) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	n.mu.Lock()
	if n.subs == nil {
		n.subs = make(map[uint64]func())
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify calls every subscriber in subscription order. Subscribers run
// outside the notifier lock, so they may cancel themselves.
func (n *LossNotifier) Notify() {
	n.mu.Lock()
	ids := make([]uint64, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of live subscriptions.
func (n *LossNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
