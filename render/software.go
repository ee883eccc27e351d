// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// Default software allocator limits.
const (
	// DefaultBudgetMB is the default memory budget (512 MB).
	DefaultBudgetMB = 512

	// MinBudgetMB is the minimum allowed memory budget (16 MB).
	MinBudgetMB = 16
)

// MemoryStats contains allocator memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the total memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// TextureCount is the number of live textures.
	TextureCount int

	// DeviceLosses is the number of simulated device-loss events.
	DeviceLosses uint64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%d/%d MB, %d textures, %d device losses]",
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.TextureCount,
		s.DeviceLosses)
}

// SoftwareConfig holds configuration for creating a SoftwareAllocator.
type SoftwareConfig struct {
	// BudgetMB is the memory budget in megabytes.
	// Defaults to DefaultBudgetMB if below MinBudgetMB.
	BudgetMB int

	// MaxTextureSize is the reported maximum texture dimension.
	// Defaults to DefaultMaxTextureSize if <= 0.
	MaxTextureSize int
}

// SoftwareAllocator is a CPU-backed Allocator. Textures live in host
// memory, which makes it the allocator for offline baking, tests and
// hosts without a GPU.
//
// SoftwareAllocator is safe for concurrent use.
type SoftwareAllocator struct {
	// createMu is the creation lock; it also guards the tracking fields.
	createMu sync.Mutex

	// inUse guards texture contents during readback and upload.
	inUse sync.Mutex

	budgetBytes uint64
	usedBytes   uint64
	textures    map[*softwareTexture]struct{}
	caps        DeviceCapabilities
	losses      atomic.Uint64
	closed      bool

	lost LossNotifier
}

// NewSoftwareAllocator creates a CPU-backed allocator.
func NewSoftwareAllocator(config SoftwareConfig) *SoftwareAllocator {
	budget := config.BudgetMB
	if budget < MinBudgetMB {
		budget = DefaultBudgetMB
	}
	maxSize := config.MaxTextureSize
	if maxSize <= 0 {
		maxSize = DefaultMaxTextureSize
	}

	//nolint:gosec // G115: budget is bounded below by MinBudgetMB
	return &SoftwareAllocator{
		budgetBytes: uint64(budget) * 1024 * 1024,
		textures:    make(map[*softwareTexture]struct{}),
		caps: DeviceCapabilities{
			MaxTextureSize: maxSize,
			VendorName:     "gogpu",
			DeviceName:     "software",
		},
	}
}

// CreateTexture allocates a zero-filled host texture.
func (a *SoftwareAllocator) CreateTexture(desc TextureDescriptor) (Texture, error) {
	if err := desc.Validate(a.caps.MaxTextureSize); err != nil {
		return nil, err
	}

	a.createMu.Lock()
	defer a.createMu.Unlock()

	if a.closed {
		return nil, ErrAllocatorClosed
	}

	//nolint:gosec // G115: dimensions validated positive
	size := uint64(desc.SizeBytes())
	if a.usedBytes+size > a.budgetBytes {
		return nil, fmt.Errorf("%w: need %d bytes, have %d bytes available",
			ErrBudgetExceeded, size, a.budgetBytes-a.usedBytes)
	}

	tex := &softwareTexture{
		alloc:  a,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		label:  desc.Label,
		bpp:    BytesPerPixel(desc.Format),
		pixels: make([]byte, size),
	}
	a.textures[tex] = struct{}{}
	a.usedBytes += size
	return tex, nil
}

// Release frees a texture created by this allocator. Textures from other
// allocators and already released textures are ignored.
func (a *SoftwareAllocator) Release(tex Texture) {
	st, ok := tex.(*softwareTexture)
	if !ok || st == nil || st.alloc != a {
		return
	}
	if st.released.Swap(true) {
		return
	}

	a.createMu.Lock()
	if _, tracked := a.textures[st]; tracked {
		delete(a.textures, st)
		a.usedBytes -= uint64(len(st.pixels)) //nolint:gosec // G115: length is non-negative
	}
	a.createMu.Unlock()

	a.inUse.Lock()
	st.pixels = nil
	a.inUse.Unlock()
}

// InUse returns the shared texture-contents lock.
func (a *SoftwareAllocator) InUse() sync.Locker {
	return &a.inUse
}

// OnDeviceLost registers a device-loss subscriber.
func (a *SoftwareAllocator) OnDeviceLost(fn func()) (cancel func()) {
	return a.lost.Subscribe(fn)
}

// Capabilities returns the reported device limits.
func (a *SoftwareAllocator) Capabilities() DeviceCapabilities {
	return a.caps
}

// NotifyDeviceLost simulates a device-loss event. Texture objects and
// their memory are kept; subscribers are expected to treat the contents
// as undefined.
func (a *SoftwareAllocator) NotifyDeviceLost() {
	a.losses.Add(1)
	a.lost.Notify()
}

// Subscribers returns the number of live device-loss subscriptions.
func (a *SoftwareAllocator) Subscribers() int {
	return a.lost.Len()
}

// Stats returns current memory usage statistics.
func (a *SoftwareAllocator) Stats() MemoryStats {
	a.createMu.Lock()
	defer a.createMu.Unlock()
	return MemoryStats{
		TotalBytes:   a.budgetBytes,
		UsedBytes:    a.usedBytes,
		TextureCount: len(a.textures),
		DeviceLosses: a.losses.Load(),
	}
}

// Close releases every live texture. The allocator rejects new
// allocations afterwards.
func (a *SoftwareAllocator) Close() {
	a.createMu.Lock()
	if a.closed {
		a.createMu.Unlock()
		return
	}
	live := make([]*softwareTexture, 0, len(a.textures))
	for tex := range a.textures {
		live = append(live, tex)
	}
	a.closed = true
	a.createMu.Unlock()

	for _, tex := range live {
		a.Release(tex)
	}
}

// softwareTexture is a host-memory texture.
type softwareTexture struct {
	alloc    *SoftwareAllocator
	width    int
	height   int
	format   gputypes.TextureFormat
	label    string
	bpp      int
	pixels   []byte
	released atomic.Bool
}

func (t *softwareTexture) Width() int                     { return t.width }
func (t *softwareTexture) Height() int                    { return t.height }
func (t *softwareTexture) Format() gputypes.TextureFormat { return t.format }
func (t *softwareTexture) Label() string                  { return t.label }
func (t *softwareTexture) Released() bool                 { return t.released.Load() }

// ReadPixels copies the texture into dst. Callers that race with other
// writers hold the allocator's InUse lock.
func (t *softwareTexture) ReadPixels(dst []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	if len(dst) < len(t.pixels) {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrSizeMismatch, len(t.pixels), len(dst))
	}
	copy(dst, t.pixels)
	return nil
}

// WritePixels replaces the texture contents.
func (t *softwareTexture) WritePixels(src []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	if len(src) != len(t.pixels) {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrSizeMismatch, len(t.pixels), len(src))
	}
	copy(t.pixels, src)
	return nil
}

// WriteRegion replaces a sub-rectangle of the texture.
func (t *softwareTexture) WriteRegion(x, y, w, h int, src []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("%w: region (%d,%d)+(%dx%d) exceeds texture bounds (%dx%d)",
			ErrInvalidDimensions, x, y, w, h, t.width, t.height)
	}
	rowBytes := w * t.bpp
	if len(src) != rowBytes*h {
		return fmt.Errorf("%w: need %d bytes, got %d", ErrSizeMismatch, rowBytes*h, len(src))
	}
	stride := t.width * t.bpp
	for row := 0; row < h; row++ {
		off := (y+row)*stride + x*t.bpp
		copy(t.pixels[off:off+rowBytes], src[row*rowBytes:(row+1)*rowBytes])
	}
	return nil
}

// String returns a string representation of the texture.
func (t *softwareTexture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("SoftwareTexture[%s %dx%d %v %d bytes %s]",
		t.label, t.width, t.height, t.format, t.width*t.height*t.bpp, status)
}

// Ensure SoftwareAllocator implements Allocator.
var _ Allocator = (*SoftwareAllocator)(nil)
