package slicefield

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/slicefield/render"
)

// AtlasFormat is the pixel format of every atlas texture: four half-float
// channels, 8 bytes per pixel. Slices use R, G and B; A is unused.
const AtlasFormat = gputypes.TextureFormatRGBA16Float

// atlasLayer is one atlas texture and the ledger tracking its slices.
type atlasLayer struct {
	tex    render.Texture
	ledger *Ledger
}

// volume is the state shared by Field and DynamicField: the allocator,
// the packing layout, the needs-clear flag and the device-loss
// subscription. All mutable state is guarded by mu.
type volume struct {
	mu sync.Mutex

	alloc  render.Allocator
	layout Layout
	label  string
	log    *slog.Logger

	needsClear bool
	disposed   bool
	cancelLost func()

	// revision counts replacements of atlas contents from outside the
	// rasterizer (Load).
	revision uint64
}

// init computes the layout for desc. It does not allocate textures.
func (v *volume) init(alloc render.Allocator, desc Descriptor, opts []Option) error {
	if alloc == nil {
		return ErrNilAllocator
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	maxSize := alloc.Capabilities().MaxSurfaceSize()
	if o.maxSurfaceSize > 0 && o.maxSurfaceSize < maxSize {
		maxSize = o.maxSurfaceSize
	}

	v.alloc = alloc
	v.label = o.label
	v.log = o.logger
	if v.log == nil {
		v.log = Logger()
	}
	v.log = v.log.With(slog.String("field", v.label))
	v.layout = NewLayout(desc, maxSize)

	if v.layout.IsEmpty() {
		return fmt.Errorf("%w: slice %dx%d exceeds surface size %d",
			ErrEmptyLayout, v.layout.SliceWidth, v.layout.SliceHeight, maxSize)
	}
	v.log.Debug("slicefield: layout computed",
		slog.Float64("requested_resolution", v.layout.RequestedResolution),
		slog.Float64("resolution", v.layout.Resolution),
		slog.Int("slices", v.layout.SliceCount),
		slog.Int("columns", v.layout.Columns),
		slog.Int("rows", v.layout.Rows),
		slog.Int("atlas_width", v.layout.AtlasWidth()),
		slog.Int("atlas_height", v.layout.AtlasHeight()))
	return nil
}

// allocate creates one atlas texture plus a fully dirty ledger.
func (v *volume) allocate(suffix string) (atlasLayer, error) {
	label := v.label
	if suffix != "" {
		label += "_" + suffix
	}
	tex, err := v.alloc.CreateTexture(render.TextureDescriptor{
		Label:  label,
		Width:  v.layout.AtlasWidth(),
		Height: v.layout.AtlasHeight(),
		Format: AtlasFormat,
		Usage:  render.AtlasUsage,
	})
	if err != nil {
		return atlasLayer{}, fmt.Errorf("slicefield: allocate atlas %q: %w", label, err)
	}
	return atlasLayer{tex: tex, ledger: NewLedger(v.layout.SliceCount)}, nil
}

// subscribe registers onLost for device-loss notifications.
func (v *volume) subscribe(onLost func()) {
	v.cancelLost = v.alloc.OnDeviceLost(onLost)
}

// dispose marks the volume disposed, cancels the device-loss subscription
// and releases the given textures. Caller must hold mu. Returns false if
// already disposed.
func (v *volume) dispose(textures ...render.Texture) bool {
	if v.disposed {
		return false
	}
	v.disposed = true
	if v.cancelLost != nil {
		v.cancelLost()
		v.cancelLost = nil
	}
	for _, tex := range textures {
		if tex != nil {
			v.alloc.Release(tex)
		}
	}
	v.log.Debug("slicefield: disposed")
	return true
}

// Layout returns the packing layout. It never changes after construction.
func (v *volume) Layout() Layout {
	return v.layout
}

// Extents returns the packed volume-extent vectors for uniform upload.
func (v *volume) Extents() Extents {
	return NewExtents(v.layout)
}

// Label returns the debug label.
func (v *volume) Label() string {
	return v.label
}

// NeedsClear reports whether the atlas contents are undefined and must be
// cleared before slices are rasterized into it.
func (v *volume) NeedsClear() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.needsClear
}

// ConsumeClear reports whether a clear was pending and resets the flag.
// The renderer calls it right before clearing the atlas.
func (v *volume) ConsumeClear() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	pending := v.needsClear
	v.needsClear = false
	return pending
}

// Revision returns a counter that changes whenever the atlas contents are
// replaced wholesale by Load. Tools keeping a CPU copy of the atlas
// compare it to know when to read the texture back again.
func (v *volume) Revision() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revision
}

// Disposed reports whether Dispose has been called.
func (v *volume) Disposed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed
}

// Field is a sliced distance field: one atlas texture holding every slice
// and one ledger tracking which slices are stale.
//
// Lifecycle: New allocates the atlas and marks every slice dirty; the
// external rasterizer walks the dirty set under its own per-frame budget
// and calls Validate then MarkValid for each slice it draws; Dispose
// releases the atlas. Device loss re-invalidates everything without
// reallocating the texture.
//
// Field methods are safe for concurrent use, though the intended usage is
// a single frame-driven render thread plus device-loss callbacks.
type Field struct {
	volume
	atlas atlasLayer
}

// New creates a distance field for desc, allocating its atlas from alloc.
func New(alloc render.Allocator, desc Descriptor, opts ...Option) (*Field, error) {
	f := &Field{}
	if err := f.init(alloc, desc, opts); err != nil {
		return nil, err
	}
	atlas, err := f.allocate("")
	if err != nil {
		return nil, err
	}
	f.atlas = atlas
	f.needsClear = true
	f.subscribe(f.handleDeviceLost)

	f.log.Info("slicefield: field created",
		slog.Int("slices", f.layout.SliceCount),
		slog.Int("atlas_width", f.layout.AtlasWidth()),
		slog.Int("atlas_height", f.layout.AtlasHeight()))
	return f, nil
}

// handleDeviceLost returns the ledger to its just-constructed state.
func (f *Field) handleDeviceLost() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.atlas.ledger.Reset()
	f.needsClear = true
	f.log.Warn("slicefield: device lost, all slices invalidated")
}

// Texture returns the atlas texture for shader binding.
func (f *Field) Texture() render.Texture {
	return f.atlas.tex
}

// IsFullyGenerated reports whether every slice has been generated and none
// is dirty.
func (f *Field) IsFullyGenerated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.IsFullyGenerated()
}

// NeedsWork reports whether any slice is dirty.
func (f *Field) NeedsWork() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.NeedsWork()
}

// InvalidateAll marks every slice dirty. The watermark is kept.
func (f *Field) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.atlas.ledger.InvalidateAll()
	f.log.Debug("slicefield: all slices invalidated")
}

// Validate clears the dirty flag of slice i.
func (f *Field) Validate(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.atlas.ledger.Validate(i)
}

// MarkValid raises the validity watermark to cover slice i.
func (f *Field) MarkValid(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return
	}
	f.atlas.ledger.MarkValid(i)
}

// IsInvalid reports whether slice i is dirty.
func (f *Field) IsInvalid(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.IsInvalid(i)
}

// NextInvalid returns the lowest dirty slice index >= from.
func (f *Field) NextInvalid(from int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.NextInvalid(from)
}

// InvalidCount returns the number of dirty slices.
func (f *Field) InvalidCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.InvalidCount()
}

// Watermark returns the validity watermark.
func (f *Field) Watermark() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atlas.ledger.Watermark()
}

// Dispose releases the atlas texture and stops listening for device loss.
// Calling Dispose more than once is a no-op.
func (f *Field) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispose(f.atlas.tex)
}

// String returns a short description of the field.
func (f *Field) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("Field[%s %s dirty=%d watermark=%d disposed=%v]",
		f.label, f.layout, f.atlas.ledger.InvalidCount(), f.atlas.ledger.Watermark(), f.disposed)
}
