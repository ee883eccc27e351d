package slicefield

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/gogpu/slicefield/render"
)

// Layer selects which atlas of a DynamicField an operation applies to.
type Layer uint8

const (
	// LayerStatic is the baked, rarely changing geometry.
	LayerStatic Layer = iota

	// LayerDynamic is per-frame geometry composited on top of the static layer.
	LayerDynamic

	// LayerBoth applies an operation to the static layer, then the dynamic one.
	LayerBoth
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerStatic:
		return "static"
	case LayerDynamic:
		return "dynamic"
	case LayerBoth:
		return "both"
	default:
		return fmt.Sprintf("Layer(%d)", uint8(l))
	}
}

// DynamicField is a distance field split into a static layer and a dynamic
// layer, each with its own atlas and ledger, sharing one Layout.
//
// Dynamic content composites on top of static content, so the dynamic
// layer can never be more current than the static one:
//   - a dynamic slice stays dirty while its static slice is dirty
//   - the dynamic watermark never exceeds the static watermark
//
// DynamicField has no persisted format; Save and Load return ErrNotSupported.
type DynamicField struct {
	volume
	static  atlasLayer
	dynamic atlasLayer
}

// NewDynamic creates a two-layer distance field for desc.
func NewDynamic(alloc render.Allocator, desc Descriptor, opts ...Option) (*DynamicField, error) {
	d := &DynamicField{}
	if err := d.init(alloc, desc, opts); err != nil {
		return nil, err
	}
	static, err := d.allocate(LayerStatic.String())
	if err != nil {
		return nil, err
	}
	dynamic, err := d.allocate(LayerDynamic.String())
	if err != nil {
		alloc.Release(static.tex)
		return nil, err
	}
	d.static, d.dynamic = static, dynamic
	d.needsClear = true
	d.subscribe(d.handleDeviceLost)

	d.log.Info("slicefield: dynamic field created",
		slog.Int("slices", d.layout.SliceCount),
		slog.Int("atlas_width", d.layout.AtlasWidth()),
		slog.Int("atlas_height", d.layout.AtlasHeight()))
	return d, nil
}

// handleDeviceLost resets both ledgers.
func (d *DynamicField) handleDeviceLost() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	d.static.ledger.Reset()
	d.dynamic.ledger.Reset()
	d.needsClear = true
	d.log.Warn("slicefield: device lost, all static and dynamic slices invalidated")
}

// layers returns the ledgers an operation on layer touches, static first.
func (d *DynamicField) layers(layer Layer) []*Ledger {
	switch layer {
	case LayerStatic:
		return []*Ledger{d.static.ledger}
	case LayerDynamic:
		return []*Ledger{d.dynamic.ledger}
	case LayerBoth:
		return []*Ledger{d.static.ledger, d.dynamic.ledger}
	default:
		return nil
	}
}

// Texture returns the atlas texture of the static or dynamic layer, or
// nil for LayerBoth.
func (d *DynamicField) Texture(layer Layer) render.Texture {
	switch layer {
	case LayerStatic:
		return d.static.tex
	case LayerDynamic:
		return d.dynamic.tex
	default:
		return nil
	}
}

// InvalidateAll marks every dynamic slice dirty, and every static slice
// too when invalidateStatic is set. Watermarks are kept.
func (d *DynamicField) InvalidateAll(invalidateStatic bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	if invalidateStatic {
		d.static.ledger.InvalidateAll()
	}
	d.dynamic.ledger.InvalidateAll()
	d.log.Debug("slicefield: slices invalidated", slog.Bool("static", invalidateStatic))
}

// Validate clears the dirty flag of slice i on layer.
//
// A dynamic slice is only cleared when the static slice below it is not
// dirty; otherwise the call is a no-op. LayerBoth clears static first, so
// the dynamic flag always clears too.
func (d *DynamicField) Validate(i int, layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	if layer == LayerStatic || layer == LayerBoth {
		d.static.ledger.Validate(i)
	}
	if (layer == LayerDynamic || layer == LayerBoth) && !d.static.ledger.IsInvalid(i) {
		d.dynamic.ledger.Validate(i)
	}
}

// MarkValid raises the watermark of layer to cover slice i. The dynamic
// watermark is capped at the static watermark; the static one is not.
func (d *DynamicField) MarkValid(i int, layer Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return
	}
	if layer == LayerStatic || layer == LayerBoth {
		d.static.ledger.MarkValid(i)
	}
	if layer == LayerDynamic || layer == LayerBoth {
		d.dynamic.ledger.markValidCapped(i, d.static.ledger.Watermark())
	}
}

// IsFullyGenerated reports whether both layers are fully generated.
func (d *DynamicField) IsFullyGenerated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.static.ledger.IsFullyGenerated() && d.dynamic.ledger.IsFullyGenerated()
}

// NeedsWork reports whether any slice of either layer is dirty.
func (d *DynamicField) NeedsWork() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.static.ledger.NeedsWork() || d.dynamic.ledger.NeedsWork()
}

// LayerNeedsWork reports whether layer has dirty slices. LayerBoth
// behaves like NeedsWork.
func (d *DynamicField) LayerNeedsWork(layer Layer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.layers(layer) {
		if l.NeedsWork() {
			return true
		}
	}
	return false
}

// IsInvalid reports whether slice i is dirty on layer. For LayerBoth it
// reports whether either layer marks it dirty.
func (d *DynamicField) IsInvalid(i int, layer Layer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.layers(layer) {
		if l.IsInvalid(i) {
			return true
		}
	}
	return false
}

// NextInvalid returns the lowest slice index >= from that is dirty on
// layer. For LayerBoth the lowest across both layers is returned.
func (d *DynamicField) NextInvalid(from int, layer Layer) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	best, found := 0, false
	for _, l := range d.layers(layer) {
		if i, ok := l.NextInvalid(from); ok && (!found || i < best) {
			best, found = i, true
		}
	}
	return best, found
}

// InvalidCount returns the number of dirty slices on layer. For LayerBoth
// a slice dirty on both layers is counted once.
func (d *DynamicField) InvalidCount(layer Layer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if layer != LayerBoth {
		n := 0
		for _, l := range d.layers(layer) {
			n += l.InvalidCount()
		}
		return n
	}
	n := d.static.ledger.InvalidCount()
	d.dynamic.ledger.ForEachInvalid(func(i int) bool {
		if !d.static.ledger.IsInvalid(i) {
			n++
		}
		return true
	})
	return n
}

// Watermark returns the watermark of the static or dynamic layer. For
// LayerBoth it returns the dynamic watermark, which never exceeds the
// static one.
func (d *DynamicField) Watermark(layer Layer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if layer == LayerStatic {
		return d.static.ledger.Watermark()
	}
	return d.dynamic.ledger.Watermark()
}

// Save is not supported for two-layer fields.
func (d *DynamicField) Save(io.Writer) error {
	return fmt.Errorf("%w: save of dynamic field %q", ErrNotSupported, d.label)
}

// Load is not supported for two-layer fields.
func (d *DynamicField) Load(io.Reader) error {
	return fmt.Errorf("%w: load of dynamic field %q", ErrNotSupported, d.label)
}

// SaveFile is not supported for two-layer fields.
func (d *DynamicField) SaveFile(string) error {
	return d.Save(nil)
}

// LoadFile is not supported for two-layer fields.
func (d *DynamicField) LoadFile(string) error {
	return d.Load(nil)
}

// Dispose releases both atlas textures and stops listening for device
// loss. Calling Dispose more than once is a no-op.
func (d *DynamicField) Dispose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispose(d.static.tex, d.dynamic.tex)
}

// String returns a short description of the field.
func (d *DynamicField) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("DynamicField[%s %s static(dirty=%d watermark=%d) dynamic(dirty=%d watermark=%d) disposed=%v]",
		d.label, d.layout,
		d.static.ledger.InvalidCount(), d.static.ledger.Watermark(),
		d.dynamic.ledger.InvalidCount(), d.dynamic.ledger.Watermark(),
		d.disposed)
}
