// Package bake rasterizes analytic scenes into slicefield atlases on the
// CPU.
//
// A Baker walks the dirty set of a field under a per-call slice budget,
// evaluates the scene at every texel of each dirty slice and uploads the
// slice's texel group. It stands in for the GPU rasterizer in tools and
// tests; the lighting pass samples the result the same way.
//
// Scenes are sdfx solids (github.com/deadsy/sdfx/sdf.SDF3) in the field's
// virtual space: x and y span the virtual width and height, z spans the
// virtual depth.
package bake

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/gogpu/slicefield"
	"github.com/gogpu/slicefield/internal/texel"
	"github.com/gogpu/slicefield/render"
)

var (
	// ErrNilScene is returned when a baker is created without a scene.
	ErrNilScene = errors.New("bake: scene is nil")

	// ErrNilField is returned when a baker is created without a field.
	ErrNilField = errors.New("bake: field is nil")
)

// Stats reports baking progress.
type Stats struct {
	// Baked is the number of slices rasterized since the baker was created.
	Baked int

	// Steps is the number of Step calls that baked at least one slice.
	Steps int

	// Clears is the number of times the atlases were cleared.
	Clears int

	// Elapsed is the total time spent rasterizing.
	Elapsed time.Duration
}

// layer is one atlas the baker fills.
type layer struct {
	name   string
	scene  sdf.SDF3
	tex    render.Texture
	shadow []byte

	next   func(from int) (int, bool)
	commit func(i int)
}

// Baker fills the dirty slices of a Field or DynamicField.
//
// The baker keeps a CPU copy of each atlas so that a slice upload
// rewrites its whole texel group without losing the two sibling slices.
//
// A Baker is not safe for concurrent use. Step holds the allocator's
// in-use lock while uploading.
type Baker struct {
	alloc        render.Allocator
	layout       slicefield.Layout
	consumeClear func() bool
	revision     func() uint64
	seen         uint64
	layers       []*layer
	maxDist      float64
	log          *slog.Logger
	stats        Stats
}

// New creates a baker that fills field with scene.
func New(alloc render.Allocator, field *slicefield.Field, scene sdf.SDF3) (*Baker, error) {
	if alloc == nil {
		return nil, slicefield.ErrNilAllocator
	}
	if field == nil {
		return nil, ErrNilField
	}
	if scene == nil {
		return nil, ErrNilScene
	}
	b := newBaker(alloc, field.Layout(), field.ConsumeClear, field.Revision)
	err := b.addLayer("atlas", scene, field.Texture(), field.NextInvalid, func(i int) {
		field.Validate(i)
		field.MarkValid(i)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewDynamic creates a baker for both layers of field. The static layer
// holds static; the dynamic layer holds the union of static and dynamic,
// so the lighting pass can sample it alone. A nil dynamic scene bakes the
// static scene into both layers.
func NewDynamic(alloc render.Allocator, field *slicefield.DynamicField, static, dynamic sdf.SDF3) (*Baker, error) {
	if alloc == nil {
		return nil, slicefield.ErrNilAllocator
	}
	if field == nil {
		return nil, ErrNilField
	}
	if static == nil {
		return nil, ErrNilScene
	}
	combined := static
	if dynamic != nil {
		combined = sdf.Union3D(static, dynamic)
	}

	b := newBaker(alloc, field.Layout(), field.ConsumeClear, field.Revision)
	err := b.addLayer(slicefield.LayerStatic.String(), static, field.Texture(slicefield.LayerStatic),
		func(from int) (int, bool) { return field.NextInvalid(from, slicefield.LayerStatic) },
		func(i int) {
			field.Validate(i, slicefield.LayerStatic)
			field.MarkValid(i, slicefield.LayerStatic)
		})
	if err != nil {
		return nil, err
	}
	err = b.addLayer(slicefield.LayerDynamic.String(), combined, field.Texture(slicefield.LayerDynamic),
		func(from int) (int, bool) { return field.NextInvalid(from, slicefield.LayerDynamic) },
		func(i int) {
			field.Validate(i, slicefield.LayerDynamic)
			field.MarkValid(i, slicefield.LayerDynamic)
		})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func newBaker(alloc render.Allocator, l slicefield.Layout, consumeClear func() bool, revision func() uint64) *Baker {
	return &Baker{
		alloc:        alloc,
		layout:       l,
		consumeClear: consumeClear,
		revision:     revision,
		seen:         revision(),
		maxDist:      l.MaxDistance,
		log:          slicefield.Logger().With(slog.String("component", "bake")),
	}
}

// addLayer registers an atlas and seeds its shadow copy from the texture.
func (b *Baker) addLayer(name string, scene sdf.SDF3, tex render.Texture, next func(int) (int, bool), commit func(int)) error {
	ly := &layer{
		name:   name,
		scene:  scene,
		tex:    tex,
		shadow: make([]byte, b.layout.ByteSize()),
		next:   next,
		commit: commit,
	}
	if err := b.readShadow(ly); err != nil {
		return err
	}
	b.layers = append(b.layers, ly)
	return nil
}

// readShadow replaces the shadow copy of ly with the texture contents.
func (b *Baker) readShadow(ly *layer) error {
	lock := b.alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	if err := ly.tex.ReadPixels(ly.shadow); err != nil {
		return fmt.Errorf("bake: read %s atlas: %w", ly.name, err)
	}
	return nil
}

// syncShadows re-reads every shadow copy when the atlas contents were
// replaced since the last step.
func (b *Baker) syncShadows() error {
	rev := b.revision()
	if rev == b.seen {
		return nil
	}
	for _, ly := range b.layers {
		if err := b.readShadow(ly); err != nil {
			return err
		}
	}
	b.seen = rev
	b.log.Debug("bake: atlas replaced, shadow copies reloaded")
	return nil
}

// Step bakes up to budget dirty slices, static layer first, and returns
// the number baked. A budget <= 0 bakes every dirty slice. Atlas contents
// replaced by Field.Load are read back before baking so that sibling
// slices of a texel group are preserved.
//
// A dynamic slice whose static slice is still dirty is rasterized but
// stays dirty; it is picked up again by a later Step.
func (b *Baker) Step(budget int) (int, error) {
	if err := b.syncShadows(); err != nil {
		return 0, err
	}
	if b.consumeClear() {
		if err := b.clearAll(); err != nil {
			return 0, err
		}
	}

	start := time.Now()
	baked := 0
	for _, ly := range b.layers {
		for i, ok := ly.next(0); ok; i, ok = ly.next(i + 1) {
			if budget > 0 && baked >= budget {
				break
			}
			if err := b.bakeSlice(ly, i); err != nil {
				return baked, fmt.Errorf("bake: %s slice %d: %w", ly.name, i, err)
			}
			ly.commit(i)
			baked++
		}
	}

	if baked > 0 {
		b.stats.Baked += baked
		b.stats.Steps++
		b.stats.Elapsed += time.Since(start)
		b.log.Debug("bake: step", slog.Int("slices", baked), slog.Duration("elapsed", time.Since(start)))
	}
	return baked, nil
}

// Run calls Step until no layer has dirty slices that can be baked.
func (b *Baker) Run() error {
	for {
		n, err := b.Step(0)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Stats returns the baking progress counters.
func (b *Baker) Stats() Stats {
	return b.stats
}

// clearAll zeroes every shadow atlas and uploads it.
func (b *Baker) clearAll() error {
	lock := b.alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	for _, ly := range b.layers {
		clear(ly.shadow)
		if err := ly.tex.WritePixels(ly.shadow); err != nil {
			return fmt.Errorf("bake: clear %s atlas: %w", ly.name, err)
		}
	}
	b.stats.Clears++
	b.log.Debug("bake: atlases cleared")
	return nil
}

// bakeSlice evaluates the scene over slice i and uploads its texel group.
func (b *Baker) bakeSlice(ly *layer, i int) error {
	rect, ch, ok := b.layout.SliceRect(i)
	if !ok {
		return fmt.Errorf("slice outside layout %v", b.layout)
	}
	atlasW := b.layout.AtlasWidth()
	sw, sh := rect.Dx(), rect.Dy()
	sx := float64(b.layout.VirtualWidth) / float64(sw)
	sy := float64(b.layout.VirtualHeight) / float64(sh)
	z := b.layout.SliceDepth(i)

	for py := 0; py < sh; py++ {
		y := (float64(py) + 0.5) * sy
		for px := 0; px < sw; px++ {
			x := (float64(px) + 0.5) * sx
			d := ly.scene.Evaluate(v3.Vec{X: x, Y: y, Z: z})
			off := texel.Offset(atlasW, rect.Min.X+px, rect.Min.Y+py, ch)
			texel.Put(ly.shadow, off, texel.Encode(d, b.maxDist))
		}
	}

	rowBytes := sw * texel.Size
	region := make([]byte, rowBytes*sh)
	for py := 0; py < sh; py++ {
		off := texel.Offset(atlasW, rect.Min.X, rect.Min.Y+py, 0)
		copy(region[py*rowBytes:(py+1)*rowBytes], ly.shadow[off:off+rowBytes])
	}

	lock := b.alloc.InUse()
	lock.Lock()
	defer lock.Unlock()
	return ly.tex.WriteRegion(rect.Min.X, rect.Min.Y, sw, sh, region)
}
