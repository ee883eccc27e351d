package bake

import (
	"bytes"
	"math"
	"testing"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/slicefield"
	"github.com/gogpu/slicefield/internal/texel"
	"github.com/gogpu/slicefield/render"
)

// cubeDesc packs three 32x32 slices into a single 32x32 texel group.
var cubeDesc = slicefield.Descriptor{
	Width:       32,
	Height:      32,
	Depth:       32,
	Resolution:  1,
	SliceCount:  3,
	MaxDistance: 16,
}

var cubeBounds = Bounds{Width: 32, Height: 32, Depth: 32}

func newAlloc() *render.SoftwareAllocator {
	return render.NewSoftwareAllocator(render.SoftwareConfig{BudgetMB: 16})
}

// sample decodes channel ch of atlas pixel (x, y).
func sample(t *testing.T, tex render.Texture, x, y, ch int, maxDist float64) float64 {
	t.Helper()
	buf := make([]byte, tex.Width()*tex.Height()*texel.Size)
	require.NoError(t, tex.ReadPixels(buf))
	return texel.Decode(texel.Get(buf, texel.Offset(tex.Width(), x, y, ch)), maxDist)
}

func TestNew_Errors(t *testing.T) {
	alloc := newAlloc()
	field, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer field.Dispose()

	scene, err := Scene("sphere", cubeBounds)
	require.NoError(t, err)

	_, err = New(nil, field, scene)
	assert.ErrorIs(t, err, slicefield.ErrNilAllocator)
	_, err = New(alloc, nil, scene)
	assert.ErrorIs(t, err, ErrNilField)
	_, err = New(alloc, field, nil)
	assert.ErrorIs(t, err, ErrNilScene)
	_, err = NewDynamic(alloc, nil, scene, nil)
	assert.ErrorIs(t, err, ErrNilField)
}

func TestBaker_StepBudget(t *testing.T) {
	alloc := newAlloc()
	field, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer field.Dispose()

	scene, err := Scene("sphere", cubeBounds)
	require.NoError(t, err)
	b, err := New(alloc, field, scene)
	require.NoError(t, err)

	n, err := b.Step(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, field.InvalidCount())
	assert.False(t, field.IsFullyGenerated())

	n, err = b.Step(2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, field.IsFullyGenerated())

	n, err = b.Step(2)
	require.NoError(t, err)
	assert.Zero(t, n)

	st := b.Stats()
	assert.Equal(t, 3, st.Baked)
	assert.Equal(t, 2, st.Steps)
	assert.Equal(t, 1, st.Clears)
}

func TestBaker_Distances(t *testing.T) {
	alloc := newAlloc()
	field, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer field.Dispose()

	scene, err := Scene("sphere", cubeBounds)
	require.NoError(t, err)
	b, err := New(alloc, field, scene)
	require.NoError(t, err)

	// One slice per step: each upload must keep the sibling channels.
	for range 3 {
		_, err := b.Step(1)
		require.NoError(t, err)
	}
	require.True(t, field.IsFullyGenerated())

	r := 0.35 * 32
	for ch := range 3 {
		z := field.Layout().SliceDepth(ch)
		want := math.Sqrt(0.5+(z-16)*(z-16)) - r
		got := sample(t, field.Texture(), 15, 15, ch, cubeDesc.MaxDistance)
		assert.InDelta(t, want, got, 0.05, "slice %d center", ch)
	}

	// The corner is outside the sphere.
	corner := sample(t, field.Texture(), 0, 0, 1, cubeDesc.MaxDistance)
	assert.InDelta(t, math.Sqrt(2)*15.5-r, corner, 0.05)
}

func TestBaker_DeviceLostRebakes(t *testing.T) {
	alloc := newAlloc()
	field, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer field.Dispose()

	scene, err := Scene("pillars", cubeBounds)
	require.NoError(t, err)
	b, err := New(alloc, field, scene)
	require.NoError(t, err)
	require.NoError(t, b.Run())
	require.True(t, field.IsFullyGenerated())

	alloc.NotifyDeviceLost()
	require.False(t, field.IsFullyGenerated())

	n, err := b.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, field.IsFullyGenerated())
	assert.Equal(t, 2, b.Stats().Clears)
}

func TestBaker_SaveAfterBake(t *testing.T) {
	alloc := newAlloc()
	src, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer src.Dispose()

	scene, err := Scene("room", cubeBounds)
	require.NoError(t, err)
	b, err := New(alloc, src, scene)
	require.NoError(t, err)
	require.NoError(t, b.Run())

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf))
	assert.Equal(t, src.Layout().ByteSize(), buf.Len())

	dst, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer dst.Dispose()
	require.NoError(t, dst.Load(&buf))

	assert.Equal(t,
		sample(t, src.Texture(), 3, 17, 2, cubeDesc.MaxDistance),
		sample(t, dst.Texture(), 3, 17, 2, cubeDesc.MaxDistance))
}

func TestBaker_Dynamic(t *testing.T) {
	alloc := newAlloc()
	field, err := slicefield.NewDynamic(alloc, cubeDesc)
	require.NoError(t, err)
	defer field.Dispose()

	static, err := Scene("sphere", cubeBounds)
	require.NoError(t, err)
	box, err := sdf.Box3D(v3.Vec{X: 4, Y: 4, Z: 32}, 0)
	require.NoError(t, err)
	dynamic := sdf.Transform3D(box, sdf.Translate3d(v3.Vec{X: 4, Y: 4, Z: 16}))

	b, err := NewDynamic(alloc, field, static, dynamic)
	require.NoError(t, err)
	require.NoError(t, b.Run())

	assert.True(t, field.IsFullyGenerated())
	assert.Equal(t, 3, field.Watermark(slicefield.LayerDynamic))

	// (3, 3) lies inside the box and outside the sphere.
	s := sample(t, field.Texture(slicefield.LayerStatic), 3, 3, 1, cubeDesc.MaxDistance)
	d := sample(t, field.Texture(slicefield.LayerDynamic), 3, 3, 1, cubeDesc.MaxDistance)
	assert.Positive(t, s)
	assert.Negative(t, d)

	// Only the dynamic layer is rebaked after a dynamic invalidation.
	field.InvalidateAll(false)
	n, err := b.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 9, b.Stats().Baked)
	assert.Equal(t, 0, field.InvalidCount(slicefield.LayerBoth))
}

func TestBaker_KeepsLoadedSiblings(t *testing.T) {
	alloc := newAlloc()
	src, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer src.Dispose()

	sphere, err := Scene("sphere", cubeBounds)
	require.NoError(t, err)
	sb, err := New(alloc, src, sphere)
	require.NoError(t, err)
	require.NoError(t, sb.Run())

	var dump bytes.Buffer
	require.NoError(t, src.Save(&dump))
	want := sample(t, src.Texture(), 16, 16, 1, cubeDesc.MaxDistance)
	require.NotZero(t, want)

	dst, err := slicefield.New(alloc, cubeDesc)
	require.NoError(t, err)
	defer dst.Dispose()

	pillars, err := Scene("pillars", cubeBounds)
	require.NoError(t, err)
	b, err := New(alloc, dst, pillars)
	require.NoError(t, err)

	// The baker was built before the atlas was loaded.
	require.NoError(t, dst.Load(&dump))
	assert.Equal(t, uint64(1), dst.Revision())
	dst.InvalidateAll()

	n, err := b.Step(1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.Equal(t, want, sample(t, dst.Texture(), 16, 16, 1, cubeDesc.MaxDistance),
		"slice 1 must keep the loaded distance after slice 0 is rebaked")
	assert.Equal(t, 1, b.Stats().Baked)
}
