package bake

import (
	"fmt"
	"math"
	"slices"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Bounds is the virtual extent of a field, used to size built-in scenes.
type Bounds struct {
	Width, Height, Depth float64
}

// sceneFunc builds a scene inside b.
type sceneFunc func(b Bounds) (sdf.SDF3, error)

var scenes = map[string]sceneFunc{
	"sphere":  sphereScene,
	"pillars": pillarsScene,
	"room":    roomScene,
}

// SceneNames returns the names of the built-in scenes in sorted order.
func SceneNames() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Scene builds the named built-in scene sized to b.
func Scene(name string, b Bounds) (sdf.SDF3, error) {
	fn, ok := scenes[name]
	if !ok {
		return nil, fmt.Errorf("bake: unknown scene %q (have %v)", name, SceneNames())
	}
	if b.Width <= 0 || b.Height <= 0 || b.Depth <= 0 {
		return nil, fmt.Errorf("bake: scene %q needs positive bounds, got %+v", name, b)
	}
	s, err := fn(b)
	if err != nil {
		return nil, fmt.Errorf("bake: build scene %q: %w", name, err)
	}
	return s, nil
}

func (b Bounds) center() v3.Vec {
	return v3.Vec{X: b.Width / 2, Y: b.Height / 2, Z: b.Depth / 2}
}

func translate(s sdf.SDF3, at v3.Vec) sdf.SDF3 {
	return sdf.Transform3D(s, sdf.Translate3d(at))
}

// sphereScene is a single sphere in the middle of the volume.
func sphereScene(b Bounds) (sdf.SDF3, error) {
	r := 0.35 * math.Min(b.Width, math.Min(b.Height, b.Depth))
	s, err := sdf.Sphere3D(r)
	if err != nil {
		return nil, err
	}
	return translate(s, b.center()), nil
}

// pillarsScene is four full-height cylinders at the quarter points.
func pillarsScene(b Bounds) (sdf.SDF3, error) {
	r := 0.08 * math.Min(b.Width, b.Height)
	var out sdf.SDF3
	for _, q := range [][2]float64{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}, {0.75, 0.75}} {
		c, err := sdf.Cylinder3D(b.Depth, r, 0)
		if err != nil {
			return nil, err
		}
		c = translate(c, v3.Vec{X: q[0] * b.Width, Y: q[1] * b.Height, Z: b.Depth / 2})
		if out == nil {
			out = c
		} else {
			out = sdf.Union3D(out, c)
		}
	}
	return out, nil
}

// roomScene is a hollow box with walls of 5% of the smaller side and a
// central pillar.
func roomScene(b Bounds) (sdf.SDF3, error) {
	wall := 0.05 * math.Min(b.Width, b.Height)
	outer, err := sdf.Box3D(v3.Vec{X: b.Width, Y: b.Height, Z: b.Depth}, 0)
	if err != nil {
		return nil, err
	}
	// The inner box is taller than the room so the walls are open at both ends.
	inner, err := sdf.Box3D(v3.Vec{X: b.Width - 2*wall, Y: b.Height - 2*wall, Z: b.Depth * 2}, 0)
	if err != nil {
		return nil, err
	}
	walls := translate(sdf.Difference3D(outer, inner), b.center())

	pillar, err := sdf.Box3D(v3.Vec{X: 4 * wall, Y: 4 * wall, Z: b.Depth}, 0)
	if err != nil {
		return nil, err
	}
	return sdf.Union3D(walls, translate(pillar, b.center())), nil
}
