// Command sdfbake bakes a built-in scene into a sliced distance field and
// writes the raw atlas and an optional preview image.
//
// Usage:
//
//	sdfbake -scene room -width 256 -height 256 -depth 64 -slices 30 \
//	    -out room.sdf -preview room.png
//
// With -load, an existing atlas is loaded instead of baked, and only the
// preview is written.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/slicefield"
	"github.com/gogpu/slicefield/bake"
	"github.com/gogpu/slicefield/preview"
	"github.com/gogpu/slicefield/render"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("sdfbake: %v", err)
	}
}

type config struct {
	desc       slicefield.Descriptor
	maxSurface int
	scene      string
	budget     int
	out        string
	load       string
	preview    string
	slice      int
	scale      int
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var c config
	fs := flag.NewFlagSet("sdfbake", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&c.desc.Width, "width", 256, "virtual width")
	fs.IntVar(&c.desc.Height, "height", 256, "virtual height")
	fs.Float64Var(&c.desc.Depth, "depth", 64, "virtual depth")
	fs.Float64Var(&c.desc.Resolution, "resolution", 0.25, "slice pixels per virtual unit")
	fs.IntVar(&c.desc.SliceCount, "slices", 30, "requested slice count")
	fs.Float64Var(&c.desc.MaxDistance, "max-distance", 16, "distance clamp")
	fs.IntVar(&c.maxSurface, "max-surface", 0, "maximum atlas size in pixels (0 = device limit)")
	fs.StringVar(&c.scene, "scene", "room", "scene to bake: "+strings.Join(bake.SceneNames(), ", "))
	fs.IntVar(&c.budget, "budget", 0, "slices per bake step (0 = all at once)")
	fs.StringVar(&c.out, "out", "", "write the raw atlas to this file")
	fs.StringVar(&c.load, "load", "", "load a raw atlas instead of baking")
	fs.StringVar(&c.preview, "preview", "", "write a preview image (.png, .webp or .tga)")
	fs.IntVar(&c.slice, "slice", -1, "preview a single slice instead of the whole atlas")
	fs.IntVar(&c.scale, "scale", 1, "preview upscale factor")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if fs.NArg() > 0 {
		return c, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if c.out == "" && c.preview == "" {
		return c, errors.New("nothing to do: set -out or -preview")
	}
	return c, nil
}

func run(args []string, stderr io.Writer) error {
	c, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	slicefield.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))
	defer slicefield.SetLogger(nil)

	alloc := render.NewSoftwareAllocator(render.SoftwareConfig{})
	defer alloc.Close()

	field, err := slicefield.New(alloc, c.desc,
		slicefield.WithLabel(c.scene),
		slicefield.WithMaxSurfaceSize(c.maxSurface))
	if err != nil {
		return err
	}
	defer field.Dispose()

	if c.load != "" {
		if err := field.LoadFile(c.load); err != nil {
			return err
		}
	} else if err := bakeField(alloc, field, c); err != nil {
		return err
	}

	if c.out != "" {
		if err := field.SaveFile(c.out); err != nil {
			return err
		}
	}
	if c.preview != "" {
		if err := writePreview(alloc, field, c); err != nil {
			return err
		}
	}
	return nil
}

func bakeField(alloc render.Allocator, field *slicefield.Field, c config) error {
	l := field.Layout()
	scene, err := bake.Scene(c.scene, bake.Bounds{
		Width:  float64(l.VirtualWidth),
		Height: float64(l.VirtualHeight),
		Depth:  l.VirtualDepth,
	})
	if err != nil {
		return err
	}
	b, err := bake.New(alloc, field, scene)
	if err != nil {
		return err
	}
	for field.NeedsWork() {
		if _, err := b.Step(c.budget); err != nil {
			return err
		}
	}
	st := b.Stats()
	slicefield.Logger().Info("baked",
		slog.String("layout", l.String()),
		slog.Int("slices", st.Baked),
		slog.Int("steps", st.Steps),
		slog.Duration("elapsed", st.Elapsed))
	return nil
}

func writePreview(alloc render.Allocator, field *slicefield.Field, c config) error {
	pixels, err := preview.ReadAtlas(alloc, field.Texture())
	if err != nil {
		return err
	}
	var img image.Image
	if c.slice >= 0 {
		img, err = preview.SliceImage(pixels, field.Layout(), c.slice)
	} else {
		img, err = preview.AtlasImage(pixels, field.Layout())
	}
	if err != nil {
		return err
	}
	return preview.WriteFile(c.preview, preview.Scale(img, c.scale))
}
