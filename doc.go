// Package slicefield manages sliced volumetric distance fields for GPU
// cone-traced lighting.
//
// # Overview
//
// A coarse 3D signed distance approximation of a scene is stored as a
// stack of 2D cross-sections ("slices"). Three consecutive slices share
// one texel group through the R, G and B channels, and texel groups are
// laid out in a column×row grid inside a single RGBA16Float atlas
// texture. The lighting pass binds the atlas and the packed Extents.
//
// The package does not rasterize anything and does not decide how many
// slices to regenerate per frame. It computes the packing, owns the
// atlas textures and tracks which slices are stale.
//
// # Quick Start
//
//	alloc := render.NewSoftwareAllocator(render.SoftwareConfig{})
//	field, err := slicefield.New(alloc, slicefield.Descriptor{
//	    Width: 256, Height: 256, Depth: 64,
//	    Resolution: 0.25, SliceCount: 32, MaxDistance: 16,
//	})
//	if err != nil {
//	    return err
//	}
//	defer field.Dispose()
//
//	// Each frame, within the renderer's own budget:
//	for i, ok := field.NextInvalid(0); ok && budget > 0; i, ok = field.NextInvalid(i + 1) {
//	    rasterize(field.Layout().SliceRect(i))
//	    field.Validate(i)
//	    field.MarkValid(i)
//	    budget--
//	}
//
// # Validity Tracking
//
// Each atlas has a Ledger holding a dirty set and a watermark. The dirty
// set schedules rasterization; the watermark gates IsFullyGenerated and
// Save. The two may disagree: InvalidateAll refills the dirty set but
// keeps the watermark.
//
// # Static and Dynamic Layers
//
// DynamicField keeps a second atlas for baked geometry. Every validity
// call takes an explicit Layer. A dynamic slice cannot become valid while
// the static slice beneath it is dirty, and the dynamic watermark is
// capped by the static one.
//
// # Persistence
//
// Field.Save and Field.Load move a raw, headerless dump of the atlas
// (Layout.ByteSize bytes). The loader must be built from an equivalent
// Descriptor. DynamicField does not support persistence.
//
// # Device Loss
//
// Fields subscribe to the allocator's device-loss notification. A loss
// resets every ledger and sets NeedsClear; the texture objects are kept.
// Dispose cancels the subscription and releases the textures.
package slicefield
