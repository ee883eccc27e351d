//go:build !nogpu

// Package gpu provides the hardware render.Allocator for slicefield.
//
// The allocator borrows the device of a host application instead of
// creating its own:
//
//	alloc, err := gpu.NewAllocator(app.DeviceProvider())
//	if err != nil {
//	    return err
//	}
//	field, err := slicefield.New(alloc, desc)
//
// The provider should be a gpucontext.DeviceProvider that also implements
// HalDevice() and HalQueue() for direct HAL access. Build with the nogpu
// tag to exclude this package and its wgpu dependency.
package gpu

import (
	"log/slog"

	"github.com/gogpu/slicefield"
	gpuimpl "github.com/gogpu/slicefield/internal/gpu"
)

// Allocator is a render.Allocator backed by a wgpu/hal device.
type Allocator = gpuimpl.HALAllocator

// Config configures NewAllocator.
type Config = gpuimpl.Config

// ErrNoHALProvider is returned when the provider does not expose HAL types.
var ErrNoHALProvider = gpuimpl.ErrNoHALProvider

// NewAllocator creates an allocator on the shared device of provider. An
// optional Config overrides the device limits.
func NewAllocator(provider any, cfg ...Config) (*Allocator, error) {
	var c Config
	if len(cfg) > 0 {
		c = cfg[0]
	}
	gpuimpl.SetLogger(slicefield.Logger())
	a, err := gpuimpl.NewHALAllocator(provider, c)
	if err != nil {
		slicefield.Logger().Warn("gpu: allocator not available", slog.Any("err", err))
		return nil, err
	}
	return a, nil
}

// SampleShaderSource returns the WGSL source of the distance field
// sampling shader, for inclusion in a host lighting pipeline.
func SampleShaderSource() string {
	return gpuimpl.FieldSampleShaderSource()
}

// CompileSampleShader compiles the sampling shader to SPIR-V words.
func CompileSampleShader() ([]uint32, error) {
	return gpuimpl.CompileFieldSampleShader()
}
