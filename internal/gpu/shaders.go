//go:build !nogpu

package gpu

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

// fieldSampleShaderSource samples a sliced distance field atlas. It
// declares the DistanceFieldExtents uniform matching slicefield.Extents.
//
//go:embed shaders/field_sample.wgsl
var fieldSampleShaderSource string

// FieldSampleEntryPoint is the compute entry point that writes a
// cross-section of the field at a given depth.
const FieldSampleEntryPoint = "cs_cross_section"

// FieldSampleShaderSource returns the WGSL source of the sampling shader.
func FieldSampleShaderSource() string {
	return fieldSampleShaderSource
}

// CompileFieldSampleShader compiles the sampling shader to SPIR-V words.
func CompileFieldSampleShader() ([]uint32, error) {
	if fieldSampleShaderSource == "" {
		return nil, errors.New("gpu: field sample shader source is empty")
	}
	return compileToSPIRV(fieldSampleShaderSource)
}

// CreateFieldSampleModule compiles the sampling shader and creates a
// shader module on device.
func CreateFieldSampleModule(device hal.Device) (hal.ShaderModule, error) {
	spirv, err := CompileFieldSampleShader()
	if err != nil {
		return nil, err
	}
	module, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "field_sample",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create field sample module: %w", err)
	}
	return module, nil
}

// compileToSPIRV compiles WGSL with naga and converts the little-endian
// byte stream to SPIR-V words.
func compileToSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("gpu: compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("gpu: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
