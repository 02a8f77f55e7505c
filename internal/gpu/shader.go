package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/triangle.wgsl
var triangleShaderSource string

// ShaderSource is the scene shader fed to pipeline creation.
// An empty WGSL uses the built-in triangle.
type ShaderSource struct {
	Label string
	WGSL  string
	// SPIRV compiles WGSL to SPIR-V with naga before handing it to the
	// device, instead of letting the backend translate it.
	SPIRV bool
}

func (s ShaderSource) withDefaults() ShaderSource {
	if s.WGSL == "" {
		s.WGSL = triangleShaderSource
	}
	if s.Label == "" {
		s.Label = "scene"
	}
	return s
}

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// createShaderModule builds a shader module from src.
func createShaderModule(device hal.Device, src ShaderSource) (hal.ShaderModule, error) {
	desc := &hal.ShaderModuleDescriptor{Label: src.Label + "_shader"}
	if src.SPIRV {
		code, err := compileSPIRV(src.WGSL)
		if err != nil {
			return nil, err
		}
		desc.Source = hal.ShaderSource{SPIRV: code}
	} else {
		desc.Source = hal.ShaderSource{WGSL: src.WGSL}
	}

	module, err := device.CreateShaderModule(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", src.Label, err)
	}
	return module, nil
}
