package shader

import (
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
)

// spirvMagic is the first word of every SPIR-V module (little-endian).
const spirvMagic uint32 = 0x07230203

// Binary is a compiled shader stage. It carries both the pre-processed WGSL, which the
// wgpu backend can consume directly, and the SPIR-V produced from it.
// A Binary is immutable once returned by a Compiler.
type Binary struct {
	// Key identifies the shader for labels and logs.
	Key string
	// Stage is the pipeline stage the binary was compiled for.
	Stage ShaderType
	// EntryPoint is the name of the entry point function for Stage.
	EntryPoint string
	// Source is the pre-processed WGSL source the binary was compiled from.
	Source string
	// SPIRV is the compiled SPIR-V module.
	SPIRV []byte
	// RootConstantsVar is the root-constant variable declared via @oxy:root_constants, if any.
	RootConstantsVar string
}

// Empty reports whether the binary holds no compiled code.
//
// Returns:
//   - bool: true if the binary is the zero value or has no SPIR-V output
func (b Binary) Empty() bool {
	return len(b.SPIRV) == 0
}

// ValidSPIRV reports whether the SPIR-V payload is word-aligned and starts with the SPIR-V magic number.
//
// Returns:
//   - bool: true if the payload looks like a SPIR-V module
func (b Binary) ValidSPIRV() bool {
	if len(b.SPIRV) < 20 || len(b.SPIRV)%4 != 0 {
		return false
	}
	magic := uint32(b.SPIRV[0]) | uint32(b.SPIRV[1])<<8 | uint32(b.SPIRV[2])<<16 | uint32(b.SPIRV[3])<<24
	return magic == spirvMagic
}

// HLSL translates the binary's WGSL source into HLSL for the requested Direct3D shader model.
// This is used for exporting effects to D3D toolchains; the wgpu backend never needs it.
//
// Parameters:
//   - model: the target shader model (e.g. hlsl.ShaderModel5_1)
//
// Returns:
//   - string: the generated HLSL source
//   - error: an error if the source could not be re-parsed or translated
func (b Binary) HLSL(model hlsl.ShaderModel) (string, error) {
	if b.Source == "" {
		return "", fmt.Errorf("shader: %s: %w", b.Key, ErrEmptySource)
	}
	ast, err := naga.Parse(b.Source)
	if err != nil {
		return "", fmt.Errorf("shader: %s: %w", b.Key, err)
	}
	module, err := naga.LowerWithSource(ast, b.Source)
	if err != nil {
		return "", fmt.Errorf("shader: %s: %w", b.Key, err)
	}

	opts := hlsl.DefaultOptions()
	opts.ShaderModel = model
	opts.EntryPoint = b.EntryPoint
	code, _, err := hlsl.Compile(module, opts)
	if err != nil {
		return "", fmt.Errorf("shader: %s: %w", b.Key, err)
	}
	return code, nil
}
