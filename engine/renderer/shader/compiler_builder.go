package shader

import "github.com/gogpu/naga/spirv"

// CompilerBuilderOption is a functional option used to configure a Compiler during construction.
type CompilerBuilderOption func(*nagaCompiler)

// WithValidation toggles IR validation before SPIR-V generation.
//
// Parameters:
//   - enabled: true to validate the lowered IR (default), false to skip validation
//
// Returns:
//   - CompilerBuilderOption: a function that sets the validation flag
func WithValidation(enabled bool) CompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.validate = enabled
	}
}

// WithDebugInfo toggles emission of SPIR-V debug instructions (OpName, OpLine).
//
// Parameters:
//   - enabled: true to include debug info
//
// Returns:
//   - CompilerBuilderOption: a function that sets the debug flag
func WithDebugInfo(enabled bool) CompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.debug = enabled
	}
}

// WithSPIRVVersion sets the SPIR-V version targeted by code generation.
//
// Parameters:
//   - v: the SPIR-V version (e.g. spirv.Version1_3)
//
// Returns:
//   - CompilerBuilderOption: a function that sets the target version
func WithSPIRVVersion(v spirv.Version) CompilerBuilderOption {
	return func(c *nagaCompiler) {
		c.spirvVersion = v
	}
}
