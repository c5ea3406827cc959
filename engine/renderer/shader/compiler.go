package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// nagaCompiler is the naga-backed implementation of the Compiler interface.
type nagaCompiler struct {
	validate     bool
	debug        bool
	spirvVersion spirv.Version
}

// Compiler turns WGSL source text into a Binary for one pipeline stage.
// Implementations must be safe for concurrent use so both stages of an effect can
// compile in parallel.
type Compiler interface {
	// Compile pre-processes and compiles source for the given stage.
	// All failures are wrapped with ErrCompile (or ErrEmptySource for empty input).
	//
	// Parameters:
	//   - key: a label for the shader used in errors and GPU object labels
	//   - stage: the stage whose entry point must exist in the source
	//   - source: the raw WGSL source text (may contain @oxy: annotations)
	//
	// Returns:
	//   - Binary: the compiled shader stage
	//   - error: an error if pre-processing, parsing, lowering, validation or code generation fails
	Compile(key string, stage ShaderType, source string) (Binary, error)
}

var _ Compiler = &nagaCompiler{}

// NewCompiler creates a Compiler backed by the pure Go naga shader compiler.
// Validation is enabled and SPIR-V 1.3 is targeted unless overridden by options.
//
// Parameters:
//   - opts: a variadic list of CompilerBuilderOption functions
//
// Returns:
//   - Compiler: the configured compiler
func NewCompiler(opts ...CompilerBuilderOption) Compiler {
	defaults := naga.DefaultOptions()
	c := &nagaCompiler{
		validate:     defaults.Validate,
		debug:        defaults.Debug,
		spirvVersion: defaults.SPIRVVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *nagaCompiler) Compile(key string, stage ShaderType, source string) (Binary, error) {
	if strings.TrimSpace(source) == "" {
		return Binary{}, fmt.Errorf("shader: %s: %w", key, ErrEmptySource)
	}

	pp := NewPreProcessor()
	processed, err := pp.Process(source)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %s: pre-process: %w", ErrCompile, key, err)
	}

	ast, err := naga.Parse(processed)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
	}
	module, err := naga.LowerWithSource(ast, processed)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %s: lowering: %w", ErrCompile, key, err)
	}

	entryPoint, err := findEntryPoint(module, stage)
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
	}

	if c.validate {
		issues, err := naga.Validate(module)
		if err != nil {
			return Binary{}, fmt.Errorf("%w: %s: validation: %w", ErrCompile, key, err)
		}
		if len(issues) > 0 {
			return Binary{}, fmt.Errorf("%w: %s: validation: %w", ErrCompile, key, &issues[0])
		}
	}

	code, err := naga.GenerateSPIRV(module, spirv.Options{
		Version: c.spirvVersion,
		Debug:   c.debug,
	})
	if err != nil {
		return Binary{}, fmt.Errorf("%w: %s: %w", ErrCompile, key, err)
	}

	return Binary{
		Key:              key,
		Stage:            stage,
		EntryPoint:       entryPoint,
		Source:           processed,
		SPIRV:            code,
		RootConstantsVar: pp.RootConstantsVar(),
	}, nil
}

// findEntryPoint returns the name of the first entry point in module matching stage.
func findEntryPoint(module *ir.Module, stage ShaderType) (string, error) {
	want := ir.StageVertex
	if stage == ShaderTypeFragment {
		want = ir.StageFragment
	}
	for _, ep := range module.EntryPoints {
		if ep.Stage == want {
			return ep.Name, nil
		}
	}
	return "", fmt.Errorf("no @%s entry point found", stage)
}
