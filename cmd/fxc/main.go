// Command fxc compiles a full-screen effect shader stage ahead of time.
//
// The input goes through the same @oxy: pre-processor and naga pipeline the effect
// runtime uses, so a shader that compiles here initializes at runtime.
//
// Usage:
//
//	fxc [options] <input.wgsl>
//
// Examples:
//
//	fxc plasma.frag.wgsl                          # Check that the stage compiles
//	fxc -o plasma.spv plasma.frag.wgsl            # Write SPIR-V
//	fxc -hlsl plasma.hlsl -sm 6.0 plasma.frag.wgsl # Export HLSL for a D3D toolchain
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
	"github.com/gogpu/naga/hlsl"
)

var (
	stageName = flag.String("stage", "", "shader stage: vertex or fragment (default: inferred from .vert/.frag in the file name)")
	output    = flag.String("o", "", "SPIR-V output file")
	hlslOut   = flag.String("hlsl", "", "HLSL output file")
	model     = flag.String("sm", "5.1", "HLSL shader model, 5.0 through 6.7")
	debug     = flag.Bool("debug", false, "include debug info in SPIR-V")
	validate  = flag.Bool("validate", true, "validate IR")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	inputPath := args[0]

	stage, err := resolveStage(*stageName, inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sm, err := parseShaderModel(*model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	source, err := shader.LoadSource(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	compiler := shader.NewCompiler(shader.WithValidation(*validate), shader.WithDebugInfo(*debug))
	key := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	bin, err := compiler.Compile(key, stage, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, bin.SPIRV, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Compiled %s stage %s (%s) to %s (%d bytes)\n", stage, inputPath, bin.EntryPoint, *output, len(bin.SPIRV))
	}

	if *hlslOut != "" {
		code, err := bin.HLSL(sm)
		if err != nil {
			fmt.Fprintf(os.Stderr, "HLSL error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*hlslOut, []byte(code), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %s to %s (%s)\n", inputPath, *hlslOut, sm)
	}

	if *output == "" && *hlslOut == "" {
		fmt.Printf("%s: %s stage OK, entry point %s, %d bytes of SPIR-V\n", inputPath, stage, bin.EntryPoint, len(bin.SPIRV))
	}
}

// resolveStage returns the stage named by flag, or infers it from a .vert/.frag (or .vs/.ps) name segment.
func resolveStage(flagValue, path string) (shader.ShaderType, error) {
	if flagValue != "" {
		return shader.ParseShaderType(flagValue)
	}
	for _, part := range strings.Split(strings.ToLower(filepath.Base(path)), ".") {
		if st, err := shader.ParseShaderType(part); err == nil {
			return st, nil
		}
	}
	return 0, fmt.Errorf("cannot infer the stage of %q, pass -stage", path)
}

// parseShaderModel maps "5.1" or "6_0" style names to an hlsl.ShaderModel.
func parseShaderModel(name string) (hlsl.ShaderModel, error) {
	want := strings.ReplaceAll(strings.TrimSpace(name), ".", "_")
	for sm := hlsl.ShaderModel5_0; sm <= hlsl.ShaderModel6_7; sm++ {
		if sm.ProfileSuffix() == want {
			return sm, nil
		}
	}
	return 0, fmt.Errorf("unknown shader model %q", name)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fxc [options] <input.wgsl>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  fxc plasma.frag.wgsl                           Check a stage compiles\n")
	fmt.Fprintf(os.Stderr, "  fxc -o plasma.spv plasma.frag.wgsl             Compile to SPIR-V\n")
	fmt.Fprintf(os.Stderr, "  fxc -hlsl plasma.hlsl -sm 6.0 plasma.frag.wgsl Export HLSL\n")
}
