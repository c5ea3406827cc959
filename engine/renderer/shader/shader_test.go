package shader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/naga/hlsl"
)

const validVertexSource = `
@vertex
fn main() -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

const fragmentSource = `
@fragment
fn fs_main(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

func TestParseShaderType(t *testing.T) {
	tests := []struct {
		in      string
		want    ShaderType
		wantErr bool
	}{
		{in: "vertex", want: ShaderTypeVertex},
		{in: "VS", want: ShaderTypeVertex},
		{in: "fragment", want: ShaderTypeFragment},
		{in: " ps ", want: ShaderTypeFragment},
		{in: "pixel", want: ShaderTypeFragment},
		{in: "compute", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseShaderType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseShaderType(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseShaderType(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseShaderType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "effect.wgsl")
	if err := os.WriteFile(path, []byte(validVertexSource), 0o644); err != nil {
		t.Fatal(err)
	}
	blank := filepath.Join(dir, "blank.wgsl")
	if err := os.WriteFile(blank, []byte("  \n\t"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("file", func(t *testing.T) {
		got, err := LoadSource(path)
		if err != nil {
			t.Fatalf("LoadSource() error = %v", err)
		}
		if got != validVertexSource {
			t.Errorf("LoadSource() returned unexpected contents:\n%s", got)
		}
	})

	t.Run("inline", func(t *testing.T) {
		got, err := LoadSource(validVertexSource)
		if err != nil {
			t.Fatalf("LoadSource() error = %v", err)
		}
		if got != validVertexSource {
			t.Error("inline source should be returned unchanged")
		}
	})

	t.Run("empty identifier", func(t *testing.T) {
		if _, err := LoadSource("   "); !errors.Is(err, ErrEmptySource) {
			t.Errorf("LoadSource() error = %v, want ErrEmptySource", err)
		}
	})

	t.Run("blank file", func(t *testing.T) {
		if _, err := LoadSource(blank); !errors.Is(err, ErrEmptySource) {
			t.Errorf("LoadSource() error = %v, want ErrEmptySource", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSource(filepath.Join(dir, "missing.wgsl"))
		if err == nil || !errors.Is(err, os.ErrNotExist) {
			t.Errorf("LoadSource() error = %v, want os.ErrNotExist", err)
		}
	})
}

func TestPreProcessorInclude(t *testing.T) {
	src := strings.Join([]string{
		"// @oxy:include fullscreen_triangle",
		"// @oxy:include fullscreen_triangle",
		"// a regular comment",
		"@vertex fn main() {}",
	}, "\n")

	pp := NewPreProcessor()
	out, err := pp.Process(src)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := strings.Count(out, "fn fullscreen_position"); n != 1 {
		t.Errorf("snippet injected %d times, want 1", n)
	}
	if !strings.Contains(out, "// a regular comment") {
		t.Error("regular comments should be preserved")
	}
	if got := len(pp.Declarations()); got != 2 {
		t.Errorf("len(Declarations()) = %d, want 2", got)
	}
	if pp.RootConstantsVar() != "" {
		t.Errorf("RootConstantsVar() = %q, want empty", pp.RootConstantsVar())
	}
}

func TestPreProcessorRootConstants(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("// @oxy:root_constants fx\n@fragment fn main() {}")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !strings.Contains(out, "struct EffectUniforms") {
		t.Error("root_constants should inject the EffectUniforms struct")
	}
	if !strings.Contains(out, "@group(0) @binding(0) var<uniform> fx: EffectUniforms;") {
		t.Errorf("missing root constant declaration in:\n%s", out)
	}
	if got := pp.RootConstantsVar(); got != "fx" {
		t.Errorf("RootConstantsVar() = %q, want fx", got)
	}

	// a second Process call resets the declarations
	if _, err := pp.Process("@fragment fn main() {}"); err != nil {
		t.Fatal(err)
	}
	if got := pp.RootConstantsVar(); got != "" {
		t.Errorf("RootConstantsVar() after reset = %q, want empty", got)
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := map[string]string{
		"unknown snippet":    "// @oxy:include camera",
		"missing argument":   "// @oxy:include",
		"unknown annotation": "// @oxy:group 0 0 uniform fx",
		"empty annotation":   "// @oxy:",
		"bad identifier":     "// @oxy:root_constants 9fx",
		"duplicate root":     "// @oxy:root_constants a\n// @oxy:root_constants b",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewPreProcessor().Process(src); err == nil {
				t.Errorf("Process(%q) expected error", src)
			}
		})
	}
}

func TestCompileVertex(t *testing.T) {
	b, err := NewCompiler().Compile("test_vs", ShaderTypeVertex, validVertexSource)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if b.Empty() {
		t.Fatal("binary should not be empty")
	}
	if !b.ValidSPIRV() {
		t.Error("binary does not start with the SPIR-V magic number")
	}
	if b.EntryPoint != "main" {
		t.Errorf("EntryPoint = %q, want main", b.EntryPoint)
	}
	if b.Stage != ShaderTypeVertex || b.Key != "test_vs" {
		t.Errorf("unexpected binary metadata: %+v", b)
	}
}

func TestCompileFragmentWithoutValidation(t *testing.T) {
	b, err := NewCompiler(WithValidation(false)).Compile("test_ps", ShaderTypeFragment, fragmentSource)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if b.EntryPoint != "fs_main" {
		t.Errorf("EntryPoint = %q, want fs_main", b.EntryPoint)
	}
	if !b.ValidSPIRV() {
		t.Error("binary does not start with the SPIR-V magic number")
	}
}

func TestCompileFailures(t *testing.T) {
	c := NewCompiler()
	tests := []struct {
		name    string
		stage   ShaderType
		source  string
		wantErr error
	}{
		{name: "empty", stage: ShaderTypeVertex, source: " \n", wantErr: ErrEmptySource},
		{name: "syntax", stage: ShaderTypeVertex, source: "@vertex\nfn main( {\n}", wantErr: ErrCompile},
		{name: "wrong stage", stage: ShaderTypeFragment, source: validVertexSource, wantErr: ErrCompile},
		{name: "bad annotation", stage: ShaderTypeVertex, source: "// @oxy:include nope\n" + validVertexSource, wantErr: ErrCompile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.Compile(tt.name, tt.stage, tt.source)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() error = %v, want %v", err, tt.wantErr)
			}
			if !b.Empty() {
				t.Error("failed compile must return an empty binary")
			}
		})
	}
}

func TestCompileRecordsRootConstants(t *testing.T) {
	src := `
// @oxy:root_constants fx
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(fx.time, 0.0, 0.0, 1.0);
}
`
	b, err := NewCompiler(WithValidation(false)).Compile("rc", ShaderTypeFragment, src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if b.RootConstantsVar != "fx" {
		t.Errorf("RootConstantsVar = %q, want fx", b.RootConstantsVar)
	}
	if strings.Contains(b.Source, "@oxy:") {
		t.Error("processed source should not contain annotations")
	}
}

func TestBinaryHLSL(t *testing.T) {
	b, err := NewCompiler().Compile("hlsl_vs", ShaderTypeVertex, validVertexSource)
	if err != nil {
		t.Fatal(err)
	}
	code, err := b.HLSL(hlsl.ShaderModel5_1)
	if err != nil {
		t.Fatalf("HLSL() error = %v", err)
	}
	if strings.TrimSpace(code) == "" {
		t.Error("HLSL() returned empty code")
	}

	if _, err := (Binary{Key: "empty"}).HLSL(hlsl.ShaderModel5_1); !errors.Is(err, ErrEmptySource) {
		t.Errorf("HLSL() on empty binary error = %v, want ErrEmptySource", err)
	}
}
