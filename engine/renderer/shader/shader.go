package shader

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ShaderType identifies the pipeline stage a shader is compiled for.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type. Full-screen effects generate their
	// triangle from @builtin(vertex_index) in this stage.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment (pixel) shader type, run once per covered pixel.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// ParseShaderType converts a stage name ("vertex"/"vs", "fragment"/"ps"/"fs") into a ShaderType.
//
// Parameters:
//   - name: the stage name, case-insensitive
//
// Returns:
//   - ShaderType: the parsed stage
//   - error: an error if the name is not a known stage
func ParseShaderType(name string) (ShaderType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vertex", "vs", "vert":
		return ShaderTypeVertex, nil
	case "fragment", "frag", "fs", "pixel", "ps":
		return ShaderTypeFragment, nil
	default:
		return 0, fmt.Errorf("shader: unknown stage %q", name)
	}
}

var (
	// ErrEmptySource is returned when a shader source identifier or its contents are empty.
	ErrEmptySource = errors.New("shader: empty source")

	// ErrCompile wraps every failure reported by a Compiler.
	ErrCompile = errors.New("shader: compilation failed")
)

// IsInlineSource reports whether the identifier should be treated as WGSL text rather than a file path.
// Anything containing a newline, a brace or a semicolon cannot be a sensible path.
//
// Parameters:
//   - identifier: a file path or WGSL source text
//
// Returns:
//   - bool: true if the identifier is inline WGSL source
func IsInlineSource(identifier string) bool {
	return strings.ContainsAny(identifier, "\n{};")
}

// LoadSource resolves a shader source identifier into WGSL text. The identifier is either
// a path to an existing WGSL file or the WGSL source itself (see IsInlineSource).
//
// Parameters:
//   - identifier: a file path or WGSL source text
//
// Returns:
//   - string: the WGSL source text
//   - error: ErrEmptySource for empty identifiers or files, or a read error
func LoadSource(identifier string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", ErrEmptySource
	}
	if IsInlineSource(identifier) {
		return identifier, nil
	}

	data, err := os.ReadFile(identifier)
	if err != nil {
		return "", fmt.Errorf("shader: failed to read source file %q: %w", identifier, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("shader: source file %q: %w", identifier, ErrEmptySource)
	}
	return string(data), nil
}
