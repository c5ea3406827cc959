// annotations.go defines the annotation types and parser for the Oxy WGSL shader
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that
// inject shared WGSL snippets and declare the effect's root-constant binding, so effect
// authors never hand-write the layout the renderer's root signature expects.
package shader

import (
	"fmt"
	"slices"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered WGSL snippet at the annotation site.
	//
	// Syntax: // @oxy:include <snippet>
	//
	// Example: // @oxy:include fullscreen_triangle
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeRootConstants declares the effect's root-constant uniform at
	// @group(0) @binding(0) under the given variable name. The EffectUniforms struct is
	// injected first when it has not been included already.
	//
	// Syntax: // @oxy:root_constants <var_name>
	//
	// Example: // @oxy:root_constants fx
	AnnotationTypeRootConstants AnnotationType = "root_constants"
)

// AnnotationArg is a single argument token following the annotation type.
type AnnotationArg string

const (
	// AnnotationArgEffectUniforms names the EffectUniforms struct snippet.
	AnnotationArgEffectUniforms AnnotationArg = "effect_uniforms"

	// AnnotationArgFullscreenTriangle names the full-screen triangle helper snippet.
	AnnotationArgFullscreenTriangle AnnotationArg = "fullscreen_triangle"
)

var validSnippets = []AnnotationArg{
	AnnotationArgEffectUniforms,
	AnnotationArgFullscreenTriangle,
}

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments:
	//   - include:        [0] = snippet name
	//   - root_constants: [0] = WGSL variable name
	Args []AnnotationArg

	// Line is the 1-based source line the annotation was found on.
	Line int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validSnippets, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown snippet %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeRootConstants:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy root_constants annotation requires exactly one argument (variable name)", lineNum)
		}
		if !isIdentifier(args[1]) {
			return nil, fmt.Errorf("line %d: invalid variable name %q in @oxy root_constants annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeRootConstants,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}

// isIdentifier reports whether s is a valid WGSL identifier (ASCII subset).
func isIdentifier(s string) bool {
	if s == "" || s == "_" || strings.HasPrefix(s, "__") {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
