// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with registered WGSL snippets or a
// generated root-constant declaration, and records what it did so callers can check
// that an effect actually binds the root constants the renderer supplies.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/root_constants"
)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// snippetRegistry maps include argument keys to their embedded WGSL source.
	snippetRegistry map[AnnotationArg]string

	// declarations accumulates every annotation seen during a Process call.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
// A PreProcessor is not safe for concurrent use; create one per compilation.
type PreProcessor interface {
	// Process replaces @oxy: annotations with their WGSL output. Each snippet is
	// injected at most once; repeated includes produce no output.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: an error if any annotation is malformed
	Process(source string) (string, error)

	// Declarations returns the annotations collected during the most recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the annotations collected during the last Process call
	Declarations() []Annotation

	// RootConstantsVar returns the variable name declared by a root_constants annotation
	// during the last Process call, or "" if none was declared.
	//
	// Returns:
	//   - string: the root-constant variable name
	RootConstantsVar() string
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the built-in snippet registry.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippetRegistry: map[AnnotationArg]string{
			AnnotationArgEffectUniforms:     root_constants.GPUEffectUniformsSource,
			AnnotationArgFullscreenTriangle: root_constants.GPUFullscreenTriangleSource,
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			if !included[a.Args[0]] {
				out = append(out, p.snippetRegistry[a.Args[0]])
				included[a.Args[0]] = true
			}
		case AnnotationTypeRootConstants:
			if p.RootConstantsVar() != "" {
				return "", fmt.Errorf("line %d: root constants already declared as %q", i+1, p.RootConstantsVar())
			}
			if !included[AnnotationArgEffectUniforms] {
				out = append(out, p.snippetRegistry[AnnotationArgEffectUniforms])
				included[AnnotationArgEffectUniforms] = true
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: EffectUniforms;",
				root_constants.BindGroup, root_constants.Binding, a.Args[0]))
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
		p.declarations = append(p.declarations, *a)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) RootConstantsVar() string {
	for _, d := range p.declarations {
		if d.Type == AnnotationTypeRootConstants {
			return string(d.Args[0])
		}
	}
	return ""
}
