package effect

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
)

// EffectBuilderOption is a functional option used to configure a FullscreenEffect during construction.
type EffectBuilderOption func(*FullscreenEffect)

// WithLabel sets the label used for the effect's GPU objects, shader keys and log lines.
//
// Parameters:
//   - label: the effect label
//
// Returns:
//   - EffectBuilderOption: a function that sets the label
func WithLabel(label string) EffectBuilderOption {
	return func(e *FullscreenEffect) {
		e.label = label
	}
}

// WithCompiler sets the compiler used for both shader stages.
// When not specified a shared naga compiler with validation enabled is used.
//
// Parameters:
//   - c: the shader.Compiler to use
//
// Returns:
//   - EffectBuilderOption: a function that sets the compiler
func WithCompiler(c shader.Compiler) EffectBuilderOption {
	return func(e *FullscreenEffect) {
		e.compiler = c
	}
}

// WithPipelineOptions sets the fixed-function options applied to the pipeline description on every Init.
//
// Parameters:
//   - opts: pipeline builder options, e.g. pipeline.WithAdditiveBlend()
//
// Returns:
//   - EffectBuilderOption: a function that sets the pipeline options
func WithPipelineOptions(opts ...pipeline.PipelineBuilderOption) EffectBuilderOption {
	return func(e *FullscreenEffect) {
		e.pipelineOpts = append(e.pipelineOpts, opts...)
	}
}

// WithCompilePool sets the worker pool the two shader stages compile on.
// When not specified a package-wide pool with two workers is used.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - EffectBuilderOption: a function that sets the compile pool
func WithCompilePool(pool worker.DynamicWorkerPool) EffectBuilderOption {
	return func(e *FullscreenEffect) {
		e.pool = pool
	}
}
