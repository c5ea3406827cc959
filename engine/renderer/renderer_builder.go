package renderer

import "github.com/cogentcore/webgpu/wgpu"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count for the renderer.
// When not specified, the default is MSAAOff.
//
// Parameters:
//   - count: the MSAASampleCount to use (MSAAOff or MSAA4x)
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color the main render pass clears to before effects are drawn.
//
// Parameters:
//   - c: the clear color, defaults to opaque black
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color to a renderer
func WithClearColor(c wgpu.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}

// WithFramesInFlight sets how many frames must begin after a Retire call before the
// retired resources are released. Values below 1 are ignored.
//
// Parameters:
//   - n: the number of frames the GPU may lag behind recording, defaults to 2
//
// Returns:
//   - RendererBuilderOption: a function that applies the frames-in-flight option to a renderer
func WithFramesInFlight(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n < 1 {
			return
		}
		r.framesInFlight = uint64(n)
	}
}

// WithShaderFormat selects whether shader modules are created from WGSL source or SPIR-V.
//
// Parameters:
//   - f: the ShaderFormat to use, defaults to ShaderFormatWGSL
//
// Returns:
//   - RendererBuilderOption: a function that applies the shader format to a renderer
func WithShaderFormat(f ShaderFormat) RendererBuilderOption {
	return func(r *renderer) {
		r.shaderFormat = f
	}
}
