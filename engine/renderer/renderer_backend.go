package renderer

import (
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Full-screen effects shade every pixel exactly once, so MSAA only smooths the triangle's
// edges outside the viewport and is off by default.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// ShaderFormat selects which representation of a shader.Binary the backend hands to the GPU driver.
type ShaderFormat int

const (
	// ShaderFormatWGSL creates shader modules from the pre-processed WGSL source (default).
	ShaderFormatWGSL ShaderFormat = iota

	// ShaderFormatSPIRV creates shader modules from the SPIR-V produced by the shader compiler.
	ShaderFormatSPIRV
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	backend
}

// backend is the API-neutral set of operations the Renderer drives. The wgpu backend
// implements it, and tests substitute a recording fake.
type backend interface {
	// ConfigureSurface (re)configures the swapchain for the given size in pixels.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// CreateRootSignature creates the resource layout shared by an effect's shader stages:
	// a single root-constant uniform buffer of constantsSize bytes visible to both stages.
	//
	// Parameters:
	//   - label: debug label for the created GPU objects
	//   - constantsSize: size of the root-constant buffer in bytes
	//
	// Returns:
	//   - RootSignature: the created root signature
	//   - error: an error if any GPU object could not be created
	CreateRootSignature(label string, constantsSize uint64) (RootSignature, error)

	// CreatePipelineState compiles the two shader binaries into a render pipeline bound to root.
	//
	// Parameters:
	//   - label: debug label for the created GPU objects
	//   - root: the root signature the pipeline layout is taken from
	//   - p: the fixed-function pipeline description
	//   - vs: the vertex stage binary
	//   - fs: the fragment stage binary
	//
	// Returns:
	//   - PipelineState: the created pipeline state
	//   - error: an error if a shader module or the pipeline could not be created
	CreatePipelineState(label string, root RootSignature, p pipeline.Pipeline, vs, fs shader.Binary) (PipelineState, error)

	// BeginFrame acquires the next swapchain texture and begins the main render pass.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// SetRootSignature binds the root signature's resources on the current render pass.
	SetRootSignature(root RootSignature)

	// SetPipelineState binds the pipeline on the current render pass.
	SetPipelineState(ps PipelineState)

	// WriteRootConstants uploads data into the root signature's constant buffer.
	WriteRootConstants(root RootSignature, data []byte)

	// Draw encodes a non-indexed draw on the current render pass.
	Draw(vertexCount, instanceCount uint32)

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Release destroys the device, surface and every backend-owned GPU object.
	Release()
}
