package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-fx/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrNoFrame is returned by recording calls made outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("renderer: no frame in progress")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame was not ended.
	ErrFrameInProgress = errors.New("renderer: frame already in progress")

	// ErrSurfaceMinimized is returned by BeginFrame while the surface has a zero dimension.
	ErrSurfaceMinimized = errors.New("renderer: surface has zero size")

	// ErrReleased is returned by any call made after Release.
	ErrReleased = errors.New("renderer: released")

	// ErrRootSignatureMismatch is returned by SetPipelineState when the pipeline state was built
	// against a root signature other than the one bound on the current frame.
	ErrRootSignatureMismatch = errors.New("renderer: pipeline state does not match the bound root signature")
)

// defaultFramesInFlight is the number of frames the GPU may still be working on after submission.
const defaultFramesInFlight = 2

// retiredResource is a Releasable waiting for the frames that may reference it to complete.
type retiredResource struct {
	resource Releasable
	frame    uint64
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	width  int
	height int

	// surfaceHeld is set from a successful BeginFrame until Present, while the swapchain
	// texture is acquired. Resizes in that window set resizePending instead of reconfiguring.
	surfaceHeld   bool
	resizePending bool
	frameWidth    int
	frameHeight   int
	boundRoot     RootSignature

	inFrame        bool
	frameIndex     uint64
	framesInFlight uint64
	retired        []retiredResource
	released       bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	clearColor           wgpu.Color
	shaderFormat         ShaderFormat
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API shaped around full-screen effects: it creates root signatures and
// pipeline state objects, records one render pass per frame and defers the release of GPU objects
// that in-flight frames may still reference. The Renderer implements a backend which allows for
// multiple backend API implementations to exist.
//
// All recording calls are expected on a single render goroutine.
type Renderer interface {
	// Size returns the current surface size in pixels. Between BeginFrame and Present this is
	// the size the frame's swapchain texture was acquired at, even if Resize was called since.
	//
	// Returns:
	//   - int: the surface width
	//   - int: the surface height
	Size() (int, int)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	// A zero dimension is recorded but the surface is left unconfigured until it grows again.
	// Between BeginFrame and Present the new size is only recorded and the surface is
	// reconfigured at the start of the next BeginFrame.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// CreateRootSignature creates a root signature holding a root-constant buffer of constantsSize bytes.
	//
	// Parameters:
	//   - label: debug label for the created GPU objects
	//   - constantsSize: size of the root-constant buffer in bytes, must be non-zero
	//
	// Returns:
	//   - RootSignature: the created root signature
	//   - error: an error if creation fails
	CreateRootSignature(label string, constantsSize uint64) (RootSignature, error)

	// CreatePipelineState creates a pipeline state object from the fixed-function description
	// and the two compiled stages, using root's layout.
	//
	// Parameters:
	//   - label: debug label for the created GPU objects
	//   - root: the root signature whose layout the pipeline uses
	//   - p: the fixed-function pipeline description
	//   - vs: the compiled vertex stage
	//   - fs: the compiled fragment stage
	//
	// Returns:
	//   - PipelineState: the created pipeline state
	//   - error: an error if creation fails
	CreatePipelineState(label string, root RootSignature, p pipeline.Pipeline, vs, fs shader.Binary) (PipelineState, error)

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	// Resources retired at least framesInFlight frames ago are released here.
	// Must be paired with EndFrame.
	//
	// Returns:
	//   - error: ErrFrameInProgress, ErrSurfaceMinimized, or a backend acquisition error
	BeginFrame() error

	// SetRootSignature binds the root signature on the current render pass.
	// It must be bound before the pipeline states built against it.
	//
	// Parameters:
	//   - root: the root signature to bind
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame
	SetRootSignature(root RootSignature) error

	// SetPipelineState binds the pipeline state on the current render pass.
	//
	// Parameters:
	//   - ps: the pipeline state to bind
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame, ErrRootSignatureMismatch when ps was built
	//     against a root signature other than the bound one
	SetPipelineState(ps PipelineState) error

	// SetRootConstants writes data into the root signature's constant buffer.
	//
	// Parameters:
	//   - root: the root signature owning the constant buffer
	//   - data: the bytes to write, at most root.ConstantsSize() long
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame, or an error if data does not fit
	SetRootConstants(root RootSignature, data []byte) error

	// Draw encodes a non-indexed draw on the current render pass.
	//
	// Parameters:
	//   - vertexCount: the number of vertices to draw
	//   - instanceCount: the number of instances to draw
	//
	// Returns:
	//   - error: ErrNoFrame outside a frame
	Draw(vertexCount, instanceCount uint32) error

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface, call Present after EndFrame to display the frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()

	// Retire schedules resources for release once no in-flight frame can reference them.
	//
	// Parameters:
	//   - resources: the resources to release later, nil entries are ignored
	Retire(resources ...Releasable)

	// Release releases every retired resource and the backend. Calling Release more than once is a no-op.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type, drawing into the window's surface.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the window providing the surface descriptor and initial size
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := newRendererConfig(backendType, options...)

	msaa := MSAAOff
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), wgpuBackendConfig{
			forceFallbackAdapter: r.forceFallbackAdapter,
			sampleCount:          msaa,
			clearColor:           r.clearColor,
			shaderFormat:         r.shaderFormat,
		})
	}

	r.start(window.Width(), window.Height())
	return r
}

// newRenderer wires a Renderer around an already constructed backend.
func newRenderer(b RendererBackend, width, height int, options ...RendererBuilderOption) *renderer {
	r := newRendererConfig(BackendTypeWGPU, options...)
	r.backend = b
	r.start(width, height)
	return r
}

func newRendererConfig(backendType RendererBackendType, options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:             &sync.Mutex{},
		backendType:    backendType,
		framesInFlight: defaultFramesInFlight,
		clearColor:     wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		shaderFormat:   ShaderFormatWGSL,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderer) start(width, height int) {
	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.Resize(width, height)
}

func (r *renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surfaceHeld {
		return r.frameWidth, r.frameHeight
	}
	return r.width, r.height
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.width, r.height = width, height
	if r.surfaceHeld {
		r.resizePending = true
		return
	}
	r.configureSurface()
}

// configureSurface applies the recorded size to the backend. Must be called with r.mu held
// and no swapchain texture acquired.
func (r *renderer) configureSurface() {
	r.resizePending = false
	if r.width <= 0 || r.height <= 0 {
		return
	}
	r.backend.ConfigureSurface(r.width, r.height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.SetPresentMode(mode)
}

func (r *renderer) CreateRootSignature(label string, constantsSize uint64) (RootSignature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	if constantsSize == 0 {
		return nil, fmt.Errorf("root signature %q: root-constant size must be non-zero", label)
	}
	return r.backend.CreateRootSignature(label, constantsSize)
}

func (r *renderer) CreatePipelineState(label string, root RootSignature, p pipeline.Pipeline, vs, fs shader.Binary) (PipelineState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	if root == nil {
		return nil, fmt.Errorf("pipeline state %q: root signature is nil", label)
	}
	if p == nil {
		return nil, fmt.Errorf("pipeline state %q: pipeline description is nil", label)
	}
	if vs.Empty() || fs.Empty() {
		return nil, fmt.Errorf("pipeline state %q: both vertex and fragment binaries must be set", label)
	}
	if vs.Stage != shader.ShaderTypeVertex || fs.Stage != shader.ShaderTypeFragment {
		return nil, fmt.Errorf("pipeline state %q: binaries have stages %s/%s, want vertex/fragment", label, vs.Stage, fs.Stage)
	}
	return r.backend.CreatePipelineState(label, root, p, vs, fs)
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if r.inFrame {
		return ErrFrameInProgress
	}
	r.surfaceHeld = false
	if r.resizePending {
		r.configureSurface()
	}
	if r.width <= 0 || r.height <= 0 {
		return ErrSurfaceMinimized
	}

	r.frameIndex++
	r.releaseRetired(false)

	if err := r.backend.BeginFrame(); err != nil {
		return err
	}
	r.inFrame = true
	r.surfaceHeld = true
	r.frameWidth, r.frameHeight = r.width, r.height
	r.boundRoot = nil
	return nil
}

func (r *renderer) SetRootSignature(root RootSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrNoFrame
	}
	if root == nil {
		return errors.New("renderer: nil root signature")
	}
	r.backend.SetRootSignature(root)
	r.boundRoot = root
	return nil
}

func (r *renderer) SetPipelineState(ps PipelineState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrNoFrame
	}
	if ps == nil {
		return errors.New("renderer: nil pipeline state")
	}
	if ps.RootSignature() != r.boundRoot {
		return fmt.Errorf("%w: %q", ErrRootSignatureMismatch, ps.Label())
	}
	r.backend.SetPipelineState(ps)
	return nil
}

func (r *renderer) SetRootConstants(root RootSignature, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrNoFrame
	}
	if root == nil {
		return errors.New("renderer: nil root signature")
	}
	if uint64(len(data)) > root.ConstantsSize() {
		return fmt.Errorf("renderer: %d bytes of root constants exceed the %d byte buffer of %q", len(data), root.ConstantsSize(), root.Label())
	}
	r.backend.WriteRootConstants(root, data)
	return nil
}

func (r *renderer) Draw(vertexCount, instanceCount uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrNoFrame
	}
	r.backend.Draw(vertexCount, instanceCount)
	return nil
}

func (r *renderer) EndFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return
	}
	r.backend.EndFrame()
	r.inFrame = false
}

func (r *renderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || r.inFrame || !r.surfaceHeld {
		return
	}
	r.backend.Present()
	r.surfaceHeld = false
}

func (r *renderer) Retire(resources ...Releasable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range resources {
		if res == nil {
			continue
		}
		if r.released {
			res.Release()
			continue
		}
		r.retired = append(r.retired, retiredResource{resource: res, frame: r.frameIndex})
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.releaseRetired(true)
	r.backend.Release()
	r.released = true
	r.inFrame = false
	r.surfaceHeld = false
	r.boundRoot = nil
}

// releaseRetired releases retired resources whose frame is at least framesInFlight frames old,
// or all of them when force is set. Must be called with r.mu held.
func (r *renderer) releaseRetired(force bool) {
	kept := r.retired[:0]
	for _, rr := range r.retired {
		if force || r.frameIndex > rr.frame+r.framesInFlight {
			rr.resource.Release()
			continue
		}
		kept = append(kept, rr)
	}
	for i := len(kept); i < len(r.retired); i++ {
		r.retired[i] = retiredResource{}
	}
	r.retired = kept
}
