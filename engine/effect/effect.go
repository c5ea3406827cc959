package effect

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/root_constants"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
)

var (
	// ErrShaderCompile wraps every failure to load, pre-process or compile either shader stage.
	ErrShaderCompile = errors.New("effect: shader compilation failed")

	// ErrRootSignature wraps a failure to create the root signature.
	ErrRootSignature = errors.New("effect: root signature creation failed")

	// ErrPipelineState wraps a failure to create the pipeline state object.
	ErrPipelineState = errors.New("effect: pipeline state creation failed")
)

// Uniforms are the root constants written before every full-screen draw.
type Uniforms = root_constants.GPUEffectUniforms

// FullscreenVertexCount is the vertex count of the single full-screen triangle drawn per effect.
const FullscreenVertexCount = 3

const defaultLabel = "fullscreen_effect"

var (
	defaultCompiler     = shader.NewCompiler()
	defaultCompilePool  worker.DynamicWorkerPool
	defaultCompilePoolM sync.Once
	compileTaskID       atomic.Int64
)

// compilePool returns the package-wide pool used when an effect has none configured.
// Two workers let both stages of an effect compile in parallel.
func compilePool() worker.DynamicWorkerPool {
	defaultCompilePoolM.Do(func() {
		defaultCompilePool = worker.NewDynamicWorkerPool(2, 256, 1*time.Second)
	})
	return defaultCompilePool
}

// FullscreenEffect owns the GPU objects for one full-screen shader effect: a root signature,
// the pipeline state built against it and the two compiled shader stages.
//
// The root signature and pipeline state are either both nil or both set. A FullscreenEffect
// is not safe for concurrent use; Init, Render and Release are expected on the render goroutine.
type FullscreenEffect struct {
	label        string
	compiler     shader.Compiler
	pool         worker.DynamicWorkerPool
	pipelineOpts []pipeline.PipelineBuilderOption

	rootSignature renderer.RootSignature
	pipelineState renderer.PipelineState
	vertexBinary  shader.Binary
	pixelBinary   shader.Binary

	warnedUninitialized bool
}

// NewFullscreenEffect creates an uninitialized effect. Call Init before rendering.
//
// Parameters:
//   - opts: a variadic list of EffectBuilderOption functions
//
// Returns:
//   - *FullscreenEffect: the new effect
func NewFullscreenEffect(opts ...EffectBuilderOption) *FullscreenEffect {
	e := &FullscreenEffect{
		label: defaultLabel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitEffect initializes e from the vertex and pixel shader sources and reports success.
// The underlying error is logged.
//
// Parameters:
//   - r: the renderer whose device creates the GPU objects
//   - e: the effect to populate
//   - vs: the vertex shader, as a WGSL file path or WGSL text
//   - ps: the pixel (fragment) shader, as a WGSL file path or WGSL text
//
// Returns:
//   - bool: true if the effect is ready to render with the new shaders
func InitEffect(r renderer.Renderer, e *FullscreenEffect, vs, ps string) bool {
	if e == nil {
		log.Printf("[Effect] init failed: nil effect")
		return false
	}
	if err := e.Init(r, vs, ps); err != nil {
		log.Printf("[Effect] %s: %v", e.Label(), err)
		return false
	}
	return true
}

// RenderEffect draws e with the given time. See FullscreenEffect.Render.
//
// Parameters:
//   - r: the renderer with a frame in progress
//   - e: the effect to draw
//   - time: the effect time in seconds
func RenderEffect(r renderer.Renderer, e *FullscreenEffect, time float32) {
	if e == nil {
		return
	}
	e.Render(r, time)
}

// Label returns the label used for the effect's GPU objects and log lines.
//
// Returns:
//   - string: the effect label
func (e *FullscreenEffect) Label() string {
	if e.label == "" {
		return defaultLabel
	}
	return e.label
}

// Initialized reports whether the effect holds a root signature and pipeline state.
//
// Returns:
//   - bool: true after a successful Init and before Release
func (e *FullscreenEffect) Initialized() bool {
	return e.rootSignature != nil && e.pipelineState != nil
}

// RootSignature returns the effect's root signature, or nil when uninitialized.
//
// Returns:
//   - renderer.RootSignature: the root signature
func (e *FullscreenEffect) RootSignature() renderer.RootSignature {
	return e.rootSignature
}

// PipelineState returns the effect's pipeline state, or nil when uninitialized.
//
// Returns:
//   - renderer.PipelineState: the pipeline state
func (e *FullscreenEffect) PipelineState() renderer.PipelineState {
	return e.pipelineState
}

// VertexBinary returns the compiled vertex stage.
//
// Returns:
//   - shader.Binary: the vertex binary, empty when uninitialized
func (e *FullscreenEffect) VertexBinary() shader.Binary {
	return e.vertexBinary
}

// PixelBinary returns the compiled pixel (fragment) stage.
//
// Returns:
//   - shader.Binary: the pixel binary, empty when uninitialized
func (e *FullscreenEffect) PixelBinary() shader.Binary {
	return e.pixelBinary
}

// RootConstantsVar returns the variable a stage declared with an @oxy:root_constants annotation,
// checking the pixel stage first.
//
// Returns:
//   - string: the variable name, empty when neither stage declares one or the effect is uninitialized
func (e *FullscreenEffect) RootConstantsVar() string {
	if v := e.pixelBinary.RootConstantsVar; v != "" {
		return v
	}
	return e.vertexBinary.RootConstantsVar
}

// Init compiles both shader stages, creates a root signature holding the effect's root
// constants and a pipeline state bound to both, then stores all four on the effect.
//
// On failure every GPU object created by this call is released and the effect keeps whatever
// state it had before. On success over an initialized effect the previous root signature and
// pipeline state are handed to r.Retire, so in-flight frames may still use them.
//
// Parameters:
//   - r: the renderer whose device creates the GPU objects
//   - vs: the vertex shader, as a WGSL file path or WGSL text
//   - ps: the pixel (fragment) shader, as a WGSL file path or WGSL text
//
// Returns:
//   - error: wraps ErrShaderCompile, ErrRootSignature or ErrPipelineState
func (e *FullscreenEffect) Init(r renderer.Renderer, vs, ps string) error {
	if r == nil {
		return errors.New("effect: nil renderer")
	}
	label := e.Label()

	vsBin, psBin, err := e.compile(vs, ps)
	if err != nil {
		return err
	}

	var constants Uniforms
	root, err := r.CreateRootSignature(label, uint64(constants.Size()))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRootSignature, label, err)
	}

	pso, err := r.CreatePipelineState(label, root, pipeline.NewPipeline(label, e.pipelineOpts...), vsBin, psBin)
	if err != nil {
		root.Release()
		return fmt.Errorf("%w: %s: %w", ErrPipelineState, label, err)
	}

	oldRoot, oldPSO := e.rootSignature, e.pipelineState
	e.rootSignature = root
	e.pipelineState = pso
	e.vertexBinary = vsBin
	e.pixelBinary = psBin
	e.warnedUninitialized = false

	if oldPSO != nil || oldRoot != nil {
		r.Retire(oldPSO, oldRoot)
	}
	if e.RootConstantsVar() == "" {
		log.Printf("[Effect] %s: no stage declares @oxy:root_constants, time and resolution are only visible to a hand-written binding", label)
	}
	return nil
}

// compile loads and compiles both stages concurrently on the compile pool.
func (e *FullscreenEffect) compile(vs, ps string) (shader.Binary, shader.Binary, error) {
	compiler := e.compiler
	if compiler == nil {
		compiler = defaultCompiler
	}
	pool := e.pool
	if pool == nil {
		pool = compilePool()
	}

	stages := [2]struct {
		stage  shader.ShaderType
		source string
		key    string
		bin    shader.Binary
		err    error
	}{
		{stage: shader.ShaderTypeVertex, source: vs, key: e.Label() + "_vs"},
		{stage: shader.ShaderTypeFragment, source: ps, key: e.Label() + "_ps"},
	}

	var wg sync.WaitGroup
	for i := range stages {
		s := &stages[i]
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: int(compileTaskID.Add(1)),
			Do: func() (any, error) {
				defer wg.Done()
				src, err := shader.LoadSource(s.source)
				if err != nil {
					s.err = err
					return nil, err
				}
				s.bin, s.err = compiler.Compile(s.key, s.stage, src)
				return nil, s.err
			},
		})
	}
	wg.Wait()

	for _, s := range stages {
		if s.err != nil {
			return shader.Binary{}, shader.Binary{}, fmt.Errorf("%w: %s shader: %w", ErrShaderCompile, s.stage, s.err)
		}
		if s.bin.Empty() {
			return shader.Binary{}, shader.Binary{}, fmt.Errorf("%w: %s shader produced an empty binary", ErrShaderCompile, s.stage)
		}
	}
	return stages[0].bin, stages[1].bin, nil
}

// Render binds the root signature and pipeline state, writes the time and the current surface
// size as root constants and draws one full-screen triangle. It must be called between
// r.BeginFrame and r.EndFrame.
//
// Calling Render on an uninitialized effect records nothing and logs a warning once.
// Recording errors are logged since render has no error path of its own.
//
// Parameters:
//   - r: the renderer with a frame in progress
//   - time: the effect time in seconds
func (e *FullscreenEffect) Render(r renderer.Renderer, time float32) {
	if r == nil {
		return
	}
	if !e.Initialized() {
		if !e.warnedUninitialized {
			log.Printf("[Effect] %s: render skipped, effect is not initialized", e.Label())
			e.warnedUninitialized = true
		}
		return
	}

	width, height := r.Size()
	constants := Uniforms{
		Time:       time,
		Resolution: [2]float32{float32(width), float32(height)},
	}

	if err := r.SetRootSignature(e.rootSignature); err != nil {
		log.Printf("[Effect] %s: %v", e.Label(), err)
		return
	}
	if err := r.SetPipelineState(e.pipelineState); err != nil {
		log.Printf("[Effect] %s: %v", e.Label(), err)
		return
	}
	if err := r.SetRootConstants(e.rootSignature, constants.Marshal()); err != nil {
		log.Printf("[Effect] %s: %v", e.Label(), err)
		return
	}
	if err := r.Draw(FullscreenVertexCount, 1); err != nil {
		log.Printf("[Effect] %s: %v", e.Label(), err)
	}
}

// Release frees the pipeline state and root signature immediately and clears the effect.
// The caller must ensure no in-flight frame still uses them. Calling Release more than once is a no-op.
func (e *FullscreenEffect) Release() {
	if e.pipelineState != nil {
		e.pipelineState.Release()
		e.pipelineState = nil
	}
	if e.rootSignature != nil {
		e.rootSignature.Release()
		e.rootSignature = nil
	}
	e.vertexBinary = shader.Binary{}
	e.pixelBinary = shader.Binary{}
}

// Retire hands the pipeline state and root signature to r.Retire and clears the effect.
// Use it instead of Release while frames recorded with this effect may still be in flight.
//
// Parameters:
//   - r: the renderer that recorded the effect
func (e *FullscreenEffect) Retire(r renderer.Renderer) {
	if r == nil {
		e.Release()
		return
	}
	if e.pipelineState != nil || e.rootSignature != nil {
		r.Retire(e.pipelineState, e.rootSignature)
	}
	e.pipelineState = nil
	e.rootSignature = nil
	e.vertexBinary = shader.Binary{}
	e.pixelBinary = shader.Binary{}
}
