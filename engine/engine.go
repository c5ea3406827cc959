package engine

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-fx/engine/effect"
	"github.com/Carmen-Shannon/oxy-fx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fx/engine/window"
)

// ErrNoRenderer is returned when an effect is added to an engine without a renderer.
var ErrNoRenderer = errors.New("engine: no renderer")

// minimizedBackoff is how long the render loop sleeps while the surface has no area.
const minimizedBackoff = 16 * time.Millisecond

// pendingEffect is an effect registered through WithEffect before the renderer is known.
type pendingEffect struct {
	key    int
	effect *effect.FullscreenEffect
	vs, ps string
}

// layer is one effect in the engine's z-ordered stack, with the sources it is (re)built from.
type layer struct {
	effect *effect.FullscreenEffect
	vs, ps string
	active bool
}

// engine implements the Engine interface.
// Coordinates engine, render, watch and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window          window.Window
	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool
	statsMu          sync.Mutex
	stats            profiler.Stats

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	clock *Clock

	// mu guards layers and tasks. Tasks run on the render goroutine between frames.
	mu     sync.Mutex
	layers map[int]*layer
	tasks  []func()

	watcher        *Watcher
	reloadInterval time.Duration // 0 disables hot reload

	// pendingEffects are registered by WithEffect and added once the renderer exists.
	pendingEffects []pendingEffect

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the effect runner.
// It orchestrates the tick loop, render loop, shader hot reload and window management.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance, nil for a headless engine
	Window() window.Window

	// Renderer returns the renderer every layer is drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// Clock returns the effect clock whose time is passed to every layer.
	//
	// Returns:
	//   - *Clock: the effect clock
	Clock() *Clock

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// ToggleProfiler flips profiling on or off.
	//
	// Returns:
	//   - bool: true if profiling is enabled after the call
	ToggleProfiler() bool

	// Stats returns the latest profiler sample.
	//
	// Returns:
	//   - profiler.Stats: the last sample, zero until profiling has run for one interval
	Stats() profiler.Stats

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for input and animation logic.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame, on the render goroutine.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// AddEffect registers an effect at the given z-index key and initializes it from vs and ps.
	// Layers are rendered in ascending key order. An existing layer at key is replaced and its
	// GPU objects retired. While the engine runs, initialization happens on the render goroutine
	// and failures are logged; the layer stays registered and renders nothing until a reload succeeds.
	//
	// Parameters:
	//   - key: the z-index determining render order (lower renders first)
	//   - e: the effect to register
	//   - vs: the vertex shader, as a WGSL file path or WGSL text
	//   - ps: the pixel shader, as a WGSL file path or WGSL text
	//
	// Returns:
	//   - error: the initialization error when the engine is not running yet
	AddEffect(key int, e *effect.FullscreenEffect, vs, ps string) error

	// RemoveEffect unregisters the layer at key and retires its GPU objects.
	//
	// Parameters:
	//   - key: the z-index of the layer to remove
	RemoveEffect(key int)

	// Effect retrieves the effect registered at key, or nil if there is none.
	//
	// Parameters:
	//   - key: the z-index of the layer
	//
	// Returns:
	//   - *effect.FullscreenEffect: the effect at key
	Effect(key int) *effect.FullscreenEffect

	// Effects returns a copy of all registered effects keyed by z-index.
	//
	// Returns:
	//   - map[int]*effect.FullscreenEffect: a copy of the layer map
	Effects() map[int]*effect.FullscreenEffect

	// LayerKeys returns the registered z-index keys in render order.
	//
	// Returns:
	//   - []int: the keys in ascending order
	LayerKeys() []int

	// SetLayerActive shows or hides the layer at key without releasing it.
	//
	// Parameters:
	//   - key: the z-index of the layer
	//   - active: false to skip the layer while rendering
	//
	// Returns:
	//   - bool: false if no layer exists at key
	SetLayerActive(key int, active bool) bool

	// ToggleLayer flips the active state of the layer at key.
	//
	// Parameters:
	//   - key: the z-index of the layer
	//
	// Returns:
	//   - bool: the new active state, false if no layer exists at key
	ToggleLayer(key int) bool

	// Reload re-initializes the layer at key from its shader sources.
	// A failed reload keeps the layer's previous pipeline.
	//
	// Parameters:
	//   - key: the z-index of the layer
	Reload(key int)

	// ReloadAll re-initializes every layer from its shader sources.
	ReloadAll()

	// Run starts the engine loops and blocks until the window closes or Quit is called,
	// then releases every layer and the renderer.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// If a window is configured without a renderer, a wgpu renderer is created for it.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, profiling, effects, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		layers:          make(map[int]*layer),
		wg:              sync.WaitGroup{},
		engineTickRate:  time.Second / 60,
		clock:           NewClock(),
		watcher:         newWatcher(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		if e.renderer == nil {
			e.renderer = renderer.NewRenderer(renderer.BackendTypeWGPU, e.window, e.rendererOptions...)
		}
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
		})
	}

	for _, p := range e.pendingEffects {
		if err := e.AddEffect(p.key, p.effect, p.vs, p.ps); err != nil {
			log.Printf("[Engine] layer %d: %v", p.key, err)
		}
	}
	e.pendingEffects = nil

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Clock() *Clock {
	return e.clock
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()
	e.shutdown()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] failed to close window: %v", err)
		}
	}
}

// Quit signals all engine goroutines to stop and asks the window message loop to return.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil {
		e.window.RequestClose()
	}
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// shutdown releases every layer and then the renderer. Called once all goroutines have exited.
func (e *engine) shutdown() {
	e.mu.Lock()
	layers := e.layers
	e.layers = make(map[int]*layer)
	e.tasks = nil
	e.mu.Unlock()

	for _, l := range layers {
		l.effect.Release()
	}
	if err := e.watcher.Close(); err != nil {
		log.Printf("[Engine] failed to close shader watcher: %v", err)
	}
	if e.renderer != nil {
		e.renderer.Release()
	}
}

// handle launches the engine, render, watch and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
	if e.reloadInterval > 0 {
		e.wg.Add(1)
		go e.handleWatch()
	}
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.renderFrame(); errors.Is(err, renderer.ErrSurfaceMinimized) {
				time.Sleep(minimizedBackoff)
				continue
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled.Load() && e.profiler != nil {
				if e.profiler.Tick() {
					e.statsMu.Lock()
					e.stats = e.profiler.Stats()
					e.statsMu.Unlock()
				}
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// renderFrame runs queued tasks and then records one frame: every active layer in ascending
// z-index order, all within a single BeginFrame/EndFrame pair, followed by Present.
//
// Returns:
//   - error: the BeginFrame error when no frame was recorded
func (e *engine) renderFrame() error {
	e.runTasks()
	if e.renderer == nil {
		return ErrNoRenderer
	}

	active := e.activeEffects()
	if err := e.renderer.BeginFrame(); err != nil {
		return err
	}
	t := e.clock.Seconds()
	for _, fx := range active {
		effect.RenderEffect(e.renderer, fx, t)
	}
	e.renderer.EndFrame()
	e.renderer.Present()
	return nil
}

// activeEffects returns the effects of active layers in ascending key order.
func (e *engine) activeEffects() []*effect.FullscreenEffect {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := e.sortedKeysLocked()
	active := make([]*effect.FullscreenEffect, 0, len(keys))
	for _, k := range keys {
		if l := e.layers[k]; l.active {
			active = append(active, l.effect)
		}
	}
	return active
}

func (e *engine) sortedKeysLocked() []int {
	keys := make([]int, 0, len(e.layers))
	for k := range e.layers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// enqueue schedules fn on the render goroutine when the engine is running, or runs it now.
func (e *engine) enqueue(fn func()) {
	if !e.running.Load() {
		fn()
		return
	}
	e.mu.Lock()
	e.tasks = append(e.tasks, fn)
	e.mu.Unlock()
}

// runTasks drains the task queue. Tasks may enqueue further tasks; those run next frame.
func (e *engine) runTasks() {
	e.mu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	for _, fn := range tasks {
		fn()
	}
}

// handleWatch drains the watcher every reloadInterval and queues reloads for layers using a
// changed file. Bursts of events from a single save collapse into one reload.
func (e *engine) handleWatch() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			if changed := e.watcher.Poll(); len(changed) > 0 {
				e.reloadChanged(changed)
			}
		}
	}
}

// reloadChanged reloads every layer whose vertex or pixel source is one of paths.
func (e *engine) reloadChanged(paths []string) {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	e.mu.Lock()
	var keys []int
	for _, k := range e.sortedKeysLocked() {
		l := e.layers[k]
		_, vs := set[l.vs]
		_, ps := set[l.ps]
		if vs || ps {
			keys = append(keys, k)
		}
	}
	e.mu.Unlock()

	for _, k := range keys {
		log.Printf("[Engine] layer %d: shader source changed, reloading", k)
		e.Reload(k)
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) ToggleProfiler() bool {
	for {
		old := e.profilingEnabled.Load()
		if e.profilingEnabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (e *engine) Stats() profiler.Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) AddEffect(key int, fx *effect.FullscreenEffect, vs, ps string) error {
	if fx == nil {
		return fmt.Errorf("engine: layer %d: nil effect", key)
	}
	if e.renderer == nil {
		return ErrNoRenderer
	}

	l := &layer{effect: fx, vs: vs, ps: ps, active: true}
	if err := e.watcher.Add(vs, ps); err != nil {
		log.Printf("[Engine] layer %d: hot reload unavailable: %v", key, err)
	}

	if !e.running.Load() {
		err := fx.Init(e.renderer, vs, ps)
		e.replaceLayer(key, l)
		return err
	}

	e.enqueue(func() {
		if err := fx.Init(e.renderer, vs, ps); err != nil {
			log.Printf("[Engine] layer %d: %v", key, err)
		}
		e.replaceLayer(key, l)
	})
	return nil
}

// replaceLayer stores l at key and retires the layer it replaces.
// The replaced layer's shader paths are released from the watcher.
func (e *engine) replaceLayer(key int, l *layer) {
	e.mu.Lock()
	old := e.layers[key]
	e.layers[key] = l
	e.mu.Unlock()

	if old == nil {
		return
	}
	e.watcher.Remove(old.vs, old.ps)
	if old.effect != l.effect {
		old.effect.Retire(e.renderer)
	}
}

func (e *engine) RemoveEffect(key int) {
	e.enqueue(func() {
		e.mu.Lock()
		old, ok := e.layers[key]
		delete(e.layers, key)
		e.mu.Unlock()

		if ok {
			e.watcher.Remove(old.vs, old.ps)
			old.effect.Retire(e.renderer)
		}
	})
}

func (e *engine) Effect(key int) *effect.FullscreenEffect {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l, ok := e.layers[key]; ok {
		return l.effect
	}
	return nil
}

func (e *engine) Effects() map[int]*effect.FullscreenEffect {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]*effect.FullscreenEffect, len(e.layers))
	for k, l := range e.layers {
		cp[k] = l.effect
	}
	return cp
}

func (e *engine) LayerKeys() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedKeysLocked()
}

func (e *engine) SetLayerActive(key int, active bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[key]
	if !ok {
		return false
	}
	l.active = active
	return true
}

func (e *engine) ToggleLayer(key int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.layers[key]
	if !ok {
		return false
	}
	l.active = !l.active
	return l.active
}

func (e *engine) Reload(key int) {
	e.enqueue(func() {
		e.mu.Lock()
		l, ok := e.layers[key]
		e.mu.Unlock()
		if !ok {
			return
		}
		if err := l.effect.Init(e.renderer, l.vs, l.ps); err != nil {
			log.Printf("[Engine] layer %d: reload failed, keeping previous pipeline: %v", key, err)
			return
		}
		log.Printf("[Engine] layer %d: reloaded %s", key, l.effect.Label())
	})
}

func (e *engine) ReloadAll() {
	for _, k := range e.LayerKeys() {
		e.Reload(k)
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}
