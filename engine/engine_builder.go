package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-fx/engine/effect"
	"github.com/Carmen-Shannon/oxy-fx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fx/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithProfiler sets the profiler the render loop ticks while profiling is enabled.
//
// Parameters:
//   - p: a pre-configured Profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow sets the window the engine presents to. Unless WithRenderer is also given,
// the engine creates a wgpu renderer for the window's surface.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets a pre-built renderer for the engine to draw every layer with.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRendererOptions sets the options used when the engine creates its own renderer.
// Ignored when WithRenderer is given.
//
// Parameters:
//   - opts: renderer builder options (present mode, MSAA, clear color, etc.)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(opts ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, opts...)
	}
}

// WithEffect registers an effect at the given z-index key during engine construction.
// The effect is initialized once the renderer exists; failures are logged.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - fx: the effect to register
//   - vs: the vertex shader, as a WGSL file path or WGSL text
//   - ps: the pixel shader, as a WGSL file path or WGSL text
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithEffect(key int, fx *effect.FullscreenEffect, vs, ps string) EngineBuilderOption {
	return func(e *engine) {
		e.pendingEffects = append(e.pendingEffects, pendingEffect{key: key, effect: fx, vs: vs, ps: ps})
	}
}

// WithHotReload enables reloading layers whose shader source files change on disk. File system
// events are collected continuously and drained every interval, then layers using a changed file
// are re-initialized between frames. Values <= 0 disable hot reload (default).
//
// Parameters:
//   - interval: how often collected file events are drained
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithHotReload(interval time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if interval <= 0 {
			e.reloadInterval = 0
			return
		}
		e.reloadInterval = interval
	}
}

// WithClock sets the effect clock, letting several engines or tests share a time source.
//
// Parameters:
//   - c: the clock
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClock(c *Clock) EngineBuilderOption {
	return func(e *engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
