// Command fxplay plays one or more full-screen shader effects in a window.
//
// Every -ps flag adds a layer drawn over the previous ones with the shared vertex shader.
//
// Usage:
//
//	fxplay [options] -ps <pixel.wgsl> [-ps <overlay.wgsl> ...]
//
// Keys:
//
//	Space  pause / resume      R    reload shaders
//	- / =  slower / faster     0    reset time
//	1..9   toggle layer        P    toggle profiler
//	Esc    quit
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-fx/common"
	"github.com/Carmen-Shannon/oxy-fx/engine"
	"github.com/Carmen-Shannon/oxy-fx/engine/effect"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/window"
)

// defaultVertexShader draws the full-screen triangle when no -vs is given.
const defaultVertexShader = `// @oxy:include fullscreen_triangle
@vertex
fn vs_main(@builtin(vertex_index) vertex_index: u32) -> @builtin(position) vec4<f32> {
    return fullscreen_position(vertex_index);
}
`

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

var (
	vs       = flag.String("vs", "", "vertex shader file (default: built-in full-screen triangle)")
	width    = flag.Int("width", 1280, "window width")
	height   = flag.Int("height", 720, "window height")
	title    = flag.String("title", "", "window title (default: the first pixel shader's name)")
	vsync    = flag.Bool("vsync", true, "wait for vertical blank when presenting")
	msaa     = flag.Bool("msaa", false, "enable 4x MSAA")
	profile  = flag.Bool("profile", false, "log frame and memory statistics")
	watch    = flag.Duration("watch", 500*time.Millisecond, "hot reload batching interval for shader file changes, 0 to disable")
	fpsLimit = flag.Float64("fps", 0, "render frame rate cap, 0 for uncapped")
	blend    = flag.String("blend", "alpha", "blend mode for layers above the first: alpha, add or none")
	software = flag.Bool("software", false, "force a software (fallback) adapter")
	spirv    = flag.Bool("spirv", false, "create shader modules from SPIR-V instead of WGSL")
)

func main() {
	var pixelShaders stringList
	flag.Var(&pixelShaders, "ps", "pixel shader file, repeat to stack layers")
	flag.Usage = usage
	flag.Parse()

	if len(pixelShaders) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no pixel shader specified")
		usage()
		os.Exit(1)
	}
	overlay, err := blendOptions(*blend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	vertexShader := common.Coalesce(*vs, defaultVertexShader)
	baseTitle := common.Coalesce(*title, "oxy-fx - "+layerName(pixelShaders[0]))

	rendererOpts := []renderer.RendererBuilderOption{
		renderer.WithForceSoftwareRenderer(*software),
	}
	if !*vsync {
		rendererOpts = append(rendererOpts, renderer.WithPresentMode(renderer.PresentModeUncapped))
	}
	if *msaa {
		rendererOpts = append(rendererOpts, renderer.WithMSAA(renderer.MSAA4x))
	}
	if *spirv {
		rendererOpts = append(rendererOpts, renderer.WithShaderFormat(renderer.ShaderFormatSPIRV))
	}

	engineOpts := []engine.EngineBuilderOption{
		engine.WithProfiling(*profile),
		engine.WithHotReload(*watch),
		engine.WithRenderFrameLimit(*fpsLimit),
		engine.WithRendererOptions(rendererOpts...),
		engine.WithWindow(window.NewWindow(
			window.WithTitle(baseTitle),
			window.WithWidth(*width),
			window.WithHeight(*height),
		)),
	}
	for i, ps := range pixelShaders {
		fxOpts := []effect.EffectBuilderOption{effect.WithLabel(layerName(ps))}
		if i > 0 {
			fxOpts = append(fxOpts, effect.WithPipelineOptions(overlay...))
		}
		engineOpts = append(engineOpts, engine.WithEffect(i, effect.NewFullscreenEffect(fxOpts...), vertexShader, ps))
	}

	eng := engine.NewEngine(engineOpts...)
	setupInput(eng)
	setupTitle(eng, baseTitle)

	log.Printf("[fxplay] playing %d layer(s): %s", len(pixelShaders), pixelShaders.String())
	eng.Run()
}

// setupInput wires the playback keys to the engine clock, layers, reload and profiler.
//
// Parameters:
//   - eng: the engine instance providing window callbacks
func setupInput(eng engine.Engine) {
	clock := eng.Clock()

	eng.Window().SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.KeySpace:
			if clock.TogglePause() {
				log.Printf("[fxplay] paused at %.2fs", clock.Seconds())
			} else {
				log.Printf("[fxplay] resumed")
			}
		case common.KeyR:
			eng.ReloadAll()
		case common.KeyP:
			log.Printf("[fxplay] profiler enabled: %v", eng.ToggleProfiler())
		case common.KeyMinus:
			log.Printf("[fxplay] time scale %.4gx", clock.SetScale(clock.Scale()/2))
		case common.KeyEqual:
			log.Printf("[fxplay] time scale %.4gx", clock.SetScale(clock.Scale()*2))
		case common.Key0:
			clock.Reset()
			clock.SetScale(1)
		default:
			if idx, ok := common.LayerKey(keyCode); ok {
				keys := eng.LayerKeys()
				if idx < len(keys) {
					log.Printf("[fxplay] layer %d visible: %v", keys[idx], eng.ToggleLayer(keys[idx]))
				}
			}
		}
	})
}

// setupTitle shows the latest profiler sample in the window title while profiling is enabled.
// The update callback runs on the window goroutine, which is the only one allowed to set the title.
//
// Parameters:
//   - eng: the engine instance
//   - baseTitle: the title without statistics
func setupTitle(eng engine.Engine, baseTitle string) {
	var last float64
	eng.Window().SetUpdateCallback(func() {
		fps := eng.Stats().FPS
		if fps == last {
			return
		}
		last = fps
		paused := ""
		if eng.Clock().Paused() {
			paused = " [paused]"
		}
		eng.Window().SetTitle(fmt.Sprintf("%s | %.0f FPS%s", baseTitle, fps, paused))
	})
}

// blendOptions maps a -blend value to the pipeline options applied to overlay layers.
func blendOptions(mode string) ([]pipeline.PipelineBuilderOption, error) {
	switch strings.ToLower(mode) {
	case "alpha", "":
		return []pipeline.PipelineBuilderOption{pipeline.WithBlendEnabled(true)}, nil
	case "add", "additive":
		return []pipeline.PipelineBuilderOption{pipeline.WithAdditiveBlend()}, nil
	case "none", "off":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown blend mode %q", mode)
	}
}

// layerName derives an effect label from a shader path, e.g. "shaders/plasma.frag.wgsl" -> "plasma".
func layerName(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return common.Coalesce(name, "effect")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: fxplay [options] -ps <pixel.wgsl> [-ps <overlay.wgsl> ...]\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nKeys:\n")
	fmt.Fprintf(os.Stderr, "  Space pause/resume  R reload  P profiler  -/= speed  0 reset  1-9 toggle layer  Esc quit\n")
}
