package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fx/engine/effect"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
)

type fakeRoot struct {
	label    string
	released int
}

func (f *fakeRoot) Release()              { f.released++ }
func (f *fakeRoot) Label() string         { return f.label }
func (f *fakeRoot) ConstantsSize() uint64 { return 16 }

type fakeState struct {
	label    string
	root     renderer.RootSignature
	released int
}

func (f *fakeState) Release()                              { f.released++ }
func (f *fakeState) Label() string                         { return f.label }
func (f *fakeState) RootSignature() renderer.RootSignature { return f.root }

// fakeRenderer records frame and draw calls by label so tests can assert layer order.
type fakeRenderer struct {
	mu sync.Mutex

	width, height int
	beginErr      error

	calls    []string
	retired  []renderer.Releasable
	released bool
}

var _ renderer.Renderer = &fakeRenderer{}

func (f *fakeRenderer) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeRenderer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRenderer) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *fakeRenderer) Size() (int, int)                    { return f.width, f.height }
func (f *fakeRenderer) Resize(w, h int)                     { f.width, f.height = w, h }
func (f *fakeRenderer) SetPresentMode(renderer.PresentMode) {}

func (f *fakeRenderer) CreateRootSignature(label string, size uint64) (renderer.RootSignature, error) {
	return &fakeRoot{label: label}, nil
}

func (f *fakeRenderer) CreatePipelineState(label string, root renderer.RootSignature, p pipeline.Pipeline, vs, fs shader.Binary) (renderer.PipelineState, error) {
	return &fakeState{label: label, root: root}, nil
}

func (f *fakeRenderer) BeginFrame() error {
	if f.beginErr != nil {
		return f.beginErr
	}
	f.record("begin")
	return nil
}

func (f *fakeRenderer) SetRootSignature(root renderer.RootSignature) error {
	f.record("root:" + root.Label())
	return nil
}

func (f *fakeRenderer) SetPipelineState(ps renderer.PipelineState) error {
	f.record("pso:" + ps.Label())
	return nil
}

func (f *fakeRenderer) SetRootConstants(root renderer.RootSignature, data []byte) error {
	return nil
}

func (f *fakeRenderer) Draw(vertexCount, instanceCount uint32) error {
	f.record(fmt.Sprintf("draw:%d", vertexCount))
	return nil
}

func (f *fakeRenderer) EndFrame() { f.record("end") }
func (f *fakeRenderer) Present()  { f.record("present") }

func (f *fakeRenderer) Retire(resources ...renderer.Releasable) {
	f.mu.Lock()
	f.retired = append(f.retired, resources...)
	f.mu.Unlock()
}

func (f *fakeRenderer) Release() {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
}

// fakeCompiler produces a binary for any source that does not contain "broken".
type fakeCompiler struct{}

func (fakeCompiler) Compile(key string, stage shader.ShaderType, source string) (shader.Binary, error) {
	if strings.Contains(source, "broken") {
		return shader.Binary{}, fmt.Errorf("%w: %s", shader.ErrCompile, key)
	}
	return shader.Binary{Key: key, Stage: stage, EntryPoint: "main", Source: source, SPIRV: []byte(source)}, nil
}

const (
	testVS = "@vertex fn vs_main() {}"
	testPS = "@fragment fn fs_main() {}"
)

func newTestFX(label string) *effect.FullscreenEffect {
	return effect.NewFullscreenEffect(effect.WithLabel(label), effect.WithCompiler(fakeCompiler{}))
}

type fakeTime struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeTime) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeTime) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestClock(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := newClockAt(ft.now)

	ft.advance(2 * time.Second)
	if got := c.Now(); got != 2*time.Second {
		t.Fatalf("Now() = %v, want 2s", got)
	}

	c.Pause()
	ft.advance(5 * time.Second)
	if got := c.Now(); got != 2*time.Second {
		t.Errorf("paused Now() = %v, want 2s", got)
	}
	if !c.Paused() {
		t.Error("Paused() = false after Pause")
	}

	if c.TogglePause() {
		t.Error("TogglePause() on a paused clock should resume it")
	}
	ft.advance(time.Second)
	if got := c.Seconds(); got != 3 {
		t.Errorf("Seconds() = %v, want 3", got)
	}

	if got := c.SetScale(2); got != 2 {
		t.Errorf("SetScale(2) = %v", got)
	}
	ft.advance(time.Second)
	if got := c.Now(); got != 5*time.Second {
		t.Errorf("scaled Now() = %v, want 5s", got)
	}

	if got := c.SetScale(1000); got != MaxTimeScale {
		t.Errorf("SetScale(1000) = %v, want %v", got, MaxTimeScale)
	}
	if got := c.SetScale(0); got != MinTimeScale {
		t.Errorf("SetScale(0) = %v, want %v", got, MinTimeScale)
	}

	c.Reset()
	if got := c.Now(); got != 0 {
		t.Errorf("Now() after Reset = %v, want 0", got)
	}
	if c.Scale() != MinTimeScale {
		t.Error("Reset must keep the time scale")
	}
}

// waitForChange polls w until every path in want has been reported, failing on any reported
// path outside want and allowed.
func waitForChange(t *testing.T, w *Watcher, want []string, allowed ...string) {
	t.Helper()
	ok := make(map[string]bool)
	for _, p := range append(append([]string(nil), want...), allowed...) {
		ok[p] = true
	}
	seen := make(map[string]bool)
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, p := range w.Poll() {
			if !ok[p] {
				t.Fatalf("Poll() reported %s, want only %v", p, want)
			}
			seen[p] = true
		}
		done := true
		for _, p := range want {
			done = done && seen[p]
		}
		if done {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	vs := filepath.Join(dir, "a.vert.wgsl")
	ps := filepath.Join(dir, "a.frag.wgsl")
	if err := os.WriteFile(vs, []byte(testVS), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(vs, ps, testPS, "")
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()
	if got, want := w.Paths(), []string{ps, vs}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths() = %v, want %v (inline sources must be skipped)", got, want)
	}
	if got := w.Poll(); got != nil {
		t.Fatalf("Poll() with no changes = %v", got)
	}

	// writes to unregistered files in the same directory are dropped
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(vs, []byte(testVS+"\n// edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, w, []string{vs})

	// a missing file is reported once it is created
	if err := os.WriteFile(ps, []byte(testPS), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, w, []string{ps}, vs)

	// editors that save through a temporary file and a rename
	tmp := filepath.Join(dir, ".a.vert.wgsl.swp")
	if err := os.WriteFile(tmp, []byte(testVS), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, vs); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, w, []string{vs}, ps)

	w.Remove(vs)
	if got := w.Paths(); !reflect.DeepEqual(got, []string{ps}) {
		t.Errorf("Paths() after Remove = %v", got)
	}
	if err := os.WriteFile(vs, []byte(testVS), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ps, []byte(testPS+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, w, []string{ps})

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Add(vs); err == nil {
		t.Error("Add() after Close expected error")
	}
}

func TestWatcherReferenceCounts(t *testing.T) {
	dir := t.TempDir()
	ps := filepath.Join(dir, "shared.frag.wgsl")

	w := newWatcher()
	defer w.Close()
	if err := w.Add(ps, ps); err != nil {
		t.Fatal(err)
	}
	w.Remove(ps)
	if got := w.Paths(); !reflect.DeepEqual(got, []string{ps}) {
		t.Fatalf("Paths() after one Remove = %v, want [%s]", got, ps)
	}
	w.Remove(ps)
	if got := w.Paths(); got != nil {
		t.Errorf("Paths() after matching Removes = %v, want none", got)
	}
	if err := w.Add(filepath.Join(dir, "missing", "x.wgsl")); err == nil {
		t.Error("Add() in a missing directory expected error")
	}

	var nilWatcher *Watcher
	if err := nilWatcher.Add(ps); err != nil || nilWatcher.Poll() != nil || nilWatcher.Close() != nil {
		t.Error("nil watcher should be a no-op")
	}
}

func newTestEngine(t *testing.T, opts ...EngineBuilderOption) (*engine, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{width: 64, height: 64}
	ft := &fakeTime{t: time.Unix(0, 0)}
	e := NewEngine(append([]EngineBuilderOption{WithRenderer(r), WithClock(newClockAt(ft.now))}, opts...)...).(*engine)
	return e, r
}

func TestRenderFrameDrawsLayersInOrder(t *testing.T) {
	e, r := newTestEngine(t,
		WithEffect(10, newTestFX("top"), testVS, testPS),
		WithEffect(-1, newTestFX("bottom"), testVS, testPS),
		WithEffect(3, newTestFX("middle"), testVS, testPS),
	)

	if err := e.renderFrame(); err != nil {
		t.Fatalf("renderFrame() error = %v", err)
	}
	want := []string{
		"begin",
		"root:bottom", "pso:bottom", "draw:3",
		"root:middle", "pso:middle", "draw:3",
		"root:top", "pso:top", "draw:3",
		"end", "present",
	}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if got := e.LayerKeys(); !reflect.DeepEqual(got, []int{-1, 3, 10}) {
		t.Errorf("LayerKeys() = %v", got)
	}
}

func TestInactiveLayersAreSkipped(t *testing.T) {
	e, r := newTestEngine(t,
		WithEffect(1, newTestFX("a"), testVS, testPS),
		WithEffect(2, newTestFX("b"), testVS, testPS),
	)

	if !e.SetLayerActive(1, false) {
		t.Fatal("SetLayerActive() = false for an existing layer")
	}
	if e.SetLayerActive(99, false) {
		t.Error("SetLayerActive() = true for a missing layer")
	}
	_ = e.renderFrame()
	want := []string{"begin", "root:b", "pso:b", "draw:3", "end", "present"}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if !e.ToggleLayer(1) {
		t.Error("ToggleLayer() should reactivate the layer")
	}
	r.reset()
	_ = e.renderFrame()
	if got := len(r.Calls()); got != 8 {
		t.Errorf("recorded %d calls with both layers active, want 8", got)
	}
}

func TestAddEffectFailure(t *testing.T) {
	e, r := newTestEngine(t)

	err := e.AddEffect(0, newTestFX("bad"), testVS, "@fragment fn broken() {}")
	if !errors.Is(err, effect.ErrShaderCompile) {
		t.Fatalf("AddEffect() error = %v, want ErrShaderCompile", err)
	}
	if e.Effect(0) == nil {
		t.Fatal("a failed layer stays registered so it can be reloaded")
	}
	_ = e.renderFrame()
	want := []string{"begin", "end", "present"}
	if got := r.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if err := e.AddEffect(1, nil, testVS, testPS); err == nil {
		t.Error("AddEffect() with a nil effect expected error")
	}
	headless := NewEngine()
	if err := headless.AddEffect(0, newTestFX("x"), testVS, testPS); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("AddEffect() without renderer error = %v, want ErrNoRenderer", err)
	}
}

func TestBeginFrameErrorSkipsFrame(t *testing.T) {
	e, r := newTestEngine(t, WithEffect(0, newTestFX("a"), testVS, testPS))
	r.beginErr = renderer.ErrSurfaceMinimized

	if err := e.renderFrame(); !errors.Is(err, renderer.ErrSurfaceMinimized) {
		t.Fatalf("renderFrame() error = %v", err)
	}
	if got := r.Calls(); len(got) != 0 {
		t.Errorf("calls = %v, want none", got)
	}
}

func TestRunningChangesApplyBetweenFrames(t *testing.T) {
	e, r := newTestEngine(t, WithEffect(0, newTestFX("a"), testVS, testPS))
	first := e.Effect(0)
	oldPSO := first.PipelineState()
	e.running.Store(true)

	e.Reload(0)
	if first.PipelineState() != oldPSO {
		t.Fatal("Reload must not touch the effect outside the render goroutine")
	}
	if err := e.AddEffect(5, newTestFX("b"), testVS, testPS); err != nil {
		t.Fatal(err)
	}
	if e.Effect(5) != nil {
		t.Fatal("AddEffect while running must wait for the next frame")
	}

	_ = e.renderFrame()
	if first.PipelineState() == oldPSO {
		t.Error("Reload should have rebuilt the pipeline state")
	}
	if e.Effect(5) == nil {
		t.Error("queued AddEffect should have run before the frame")
	}
	if len(r.retired) != 2 || r.retired[0] != oldPSO {
		t.Errorf("retired = %v, want the previous pipeline state and root signature", r.retired)
	}

	removed := e.Effect(5)
	e.RemoveEffect(5)
	_ = e.renderFrame()
	if e.Effect(5) != nil {
		t.Error("RemoveEffect should unregister the layer")
	}
	if removed.Initialized() {
		t.Error("removed layer must hand its GPU objects to the renderer")
	}
	if len(r.retired) != 4 {
		t.Errorf("retired %d resources, want 4", len(r.retired))
	}
}

func TestReplacingLayerRetiresPrevious(t *testing.T) {
	e, r := newTestEngine(t, WithEffect(0, newTestFX("a"), testVS, testPS))
	old := e.Effect(0)

	if err := e.AddEffect(0, newTestFX("b"), testVS, testPS); err != nil {
		t.Fatal(err)
	}
	if old.Initialized() {
		t.Error("replaced effect should be retired")
	}
	if len(r.retired) != 2 {
		t.Errorf("retired %d resources, want 2", len(r.retired))
	}
	if len(e.Effects()) != 1 {
		t.Errorf("Effects() = %v, want one layer", e.Effects())
	}
}

func TestRemovedLayersStopWatching(t *testing.T) {
	dir := t.TempDir()
	ps := filepath.Join(dir, "plasma.frag.wgsl")
	other := filepath.Join(dir, "tunnel.frag.wgsl")
	for _, p := range []string{ps, other} {
		if err := os.WriteFile(p, []byte(testPS), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e, _ := newTestEngine(t,
		WithEffect(0, newTestFX("a"), testVS, ps),
		WithEffect(1, newTestFX("b"), testVS, ps),
	)
	defer e.watcher.Close()
	if got := e.watcher.Paths(); !reflect.DeepEqual(got, []string{ps}) {
		t.Fatalf("Paths() = %v, want [%s]", got, ps)
	}

	e.RemoveEffect(0)
	if got := e.watcher.Paths(); !reflect.DeepEqual(got, []string{ps}) {
		t.Errorf("Paths() = %v, a path still used by layer 1 must stay watched", got)
	}

	if err := e.AddEffect(1, newTestFX("c"), testVS, other); err != nil {
		t.Fatal(err)
	}
	if got := e.watcher.Paths(); !reflect.DeepEqual(got, []string{other}) {
		t.Errorf("Paths() after replacing layer 1 = %v, want [%s]", got, other)
	}

	e.RemoveEffect(1)
	if got := e.watcher.Paths(); got != nil {
		t.Errorf("Paths() after removing every layer = %v, want none", got)
	}
}

func TestReloadChanged(t *testing.T) {
	dir := t.TempDir()
	ps := filepath.Join(dir, "plasma.frag.wgsl")
	if err := os.WriteFile(ps, []byte(testPS), 0o644); err != nil {
		t.Fatal(err)
	}

	e, _ := newTestEngine(t,
		WithEffect(0, newTestFX("file"), testVS, ps),
		WithEffect(1, newTestFX("inline"), testVS, testPS),
	)
	fileFX, inlineFX := e.Effect(0), e.Effect(1)
	filePSO, inlinePSO := fileFX.PipelineState(), inlineFX.PipelineState()

	defer e.watcher.Close()

	if err := os.WriteFile(ps, []byte(testPS+"\n// edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, e.watcher, []string{ps})
	e.reloadChanged([]string{ps})

	if fileFX.PipelineState() == filePSO {
		t.Error("layer using the changed file should be reloaded")
	}
	if inlineFX.PipelineState() != inlinePSO {
		t.Error("layer with inline sources must not be reloaded")
	}

	// a broken edit keeps the previous pipeline
	if err := os.WriteFile(ps, []byte("@fragment fn broken() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	reloaded := fileFX.PipelineState()
	e.Reload(0)
	if fileFX.PipelineState() != reloaded {
		t.Error("failed reload must keep the previous pipeline")
	}
}

func TestRunHeadlessReleasesOnQuit(t *testing.T) {
	e, r := newTestEngine(t,
		WithEffect(0, newTestFX("a"), testVS, testPS),
		WithRenderFrameLimit(500),
	)
	fx := e.Effect(0)

	frames := make(chan struct{}, 1)
	e.SetRenderCallback(func(float32) {
		select {
		case frames <- struct{}{}:
		default:
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-frames:
	case <-time.After(5 * time.Second):
		t.Fatal("render loop never produced a frame")
	}
	e.Quit()
	e.Quit()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if fx.Initialized() {
		t.Error("Run must release every layer on exit")
	}
	if !r.released {
		t.Error("Run must release the renderer on exit")
	}
}

func TestProfilerToggle(t *testing.T) {
	e, _ := newTestEngine(t, WithProfiling(true))
	if e.ToggleProfiler() {
		t.Error("ToggleProfiler() should disable an enabled profiler")
	}
	if !e.ToggleProfiler() {
		t.Error("ToggleProfiler() should enable a disabled profiler")
	}
	e.DisableProfiler()
	if e.profilingEnabled.Load() {
		t.Error("DisableProfiler() had no effect")
	}
}

func TestTickRateAndFrameLimit(t *testing.T) {
	e, _ := newTestEngine(t, WithTickRate(0))
	if e.engineTickRate != time.Second/60 {
		t.Errorf("engineTickRate = %v, want 60Hz", e.engineTickRate)
	}
	e.SetTickRate(120)
	if e.engineTickRate != time.Second/120 {
		t.Errorf("engineTickRate = %v, want 120Hz", e.engineTickRate)
	}
	e.SetRenderFrameLimit(50)
	if e.renderFrameLimit != 20*time.Millisecond {
		t.Errorf("renderFrameLimit = %v, want 20ms", e.renderFrameLimit)
	}
	e.SetRenderFrameLimit(-1)
	if e.renderFrameLimit != 0 {
		t.Error("negative frame limit should uncap the render loop")
	}
}
