package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/root_constants"
	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuBackendConfig carries the builder options the wgpu backend needs before it requests a device.
type wgpuBackendConfig struct {
	forceFallbackAdapter bool
	sampleCount          MSAASampleCount
	clearColor           wgpu.Color
	shaderFormat         ShaderFormat
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode  wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount  MSAASampleCount  // MSAA sample count for the main render pass
	clearColor   wgpu.Color
	shaderFormat ShaderFormat

	// Frame state for the single render pass recorded per frame
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// wgpuRootSignature is the wgpu form of a root signature: one bind group layout holding the
// root-constant uniform buffer, the pipeline layout built from it, the buffer and its bind group.
type wgpuRootSignature struct {
	label          string
	constantsSize  uint64
	layout         *wgpu.BindGroupLayout
	pipelineLayout *wgpu.PipelineLayout
	buffer         *wgpu.Buffer
	bindGroup      *wgpu.BindGroup
	once           sync.Once
}

var _ RootSignature = &wgpuRootSignature{}

func (s *wgpuRootSignature) Label() string {
	return s.label
}

func (s *wgpuRootSignature) ConstantsSize() uint64 {
	return s.constantsSize
}

func (s *wgpuRootSignature) Release() {
	s.once.Do(func() {
		if s.bindGroup != nil {
			s.bindGroup.Release()
		}
		if s.buffer != nil {
			s.buffer.Release()
		}
		if s.pipelineLayout != nil {
			s.pipelineLayout.Release()
		}
		if s.layout != nil {
			s.layout.Release()
		}
	})
}

// wgpuPipelineState is the wgpu form of a pipeline state object.
type wgpuPipelineState struct {
	label    string
	root     RootSignature
	pipeline *wgpu.RenderPipeline
	vs       *wgpu.ShaderModule
	fs       *wgpu.ShaderModule
	once     sync.Once
}

var _ PipelineState = &wgpuPipelineState{}

func (s *wgpuPipelineState) Label() string {
	return s.label
}

func (s *wgpuPipelineState) RootSignature() RootSignature {
	return s.root
}

func (s *wgpuPipelineState) Release() {
	s.once.Do(func() {
		if s.pipeline != nil {
			s.pipeline.Release()
		}
		if s.fs != nil {
			s.fs.Release()
		}
		if s.vs != nil {
			s.vs.Release()
		}
	})
}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg wgpuBackendConfig) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:           &sync.Mutex{},
		instance:     wgpu.CreateInstance(nil),
		presentMode:  wgpu.PresentModeImmediate,
		sampleCount:  cfg.sampleCount,
		clearColor:   cfg.clearColor,
		shaderFormat: cfg.shaderFormat,
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	capabilities := w.surface.GetCapabilities(w.adapter)
	w.surfaceFormat = &capabilities.Formats[0]

	return w
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if msaaEnabled {
		// Create the MSAA texture that the render pass draws into; the resolved
		// result is written to the swapchain view as the ResolveTarget.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			panic(err)
		}
		b.msaaTexture = msaaTexture
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			panic(err)
		}
	}

	// Full-screen effects never test depth, so the pass has a single color attachment.
	// When MSAA is enabled, View is the MSAA texture and ResolveTarget is set per-frame
	// to the swapchain view. When disabled, View is set per-frame to the swapchain view.
	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		Label: "Effect Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          b.msaaTextureView,
				ResolveTarget: nil,
				LoadOp:        wgpu.LoadOpClear,
				StoreOp:       storeOp,
				ClearValue:    b.clearColor,
			},
		},
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) CreateRootSignature(label string, constantsSize uint64) (RootSignature, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs := &wgpuRootSignature{
		label:         label,
		constantsSize: constantsSize,
	}

	var err error
	rs.layout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label + " Root Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    root_constants.Binding,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: constantsSize,
				},
			},
		},
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("failed to create bind group layout: %w", err)
	}

	rs.pipelineLayout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label + " Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{rs.layout},
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("failed to create pipeline layout: %w", err)
	}

	rs.buffer, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Root Constants",
		Size:  constantsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("failed to create root-constant buffer: %w", err)
	}

	rs.bindGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Root Bind Group",
		Layout: rs.layout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: root_constants.Binding,
				Buffer:  rs.buffer,
				Offset:  0,
				Size:    wgpu.WholeSize,
			},
		},
	})
	if err != nil {
		rs.Release()
		return nil, fmt.Errorf("failed to create root bind group: %w", err)
	}

	return rs, nil
}

func (b *wgpuRendererBackendImpl) createShaderModule(bin shader.Binary) (*wgpu.ShaderModule, error) {
	desc := &wgpu.ShaderModuleDescriptor{
		Label: bin.Key,
	}
	switch b.shaderFormat {
	case ShaderFormatSPIRV:
		desc.SPIRVDescriptor = &wgpu.ShaderModuleSPIRVDescriptor{
			Code: bin.SPIRV,
		}
	default:
		desc.WGSLDescriptor = &wgpu.ShaderModuleWGSLDescriptor{
			Code: bin.Source,
		}
	}
	return b.device.CreateShaderModule(desc)
}

func (b *wgpuRendererBackendImpl) CreatePipelineState(label string, root RootSignature, p pipeline.Pipeline, vsBin, fsBin shader.Binary) (PipelineState, error) {
	rs, ok := root.(*wgpuRootSignature)
	if !ok {
		return nil, errors.New("root signature was not created by the wgpu backend")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ps := &wgpuPipelineState{
		label: label,
		root:  root,
	}

	var err error
	ps.vs, err = b.createShaderModule(vsBin)
	if err != nil {
		ps.Release()
		return nil, fmt.Errorf("failed to create vertex shader module %q: %w", vsBin.Key, err)
	}
	ps.fs, err = b.createShaderModule(fsBin)
	if err != nil {
		ps.Release()
		return nil, fmt.Errorf("failed to create fragment shader module %q: %w", fsBin.Key, err)
	}

	ps.pipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label + " Render Pipeline",
		Layout: rs.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     ps.vs,
			EntryPoint: vsBin.EntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     ps.fs,
			EntryPoint: fsBin.EntryPoint,
			Targets: []wgpu.ColorTargetState{
				p.ColorTarget(*b.surfaceFormat),
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: uint32(b.sampleCount),
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		ps.Release()
		return nil, fmt.Errorf("failed to create render pipeline: %w", err)
	}

	return ps, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Defensive: if a previous frame's surface texture is still held, avoid
	// attempting to acquire another one. This prevents wgpu-native validation
	// errors like "Surface image is already acquired" when frames overlap.
	if b.frameSurface != nil {
		return fmt.Errorf("previous frame surface not yet presented")
	}
	if b.renderPassDescriptor == nil {
		return fmt.Errorf("surface is not configured")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}
	pass := encoder.BeginRenderPass(b.renderPassDescriptor)

	b.frameEncoder = encoder
	b.framePass = pass
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) SetRootSignature(root RootSignature) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs, ok := root.(*wgpuRootSignature)
	if !ok || b.framePass == nil {
		return
	}
	b.framePass.SetBindGroup(root_constants.BindGroup, rs.bindGroup, nil)
}

func (b *wgpuRendererBackendImpl) SetPipelineState(ps PipelineState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := ps.(*wgpuPipelineState)
	if !ok || b.framePass == nil {
		return
	}
	b.framePass.SetPipeline(state.pipeline)
}

func (b *wgpuRendererBackendImpl) WriteRootConstants(root RootSignature, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rs, ok := root.(*wgpuRootSignature)
	if !ok {
		return
	}
	b.queue.WriteBuffer(rs.buffer, 0, data)
}

func (b *wgpuRendererBackendImpl) Draw(vertexCount, instanceCount uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.Draw(vertexCount, instanceCount, 0, 0)
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return
	}
	b.framePass.End()

	commandBuffer, err := b.frameEncoder.Finish(nil)
	if err != nil {
		b.framePass.Release()
		b.frameEncoder.Release()
		b.frameView.Release()
		b.frameSurface.Release()
		b.frameEncoder = nil
		b.framePass = nil
		b.frameSurface = nil
		b.frameView = nil
		return
	}

	b.queue.Submit(commandBuffer)

	commandBuffer.Release()
	b.framePass.Release()
	b.frameEncoder.Release()
	b.frameEncoder = nil
	b.framePass = nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if b.frameSurface == nil {
		return
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
