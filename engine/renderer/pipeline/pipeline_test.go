package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("fx")

	if p.PipelineKey() != "fx" {
		t.Errorf("PipelineKey() = %q, want fx", p.PipelineKey())
	}
	if p.BlendEnabled() {
		t.Error("blending should be disabled by default")
	}
	if p.CullMode() != wgpu.CullModeNone {
		t.Errorf("CullMode() = %v, want CullModeNone", p.CullMode())
	}
	if p.Topology() != wgpu.PrimitiveTopologyTriangleList {
		t.Errorf("Topology() = %v, want TriangleList", p.Topology())
	}
	if p.WriteMask() != wgpu.ColorWriteMaskAll {
		t.Errorf("WriteMask() = %v, want All", p.WriteMask())
	}

	target := p.ColorTarget(wgpu.TextureFormatBGRA8Unorm)
	if target.Format != wgpu.TextureFormatBGRA8Unorm {
		t.Errorf("ColorTarget().Format = %v, want BGRA8Unorm", target.Format)
	}
	if target.Blend != nil {
		t.Error("ColorTarget() should not attach a blend state while blending is disabled")
	}
}

func TestPipelineOptions(t *testing.T) {
	p := NewPipeline("fx",
		WithCullMode(wgpu.CullModeBack),
		WithFrontFace(wgpu.FrontFaceCW),
		WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		WithWriteMask(wgpu.ColorWriteMaskRed),
		WithAdditiveBlend(),
	)

	if p.CullMode() != wgpu.CullModeBack {
		t.Errorf("CullMode() = %v, want Back", p.CullMode())
	}
	if p.FrontFace() != wgpu.FrontFaceCW {
		t.Errorf("FrontFace() = %v, want CW", p.FrontFace())
	}
	if p.Topology() != wgpu.PrimitiveTopologyTriangleStrip {
		t.Errorf("Topology() = %v, want TriangleStrip", p.Topology())
	}
	if !p.BlendEnabled() {
		t.Fatal("WithAdditiveBlend should enable blending")
	}

	target := p.ColorTarget(wgpu.TextureFormatRGBA8Unorm)
	if target.Blend == nil {
		t.Fatal("ColorTarget() should attach the blend state while blending is enabled")
	}
	if target.Blend.Color.DstFactor != wgpu.BlendFactorOne {
		t.Errorf("additive blend DstFactor = %v, want One", target.Blend.Color.DstFactor)
	}
	if target.WriteMask != wgpu.ColorWriteMaskRed {
		t.Errorf("ColorTarget().WriteMask = %v, want Red", target.WriteMask)
	}
}

func TestWithBlendStateDoesNotEnableBlending(t *testing.T) {
	state := &wgpu.BlendState{}
	p := NewPipeline("fx", WithBlendState(state))
	if p.BlendEnabled() {
		t.Error("WithBlendState alone should not enable blending")
	}
	if p.BlendState() != state {
		t.Error("BlendState() should return the configured state")
	}
}

func TestDefaultBlendIsStraightAlphaOver(t *testing.T) {
	target := NewPipeline("fx", WithBlendEnabled(true)).ColorTarget(wgpu.TextureFormatBGRA8Unorm)
	if target.Blend == nil {
		t.Fatal("ColorTarget() should attach the blend state while blending is enabled")
	}
	color := target.Blend.Color
	if color.SrcFactor != wgpu.BlendFactorSrcAlpha || color.DstFactor != wgpu.BlendFactorOneMinusSrcAlpha {
		t.Errorf("color factors = %v/%v, want SrcAlpha/OneMinusSrcAlpha", color.SrcFactor, color.DstFactor)
	}
	if color.Operation != wgpu.BlendOperationAdd {
		t.Errorf("color operation = %v, want Add", color.Operation)
	}
}
