package root_constants

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// BindGroup and Binding locate the root-constant uniform buffer inside every effect pipeline layout.
const (
	BindGroup = 0
	Binding   = 0
)

// GPUEffectUniformsSource is the canonical WGSL definition of the EffectUniforms struct.
// Matches GPUEffectUniforms layout exactly (16 bytes, std140 aligned).
//
//go:embed assets/effect_uniforms.wgsl
var GPUEffectUniformsSource string

// GPUFullscreenTriangleSource holds WGSL helpers that derive a full-screen triangle
// position and uv from @builtin(vertex_index), so effects need no vertex buffer.
//
//go:embed assets/fullscreen_triangle.wgsl
var GPUFullscreenTriangleSource string

// GPUEffectUniforms is the GPU-aligned representation of the per-draw root constants
// supplied to every full-screen effect.
// Size: 16 bytes.
type GPUEffectUniforms struct {
	Time       float32    // offset  0: effect time in seconds (f32)
	_pad       float32    // offset  4: padding so resolution lands on an 8-byte boundary
	Resolution [2]float32 // offset  8: render target size in pixels (vec2<f32>)
}

// Size returns the size of the GPUEffectUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUEffectUniforms) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUEffectUniforms struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUEffectUniforms) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[4:], 0) // _pad
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(g.Resolution[0]))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Resolution[1]))
	return buf
}
