package renderer

// Releasable is any GPU-owning object that must be explicitly released.
type Releasable interface {
	// Release frees the GPU objects held by the resource. Calling Release more than once is a no-op.
	Release()
}

// RootSignature declares the resources an effect's shaders may access. For full-screen
// effects this is one root-constant uniform buffer at @group(0) @binding(0), visible to
// both the vertex and fragment stages.
type RootSignature interface {
	Releasable

	// Label returns the debug label the root signature was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// ConstantsSize returns the size in bytes of the root-constant buffer.
	//
	// Returns:
	//   - uint64: the root-constant buffer size
	ConstantsSize() uint64
}

// PipelineState is a compiled, immutable render pipeline bound to the root signature it was created with.
type PipelineState interface {
	Releasable

	// Label returns the debug label the pipeline state was created with.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// RootSignature returns the root signature the pipeline layout was taken from.
	//
	// Returns:
	//   - RootSignature: the root signature of this pipeline
	RootSignature() RootSignature
}
