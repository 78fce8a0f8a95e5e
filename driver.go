package vkb

// The caches in this package never call Vulkan directly; they go through
// IDriver. This keeps every cache decision testable without a GPU and keeps
// all of the unsafe handle plumbing in one place (see vkdriver.go).
//
// Handles are opaque 64-bit values. The zero value always means "no object"
// and is never produced by a successful create call.

type (
	ShaderModule        uint64
	RenderPass          uint64
	Pipeline            uint64
	PipelineLayout      uint64
	DescriptorSetLayout uint64
	DescriptorSet       uint64
	DescriptorPool      uint64
	Buffer              uint64
	ImageView           uint64
	Sampler             uint64

	// CommandBuffer identifies the command buffer currently being recorded.
	// Pipeline and descriptor bindings are local to it, not to the device.
	CommandBuffer uint64
)

// Enum values below match the numeric values of their Vulkan counterparts so
// the driver can cast without lookup tables.

type CullMode uint8

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
	CullModeFrontAndBack
)

type FrontFace uint8

const (
	FrontFaceCounterClockwise FrontFace = iota
	FrontFaceClockwise
)

type BlendFactor uint8

const (
	BlendFactorZero BlendFactor = iota
	BlendFactorOne
	BlendFactorSrcColor
	BlendFactorOneMinusSrcColor
	BlendFactorDstColor
	BlendFactorOneMinusDstColor
	BlendFactorSrcAlpha
	BlendFactorOneMinusSrcAlpha
	BlendFactorDstAlpha
	BlendFactorOneMinusDstAlpha
	BlendFactorConstantColor
	BlendFactorOneMinusConstantColor
	BlendFactorConstantAlpha
	BlendFactorOneMinusConstantAlpha
	BlendFactorSrcAlphaSaturate
)

type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

type CompareOp uint8

const (
	CompareOpNever CompareOp = iota
	CompareOpLess
	CompareOpEqual
	CompareOpLessOrEqual
	CompareOpGreater
	CompareOpNotEqual
	CompareOpGreaterOrEqual
	CompareOpAlways
)

type PrimitiveTopology uint16

const (
	TopologyPointList PrimitiveTopology = iota
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
)

type VertexInputRate uint16

const (
	InputRateVertex VertexInputRate = iota
	InputRateInstance
)

// Format is the vertex attribute or image format, using VkFormat values.
// The cache treats it as opaque.
type Format uint16

type ImageLayout uint32

const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutGeneral                ImageLayout = 1
	ImageLayoutColorAttachment        ImageLayout = 2
	ImageLayoutDepthStencilAttachment ImageLayout = 3
	ImageLayoutShaderReadOnly         ImageLayout = 5
)

type ShaderStageFlags uint32

const (
	StageVertex   ShaderStageFlags = 0x01
	StageFragment ShaderStageFlags = 0x10
)

type ColorComponentFlags uint8

const (
	ColorComponentR ColorComponentFlags = 0x1
	ColorComponentG ColorComponentFlags = 0x2
	ColorComponentB ColorComponentFlags = 0x4
	ColorComponentA ColorComponentFlags = 0x8

	ColorComponentAll = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA
)

type DescriptorType uint32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeInputAttachment      DescriptorType = 10
)

type IndexType uint32

const (
	IndexTypeUint16 IndexType = iota
	IndexTypeUint32
)

type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 0x10
	BufferUsageStorage BufferUsage = 0x20
	BufferUsageIndex   BufferUsage = 0x40
	BufferUsageVertex  BufferUsage = 0x80
)

// WholeSize marks a uniform binding that covers the remainder of its buffer.
// Sizes are stored in 32 bits inside DescriptorKey, so this sentinel differs
// from the native 64-bit one; the translation happens when the binding is
// turned into a BufferInfo.
const WholeSize = ^uint32(0)

// rangeWhole is the native 64-bit whole-size sentinel (VK_WHOLE_SIZE).
const rangeWhole = ^uint64(0)

// VertexAttribute describes one vertex attribute as handed to the driver.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// VertexBinding describes one vertex buffer binding as handed to the driver.
type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

// SpecMapEntry maps one specialization constant into the data blob.
type SpecMapEntry struct {
	ConstantID uint32
	Offset     uint32
	Size       uint32
}

// SpecializationInfo carries the specialization constants for a program.
// Every value occupies a 4-byte cell; bools are 4 bytes wide as in Vulkan.
type SpecializationInfo struct {
	Entries []SpecMapEntry
	Data    []byte
}

// PipelineCreateInfo holds everything the driver needs to build a graphics
// pipeline. Viewport and scissor are always dynamic and are not part of it.
type PipelineCreateInfo struct {
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	Specialization *SpecializationInfo

	RenderPass RenderPass
	Subpass    uint32
	Topology   PrimitiveTopology

	VertexAttributes []VertexAttribute
	VertexBindings   []VertexBinding

	Raster RasterState
	Layout PipelineLayout
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// BufferInfo points a uniform descriptor at a region of a buffer.
type BufferInfo struct {
	Buffer Buffer
	Offset uint64
	Range  uint64
}

// DescriptorWrite is one element of a batched descriptor update. Buffer is
// consulted for uniform writes, Image for sampler and input attachment
// writes.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  BufferInfo
	Image   DescriptorImageInfo
}

// IDriver is the boundary to the native graphics API. All calls happen on
// the rendering thread; implementations need no internal locking.
type IDriver interface {
	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateGraphicsPipeline(info PipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(l DescriptorSetLayout)

	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	DestroyPipelineLayout(l PipelineLayout)

	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	DestroyDescriptorPool(p DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateBuffer(size uint64, usage BufferUsage) (Buffer, error)
	DestroyBuffer(b Buffer)

	CmdBindPipeline(cb CommandBuffer, p Pipeline)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, sets []DescriptorSet)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)
}
