package gpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

// DescriptorType is the kind of resource a descriptor binding points at.
type DescriptorType uint32

const (
	DescriptorTypeSampler DescriptorType = iota
	DescriptorTypeCombinedImageSampler
	DescriptorTypeSampledImage
	DescriptorTypeStorageImage
	DescriptorTypeUniformTexelBuffer
	DescriptorTypeStorageTexelBuffer
	DescriptorTypeUniformBuffer
	DescriptorTypeStorageBuffer
	DescriptorTypeUniformBufferDynamic
	DescriptorTypeStorageBufferDynamic
	DescriptorTypeInputAttachment
)

var descriptorTypeNames = [...]string{
	DescriptorTypeSampler:              "sampler",
	DescriptorTypeCombinedImageSampler: "combined_image_sampler",
	DescriptorTypeSampledImage:         "sampled_image",
	DescriptorTypeStorageImage:         "storage_image",
	DescriptorTypeUniformTexelBuffer:   "uniform_texel_buffer",
	DescriptorTypeStorageTexelBuffer:   "storage_texel_buffer",
	DescriptorTypeUniformBuffer:        "uniform_buffer",
	DescriptorTypeStorageBuffer:        "storage_buffer",
	DescriptorTypeUniformBufferDynamic: "uniform_buffer_dynamic",
	DescriptorTypeStorageBufferDynamic: "storage_buffer_dynamic",
	DescriptorTypeInputAttachment:      "input_attachment",
}

func (t DescriptorType) String() string {
	if int(t) < len(descriptorTypeNames) {
		return descriptorTypeNames[t]
	}
	return fmt.Sprintf("descriptor_type(%d)", uint32(t))
}

// Valid reports whether t is one of the declared descriptor kinds.
func (t DescriptorType) Valid() bool {
	return int(t) < len(descriptorTypeNames)
}

// IsBuffer reports whether descriptors of this kind are written with buffer infos.
func (t DescriptorType) IsBuffer() bool {
	switch t {
	case DescriptorTypeUniformBuffer, DescriptorTypeStorageBuffer,
		DescriptorTypeUniformBufferDynamic, DescriptorTypeStorageBufferDynamic,
		DescriptorTypeUniformTexelBuffer, DescriptorTypeStorageTexelBuffer:
		return true
	case DescriptorTypeSampler, DescriptorTypeCombinedImageSampler, DescriptorTypeSampledImage,
		DescriptorTypeStorageImage, DescriptorTypeInputAttachment:
		return false
	}
	return false
}

// ParseDescriptorType maps the snake_case name of a descriptor kind back to its value.
func ParseDescriptorType(s string) (DescriptorType, error) {
	for i, n := range descriptorTypeNames {
		if n == s {
			return DescriptorType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown descriptor type %q: %w", s, core.ErrInvalidArgument)
}

// ShaderStageFlags is a bitmask of programmable stages. Bit values match Vulkan.
type ShaderStageFlags uint32

const (
	ShaderStageVertex                 ShaderStageFlags = 0x01
	ShaderStageTessellationControl    ShaderStageFlags = 0x02
	ShaderStageTessellationEvaluation ShaderStageFlags = 0x04
	ShaderStageGeometry               ShaderStageFlags = 0x08
	ShaderStageFragment               ShaderStageFlags = 0x10
	ShaderStageCompute                ShaderStageFlags = 0x20

	ShaderStageAllGraphics = ShaderStageVertex | ShaderStageTessellationControl |
		ShaderStageTessellationEvaluation | ShaderStageGeometry | ShaderStageFragment
)

// ParseShaderStage maps a stage name ("vertex", "fragment", ...) to its flag.
func ParseShaderStage(s string) (ShaderStageFlags, error) {
	switch s {
	case "vertex":
		return ShaderStageVertex, nil
	case "tessellation_control":
		return ShaderStageTessellationControl, nil
	case "tessellation_evaluation":
		return ShaderStageTessellationEvaluation, nil
	case "geometry":
		return ShaderStageGeometry, nil
	case "fragment":
		return ShaderStageFragment, nil
	case "compute":
		return ShaderStageCompute, nil
	case "all_graphics":
		return ShaderStageAllGraphics, nil
	}
	return 0, fmt.Errorf("unknown shader stage %q: %w", s, core.ErrInvalidArgument)
}

// DescriptorBindingFlags are the descriptor-indexing flags of a single binding.
type DescriptorBindingFlags uint32

const (
	DescriptorBindingUpdateAfterBind DescriptorBindingFlags = 0x01
	DescriptorBindingPartiallyBound  DescriptorBindingFlags = 0x04
)

type DescriptorSetLayoutCreateFlags uint32

const (
	DescriptorSetLayoutCreateUpdateAfterBindPool DescriptorSetLayoutCreateFlags = 0x02
)

type DescriptorPoolCreateFlags uint32

const (
	DescriptorPoolCreateFreeDescriptorSet DescriptorPoolCreateFlags = 0x01
	DescriptorPoolCreateUpdateAfterBind   DescriptorPoolCreateFlags = 0x02
)

// BufferUsageFlags match the Vulkan buffer usage bits.
type BufferUsageFlags uint32

const (
	BufferUsageTransferSrc        BufferUsageFlags = 0x001
	BufferUsageTransferDst        BufferUsageFlags = 0x002
	BufferUsageUniformTexelBuffer BufferUsageFlags = 0x004
	BufferUsageStorageTexelBuffer BufferUsageFlags = 0x008
	BufferUsageUniformBuffer      BufferUsageFlags = 0x010
	BufferUsageStorageBuffer      BufferUsageFlags = 0x020
	BufferUsageIndexBuffer        BufferUsageFlags = 0x040
	BufferUsageVertexBuffer       BufferUsageFlags = 0x080
	BufferUsageIndirectBuffer     BufferUsageFlags = 0x100
)

// ImageUsageFlags match the Vulkan image usage bits.
type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc            ImageUsageFlags = 0x01
	ImageUsageTransferDst            ImageUsageFlags = 0x02
	ImageUsageSampled                ImageUsageFlags = 0x04
	ImageUsageStorage                ImageUsageFlags = 0x08
	ImageUsageColorAttachment        ImageUsageFlags = 0x10
	ImageUsageDepthStencilAttachment ImageUsageFlags = 0x20
)

// MemoryPropertyFlags describe the heap a memory type lives in.
type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal  MemoryPropertyFlags = 0x01
	MemoryPropertyHostVisible  MemoryPropertyFlags = 0x02
	MemoryPropertyHostCoherent MemoryPropertyFlags = 0x04
	MemoryPropertyHostCached   MemoryPropertyFlags = 0x08
)

// MemoryUsage is the residency hint handed to the allocator.
type MemoryUsage uint32

const (
	MemoryUsageUnknown MemoryUsage = iota
	// MemoryUsageGPUOnly prefers device-local memory that the host never maps.
	MemoryUsageGPUOnly
	// MemoryUsageCPUOnly requires host-visible, host-coherent memory. Used for staging.
	MemoryUsageCPUOnly
	// MemoryUsageCPUToGPU requires host-visible memory and prefers device-local.
	// Used for uniform buffers updated every frame.
	MemoryUsageCPUToGPU
	// MemoryUsageGPUToCPU requires host-visible memory and prefers host-cached. Used for readback.
	MemoryUsageGPUToCPU
)

var memoryUsageNames = map[MemoryUsage]string{
	MemoryUsageUnknown:  "MemoryUsageUnknown",
	MemoryUsageGPUOnly:  "MemoryUsageGPUOnly",
	MemoryUsageCPUOnly:  "MemoryUsageCPUOnly",
	MemoryUsageCPUToGPU: "MemoryUsageCPUToGPU",
	MemoryUsageGPUToCPU: "MemoryUsageGPUToCPU",
}

func (u MemoryUsage) String() string {
	str, ok := memoryUsageNames[u]
	if !ok {
		return "unknown"
	}
	return str
}

// Properties returns the memory properties a memory type must have, and the
// ones it should preferably have, to serve this usage.
func (u MemoryUsage) Properties() (required, preferred MemoryPropertyFlags) {
	switch u {
	case MemoryUsageGPUOnly:
		return 0, MemoryPropertyDeviceLocal
	case MemoryUsageCPUOnly:
		return MemoryPropertyHostVisible | MemoryPropertyHostCoherent, 0
	case MemoryUsageCPUToGPU:
		return MemoryPropertyHostVisible, MemoryPropertyDeviceLocal
	case MemoryUsageGPUToCPU:
		return MemoryPropertyHostVisible, MemoryPropertyHostCached
	case MemoryUsageUnknown:
		return 0, 0
	}
	return 0, 0
}

// AllocationCreateFlags adjust allocation behavior.
type AllocationCreateFlags uint32

const (
	// AllocationCreateDedicatedMemory gives the resource its own device memory block.
	AllocationCreateDedicatedMemory AllocationCreateFlags = 1 << iota
	// AllocationCreateMapped keeps the allocation persistently mapped. Ignored for
	// memory that ends up not host-visible.
	AllocationCreateMapped
	// AllocationCreateHostAccessSequentialWrite declares the host only writes the mapping sequentially.
	AllocationCreateHostAccessSequentialWrite
	// AllocationCreateHostAccessRandom declares the host reads the mapping.
	AllocationCreateHostAccessRandom
)

type ImageTiling uint32

const (
	ImageTilingOptimal ImageTiling = 0
	ImageTilingLinear  ImageTiling = 1
)

// ImageLayout values match Vulkan.
type ImageLayout uint32

const (
	ImageLayoutUndefined                     ImageLayout = 0
	ImageLayoutGeneral                       ImageLayout = 1
	ImageLayoutColorAttachmentOptimal        ImageLayout = 2
	ImageLayoutDepthStencilAttachmentOptimal ImageLayout = 3
	ImageLayoutShaderReadOnlyOptimal         ImageLayout = 5
	ImageLayoutTransferSrcOptimal            ImageLayout = 6
	ImageLayoutTransferDstOptimal            ImageLayout = 7
)

type Filter uint32

const (
	FilterNearest Filter = 0
	FilterLinear  Filter = 1
)

type SamplerAddressMode uint32

const (
	SamplerAddressModeRepeat         SamplerAddressMode = 0
	SamplerAddressModeMirroredRepeat SamplerAddressMode = 1
	SamplerAddressModeClampToEdge    SamplerAddressMode = 2
	SamplerAddressModeClampToBorder  SamplerAddressMode = 3
)

type PrimitiveTopology uint32

const (
	PrimitiveTopologyPointList PrimitiveTopology = iota
	PrimitiveTopologyLineList
	PrimitiveTopologyLineStrip
	PrimitiveTopologyTriangleList
	PrimitiveTopologyTriangleStrip
	PrimitiveTopologyTriangleFan
)

type PolygonMode uint32

const (
	PolygonModeFill PolygonMode = iota
	PolygonModeLine
	PolygonModePoint
)

type CullMode uint32

const (
	CullModeNone         CullMode = 0
	CullModeFront        CullMode = 1
	CullModeBack         CullMode = 2
	CullModeFrontAndBack CullMode = 3
)

type FrontFace uint32

const (
	FrontFaceCounterClockwise FrontFace = 0
	FrontFaceClockwise        FrontFace = 1
)

type CompareOp uint32

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

type BlendFactor uint32

const (
	BlendFactorZero             BlendFactor = 0
	BlendFactorOne              BlendFactor = 1
	BlendFactorSrcColor         BlendFactor = 2
	BlendFactorOneMinusSrcColor BlendFactor = 3
	BlendFactorDstColor         BlendFactor = 4
	BlendFactorOneMinusDstColor BlendFactor = 5
	BlendFactorSrcAlpha         BlendFactor = 6
	BlendFactorOneMinusSrcAlpha BlendFactor = 7
	BlendFactorDstAlpha         BlendFactor = 8
	BlendFactorOneMinusDstAlpha BlendFactor = 9
)

type BlendOp uint32

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

type ColorComponentFlags uint32

const (
	ColorComponentR ColorComponentFlags = 0x1
	ColorComponentG ColorComponentFlags = 0x2
	ColorComponentB ColorComponentFlags = 0x4
	ColorComponentA ColorComponentFlags = 0x8

	ColorComponentAll = ColorComponentR | ColorComponentG | ColorComponentB | ColorComponentA
)

// DynamicState values match Vulkan.
type DynamicState uint32

const (
	DynamicStateViewport DynamicState = iota
	DynamicStateScissor
	DynamicStateLineWidth
	DynamicStateDepthBias
	DynamicStateBlendConstants
	DynamicStateDepthBounds
	DynamicStateStencilCompareMask
	DynamicStateStencilWriteMask
	DynamicStateStencilReference
)
