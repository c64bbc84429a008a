package gpu

// Limits are the physical device limits the layer depends on.
type Limits struct {
	// NonCoherentAtomSize is the alignment of flushed ranges on non-coherent memory.
	NonCoherentAtomSize             uint64
	MinUniformBufferOffsetAlignment uint64
	MaxPushConstantsSize            uint32
	MaxBoundDescriptorSets          uint32
}

type DescriptorSetLayoutBinding struct {
	Binding uint32
	Type    DescriptorType
	Count   uint32
	Stages  ShaderStageFlags
	Flags   DescriptorBindingFlags
}

type DescriptorSetLayoutCreateInfo struct {
	Flags    DescriptorSetLayoutCreateFlags
	Bindings []DescriptorSetLayoutBinding
	// BindingFlags is parallel to Bindings. It is nil when no binding uses indexing flags,
	// in which case no binding-flags structure is chained.
	BindingFlags []DescriptorBindingFlags
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

type DescriptorPoolCreateInfo struct {
	Flags     DescriptorPoolCreateFlags
	MaxSets   uint32
	PoolSizes []DescriptorPoolSize
}

type DescriptorBufferInfo struct {
	Buffer Buffer
	Offset uint64
	// Range is the number of bytes visible to the shader. Zero means the rest of the buffer.
	Range uint64
}

type DescriptorImageInfo struct {
	Sampler Sampler
	View    ImageView
	Layout  ImageLayout
}

// DescriptorWrite points Count consecutive array elements of a binding at resources.
// Exactly one of Buffers or Images is set, depending on Type.
type DescriptorWrite struct {
	Set          DescriptorSet
	Binding      uint32
	ArrayElement uint32
	Type         DescriptorType
	Buffers      []DescriptorBufferInfo
	Images       []DescriptorImageInfo
}

type PushConstantRange struct {
	Stages ShaderStageFlags
	Offset uint32
	Size   uint32
}

type PipelineLayoutCreateInfo struct {
	SetLayouts         []DescriptorSetLayout
	PushConstantRanges []PushConstantRange
}

type ShaderStageInfo struct {
	Stage  ShaderStageFlags
	Module ShaderModule
	Entry  string
}

type VertexInputBinding struct {
	Binding     uint32
	Stride      uint32
	PerInstance bool
}

type VertexInputAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type ColorBlendAttachment struct {
	BlendEnable bool
	SrcColor    BlendFactor
	DstColor    BlendFactor
	ColorOp     BlendOp
	SrcAlpha    BlendFactor
	DstAlpha    BlendFactor
	AlphaOp     BlendOp
	WriteMask   ColorComponentFlags
}

type GraphicsPipelineCreateInfo struct {
	Stages           []ShaderStageInfo
	VertexBindings   []VertexInputBinding
	VertexAttributes []VertexInputAttribute

	Topology         PrimitiveTopology
	PrimitiveRestart bool

	PolygonMode PolygonMode
	CullMode    CullMode
	FrontFace   FrontFace
	LineWidth   float32

	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	StencilTest  bool

	BlendAttachments []ColorBlendAttachment
	DynamicStates    []DynamicState

	Layout     PipelineLayout
	RenderPass RenderPass
	Subpass    uint32
}

type BufferCreateInfo struct {
	Size  uint64
	Usage BufferUsageFlags
}

type ImageCreateInfo struct {
	Width         uint32
	Height        uint32
	Format        Format
	Tiling        ImageTiling
	Usage         ImageUsageFlags
	MipLevels     uint32
	ArrayLayers   uint32
	Samples       uint32
	InitialLayout ImageLayout
}

type AllocationCreateInfo struct {
	Usage MemoryUsage
	Flags AllocationCreateFlags
	// RequiredFlags are added to the properties implied by Usage.
	RequiredFlags MemoryPropertyFlags
}

// AllocationInfo describes a live allocation.
type AllocationInfo struct {
	Size        uint64
	MemoryFlags MemoryPropertyFlags
	// Mapped is the persistent mapping when the allocation was created mapped, nil otherwise.
	Mapped []byte
}

type SamplerCreateInfo struct {
	MagFilter   Filter
	MinFilter   Filter
	AddressMode SamplerAddressMode
}

type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferImageCopy copies tightly packed texels starting at BufferOffset into the whole
// Width x Height region of mip 0, layer 0.
type BufferImageCopy struct {
	BufferOffset uint64
	Width        uint32
	Height       uint32
}
