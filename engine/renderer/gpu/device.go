package gpu

import "time"

// Device is the logical device as seen by the resource lifecycle layer.
//
// Create methods return a *ResultError when the driver rejects the request.
// Destroy methods accept the null handle and do nothing with it.
type Device interface {
	Limits() Limits

	CreateDescriptorSetLayout(info *DescriptorSetLayoutCreateInfo) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(info *DescriptorPoolCreateInfo) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	// AllocateDescriptorSets allocates one set per layout. On failure no set is returned.
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	FreeDescriptorSets(pool DescriptorPool, sets []DescriptorSet) error
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreateShaderModule(code []uint32) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)

	CreatePipelineLayout(info *PipelineLayoutCreateInfo) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreatePipelineCache(initialData []byte) (PipelineCache, error)
	PipelineCacheData(cache PipelineCache) ([]byte, error)
	DestroyPipelineCache(cache PipelineCache)
	CreateGraphicsPipeline(cache PipelineCache, info *GraphicsPipelineCreateInfo) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateImageView(image Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(info *SamplerCreateInfo) (Sampler, error)
	DestroySampler(sampler Sampler)

	// BeginSingleUse allocates a primary command buffer and begins recording it for one submission.
	BeginSingleUse() (CommandBuffer, error)
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, regions ...BufferCopy)
	CmdCopyBufferToImage(cmd CommandBuffer, src Buffer, dst Image, layout ImageLayout, regions ...BufferImageCopy)
	CmdTransitionImageLayout(cmd CommandBuffer, image Image, format Format, from, to ImageLayout)
	// EndSingleUse ends recording, submits, blocks until the queue is idle and frees the
	// command buffer. The command buffer is freed on every path.
	EndSingleUse(cmd CommandBuffer) error

	CreateFence(signaled bool) (Fence, error)
	// WaitForFence returns a *ResultError with ResultTimeout if the fence did not signal in time.
	WaitForFence(fence Fence, timeout time.Duration) error
	ResetFence(fence Fence) error
	DestroyFence(fence Fence)
}

// Allocator is a general purpose device memory allocator that creates buffers and
// images together with the memory that backs them.
type Allocator interface {
	// Limits reports the device limits the allocator aligns against.
	Limits() Limits

	// CreateBuffer may return a non-null handle for either half together with an error.
	// The caller must release such a partial pair with DestroyBuffer.
	CreateBuffer(info *BufferCreateInfo, alloc *AllocationCreateInfo) (Buffer, Allocation, error)
	// DestroyBuffer accepts a null buffer, a null allocation or both.
	DestroyBuffer(buffer Buffer, allocation Allocation)
	CreateImage(info *ImageCreateInfo, alloc *AllocationCreateInfo) (Image, Allocation, error)
	DestroyImage(image Image, allocation Allocation)

	AllocationInfo(allocation Allocation) AllocationInfo
	// Map returns the host view of the whole allocation.
	Map(allocation Allocation) ([]byte, error)
	Unmap(allocation Allocation)
	// Flush makes host writes in [offset, offset+size) visible to the device.
	Flush(allocation Allocation, offset, size uint64) error
}
