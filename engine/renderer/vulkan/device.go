// Package vulkan implements gpu.Device and gpu.Allocator on top of an existing
// Vulkan logical device through github.com/goki/vulkan.
//
// The Vulkan loader must be initialized by the caller (vk.SetDefaultGetInstanceProcAddr
// and vk.Init) before any of these functions run.
package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

type image struct {
	handle vk.Image
	format gpu.Format
}

type renderPass struct {
	handle vk.RenderPass
	// owned passes were created by CreateRenderPass and are destroyed with the device.
	owned bool
}

type allocation struct {
	memory vk.DeviceMemory
	size   uint64
	flags  gpu.MemoryPropertyFlags
	// mapped is the persistent mapping of a mapped allocation.
	mapped []byte
	// transient is set while Map holds a mapping of an unmapped allocation.
	transient []byte
}

// VulkanDevice is the gpu.Device and gpu.Allocator of one logical device.
type VulkanDevice struct {
	context *VulkanContext
	locks   *VulkanLockPool

	limits gpu.Limits
	memory vk.PhysicalDeviceMemoryProperties

	commandPool vk.CommandPool

	setLayouts      registry[vk.DescriptorSetLayout]
	descriptorPools registry[vk.DescriptorPool]
	descriptorSets  registry[descriptorSet]
	shaderModules   registry[vk.ShaderModule]
	pipelineLayouts registry[vk.PipelineLayout]
	pipelineCaches  registry[vk.PipelineCache]
	pipelines       registry[vk.Pipeline]
	buffers         registry[vk.Buffer]
	images          registry[image]
	imageViews      registry[vk.ImageView]
	samplers        registry[vk.Sampler]
	allocations     registry[*allocation]
	commandBuffers  registry[*VulkanCommandBuffer]
	fences          registry[*VulkanFence]
	renderPasses    registry[renderPass]
}

var (
	_ gpu.Device    = (*VulkanDevice)(nil)
	_ gpu.Allocator = (*VulkanDevice)(nil)
)

// NewVulkanDevice wraps context and creates the command pool used for single-use
// submissions.
func NewVulkanDevice(context *VulkanContext) (*VulkanDevice, error) {
	if err := context.validate(); err != nil {
		return nil, err
	}
	d := &VulkanDevice{
		context: context,
		locks:   NewVulkanLockPool(),
		limits:  context.limits(),
		memory:  context.memoryProperties(),
	}
	d.locks.SetQueueFamily(context.QueueFamilyIndex)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: context.QueueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit) | vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if err := check("vkCreateCommandPool", vk.CreateCommandPool(context.LogicalDevice, &poolCreateInfo, context.Allocator, &pool)); err != nil {
		return nil, err
	}
	d.commandPool = pool

	core.LogDebug("Vulkan device ready (non-coherent atom %d, push constants %d bytes)", d.limits.NonCoherentAtomSize, d.limits.MaxPushConstantsSize)
	return d, nil
}

func (d *VulkanDevice) Limits() gpu.Limits {
	return d.limits
}

// RegisterRenderPass exposes a render pass created by the caller as a
// gpu.RenderPass. The render pass stays owned by the caller.
func (d *VulkanDevice) RegisterRenderPass(pass vk.RenderPass) gpu.RenderPass {
	return gpu.RenderPass(d.renderPasses.add(renderPass{handle: pass}))
}

// UnregisterRenderPass forgets a render pass. Passes created by CreateRenderPass
// are destroyed.
func (d *VulkanDevice) UnregisterRenderPass(pass gpu.RenderPass) {
	if rp, ok := d.renderPasses.remove(uint64(pass)); ok && rp.owned {
		vk.DestroyRenderPass(d.context.LogicalDevice, rp.handle, d.context.Allocator)
	}
}

// Destroy releases the command pool. Objects still alive are reported and
// destroyed. The caller must have waited for the device to be idle.
func (d *VulkanDevice) Destroy() {
	dev, cb := d.context.LogicalDevice, d.context.Allocator

	leaked := d.pipelines.len() + d.pipelineLayouts.len() + d.setLayouts.len() + d.descriptorPools.len() +
		d.shaderModules.len() + d.buffers.len() + d.images.len() + d.fences.len()
	if leaked > 0 {
		core.LogWarn("Destroying vulkan device with %d live objects", leaked)
	}

	for _, p := range d.pipelines.drain() {
		vk.DestroyPipeline(dev, p, cb)
	}
	for _, l := range d.pipelineLayouts.drain() {
		vk.DestroyPipelineLayout(dev, l, cb)
	}
	for _, c := range d.pipelineCaches.drain() {
		vk.DestroyPipelineCache(dev, c, cb)
	}
	d.descriptorSets.drain()
	for _, p := range d.descriptorPools.drain() {
		vk.DestroyDescriptorPool(dev, p, cb)
	}
	for _, l := range d.setLayouts.drain() {
		vk.DestroyDescriptorSetLayout(dev, l, cb)
	}
	for _, m := range d.shaderModules.drain() {
		vk.DestroyShaderModule(dev, m, cb)
	}
	for _, s := range d.samplers.drain() {
		vk.DestroySampler(dev, s, cb)
	}
	for _, v := range d.imageViews.drain() {
		vk.DestroyImageView(dev, v, cb)
	}
	for _, b := range d.buffers.drain() {
		vk.DestroyBuffer(dev, b, cb)
	}
	for _, img := range d.images.drain() {
		vk.DestroyImage(dev, img.handle, cb)
	}
	for _, a := range d.allocations.drain() {
		vk.FreeMemory(dev, a.memory, cb)
	}
	for _, f := range d.fences.drain() {
		f.FenceDestroy(d.context)
	}
	d.commandBuffers.drain()
	for _, rp := range d.renderPasses.drain() {
		if rp.owned {
			vk.DestroyRenderPass(dev, rp.handle, cb)
		}
	}

	if d.commandPool != nil {
		vk.DestroyCommandPool(dev, d.commandPool, cb)
		d.commandPool = nil
	}
}
