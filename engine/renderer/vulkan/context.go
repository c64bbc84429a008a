package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// VulkanContext carries the objects created outside this package: instance and
// device selection, surface and swapchain belong to the caller.
type VulkanContext struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	// Queue receives single-use submissions. It must support transfer and graphics.
	Queue            vk.Queue
	QueueFamilyIndex uint32
	// Allocator is passed to every create and destroy call. It may be nil.
	Allocator *vk.AllocationCallbacks
}

func (vc *VulkanContext) validate() error {
	if vc == nil || vc.PhysicalDevice == nil || vc.LogicalDevice == nil || vc.Queue == nil {
		return fmt.Errorf("vulkan context needs a physical device, a logical device and a queue: %w", core.ErrInvalidArgument)
	}
	return nil
}

// limits reads the physical device limits the resource layer aligns against.
func (vc *VulkanContext) limits() gpu.Limits {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(vc.PhysicalDevice, &properties)
	properties.Deref()
	properties.Limits.Deref()

	return gpu.Limits{
		NonCoherentAtomSize:             uint64(properties.Limits.NonCoherentAtomSize),
		MinUniformBufferOffsetAlignment: uint64(properties.Limits.MinUniformBufferOffsetAlignment),
		MaxPushConstantsSize:            properties.Limits.MaxPushConstantsSize,
		MaxBoundDescriptorSets:          properties.Limits.MaxBoundDescriptorSets,
	}
}

func (vc *VulkanContext) memoryProperties() vk.PhysicalDeviceMemoryProperties {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()
	return memoryProperties
}
