package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := check("vkCreateFence", vk.CreateFence(context.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence)); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait blocks until the fence signals or timeoutNs elapses.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := vk.WaitForFences(context.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return gpu.NewResultError("vkWaitForFences", gpu.Result(result))
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if err := check("vkResetFences", vk.ResetFences(context.LogicalDevice, 1, []vk.Fence{vf.Handle})); err != nil {
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

func (d *VulkanDevice) CreateFence(signaled bool) (gpu.Fence, error) {
	var fence *VulkanFence
	if err := d.locks.SafeCall(SynchronizationManagement, func() error {
		var err error
		fence, err = NewFence(d.context, signaled)
		return err
	}); err != nil {
		return 0, err
	}
	return gpu.Fence(d.fences.add(fence)), nil
}

func (d *VulkanDevice) WaitForFence(fence gpu.Fence, timeout time.Duration) error {
	f, ok := d.fences.get(uint64(fence))
	if !ok {
		return gpu.NewResultError("vkWaitForFences", gpu.ResultErrorDeviceLost)
	}
	if timeout < 0 {
		timeout = 0
	}
	return f.FenceWait(d.context, uint64(timeout.Nanoseconds()))
}

func (d *VulkanDevice) ResetFence(fence gpu.Fence) error {
	f, ok := d.fences.get(uint64(fence))
	if !ok {
		return gpu.NewResultError("vkResetFences", gpu.ResultErrorDeviceLost)
	}
	return f.FenceReset(d.context)
}

// NativeFence returns the VkFence behind fence for queue submission.
func (d *VulkanDevice) NativeFence(fence gpu.Fence) vk.Fence {
	f, ok := d.fences.get(uint64(fence))
	if !ok {
		return vk.NullFence
	}
	// The submission will signal it.
	f.IsSignaled = false
	return f.Handle
}

func (d *VulkanDevice) DestroyFence(fence gpu.Fence) {
	if f, ok := d.fences.remove(uint64(fence)); ok {
		_ = d.locks.SafeCall(SynchronizationManagement, func() error {
			f.FenceDestroy(d.context)
			return nil
		})
	}
}
