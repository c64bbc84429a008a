package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelSecondary
	if isPrimary {
		level = vk.CommandBufferLevelPrimary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.LogicalDevice, &allocateInfo, handles)); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := check("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := check("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// AllocateAndBeginSingleUse allocates a primary command buffer and begins recording it.
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool, true)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to and waits for the queue and frees the
// command buffer. The command buffer is freed on every path.
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool, locks *VulkanLockPool) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}

	return locks.SafeQueueCall(context.QueueFamilyIndex, func() error {
		if err := check("vkQueueSubmit", vk.QueueSubmit(context.Queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence)); err != nil {
			return err
		}
		v.State = COMMAND_BUFFER_STATE_SUBMITTED
		// Wait for it to finish
		return check("vkQueueWaitIdle", vk.QueueWaitIdle(context.Queue))
	})
}

func (d *VulkanDevice) BeginSingleUse() (gpu.CommandBuffer, error) {
	var cb *VulkanCommandBuffer
	if err := d.locks.SafeCall(CommandPoolManagement, func() error {
		var err error
		cb, err = AllocateAndBeginSingleUse(d.context, d.commandPool)
		return err
	}); err != nil {
		return 0, err
	}
	return gpu.CommandBuffer(d.commandBuffers.add(cb)), nil
}

func (d *VulkanDevice) EndSingleUse(cmd gpu.CommandBuffer) error {
	cb, ok := d.commandBuffers.remove(uint64(cmd))
	if !ok {
		return fmt.Errorf("command buffer %d: %w", cmd, core.ErrUnknownHandle)
	}
	return d.locks.SafeCall(CommandPoolManagement, func() error {
		return cb.EndSingleUse(d.context, d.commandPool, d.locks)
	})
}

// recording returns the native command buffer of cmd if it is being recorded.
func (d *VulkanDevice) recording(cmd gpu.CommandBuffer) (vk.CommandBuffer, bool) {
	cb, ok := d.commandBuffers.get(uint64(cmd))
	if !ok || cb.State != COMMAND_BUFFER_STATE_RECORDING {
		core.LogError("Command buffer %d is not recording", cmd)
		return nil, false
	}
	return cb.Handle, true
}

func (d *VulkanDevice) CmdCopyBuffer(cmd gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	handle, ok := d.recording(cmd)
	if !ok || len(regions) == 0 {
		return
	}
	srcBuffer, ok1 := d.buffers.get(uint64(src))
	dstBuffer, ok2 := d.buffers.get(uint64(dst))
	if !ok1 || !ok2 {
		core.LogError("CmdCopyBuffer with unknown buffers %d -> %d", src, dst)
		return
	}

	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(handle, srcBuffer, dstBuffer, uint32(len(copies)), copies)
}

func (d *VulkanDevice) CmdCopyBufferToImage(cmd gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions ...gpu.BufferImageCopy) {
	handle, ok := d.recording(cmd)
	if !ok || len(regions) == 0 {
		return
	}
	srcBuffer, ok1 := d.buffers.get(uint64(src))
	dstImage, ok2 := d.images.get(uint64(dst))
	if !ok1 || !ok2 {
		core.LogError("CmdCopyBufferToImage with unknown objects %d -> %d", src, dst)
		return
	}

	copies := make([]vk.BufferImageCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(r.BufferOffset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: aspectMask(dstImage.format),
				MipLevel:   0,
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: r.Width, Height: r.Height, Depth: 1},
		}
	}
	vk.CmdCopyBufferToImage(handle, srcBuffer, dstImage.handle, toImageLayout(layout), uint32(len(copies)), copies)
}

func (d *VulkanDevice) CmdTransitionImageLayout(cmd gpu.CommandBuffer, img gpu.Image, format gpu.Format, from, to gpu.ImageLayout) {
	handle, ok := d.recording(cmd)
	if !ok {
		return
	}
	target, ok := d.images.get(uint64(img))
	if !ok {
		core.LogError("CmdTransitionImageLayout with unknown image %d", img)
		return
	}

	srcAccess, dstAccess, srcStage, dstStage := barrierMasks(from, to)
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           toImageLayout(from),
		NewLayout:           toImageLayout(to),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               target.handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectMask(format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: srcAccess,
		DstAccessMask: dstAccess,
	}

	vk.CmdPipelineBarrier(handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
