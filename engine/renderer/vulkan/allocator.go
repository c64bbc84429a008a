package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// allocate backs requirements with one VkDeviceMemory of its own.
func (d *VulkanDevice) allocate(requirements vk.MemoryRequirements, info *gpu.AllocationCreateInfo) (*allocation, error) {
	requirements.Deref()
	if info == nil {
		info = &gpu.AllocationCreateInfo{Usage: gpu.MemoryUsageGPUOnly}
	}

	required, preferred := info.Usage.Properties()
	required |= info.RequiredFlags
	if info.Flags&(gpu.AllocationCreateMapped|gpu.AllocationCreateHostAccessSequentialWrite|gpu.AllocationCreateHostAccessRandom) != 0 {
		required |= gpu.MemoryPropertyHostVisible
	}

	index, flags, ok := memoryType(&d.memory, requirements.MemoryTypeBits, required, preferred)
	if !ok {
		core.LogWarn("Unable to find suitable memory type!")
		return nil, gpu.NewResultError("vkAllocateMemory", gpu.ResultErrorOutOfDeviceMemory)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := d.locks.SafeCall(MemoryManagement, func() error {
		return check("vkAllocateMemory", vk.AllocateMemory(d.context.LogicalDevice, &allocateInfo, d.context.Allocator, &memory))
	}); err != nil {
		return nil, err
	}

	a := &allocation{memory: memory, size: uint64(requirements.Size), flags: flags}
	if info.Flags&gpu.AllocationCreateMapped != 0 {
		mapped, err := d.mapMemory(a)
		if err != nil {
			vk.FreeMemory(d.context.LogicalDevice, memory, d.context.Allocator)
			return nil, err
		}
		a.mapped = mapped
	}
	return a, nil
}

func (d *VulkanDevice) mapMemory(a *allocation) ([]byte, error) {
	var data unsafe.Pointer
	if err := check("vkMapMemory", vk.MapMemory(d.context.LogicalDevice, a.memory, 0, vk.DeviceSize(vk.WholeSize), 0, &data)); err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(data), a.size), nil
}

func (d *VulkanDevice) CreateBuffer(info *gpu.BufferCreateInfo, alloc *gpu.AllocationCreateInfo) (gpu.Buffer, gpu.Allocation, error) {
	if info.Size == 0 {
		return 0, 0, fmt.Errorf("zero sized buffer: %w", core.ErrInvalidArgument)
	}
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       vk.BufferUsageFlags(info.Usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	if err := d.locks.SafeCall(MemoryManagement, func() error {
		return check("vkCreateBuffer", vk.CreateBuffer(d.context.LogicalDevice, &bufferCreateInfo, d.context.Allocator, &buffer))
	}); err != nil {
		return 0, 0, err
	}
	handle := gpu.Buffer(d.buffers.add(buffer))

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.context.LogicalDevice, buffer, &requirements)
	a, err := d.allocate(requirements, alloc)
	if err != nil {
		return handle, 0, err
	}
	allocHandle := gpu.Allocation(d.allocations.add(a))

	if err := check("vkBindBufferMemory", vk.BindBufferMemory(d.context.LogicalDevice, buffer, a.memory, 0)); err != nil {
		return handle, allocHandle, err
	}
	return handle, allocHandle, nil
}

func (d *VulkanDevice) DestroyBuffer(buffer gpu.Buffer, a gpu.Allocation) {
	if b, ok := d.buffers.remove(uint64(buffer)); ok {
		_ = d.locks.SafeCall(MemoryManagement, func() error {
			vk.DestroyBuffer(d.context.LogicalDevice, b, d.context.Allocator)
			return nil
		})
	}
	d.free(a)
}

func (d *VulkanDevice) CreateImage(info *gpu.ImageCreateInfo, alloc *gpu.AllocationCreateInfo) (gpu.Image, gpu.Allocation, error) {
	if info.Width == 0 || info.Height == 0 {
		return 0, 0, fmt.Errorf("zero sized image: %w", core.ErrInvalidArgument)
	}
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    toFormat(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Width,
			Height: info.Height,
			Depth:  1,
		},
		MipLevels:     max(info.MipLevels, 1),
		ArrayLayers:   max(info.ArrayLayers, 1),
		Samples:       vk.SampleCountFlagBits(max(info.Samples, 1)),
		Tiling:        vk.ImageTiling(info.Tiling),
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: toImageLayout(info.InitialLayout),
	}

	var img vk.Image
	if err := d.locks.SafeCall(ImageManagement, func() error {
		return check("vkCreateImage", vk.CreateImage(d.context.LogicalDevice, &imageCreateInfo, d.context.Allocator, &img))
	}); err != nil {
		return 0, 0, err
	}
	handle := gpu.Image(d.images.add(image{handle: img, format: info.Format}))

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.context.LogicalDevice, img, &requirements)
	a, err := d.allocate(requirements, alloc)
	if err != nil {
		return handle, 0, err
	}
	allocHandle := gpu.Allocation(d.allocations.add(a))

	if err := check("vkBindImageMemory", vk.BindImageMemory(d.context.LogicalDevice, img, a.memory, 0)); err != nil {
		return handle, allocHandle, err
	}
	return handle, allocHandle, nil
}

func (d *VulkanDevice) DestroyImage(img gpu.Image, a gpu.Allocation) {
	if i, ok := d.images.remove(uint64(img)); ok {
		_ = d.locks.SafeCall(ImageManagement, func() error {
			vk.DestroyImage(d.context.LogicalDevice, i.handle, d.context.Allocator)
			return nil
		})
	}
	d.free(a)
}

// free releases the memory of an allocation. Freeing mapped memory unmaps it.
func (d *VulkanDevice) free(handle gpu.Allocation) {
	if a, ok := d.allocations.remove(uint64(handle)); ok {
		_ = d.locks.SafeCall(MemoryManagement, func() error {
			vk.FreeMemory(d.context.LogicalDevice, a.memory, d.context.Allocator)
			return nil
		})
	}
}

func (d *VulkanDevice) AllocationInfo(handle gpu.Allocation) gpu.AllocationInfo {
	a, ok := d.allocations.get(uint64(handle))
	if !ok {
		return gpu.AllocationInfo{}
	}
	return gpu.AllocationInfo{Size: a.size, MemoryFlags: a.flags, Mapped: a.mapped}
}

func (d *VulkanDevice) Map(handle gpu.Allocation) ([]byte, error) {
	a, ok := d.allocations.get(uint64(handle))
	if !ok {
		return nil, fmt.Errorf("allocation %d: %w", handle, core.ErrUnknownHandle)
	}
	if a.mapped != nil {
		return a.mapped, nil
	}
	if a.flags&gpu.MemoryPropertyHostVisible == 0 {
		return nil, gpu.NewResultError("vkMapMemory", gpu.ResultErrorMemoryMapFailed)
	}
	var out []byte
	err := d.locks.SafeCall(MemoryManagement, func() error {
		if a.transient != nil {
			return gpu.NewResultError("vkMapMemory", gpu.ResultErrorMemoryMapFailed)
		}
		mapped, err := d.mapMemory(a)
		if err != nil {
			return err
		}
		a.transient, out = mapped, mapped
		return nil
	})
	return out, err
}

func (d *VulkanDevice) Unmap(handle gpu.Allocation) {
	a, ok := d.allocations.get(uint64(handle))
	if !ok {
		return
	}
	_ = d.locks.SafeCall(MemoryManagement, func() error {
		if a.transient != nil {
			vk.UnmapMemory(d.context.LogicalDevice, a.memory)
			a.transient = nil
		}
		return nil
	})
}

func (d *VulkanDevice) Flush(handle gpu.Allocation, offset, size uint64) error {
	a, ok := d.allocations.get(uint64(handle))
	if !ok {
		return fmt.Errorf("allocation %d: %w", handle, core.ErrUnknownHandle)
	}
	if a.flags&gpu.MemoryPropertyHostCoherent != 0 || size == 0 {
		return nil
	}
	memoryRange := vk.MappedMemoryRange{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: a.memory,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}
	if offset+size >= a.size {
		memoryRange.Size = vk.DeviceSize(vk.WholeSize)
	}
	return check("vkFlushMappedMemoryRanges", vk.FlushMappedMemoryRanges(d.context.LogicalDevice, 1, []vk.MappedMemoryRange{memoryRange}))
}
