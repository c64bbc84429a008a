package gputest

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// memoryFlags picks the memory type the allocation lands in. CPUToGPU memory is
// deliberately non-coherent so callers have to flush.
func memoryFlags(info *gpu.AllocationCreateInfo) gpu.MemoryPropertyFlags {
	var flags gpu.MemoryPropertyFlags
	switch info.Usage {
	case gpu.MemoryUsageCPUOnly:
		flags = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent
	case gpu.MemoryUsageCPUToGPU:
		flags = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyDeviceLocal
	case gpu.MemoryUsageGPUToCPU:
		flags = gpu.MemoryPropertyHostVisible | gpu.MemoryPropertyHostCoherent | gpu.MemoryPropertyHostCached
	case gpu.MemoryUsageGPUOnly, gpu.MemoryUsageUnknown:
		flags = gpu.MemoryPropertyDeviceLocal
	}
	return flags | info.RequiredFlags
}

// newAllocation registers an allocation of size bytes. d.mu must be held.
func (d *Device) newAllocation(size uint64, info *gpu.AllocationCreateInfo) gpu.Allocation {
	flags := memoryFlags(info)
	a := gpu.Allocation(d.add(KindAllocation))
	d.allocations[a] = &allocation{
		data:       make([]byte, size),
		flags:      flags,
		persistent: info.Flags&gpu.AllocationCreateMapped != 0 && flags&gpu.MemoryPropertyHostVisible != 0,
	}
	return a
}

func (d *Device) CreateBuffer(info *gpu.BufferCreateInfo, alloc *gpu.AllocationCreateInfo) (gpu.Buffer, gpu.Allocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateBuffer"); f != nil {
		if f.partial {
			return gpu.Buffer(d.add(KindBuffer)), 0, gpu.NewResultError("vmaCreateBuffer", f.result)
		}
		return 0, 0, gpu.NewResultError("vmaCreateBuffer", f.result)
	}
	if info.Size == 0 {
		return 0, 0, gpu.NewResultError("vkCreateBuffer", gpu.ResultErrorInitializationFailed)
	}
	b := gpu.Buffer(d.add(KindBuffer))
	a := d.newAllocation(info.Size, alloc)
	d.buffers[b] = &buffer{alloc: a, size: info.Size}
	return b, a, nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer, a gpu.Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindBuffer, uint64(b)) {
		delete(d.buffers, b)
	}
	if d.remove(KindAllocation, uint64(a)) {
		delete(d.allocations, a)
	}
}

func (d *Device) CreateImage(info *gpu.ImageCreateInfo, alloc *gpu.AllocationCreateInfo) (gpu.Image, gpu.Allocation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("CreateImage"); f != nil {
		if f.partial {
			return gpu.Image(d.add(KindImage)), 0, gpu.NewResultError("vmaCreateImage", f.result)
		}
		return 0, 0, gpu.NewResultError("vmaCreateImage", f.result)
	}
	size := uint64(info.Width) * uint64(info.Height) * uint64(info.Format.Size())
	if size == 0 {
		return 0, 0, gpu.NewResultError("vkCreateImage", gpu.ResultErrorFormatNotSupported)
	}
	img := gpu.Image(d.add(KindImage))
	a := d.newAllocation(size, alloc)
	d.images[img] = &image{alloc: a, info: *info, layout: info.InitialLayout}
	return img, a, nil
}

func (d *Device) DestroyImage(img gpu.Image, a gpu.Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remove(KindImage, uint64(img)) {
		delete(d.images, img)
	}
	if d.remove(KindAllocation, uint64(a)) {
		delete(d.allocations, a)
	}
}

func (d *Device) AllocationInfo(a gpu.Allocation) gpu.AllocationInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	al, ok := d.allocations[a]
	if !ok {
		return gpu.AllocationInfo{}
	}
	info := gpu.AllocationInfo{Size: uint64(len(al.data)), MemoryFlags: al.flags}
	if al.persistent {
		info.Mapped = al.data
	}
	return info
}

func (d *Device) Map(a gpu.Allocation) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("Map"); f != nil {
		return nil, gpu.NewResultError("vkMapMemory", f.result)
	}
	al, ok := d.allocations[a]
	if !ok || al.flags&gpu.MemoryPropertyHostVisible == 0 {
		return nil, gpu.NewResultError("vkMapMemory", gpu.ResultErrorMemoryMapFailed)
	}
	al.maps++
	return al.data, nil
}

func (d *Device) Unmap(a gpu.Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls["Unmap"]++
	if al, ok := d.allocations[a]; ok && al.maps > 0 {
		al.maps--
	}
}

// Flush validates the range against the non-coherent atom size like a driver would.
func (d *Device) Flush(a gpu.Allocation, offset, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("Flush"); f != nil {
		return gpu.NewResultError("vkFlushMappedMemoryRanges", f.result)
	}
	al, ok := d.allocations[a]
	if !ok {
		return fmt.Errorf("gputest: flush of unknown allocation %d", a)
	}
	end := uint64(len(al.data))
	atom := d.limits.NonCoherentAtomSize
	if offset+size > end {
		return fmt.Errorf("gputest: flush range [%d, %d) exceeds allocation size %d", offset, offset+size, end)
	}
	if atom > 1 && (offset%atom != 0 || (size%atom != 0 && offset+size != end)) {
		return fmt.Errorf("gputest: flush range [%d, %d) not aligned to %d", offset, offset+size, atom)
	}
	d.flushes++
	return nil
}

// Flushes returns how many Flush calls succeeded.
func (d *Device) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// Mapped reports whether a has outstanding Map calls without a matching Unmap.
func (d *Device) Mapped(a gpu.Allocation) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	al, ok := d.allocations[a]
	return ok && al.maps > 0
}

// ReadBuffer returns a copy of the memory behind b, as a device-side readback would.
func (d *Device) ReadBuffer(b gpu.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[b]
	if !ok {
		return nil
	}
	al := d.allocations[buf.alloc]
	return append([]byte(nil), al.data[:buf.size]...)
}

// ReadImage returns a copy of the texels of img.
func (d *Device) ReadImage(img gpu.Image) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	im, ok := d.images[img]
	if !ok {
		return nil
	}
	return append([]byte(nil), d.allocations[im.alloc].data...)
}

// ImageLayout returns the current layout of img.
func (d *Device) ImageLayout(img gpu.Image) gpu.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if im, ok := d.images[img]; ok {
		return im.layout
	}
	return gpu.ImageLayoutUndefined
}

// ImageInfo returns the create info of a live image.
func (d *Device) ImageInfo(img gpu.Image) (gpu.ImageCreateInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if im, ok := d.images[img]; ok {
		return im.info, true
	}
	return gpu.ImageCreateInfo{}, false
}

func (d *Device) BeginSingleUse() (gpu.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f := d.call("BeginSingleUse"); f != nil {
		return 0, gpu.NewResultError("vkAllocateCommandBuffers", f.result)
	}
	cmd := gpu.CommandBuffer(d.add(KindCommandBuffer))
	d.commands[cmd] = nil
	return cmd, nil
}

func (d *Device) record(cmd gpu.CommandBuffer, fn func() error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commands[cmd]; !ok {
		return
	}
	d.commands[cmd] = append(d.commands[cmd], fn)
}

// CmdCopyBuffer records a copy. The copy runs when the command buffer is ended.
func (d *Device) CmdCopyBuffer(cmd gpu.CommandBuffer, src, dst gpu.Buffer, regions ...gpu.BufferCopy) {
	d.record(cmd, func() error {
		s, ok := d.buffers[src]
		if !ok {
			return fmt.Errorf("gputest: copy from unknown buffer %d", src)
		}
		t, ok := d.buffers[dst]
		if !ok {
			return fmt.Errorf("gputest: copy to unknown buffer %d", dst)
		}
		sd, td := d.allocations[s.alloc].data, d.allocations[t.alloc].data
		for _, r := range regions {
			if r.SrcOffset+r.Size > s.size || r.DstOffset+r.Size > t.size {
				return fmt.Errorf("gputest: copy region out of bounds")
			}
			copy(td[r.DstOffset:r.DstOffset+r.Size], sd[r.SrcOffset:r.SrcOffset+r.Size])
		}
		return nil
	})
}

func (d *Device) CmdCopyBufferToImage(cmd gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, layout gpu.ImageLayout, regions ...gpu.BufferImageCopy) {
	d.record(cmd, func() error {
		s, ok := d.buffers[src]
		if !ok {
			return fmt.Errorf("gputest: copy from unknown buffer %d", src)
		}
		im, ok := d.images[dst]
		if !ok {
			return fmt.Errorf("gputest: copy to unknown image %d", dst)
		}
		if im.layout != layout || layout != gpu.ImageLayoutTransferDstOptimal {
			return fmt.Errorf("gputest: image %d is in layout %d, copy expects %d", dst, im.layout, layout)
		}
		sd, td := d.allocations[s.alloc].data, d.allocations[im.alloc].data
		for _, r := range regions {
			n := uint64(r.Width) * uint64(r.Height) * uint64(im.info.Format.Size())
			if r.BufferOffset+n > s.size || n > uint64(len(td)) {
				return fmt.Errorf("gputest: image copy region out of bounds")
			}
			copy(td[:n], sd[r.BufferOffset:r.BufferOffset+n])
		}
		return nil
	})
}

func (d *Device) CmdTransitionImageLayout(cmd gpu.CommandBuffer, img gpu.Image, format gpu.Format, from, to gpu.ImageLayout) {
	d.record(cmd, func() error {
		im, ok := d.images[img]
		if !ok {
			return fmt.Errorf("gputest: transition of unknown image %d", img)
		}
		if im.layout != from {
			return fmt.Errorf("gputest: image %d is in layout %d, transition expects %d", img, im.layout, from)
		}
		im.layout = to
		return nil
	})
}

// EndSingleUse executes the recorded commands in order and frees the command buffer.
func (d *Device) EndSingleUse(cmd gpu.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds, ok := d.commands[cmd]
	if !ok {
		return fmt.Errorf("gputest: unknown command buffer %d", cmd)
	}
	delete(d.commands, cmd)
	defer d.remove(KindCommandBuffer, uint64(cmd))

	if f := d.call("EndSingleUse"); f != nil {
		return gpu.NewResultError("vkQueueSubmit", f.result)
	}
	for _, fn := range cmds {
		if err := fn(); err != nil {
			return err
		}
	}
	d.submissions++
	return nil
}

// Submissions returns how many single-use command buffers completed.
func (d *Device) Submissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}
