// Package memory creates allocator-backed buffers and images and moves host data
// into them, either through a persistent mapping or through a staging buffer and
// a one-shot transfer submission.
package memory

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/math"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// ManagedBuffer is a buffer together with the allocation backing it.
type ManagedBuffer struct {
	Buffer     gpu.Buffer
	Allocation gpu.Allocation
	Size       uint64
	// Mapped is the persistent mapping, nil unless the buffer was created with
	// gpu.AllocationCreateMapped in host-visible memory.
	Mapped []byte

	memoryFlags gpu.MemoryPropertyFlags
	allocator   gpu.Allocator
}

// CreateManagedBuffer allocates a buffer of size bytes in memory matching residency.
func CreateManagedBuffer(a gpu.Allocator, size uint64, usage gpu.BufferUsageFlags, residency gpu.MemoryUsage, flags gpu.AllocationCreateFlags) (*ManagedBuffer, error) {
	if a == nil {
		return nil, fmt.Errorf("create buffer without allocator: %w", core.ErrInvalidArgument)
	}
	if size == 0 {
		return nil, fmt.Errorf("create buffer of size 0: %w", core.ErrInvalidArgument)
	}

	buffer, alloc, err := a.CreateBuffer(
		&gpu.BufferCreateInfo{Size: size, Usage: usage},
		&gpu.AllocationCreateInfo{Usage: residency, Flags: flags},
	)
	if err != nil {
		// The allocator may fail after creating one of the two.
		if buffer != 0 || alloc != 0 {
			a.DestroyBuffer(buffer, alloc)
		}
		core.LogError("Failed to create %d byte buffer (%s): %s", size, residency, err)
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	info := a.AllocationInfo(alloc)
	b := &ManagedBuffer{
		Buffer:      buffer,
		Allocation:  alloc,
		Size:        size,
		memoryFlags: info.MemoryFlags,
		allocator:   a,
	}
	if flags&gpu.AllocationCreateMapped != 0 && info.Mapped != nil {
		b.Mapped = info.Mapped[:size:size]
	}
	return b, nil
}

// HostCoherent reports whether host writes are visible to the device without a flush.
func (b *ManagedBuffer) HostCoherent() bool {
	return b.memoryFlags&gpu.MemoryPropertyHostCoherent != 0
}

// Dispose destroys the buffer and frees its allocation. It is safe on a nil or
// already disposed buffer.
func (b *ManagedBuffer) Dispose() {
	if b == nil || b.allocator == nil {
		return
	}
	b.allocator.DestroyBuffer(b.Buffer, b.Allocation)
	b.Buffer = 0
	b.Allocation = 0
	b.Mapped = nil
	b.allocator = nil
}

// UpdateBuffer writes the first length bytes of data at offset. Nothing is written
// when the range exceeds the buffer, data holds fewer than length bytes or a is
// not the allocator that created b.
func UpdateBuffer(a gpu.Allocator, b *ManagedBuffer, data []byte, offset, length uint64) error {
	if b == nil || b.allocator == nil {
		return fmt.Errorf("update of a disposed buffer: %w", core.ErrInvalidArgument)
	}
	if a == nil || a != b.allocator {
		return fmt.Errorf("update of buffer %d through an allocator that does not own it: %w", b.Buffer, core.ErrInvalidArgument)
	}
	if offset > b.Size || length > b.Size-offset {
		return fmt.Errorf("update range [%d, %d) exceeds buffer size %d: %w", offset, offset+length, b.Size, core.ErrInvalidArgument)
	}
	if uint64(len(data)) < length {
		return fmt.Errorf("update of %d bytes with only %d bytes of data: %w", length, len(data), core.ErrInvalidArgument)
	}
	if length == 0 {
		return nil
	}

	if b.Mapped != nil {
		copy(b.Mapped[offset:offset+length], data[:length])
		return flushRange(a, b, offset, length)
	}

	mapped, err := a.Map(b.Allocation)
	if err != nil {
		core.LogError("Failed to map buffer %d: %s", b.Buffer, err)
		return fmt.Errorf("map buffer: %w", err)
	}
	defer a.Unmap(b.Allocation)

	copy(mapped[offset:offset+length], data[:length])
	return flushRange(a, b, offset, length)
}

// flushRange makes host writes to [offset, offset+length) visible to the device,
// widening the range to the non-coherent atom size.
func flushRange(a gpu.Allocator, b *ManagedBuffer, offset, length uint64) error {
	if b.HostCoherent() {
		return nil
	}
	atom := a.Limits().NonCoherentAtomSize
	end := a.AllocationInfo(b.Allocation).Size
	start := math.AlignDown(offset, atom)
	stop := math.Clamp(math.AlignUp(offset+length, atom), start, end)
	if err := a.Flush(b.Allocation, start, stop-start); err != nil {
		core.LogError("Failed to flush buffer %d: %s", b.Buffer, err)
		return fmt.Errorf("flush buffer: %w", err)
	}
	return nil
}
