package memory

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// TextureFormat is the format CreateDeviceLocalImage uploads texels in.
const TextureFormat = gpu.FormatR8G8B8A8Unorm

// CreateDeviceLocalBuffer creates a device-local buffer holding data. The data is
// written to a host-visible staging buffer and copied on the device; the call
// returns once the copy has completed.
func CreateDeviceLocalBuffer(d gpu.Device, a gpu.Allocator, data []byte, usage gpu.BufferUsageFlags) (*ManagedBuffer, error) {
	if d == nil {
		return nil, fmt.Errorf("upload without device: %w", core.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload of an empty buffer: %w", core.ErrInvalidArgument)
	}
	size := uint64(len(data))

	staging, err := createStaging(a, data)
	if err != nil {
		return nil, err
	}
	defer staging.Dispose()

	target, err := CreateManagedBuffer(a, size, usage|gpu.BufferUsageTransferDst, gpu.MemoryUsageGPUOnly, 0)
	if err != nil {
		return nil, err
	}

	err = submitOnce(d, func(cmd gpu.CommandBuffer) {
		d.CmdCopyBuffer(cmd, staging.Buffer, target.Buffer, gpu.BufferCopy{Size: size})
	})
	if err != nil {
		target.Dispose()
		return nil, fmt.Errorf("upload %d bytes: %w", size, err)
	}
	return target, nil
}

// CreateDeviceLocalImage uploads img into a sampled device-local image and leaves
// it in the shader read-only layout. Any image model is converted to RGBA first.
func CreateDeviceLocalImage(d gpu.Device, a gpu.Allocator, img image.Image, usage gpu.ImageUsageFlags) (*ManagedImage, error) {
	if d == nil || img == nil {
		return nil, fmt.Errorf("image upload without device or image: %w", core.ErrInvalidArgument)
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("image upload of empty bounds %v: %w", bounds, core.ErrInvalidArgument)
	}
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}

	staging, err := createStaging(a, rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	if err != nil {
		return nil, err
	}
	defer staging.Dispose()

	target, err := CreateManagedImage(a, width, height, TextureFormat, gpu.ImageTilingOptimal,
		usage|gpu.ImageUsageTransferDst|gpu.ImageUsageSampled, gpu.MemoryUsageGPUOnly, 0)
	if err != nil {
		return nil, err
	}

	err = submitOnce(d, func(cmd gpu.CommandBuffer) {
		d.CmdTransitionImageLayout(cmd, target.Image, TextureFormat, gpu.ImageLayoutUndefined, gpu.ImageLayoutTransferDstOptimal)
		d.CmdCopyBufferToImage(cmd, staging.Buffer, target.Image, gpu.ImageLayoutTransferDstOptimal,
			gpu.BufferImageCopy{Width: width, Height: height})
		d.CmdTransitionImageLayout(cmd, target.Image, TextureFormat, gpu.ImageLayoutTransferDstOptimal, gpu.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		target.Dispose()
		return nil, fmt.Errorf("upload %dx%d image: %w", width, height, err)
	}
	return target, nil
}

// createStaging returns a host-visible transfer source holding data.
func createStaging(a gpu.Allocator, data []byte) (*ManagedBuffer, error) {
	size := uint64(len(data))
	staging, err := CreateManagedBuffer(a, size, gpu.BufferUsageTransferSrc, gpu.MemoryUsageCPUOnly,
		gpu.AllocationCreateMapped|gpu.AllocationCreateHostAccessSequentialWrite)
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	if err := UpdateBuffer(a, staging, data, 0, size); err != nil {
		staging.Dispose()
		return nil, fmt.Errorf("fill staging buffer: %w", err)
	}
	return staging, nil
}

// submitOnce records commands into a single-use command buffer, submits it and
// waits for the queue to drain.
func submitOnce(d gpu.Device, record func(cmd gpu.CommandBuffer)) error {
	cmd, err := d.BeginSingleUse()
	if err != nil {
		core.LogError("Failed to begin single use command buffer: %s", err)
		return err
	}
	record(cmd)
	if err := d.EndSingleUse(cmd); err != nil {
		core.LogError("Failed to submit single use command buffer: %s", err)
		return err
	}
	return nil
}
