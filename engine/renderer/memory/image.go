package memory

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// ManagedImage is a 2D image together with the allocation backing it.
type ManagedImage struct {
	Image      gpu.Image
	Allocation gpu.Allocation
	Width      uint32
	Height     uint32
	Format     gpu.Format

	allocator gpu.Allocator
}

// CreateManagedImage allocates a single mip, single layer, single sample 2D image
// in the undefined layout.
func CreateManagedImage(a gpu.Allocator, width, height uint32, format gpu.Format, tiling gpu.ImageTiling, usage gpu.ImageUsageFlags, residency gpu.MemoryUsage, flags gpu.AllocationCreateFlags) (*ManagedImage, error) {
	if a == nil {
		return nil, fmt.Errorf("create image without allocator: %w", core.ErrInvalidArgument)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("create image of extent %dx%d: %w", width, height, core.ErrInvalidArgument)
	}
	if format == gpu.FormatUndefined {
		return nil, fmt.Errorf("create image with undefined format: %w", core.ErrInvalidArgument)
	}

	img, alloc, err := a.CreateImage(
		&gpu.ImageCreateInfo{
			Width:         width,
			Height:        height,
			Format:        format,
			Tiling:        tiling,
			Usage:         usage,
			MipLevels:     1,
			ArrayLayers:   1,
			Samples:       1,
			InitialLayout: gpu.ImageLayoutUndefined,
		},
		&gpu.AllocationCreateInfo{Usage: residency, Flags: flags},
	)
	if err != nil {
		if img != 0 || alloc != 0 {
			a.DestroyImage(img, alloc)
		}
		core.LogError("Failed to create %dx%d %s image: %s", width, height, format, err)
		return nil, fmt.Errorf("create image: %w", err)
	}

	return &ManagedImage{
		Image:      img,
		Allocation: alloc,
		Width:      width,
		Height:     height,
		Format:     format,
		allocator:  a,
	}, nil
}

// CreateView creates a view over the whole image. The caller owns the view.
func (m *ManagedImage) CreateView(d gpu.Device) (gpu.ImageView, error) {
	if m == nil || m.allocator == nil {
		return 0, fmt.Errorf("view of a disposed image: %w", core.ErrInvalidArgument)
	}
	view, err := d.CreateImageView(m.Image, m.Format)
	if err != nil {
		return 0, fmt.Errorf("create image view: %w", err)
	}
	return view, nil
}

// Dispose destroys the image and frees its allocation. It is safe on a nil or
// already disposed image.
func (m *ManagedImage) Dispose() {
	if m == nil || m.allocator == nil {
		return
	}
	m.allocator.DestroyImage(m.Image, m.Allocation)
	m.Image = 0
	m.Allocation = 0
	m.allocator = nil
}
