package gpu

import (
	"fmt"

	"github.com/spaghettifunk/anima-vk/engine/core"
)

// Format is the closed set of texel and vertex attribute formats the layer understands.
type Format uint32

const (
	FormatUndefined Format = iota
	FormatR8Unorm
	FormatR8G8Unorm
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Srgb
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8Srgb
	FormatR8G8B8A8Uint
	FormatR16G16Sfloat
	FormatR16G16B16A16Sfloat
	FormatR32Sint
	FormatR32Uint
	FormatR32Sfloat
	FormatR32G32Sfloat
	FormatR32G32B32Sfloat
	FormatR32G32B32A32Sfloat
	FormatD32Sfloat
	FormatD24UnormS8Uint
)

var formatNames = [...]string{
	FormatUndefined:          "undefined",
	FormatR8Unorm:            "r8_unorm",
	FormatR8G8Unorm:          "r8g8_unorm",
	FormatR8G8B8A8Unorm:      "r8g8b8a8_unorm",
	FormatR8G8B8A8Srgb:       "r8g8b8a8_srgb",
	FormatB8G8R8A8Unorm:      "b8g8r8a8_unorm",
	FormatB8G8R8A8Srgb:       "b8g8r8a8_srgb",
	FormatR8G8B8A8Uint:       "r8g8b8a8_uint",
	FormatR16G16Sfloat:       "r16g16_sfloat",
	FormatR16G16B16A16Sfloat: "r16g16b16a16_sfloat",
	FormatR32Sint:            "r32_sint",
	FormatR32Uint:            "r32_uint",
	FormatR32Sfloat:          "r32_sfloat",
	FormatR32G32Sfloat:       "r32g32_sfloat",
	FormatR32G32B32Sfloat:    "r32g32b32_sfloat",
	FormatR32G32B32A32Sfloat: "r32g32b32a32_sfloat",
	FormatD32Sfloat:          "d32_sfloat",
	FormatD24UnormS8Uint:     "d24_unorm_s8_uint",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// Size returns the size in bytes of one texel or vertex attribute of this format.
// FormatUndefined and unknown values have size 0.
func (f Format) Size() uint32 {
	switch f {
	case FormatR8Unorm:
		return 1
	case FormatR8G8Unorm:
		return 2
	case FormatR8G8B8A8Unorm, FormatR8G8B8A8Srgb, FormatB8G8R8A8Unorm, FormatB8G8R8A8Srgb,
		FormatR8G8B8A8Uint, FormatR16G16Sfloat, FormatR32Sint, FormatR32Uint, FormatR32Sfloat,
		FormatD32Sfloat, FormatD24UnormS8Uint:
		return 4
	case FormatR16G16B16A16Sfloat, FormatR32G32Sfloat:
		return 8
	case FormatR32G32B32Sfloat:
		return 12
	case FormatR32G32B32A32Sfloat:
		return 16
	case FormatUndefined:
		return 0
	}
	return 0
}

// HasDepth reports whether f is a depth (or depth/stencil) format.
func (f Format) HasDepth() bool {
	return f == FormatD32Sfloat || f == FormatD24UnormS8Uint
}

// HasStencil reports whether f carries a stencil aspect.
func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint
}

// ParseFormat maps a snake_case format name back to its value.
func ParseFormat(s string) (Format, error) {
	for i, n := range formatNames {
		if n == s && i != int(FormatUndefined) {
			return Format(i), nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown format %q: %w", s, core.ErrInvalidArgument)
}
