package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// Binding declares one binding of a descriptor set layout.
type Binding = gpu.DescriptorSetLayoutBinding

// LayoutKey returns the structural cache key of an ordered binding list. Two lists
// produce the same key exactly when every binding index, kind, count, stage mask
// and indexing flag match position by position.
func LayoutKey(bindings []Binding) string {
	var sb strings.Builder
	for i, b := range bindings {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatUint(uint64(b.Binding), 10))
		sb.WriteByte(':')
		sb.WriteString(b.Type.String())
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(b.Count), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(b.Stages), 16))
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(b.Flags), 16))
	}
	return sb.String()
}

// LayoutCreateInfo validates bindings and builds the create info of their layout.
// Binding flags are only chained when at least one binding requests them, and the
// layout is marked update-after-bind when any binding is.
func LayoutCreateInfo(bindings []Binding) (*gpu.DescriptorSetLayoutCreateInfo, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("descriptor set layout without bindings: %w", core.ErrInvalidArgument)
	}

	seen := make(map[uint32]struct{}, len(bindings))
	info := &gpu.DescriptorSetLayoutCreateInfo{
		Bindings: make([]gpu.DescriptorSetLayoutBinding, len(bindings)),
	}
	indexed := false
	for i, b := range bindings {
		if !b.Type.Valid() {
			return nil, fmt.Errorf("binding %d: unknown descriptor type %d: %w", b.Binding, uint32(b.Type), core.ErrInvalidArgument)
		}
		if b.Count == 0 {
			return nil, fmt.Errorf("binding %d: descriptor count is 0: %w", b.Binding, core.ErrInvalidArgument)
		}
		if b.Stages == 0 {
			return nil, fmt.Errorf("binding %d: no shader stage can see it: %w", b.Binding, core.ErrInvalidArgument)
		}
		if _, dup := seen[b.Binding]; dup {
			return nil, fmt.Errorf("binding %d declared twice: %w", b.Binding, core.ErrInvalidArgument)
		}
		seen[b.Binding] = struct{}{}

		info.Bindings[i] = b
		if b.Flags != 0 {
			indexed = true
		}
		if b.Flags&gpu.DescriptorBindingUpdateAfterBind != 0 {
			info.Flags |= gpu.DescriptorSetLayoutCreateUpdateAfterBindPool
		}
	}

	if indexed {
		info.BindingFlags = make([]gpu.DescriptorBindingFlags, len(bindings))
		for i, b := range bindings {
			info.BindingFlags[i] = b.Flags
		}
	}
	return info, nil
}
