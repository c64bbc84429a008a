package descriptor

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

func TestLayoutKey(t *testing.T) {
	a := []Binding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
		{Binding: 1, Type: gpu.DescriptorTypeCombinedImageSampler, Count: 4, Stages: gpu.ShaderStageFragment},
	}
	b := append([]Binding(nil), a...)
	if LayoutKey(a) != LayoutKey(b) {
		t.Fatal("equal binding lists produced different keys")
	}

	variants := []struct {
		name   string
		mutate func(bs []Binding)
	}{
		{"index", func(bs []Binding) { bs[1].Binding = 2 }},
		{"type", func(bs []Binding) { bs[1].Type = gpu.DescriptorTypeStorageImage }},
		{"count", func(bs []Binding) { bs[1].Count = 8 }},
		{"stages", func(bs []Binding) { bs[0].Stages |= gpu.ShaderStageFragment }},
		{"flags", func(bs []Binding) { bs[1].Flags = gpu.DescriptorBindingPartiallyBound }},
		{"order", func(bs []Binding) { bs[0], bs[1] = bs[1], bs[0] }},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			c := append([]Binding(nil), a...)
			v.mutate(c)
			if LayoutKey(c) == LayoutKey(a) {
				t.Errorf("changing %s kept the key %q", v.name, LayoutKey(a))
			}
		})
	}
}

func TestLayoutCreateInfo(t *testing.T) {
	info, err := LayoutCreateInfo([]Binding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
	})
	if err != nil {
		t.Fatal(err)
	}
	if info.Flags != 0 || info.BindingFlags != nil {
		t.Errorf("plain layout got flags %#x and binding flags %v", info.Flags, info.BindingFlags)
	}

	info, err = LayoutCreateInfo([]Binding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
		{
			Binding: 1,
			Type:    gpu.DescriptorTypeCombinedImageSampler,
			Count:   128,
			Stages:  gpu.ShaderStageFragment,
			Flags:   gpu.DescriptorBindingPartiallyBound | gpu.DescriptorBindingUpdateAfterBind,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if info.Flags != gpu.DescriptorSetLayoutCreateUpdateAfterBindPool {
		t.Errorf("layout flags = %#x, want update-after-bind pool", info.Flags)
	}
	want := []gpu.DescriptorBindingFlags{0, gpu.DescriptorBindingPartiallyBound | gpu.DescriptorBindingUpdateAfterBind}
	if len(info.BindingFlags) != len(want) || info.BindingFlags[0] != want[0] || info.BindingFlags[1] != want[1] {
		t.Errorf("binding flags = %v, want %v", info.BindingFlags, want)
	}
}

func TestLayoutCreateInfoRejectsInvalidBindings(t *testing.T) {
	ubo := Binding{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex}
	tests := []struct {
		name     string
		bindings []Binding
	}{
		{"empty", nil},
		{"zero count", []Binding{{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Stages: gpu.ShaderStageVertex}}},
		{"no stages", []Binding{{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1}}},
		{"bad type", []Binding{{Binding: 0, Type: gpu.DescriptorType(99), Count: 1, Stages: gpu.ShaderStageVertex}}},
		{"duplicate", []Binding{ubo, ubo}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LayoutCreateInfo(tt.bindings); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}
