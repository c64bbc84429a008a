package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// shaderFile mirrors the .shadercfg TOML document.
type shaderFile struct {
	Name          string             `toml:"name"`
	Vertex        string             `toml:"vertex"`
	Fragment      string             `toml:"fragment"`
	VertexEntry   string             `toml:"vertex_entry"`
	FragmentEntry string             `toml:"fragment_entry"`
	Attributes    []attributeFile    `toml:"attributes"`
	Sets          []setFile          `toml:"sets"`
	PushConstants []pushConstantFile `toml:"push_constants"`
	State         stateFile          `toml:"state"`
}

type attributeFile struct {
	Location uint32 `toml:"location"`
	Format   string `toml:"format"`
}

type setFile struct {
	Bindings []bindingFile `toml:"bindings"`
}

type bindingFile struct {
	Binding         uint32   `toml:"binding"`
	Type            string   `toml:"type"`
	Count           uint32   `toml:"count"`
	Stages          []string `toml:"stages"`
	PartiallyBound  bool     `toml:"partially_bound"`
	UpdateAfterBind bool     `toml:"update_after_bind"`
}

type pushConstantFile struct {
	Stages []string `toml:"stages"`
	Offset uint32   `toml:"offset"`
	Size   uint32   `toml:"size"`
}

type stateFile struct {
	Topology     string `toml:"topology"`
	PolygonMode  string `toml:"polygon_mode"`
	CullMode     string `toml:"cull_mode"`
	FrontFace    string `toml:"front_face"`
	DepthTest    bool   `toml:"depth_test"`
	DepthWrite   bool   `toml:"depth_write"`
	DepthCompare string `toml:"depth_compare"`
	StencilTest  bool   `toml:"stencil_test"`
	Blend        string `toml:"blend"`
}

var (
	topologies = map[string]gpu.PrimitiveTopology{
		"point_list":     gpu.PrimitiveTopologyPointList,
		"line_list":      gpu.PrimitiveTopologyLineList,
		"line_strip":     gpu.PrimitiveTopologyLineStrip,
		"triangle_list":  gpu.PrimitiveTopologyTriangleList,
		"triangle_strip": gpu.PrimitiveTopologyTriangleStrip,
		"triangle_fan":   gpu.PrimitiveTopologyTriangleFan,
	}
	polygonModes = map[string]gpu.PolygonMode{
		"fill":  gpu.PolygonModeFill,
		"line":  gpu.PolygonModeLine,
		"point": gpu.PolygonModePoint,
	}
	cullModes = map[string]gpu.CullMode{
		"none":           gpu.CullModeNone,
		"front":          gpu.CullModeFront,
		"back":           gpu.CullModeBack,
		"front_and_back": gpu.CullModeFrontAndBack,
	}
	frontFaces = map[string]gpu.FrontFace{
		"counter_clockwise": gpu.FrontFaceCounterClockwise,
		"clockwise":         gpu.FrontFaceClockwise,
	}
	compareOps = map[string]gpu.CompareOp{
		"never":            gpu.CompareOpNever,
		"less":             gpu.CompareOpLess,
		"equal":            gpu.CompareOpEqual,
		"less_or_equal":    gpu.CompareOpLessOrEqual,
		"greater":          gpu.CompareOpGreater,
		"not_equal":        gpu.CompareOpNotEqual,
		"greater_or_equal": gpu.CompareOpGreaterOrEqual,
		"always":           gpu.CompareOpAlways,
	}
)

// lookup resolves name in values, returning def for an empty name.
func lookup[T any](kind, name string, values map[string]T, def T) (T, error) {
	if name == "" {
		return def, nil
	}
	v, ok := values[name]
	if !ok {
		return def, fmt.Errorf("unknown %s %q: %w", kind, name, core.ErrInvalidArgument)
	}
	return v, nil
}

// LoadConfig reads a .shadercfg file. Shader paths are resolved against the
// directory of the file. The render pass is left null for the caller to set.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sf shaderFile
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&sf); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %s: %w", path, strict.String(), core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg, err := sf.config(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (sf *shaderFile) config(dir string) (*Config, error) {
	if sf.Vertex == "" || sf.Fragment == "" {
		return nil, fmt.Errorf("vertex and fragment are required: %w", core.ErrInvalidArgument)
	}
	if len(sf.Sets) > MaxSets {
		return nil, fmt.Errorf("%d descriptor sets declared, at most %d: %w", len(sf.Sets), MaxSets, core.ErrInvalidArgument)
	}

	cfg := &Config{
		Name:           sf.Name,
		VertexShader:   resolve(dir, sf.Vertex),
		FragmentShader: resolve(dir, sf.Fragment),
		VertexEntry:    sf.VertexEntry,
		FragmentEntry:  sf.FragmentEntry,
		DepthTest:      sf.State.DepthTest,
		DepthWrite:     sf.State.DepthWrite,
		StencilTest:    sf.State.StencilTest,
	}

	for _, a := range sf.Attributes {
		format, err := gpu.ParseFormat(a.Format)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", a.Location, err)
		}
		cfg.Attributes = append(cfg.Attributes, VertexAttribute{Location: a.Location, Format: format})
	}

	for i, set := range sf.Sets {
		for _, b := range set.Bindings {
			binding, err := b.binding()
			if err != nil {
				return nil, fmt.Errorf("set %d binding %d: %w", i, b.Binding, err)
			}
			cfg.Sets[i] = append(cfg.Sets[i], binding)
		}
	}

	for i, pc := range sf.PushConstants {
		stages, err := parseStages(pc.Stages)
		if err != nil {
			return nil, fmt.Errorf("push constant %d: %w", i, err)
		}
		cfg.PushConstants = append(cfg.PushConstants, gpu.PushConstantRange{Stages: stages, Offset: pc.Offset, Size: pc.Size})
	}

	var err error
	st := sf.State
	if cfg.Topology, err = lookup("topology", st.Topology, topologies, gpu.PrimitiveTopologyTriangleList); err != nil {
		return nil, err
	}
	if cfg.PolygonMode, err = lookup("polygon mode", st.PolygonMode, polygonModes, gpu.PolygonModeFill); err != nil {
		return nil, err
	}
	if cfg.CullMode, err = lookup("cull mode", st.CullMode, cullModes, gpu.CullModeBack); err != nil {
		return nil, err
	}
	if cfg.FrontFace, err = lookup("front face", st.FrontFace, frontFaces, gpu.FrontFaceCounterClockwise); err != nil {
		return nil, err
	}
	if cfg.DepthCompare, err = lookup("depth compare", st.DepthCompare, compareOps, gpu.CompareOpLess); err != nil {
		return nil, err
	}
	cfg.DepthCompareSet = true
	switch st.Blend {
	case "", "none":
	case "alpha":
		cfg.BlendAttachments = []gpu.ColorBlendAttachment{AlphaBlend()}
	default:
		return nil, fmt.Errorf("unknown blend %q: %w", st.Blend, core.ErrInvalidArgument)
	}
	return cfg, nil
}

func (b bindingFile) binding() (descriptor.Binding, error) {
	kind, err := gpu.ParseDescriptorType(b.Type)
	if err != nil {
		return descriptor.Binding{}, err
	}
	stages, err := parseStages(b.Stages)
	if err != nil {
		return descriptor.Binding{}, err
	}
	count := b.Count
	if count == 0 {
		count = 1
	}
	var flags gpu.DescriptorBindingFlags
	if b.PartiallyBound {
		flags |= gpu.DescriptorBindingPartiallyBound
	}
	if b.UpdateAfterBind {
		flags |= gpu.DescriptorBindingUpdateAfterBind
	}
	return descriptor.Binding{Binding: b.Binding, Type: kind, Count: count, Stages: stages, Flags: flags}, nil
}

func parseStages(names []string) (gpu.ShaderStageFlags, error) {
	var stages gpu.ShaderStageFlags
	for _, n := range names {
		s, err := gpu.ParseShaderStage(n)
		if err != nil {
			return 0, err
		}
		stages |= s
	}
	return stages, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
