// Package gpu holds the contracts between the resource lifecycle layer and the
// device that backs it: opaque handle types, the closed enumerations of object
// kinds, the create-info structures and the Device and Allocator interfaces.
//
// Handles are plain integers. The zero value of every handle type is the null
// handle. A backend maps them to its native objects.
package gpu

type (
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	Allocation          uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	PipelineCache       uint64
	Pipeline            uint64
	ShaderModule        uint64
	RenderPass          uint64
	CommandBuffer       uint64
	Fence               uint64
)

// FrameIndexProvider reports which frame-in-flight slot is being recorded.
// Implementations return a value in [0, N) where N is the number of frames in flight.
type FrameIndexProvider interface {
	CurrentFrameIndex() int
}
