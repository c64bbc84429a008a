// Package frames tracks which frame-in-flight slot is being recorded and when
// the GPU has finished with the previous use of a slot.
package frames

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
)

// RetireFunc runs once the work previously submitted for slot has completed.
type RetireFunc func(slot int) error

// Coordinator owns one fence per frame slot. Each frame waits on the fence of its
// slot, retires the slot, and hands the reset fence to the submission.
type Coordinator struct {
	device gpu.Device
	frames int
	fences []gpu.Fence

	mu       sync.Mutex
	current  int
	hooks    []RetireFunc
	inFrame  bool
	disposed bool

	clock *core.Clock
	stats *Stats
}

// NewCoordinator creates framesInFlight signaled fences, so the first use of
// every slot does not wait.
func NewCoordinator(device gpu.Device, framesInFlight int) (*Coordinator, error) {
	if device == nil || framesInFlight <= 0 {
		return nil, fmt.Errorf("frame coordinator needs a device and at least one frame in flight: %w", core.ErrInvalidArgument)
	}
	c := &Coordinator{
		device: device,
		frames: framesInFlight,
		fences: make([]gpu.Fence, 0, framesInFlight),
		clock:  core.NewClock(),
		stats:  newStats(),
	}
	for i := 0; i < framesInFlight; i++ {
		f, err := device.CreateFence(true)
		if err != nil {
			c.destroyFences()
			core.LogError("Failed to create in-flight fence %d: %s", i, err)
			return nil, fmt.Errorf("create in-flight fence %d: %w", i, err)
		}
		c.fences = append(c.fences, f)
	}
	return c, nil
}

// FramesInFlight returns the number of slots.
func (c *Coordinator) FramesInFlight() int {
	return c.frames
}

// CurrentFrameIndex returns the slot being recorded.
func (c *Coordinator) CurrentFrameIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnRetired registers fn to run in BeginFrame after the slot's fence signaled.
// Hooks run in registration order.
func (c *Coordinator) OnRetired(fn RetireFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// BeginFrame waits up to timeout for the previous submission of the current
// slot, runs the retire hooks and resets the fence. When a hook fails the fence
// stays signaled so the frame can be begun again.
//
// The hooks run without the coordinator lock held and may call CurrentFrameIndex.
func (c *Coordinator) BeginFrame(timeout time.Duration) (int, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return 0, core.ErrDisposed
	}
	if c.inFrame {
		c.mu.Unlock()
		return 0, fmt.Errorf("frame %d already begun: %w", c.current, core.ErrInvalidArgument)
	}
	slot := c.current
	fence := c.fences[slot]
	hooks := append([]RetireFunc(nil), c.hooks...)
	c.mu.Unlock()

	if err := c.device.WaitForFence(fence, timeout); err != nil {
		core.LogWarn("In-flight fence of frame slot %d not signaled: %s", slot, err)
		return slot, fmt.Errorf("wait for frame slot %d: %w", slot, err)
	}

	var errs []error
	for _, hook := range hooks {
		if err := hook(slot); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return slot, fmt.Errorf("retire frame slot %d: %w", slot, errors.Join(errs...))
	}

	if err := c.device.ResetFence(fence); err != nil {
		return slot, fmt.Errorf("reset fence of frame slot %d: %w", slot, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return slot, core.ErrDisposed
	}
	c.inFrame = true

	c.clock.Update()
	if c.clock.Started() {
		c.stats.Record(c.clock.Elapsed())
	}
	c.clock.Start()
	return slot, nil
}

// Stats returns the frame timings measured between successive BeginFrame calls.
func (c *Coordinator) Stats() *Stats {
	return c.stats
}

// Fence returns the fence the submission of the current frame must signal.
func (c *Coordinator) Fence() gpu.Fence {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return 0
	}
	return c.fences[c.current]
}

// EndFrame advances to the next slot.
func (c *Coordinator) EndFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || !c.inFrame {
		return
	}
	c.inFrame = false
	c.current = (c.current + 1) % len(c.fences)
}

// Dispose destroys the fences. The caller must have waited for the device to be idle.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.destroyFences()
	c.hooks = nil
	c.disposed = true
}

func (c *Coordinator) destroyFences() {
	for _, f := range c.fences {
		c.device.DestroyFence(f)
	}
	c.fences = c.fences[:0]
}
