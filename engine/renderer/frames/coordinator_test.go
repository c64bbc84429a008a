package frames

import (
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-vk/engine/core"
	"github.com/spaghettifunk/anima-vk/engine/renderer/descriptor"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu"
	"github.com/spaghettifunk/anima-vk/engine/renderer/gpu/gputest"
)

func newTestCoordinator(t *testing.T, frames int) (*Coordinator, *gputest.Device) {
	t.Helper()
	dev := gputest.New()
	c, err := NewCoordinator(dev, frames)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c, dev
}

func TestNewCoordinator(t *testing.T) {
	c, dev := newTestCoordinator(t, 3)
	if got := dev.Live(gputest.KindFence); got != 3 {
		t.Fatalf("%d fences, want 3", got)
	}
	if c.FramesInFlight() != 3 || c.CurrentFrameIndex() != 0 {
		t.Errorf("frames %d current %d", c.FramesInFlight(), c.CurrentFrameIndex())
	}
	if !dev.FenceSignaled(c.Fence()) {
		t.Error("fresh fence is not signaled")
	}

	for _, n := range []int{0, -1} {
		if _, err := NewCoordinator(dev, n); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("NewCoordinator(%d) = %v, want ErrInvalidArgument", n, err)
		}
	}
	if _, err := NewCoordinator(nil, 2); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("NewCoordinator(nil) = %v, want ErrInvalidArgument", err)
	}
}

func TestNewCoordinatorFenceFailure(t *testing.T) {
	dev := gputest.New()
	dev.FailOn("CreateFence", gpu.ResultErrorOutOfHostMemory, 2)

	if _, err := NewCoordinator(dev, 3); err == nil {
		t.Fatal("NewCoordinator succeeded despite injected failure")
	}
	if got := dev.Live(gputest.KindFence); got != 0 {
		t.Errorf("%d fences leaked", got)
	}
}

func TestFrameLoop(t *testing.T) {
	c, dev := newTestCoordinator(t, 2)
	defer c.Dispose()

	var retired []int
	c.OnRetired(func(slot int) error {
		retired = append(retired, slot)
		return nil
	})

	for frame := 0; frame < 4; frame++ {
		slot, err := c.BeginFrame(time.Second)
		if err != nil {
			t.Fatalf("frame %d: BeginFrame: %v", frame, err)
		}
		if slot != frame%2 {
			t.Errorf("frame %d recorded in slot %d", frame, slot)
		}
		fence := c.Fence()
		if dev.FenceSignaled(fence) {
			t.Errorf("frame %d: fence handed to the submission is still signaled", frame)
		}
		// The queue completes the submission.
		dev.SignalFence(fence)
		c.EndFrame()
	}
	if got := c.Stats().window.Len(); got != 3 {
		t.Errorf("%d frame times recorded, want 3", got)
	}
	if want := []int{0, 1, 0, 1}; len(retired) != len(want) {
		t.Fatalf("retired %v, want %v", retired, want)
	} else {
		for i := range want {
			if retired[i] != want[i] {
				t.Errorf("retired %v, want %v", retired, want)
				break
			}
		}
	}
}

func TestBeginFrameTimeout(t *testing.T) {
	c, dev := newTestCoordinator(t, 1)
	defer c.Dispose()

	calls := 0
	c.OnRetired(func(int) error { calls++; return nil })

	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatal(err)
	}
	c.EndFrame()

	// The only slot was submitted and has not completed yet.
	_, err := c.BeginFrame(time.Millisecond)
	var re *gpu.ResultError
	if !errors.As(err, &re) || re.Result != gpu.ResultTimeout {
		t.Fatalf("BeginFrame = %v, want a timeout", err)
	}
	if calls != 1 {
		t.Errorf("retire hooks ran %d times, want 1", calls)
	}

	dev.SignalFence(c.Fence())
	if _, err := c.BeginFrame(time.Millisecond); err != nil {
		t.Fatalf("BeginFrame after completion: %v", err)
	}
}

func TestBeginFrameHookFailure(t *testing.T) {
	c, dev := newTestCoordinator(t, 2)
	defer c.Dispose()

	boom := errors.New("boom")
	fail := true
	second := 0
	c.OnRetired(func(int) error {
		if fail {
			return boom
		}
		return nil
	})
	c.OnRetired(func(int) error { second++; return nil })

	if _, err := c.BeginFrame(time.Second); !errors.Is(err, boom) {
		t.Fatalf("BeginFrame = %v, want hook error", err)
	}
	if second != 1 {
		t.Errorf("later hook ran %d times, want 1", second)
	}
	if !dev.FenceSignaled(c.Fence()) {
		t.Error("fence was reset although the slot did not retire")
	}

	fail = false
	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestBeginFrameResetFailure(t *testing.T) {
	c, dev := newTestCoordinator(t, 2)
	defer c.Dispose()
	dev.FailOn("ResetFence", gpu.ResultErrorDeviceLost, 1)

	_, err := c.BeginFrame(time.Second)
	var re *gpu.ResultError
	if !errors.As(err, &re) || re.Result != gpu.ResultErrorDeviceLost {
		t.Fatalf("BeginFrame = %v, want device lost", err)
	}
	// The frame never began, so it cannot end.
	c.EndFrame()
	if c.CurrentFrameIndex() != 0 {
		t.Errorf("slot advanced to %d after a failed BeginFrame", c.CurrentFrameIndex())
	}
}

func TestBeginFrameTwice(t *testing.T) {
	c, _ := newTestCoordinator(t, 2)
	defer c.Dispose()

	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := c.BeginFrame(time.Second); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("second BeginFrame = %v, want ErrInvalidArgument", err)
	}
}

func TestDispose(t *testing.T) {
	c, dev := newTestCoordinator(t, 2)
	c.Dispose()
	c.Dispose()

	if got := dev.Live(gputest.KindFence); got != 0 {
		t.Errorf("%d fences live after Dispose", got)
	}
	if _, err := c.BeginFrame(time.Second); !errors.Is(err, core.ErrDisposed) {
		t.Errorf("BeginFrame after Dispose = %v, want ErrDisposed", err)
	}
	if c.Fence() != 0 {
		t.Error("Fence after Dispose is not null")
	}
}

// Descriptor sets freed while recording a slot are released once that slot
// comes around again.
func TestRetiresDescriptorSets(t *testing.T) {
	c, dev := newTestCoordinator(t, 2)
	defer c.Dispose()

	cfg := descriptor.DefaultConfig()
	e, err := descriptor.NewEngine(dev, c, cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Dispose()
	c.OnRetired(e.CleanupCompletedFrameSets)

	layout, err := e.GetOrCreateLayout([]descriptor.Binding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Count: 1, Stages: gpu.ShaderStageVertex},
	})
	if err != nil {
		t.Fatal(err)
	}
	set, err := e.AllocateSet(layout)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := e.FreeSets(set); err != nil {
		t.Fatal(err)
	}
	dev.SignalFence(c.Fence())
	c.EndFrame()

	// Slot 1 retires nothing.
	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatal(err)
	}
	if !dev.SetAlive(set) {
		t.Fatal("set freed before its slot retired")
	}
	dev.SignalFence(c.Fence())
	c.EndFrame()

	if _, err := c.BeginFrame(time.Second); err != nil {
		t.Fatal(err)
	}
	if dev.SetAlive(set) {
		t.Error("set still alive after its slot retired")
	}
}
