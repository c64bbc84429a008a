package frames

import (
	"sync"
	"time"

	"github.com/spaghettifunk/anima-vk/engine/containers"
)

// statsWindow is the number of frames averaged by Stats.
const statsWindow = 30

// Stats keeps a rolling frame time average and the frames counted in the last
// full second.
type Stats struct {
	mu          sync.Mutex
	window      *containers.RingQueue[time.Duration]
	sum         time.Duration
	frames      int
	accumulated time.Duration
	fps         float64
}

func newStats() *Stats {
	return &Stats{window: containers.NewRingQueue[time.Duration](statsWindow)}
}

// Record adds the duration of one frame.
func (s *Stats) Record(frame time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.window.IsFull() {
		oldest, _ := s.window.Dequeue()
		s.sum -= oldest
	}
	_ = s.window.Enqueue(frame)
	s.sum += frame

	s.frames++
	s.accumulated += frame
	if s.accumulated >= time.Second {
		s.fps = float64(s.frames)
		s.accumulated -= time.Second
		s.frames = 0
	}
}

// AverageFrameTime returns the mean of the last recorded frames.
func (s *Stats) AverageFrameTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.window.IsEmpty() {
		return 0
	}
	return s.sum / time.Duration(s.window.Len())
}

// FPS returns the number of frames recorded in the last completed second.
func (s *Stats) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}
