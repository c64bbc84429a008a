package core

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	if c.Started() || c.Elapsed() != 0 {
		t.Fatalf("unstarted clock: started %v elapsed %s", c.Started(), c.Elapsed())
	}

	c.Start()
	now = now.Add(16 * time.Millisecond)
	c.Update()
	if c.Elapsed() != 16*time.Millisecond {
		t.Errorf("Elapsed = %s, want 16ms", c.Elapsed())
	}

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	if c.Elapsed() != 16*time.Millisecond {
		t.Errorf("stopped clock moved to %s", c.Elapsed())
	}
}
