package containers

import (
	"errors"
	"testing"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[int](3)
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("Dequeue on empty queue = %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := rq.Enqueue(i); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}
	if err := rq.Enqueue(4); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue on full queue = %v", err)
	}

	// Wrap around the end of the backing slice.
	if v, _ := rq.Dequeue(); v != 1 {
		t.Errorf("Dequeue = %d, want 1", v)
	}
	if err := rq.Enqueue(4); err != nil {
		t.Fatal(err)
	}
	if v, _ := rq.Peek(); v != 2 {
		t.Errorf("Peek = %d, want 2", v)
	}

	var got []int
	for !rq.IsEmpty() {
		v, err := rq.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 2 || got[1] != 3 || got[2] != 4 {
		t.Errorf("drained %v, want [2 3 4]", got)
	}
	if rq.Len() != 0 {
		t.Errorf("Len = %d after draining", rq.Len())
	}
}
