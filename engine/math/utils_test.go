package math

import "testing"

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{255, 256, 256},
		{257, 256, 512},
		{7, 0, 7},
		{7, 1, 7},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}

func TestAlignDown(t *testing.T) {
	if got := AlignDown[uint32](70, 64); got != 64 {
		t.Errorf("AlignDown(70, 64) = %d, want 64", got)
	}
	if got := AlignDown[uint32](63, 64); got != 0 {
		t.Errorf("AlignDown(63, 64) = %d, want 0", got)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5, 0, 3) = %d", got)
	}
	if got := Clamp(-1.5, 0, 3); got != 0 {
		t.Errorf("Clamp(-1.5, 0, 3) = %f", got)
	}
}
