package utils

import (
	"testing"
	"time"
)

func TestCeilToPowerOfTwo(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 2},
		{1, 2},
		{2, 2},
		{3, 4},
		{255, 256},
		{256, 256},
		{100000, 131072},
	}
	for _, tt := range tests {
		if got := CeilToPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("CeilToPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDurations(t *testing.T) {
	if got := ToDuration(3); got != 3*time.Second {
		t.Errorf("ToDuration(3) = %v", got)
	}
	if got := ToDurationMs(300); got != 300*time.Millisecond {
		t.Errorf("ToDurationMs(300) = %v", got)
	}
	if got := OrDefault(0, time.Minute); got != time.Minute {
		t.Errorf("OrDefault(0) = %v", got)
	}
	if got := OrDefault(time.Second, time.Minute); got != time.Second {
		t.Errorf("OrDefault(1s) = %v", got)
	}
}
