package dispatch

import (
	"sync/atomic"
	"testing"
)

func TestRun1DCoversAllIndices(t *testing.T) {
	p := NewPool(4)
	defer p.Stop()

	tests := []struct {
		name string
		n    int
	}{
		{"zero", 0},
		{"one", 1},
		{"below serial threshold", 100},
		{"above serial threshold", 10000},
		{"not divisible by workers", 10001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			p.Run1D(tt.n, func(i int) {
				atomic.AddInt32(&hits[i], 1)
			})
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d processed %d times, want 1", i, h)
				}
			}
		})
	}
}

func TestRun1DIsBarrier(t *testing.T) {
	p := NewPool(8)
	defer p.Stop()

	// Each pass must observe every write from the previous pass.
	const n = 5000
	buf := make([]int64, n)
	for pass := 0; pass < 10; pass++ {
		p.Run1D(n, func(i int) {
			buf[i]++
		})
	}
	for i, v := range buf {
		if v != 10 {
			t.Fatalf("index %d = %d after 10 passes, want 10", i, v)
		}
	}
}

func TestRun1DAtomicAccumulation(t *testing.T) {
	p := NewPool(0)
	defer p.Stop()

	var counter int32
	p.Run1D(100000, func(i int) {
		atomic.AddInt32(&counter, 1)
	})
	if counter != 100000 {
		t.Errorf("counter = %d, want 100000", counter)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewPool(2)
	p.Run1D(1000, func(i int) {})
	p.Stop()
	p.Stop()
}
