package scheduler

import (
	"context"
	"math/big"
	"testing"
	"time"
)

// S1 — round robin with k=1, n=3, r=7.
func TestDelayScenarioS1(t *testing.T) {
	r := big.NewInt(7)
	want := []time.Duration{120 * time.Second, 0, 60 * time.Second}

	for m := 0; m < 3; m++ {
		got := Delay(r, 1, m, 3)
		if got != want[m] {
			t.Errorf("Delay(r=7,k=1,m=%d,n=3) = %v, want %v", m, got, want[m])
		}
	}
}

// Invariant 3 — scheduler locality: exactly k zero delays, remaining
// n-k delays strictly positive and, taken in round-robin order from the
// start node r mod n, strictly increasing in multiples of 60s.
func TestDelayLocalityInvariant(t *testing.T) {
	for _, tc := range []struct{ r, k, n int64 }{
		{7, 1, 3}, {100, 2, 5}, {0, 3, 3}, {255, 1, 10},
	} {
		requestID := big.NewInt(tc.r)
		start := tc.r % tc.n
		delays := make([]time.Duration, tc.n)
		for p := int64(0); p < tc.n; p++ {
			m := (start + p) % tc.n
			delays[p] = Delay(requestID, uint8(tc.k), int(m), int(tc.n))
		}

		zeroCount := 0
		var positive []time.Duration
		for _, d := range delays {
			if d == 0 {
				zeroCount++
			} else {
				positive = append(positive, d)
			}
		}

		if int64(zeroCount) != tc.k {
			t.Errorf("r=%d k=%d n=%d: zero-delay count = %d, want %d", tc.r, tc.k, tc.n, zeroCount, tc.k)
		}
		if int64(len(positive)) != tc.n-tc.k {
			t.Errorf("r=%d k=%d n=%d: positive-delay count = %d, want %d", tc.r, tc.k, tc.n, len(positive), tc.n-tc.k)
		}
		for i, d := range positive {
			if d%baseDelay != 0 {
				t.Errorf("r=%d k=%d n=%d: delay %v not a multiple of %v", tc.r, tc.k, tc.n, d, baseDelay)
			}
			if i > 0 && d <= positive[i-1] {
				t.Errorf("r=%d k=%d n=%d: delays not strictly increasing: %v", tc.r, tc.k, tc.n, positive)
			}
		}
	}
}

func TestDelayUnauthorizedNodeCountZero(t *testing.T) {
	if got := Delay(big.NewInt(7), 1, 0, 0); got != 0 {
		t.Fatalf("Delay with nodeCount=0 = %v, want 0", got)
	}
}

func TestWaitCompletesAfterDelay(t *testing.T) {
	start := time.Now()
	<-Wait(context.Background(), 10*time.Millisecond)
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("Wait returned before delay elapsed")
	}
}

func TestWaitZeroDelayReturnsImmediately(t *testing.T) {
	select {
	case <-Wait(context.Background(), 0):
	default:
		t.Fatalf("Wait(0) channel should already be closed")
	}
}

func TestWaitCancelledByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := Wait(ctx, time.Hour)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait did not return promptly after context cancellation")
	}
	if ctx.Err() == nil {
		t.Fatalf("ctx.Err() should be non-nil after cancel")
	}
}
