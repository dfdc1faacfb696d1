package simulator

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestPacingDelay(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	avg := 500 * time.Millisecond

	var total time.Duration
	const n = 5000
	for i := 0; i < n; i++ {
		d := PacingDelay(rng, avg)
		if d < minPacingDelay {
			t.Fatalf("delay %v below floor", d)
		}
		total += d
	}
	mean := total / n
	if mean < 470*time.Millisecond || mean > 530*time.Millisecond {
		t.Errorf("mean delay %v, want about %v", mean, avg)
	}
}

func TestPacingDelay_Floor(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 100; i++ {
		if d := PacingDelay(rng, time.Millisecond); d != minPacingDelay {
			t.Fatalf("tiny average should clamp to floor, got %v", d)
		}
	}
}
