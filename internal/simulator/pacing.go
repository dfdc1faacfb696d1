package simulator

import (
	"math/rand/v2"
	"time"
)

const minPacingDelay = 50 * time.Millisecond

// PacingDelay returns an advisory wall-clock pause between transactions,
// normally distributed around avg with a third of avg as deviation and
// floored at 50ms. It never affects the logical clock.
func PacingDelay(rng *rand.Rand, avg time.Duration) time.Duration {
	d := time.Duration(float64(avg) + rng.NormFloat64()*float64(avg)/3)
	if d < minPacingDelay {
		return minPacingDelay
	}
	return d
}
