package simulator

import (
	"math/rand/v2"

	"github.com/arkilian/fraudsim/internal/geo"
	"github.com/arkilian/fraudsim/pkg/types"
)

// Population is the card set of a run, keyed by card ID. IDs preserves
// creation order so card selection does not depend on map iteration.
type Population struct {
	Cards map[string]*types.Card
	IDs   []string
}

// InitPopulation creates p.Cards cards with uniform home locations and
// Bernoulli compromise flags.
func InitPopulation(rng *rand.Rand, p Params) *Population {
	pop := &Population{
		Cards: make(map[string]*types.Card, p.Cards),
		IDs:   make([]string, 0, p.Cards),
	}
	for i := 0; i < p.Cards; i++ {
		id := types.CardID(i)
		pop.Cards[id] = &types.Card{
			ID:            id,
			HomeLatitude:  geo.Round6(uniform(rng, p.HomeLatitude)),
			HomeLongitude: geo.Round6(uniform(rng, p.HomeLongitude)),
			IsCompromised: rng.Float64() < p.CompromiseProbability,
		}
		pop.IDs = append(pop.IDs, id)
	}
	return pop
}

// Len returns the number of cards.
func (pop *Population) Len() int {
	return len(pop.IDs)
}

// Get returns the card with the given ID.
func (pop *Population) Get(id string) (*types.Card, bool) {
	c, ok := pop.Cards[id]
	return c, ok
}

// Pick returns a uniformly chosen card.
func (pop *Population) Pick(rng *rand.Rand) *types.Card {
	return pop.Cards[pop.IDs[rng.IntN(len(pop.IDs))]]
}

// Compromised returns the number of compromised cards.
func (pop *Population) Compromised() int {
	n := 0
	for _, c := range pop.Cards {
		if c.IsCompromised {
			n++
		}
	}
	return n
}

func uniform(rng *rand.Rand, r Range) float64 {
	return r.Min + (r.Max-r.Min)*rng.Float64()
}
