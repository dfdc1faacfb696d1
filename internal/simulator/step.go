package simulator

import (
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arkilian/fraudsim/internal/geo"
	"github.com/arkilian/fraudsim/pkg/types"
)

// IDSource produces transaction identifiers.
type IDSource func() (string, error)

// StepResult is the outcome of one simulation step.
type StepResult struct {
	// Clock is the shared clock value after this step
	Clock time.Time

	Transaction types.Transaction

	// Forced is set when the clock was rewound to force a velocity anomaly
	Forced bool

	// VelocityKmh is the implied speed from the card's previous merchant to
	// this one. HasVelocity is false when the card had no prior transaction
	// or no time elapsed.
	VelocityKmh float64
	HasVelocity bool
}

// Step runs one transaction for card against the shared clock value now and
// updates the card's last-transaction state in place.
func Step(rng *rand.Rand, p Params, now time.Time, card *types.Card, ids IDSource) (StepResult, error) {
	home := geo.Point{Latitude: card.HomeLatitude, Longitude: card.HomeLongitude}

	isFraud := card.IsCompromised && rng.Float64() < p.FraudProbability

	var (
		amount   float64
		merchant geo.Point
		forced   bool
	)
	if isFraud {
		amount = roundCents(uniform(rng, p.FraudAmount))
		radius := uniform(rng, Range{Min: 2 * p.NormalRadiusKm, Max: p.FraudRadiusKm})
		merchant = geo.SamplePoint(rng, home, radius)

		if card.HasLastTransaction() && card.Last.Timestamp.Before(now) {
			now, forced = maybeForceVelocity(rng, p, now, card.Last, merchant)
		} else {
			// No prior transaction or no elapsed time: fraud advances like a normal step
			now = advance(rng, p, now)
		}
	} else {
		amount = roundCents(uniform(rng, p.NormalAmount))
		radius := uniform(rng, Range{Min: 0, Max: p.NormalRadiusKm})
		merchant = geo.SamplePoint(rng, home, radius)
		now = advance(rng, p, now)
	}

	id, err := ids()
	if err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Clock:  now,
		Forced: forced,
		Transaction: types.Transaction{
			TransactionID:     id,
			CardID:            card.ID,
			Timestamp:         types.FormatTimestamp(now),
			Amount:            amount,
			MerchantID:        types.MerchantID(1000 + rng.IntN(9000)),
			MerchantLatitude:  merchant.Latitude,
			MerchantLongitude: merchant.Longitude,
			IsFraud:           isFraud,
			HomeLatitude:      card.HomeLatitude,
			HomeLongitude:     card.HomeLongitude,
		},
	}
	if card.HasLastTransaction() {
		if elapsed := now.Sub(card.Last.Timestamp).Seconds(); elapsed > 0 {
			prev := geo.Point{Latitude: card.Last.Latitude, Longitude: card.Last.Longitude}
			res.VelocityKmh = geo.VelocityKmh(prev.DistanceTo(merchant), elapsed)
			res.HasVelocity = true
		}
	}

	card.Record(now, merchant.Latitude, merchant.Longitude)
	return res, nil
}

// maybeForceVelocity rewinds the clock when travel from the previous
// merchant would look plausible. The caller guarantees last precedes now.
// When no rewind happens the clock advances normally.
func maybeForceVelocity(rng *rand.Rand, p Params, now time.Time, last *types.LastTransaction, merchant geo.Point) (time.Time, bool) {
	elapsed := now.Sub(last.Timestamp).Seconds()
	prev := geo.Point{Latitude: last.Latitude, Longitude: last.Longitude}
	distance := prev.DistanceTo(merchant)

	if geo.VelocityKmh(distance, elapsed) < p.VelocityThresholdKmh && rng.Float64() < p.ForceProbability {
		required := geo.SecondsAtVelocity(distance, p.VelocityThresholdKmh)
		gap := uniform(rng, Range{Min: required * p.ForceFactor.Min, Max: required * p.ForceFactor.Max})
		if minGap := p.MinForcedGap.Seconds(); gap < minGap {
			gap = minGap
		}
		return last.Timestamp.Add(seconds(gap)), true
	}
	// Without a rewind the clock still advances, so every step moves time
	return advance(rng, p, now), false
}

// advance moves the clock forward by an exponential increment with mean p.AvgDelay.
func advance(rng *rand.Rand, p Params, now time.Time) time.Time {
	return now.Add(seconds(rng.ExpFloat64() * p.AvgDelay.Seconds()))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
