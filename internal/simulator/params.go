// Package simulator implements the transaction engine: card population
// bootstrap, the per-transaction fraud decision, shared clock advancement
// (including deliberate rewinds that force velocity anomalies), record
// assembly, and per-card state updates.
package simulator

import (
	"fmt"
	"math"
	"time"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
)

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Params controls population shape and transaction behavior.
type Params struct {
	// Cards is the population size
	Cards int

	// Transactions is the number of records a full run emits
	Transactions int

	// CompromiseProbability is the chance a card is compromised at creation
	CompromiseProbability float64

	// FraudProbability is the chance a compromised card's transaction is fraud
	FraudProbability float64

	// AvgDelay is the mean of the exponential clock increment
	AvgDelay time.Duration

	// NormalRadiusKm bounds normal merchant sampling around home
	NormalRadiusKm float64

	// FraudRadiusKm is the far bound of fraud merchant sampling
	FraudRadiusKm float64

	NormalAmount Range
	FraudAmount  Range

	// VelocityThresholdKmh is the travel speed considered suspicious
	VelocityThresholdKmh float64

	// ForceProbability is the chance a slow fraud transaction is rewound
	ForceProbability float64

	// ForceFactor scales the threshold travel time when rewinding
	ForceFactor Range

	// MinForcedGap is the smallest elapsed time a rewind may produce
	MinForcedGap time.Duration

	HomeLatitude  Range
	HomeLongitude Range
}

// DefaultParams returns the default simulation parameters.
func DefaultParams() Params {
	return Params{
		Cards:                 50,
		Transactions:          1000,
		CompromiseProbability: 0.10,
		FraudProbability:      0.03,
		AvgDelay:              500 * time.Millisecond,
		NormalRadiusKm:        50,
		FraudRadiusKm:         5000,
		NormalAmount:          Range{Min: 5.00, Max: 250.00},
		FraudAmount:           Range{Min: 100.00, Max: 2000.00},
		VelocityThresholdKmh:  800,
		ForceProbability:      0.5,
		ForceFactor:           Range{Min: 0.5, Max: 0.9},
		MinForcedGap:          time.Second,
		HomeLatitude:          Range{Min: 25.0, Max: 65.0},
		HomeLongitude:         Range{Min: -125.0, Max: 40.0},
	}
}

// Validate reports the first invalid parameter.
func (p Params) Validate() error {
	if p.Cards <= 0 {
		return invalidConfig("cards", fmt.Sprintf("population size must be positive, got %d", p.Cards))
	}
	if p.Transactions < 0 {
		return invalidConfig("transactions", fmt.Sprintf("transaction count must not be negative, got %d", p.Transactions))
	}

	probabilities := []struct {
		field string
		value float64
	}{
		{"compromise_probability", p.CompromiseProbability},
		{"fraud_probability", p.FraudProbability},
		{"force_probability", p.ForceProbability},
	}
	for _, pr := range probabilities {
		if !(pr.value >= 0 && pr.value <= 1) {
			return simerrors.NewValidationError(simerrors.CodeInvalidProbability,
				fmt.Sprintf("%s must be in [0, 1], got %v", pr.field, pr.value)).
				WithDetails(map[string]interface{}{"field": pr.field})
		}
	}

	finite := []struct {
		field string
		value float64
	}{
		{"normal_radius_km", p.NormalRadiusKm},
		{"fraud_radius_km", p.FraudRadiusKm},
		{"normal_amount.min", p.NormalAmount.Min},
		{"normal_amount.max", p.NormalAmount.Max},
		{"fraud_amount.min", p.FraudAmount.Min},
		{"fraud_amount.max", p.FraudAmount.Max},
		{"velocity_threshold_kmh", p.VelocityThresholdKmh},
		{"force_factor.min", p.ForceFactor.Min},
		{"force_factor.max", p.ForceFactor.Max},
		{"home_latitude.min", p.HomeLatitude.Min},
		{"home_latitude.max", p.HomeLatitude.Max},
		{"home_longitude.min", p.HomeLongitude.Min},
		{"home_longitude.max", p.HomeLongitude.Max},
	}
	for _, f := range finite {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return invalidRange(f.field, fmt.Sprintf("%s must be a finite number, got %v", f.field, f.value))
		}
	}

	if p.AvgDelay <= 0 {
		return invalidConfig("avg_delay", fmt.Sprintf("average delay must be positive, got %v", p.AvgDelay))
	}
	if p.NormalRadiusKm <= 0 {
		return invalidRange("normal_radius_km", fmt.Sprintf("normal radius must be positive, got %v", p.NormalRadiusKm))
	}
	if p.FraudRadiusKm < 2*p.NormalRadiusKm {
		return invalidRange("fraud_radius_km", fmt.Sprintf("fraud radius must be at least twice the normal radius (%v), got %v", 2*p.NormalRadiusKm, p.FraudRadiusKm))
	}
	if err := validateAmount("normal_amount", p.NormalAmount); err != nil {
		return err
	}
	if err := validateAmount("fraud_amount", p.FraudAmount); err != nil {
		return err
	}
	if p.VelocityThresholdKmh <= 0 {
		return invalidRange("velocity_threshold_kmh", fmt.Sprintf("velocity threshold must be positive, got %v", p.VelocityThresholdKmh))
	}
	if p.ForceFactor.Min <= 0 || p.ForceFactor.Max > 1 || p.ForceFactor.Min > p.ForceFactor.Max {
		return invalidRange("force_factor", fmt.Sprintf("force factor must satisfy 0 < min <= max <= 1, got [%v, %v]", p.ForceFactor.Min, p.ForceFactor.Max))
	}
	if p.MinForcedGap < 0 {
		return invalidRange("min_forced_gap", fmt.Sprintf("minimum forced gap must not be negative, got %v", p.MinForcedGap))
	}
	if p.HomeLatitude.Min < -90 || p.HomeLatitude.Max > 90 || p.HomeLatitude.Min > p.HomeLatitude.Max {
		return invalidRange("home_latitude", fmt.Sprintf("home latitude range must lie within [-90, 90], got [%v, %v]", p.HomeLatitude.Min, p.HomeLatitude.Max))
	}
	if p.HomeLongitude.Min < -180 || p.HomeLongitude.Max > 180 || p.HomeLongitude.Min > p.HomeLongitude.Max {
		return invalidRange("home_longitude", fmt.Sprintf("home longitude range must lie within [-180, 180], got [%v, %v]", p.HomeLongitude.Min, p.HomeLongitude.Max))
	}
	return nil
}

// minAmount is the smallest value that survives rounding to cents.
const minAmount = 0.01

func validateAmount(field string, r Range) error {
	if r.Min < minAmount || r.Max < r.Min {
		return invalidRange(field, fmt.Sprintf("%s must satisfy %v <= min <= max, got [%v, %v]", field, minAmount, r.Min, r.Max))
	}
	return nil
}

func invalidConfig(field, msg string) error {
	return simerrors.NewValidationError(simerrors.CodeInvalidConfig, msg).
		WithDetails(map[string]interface{}{"field": field})
}

func invalidRange(field, msg string) error {
	return simerrors.NewValidationError(simerrors.CodeInvalidRange, msg).
		WithDetails(map[string]interface{}{"field": field})
}
