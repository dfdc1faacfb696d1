// Package types provides core data types for fraudsim.
package types

import (
	"fmt"
	"time"
)

// Card is a simulated payment card and its per-card transaction state.
type Card struct {
	// ID is the stable card identifier (e.g., "CARD_0007")
	ID string `json:"card_id"`

	// HomeLatitude and HomeLongitude are fixed at creation
	HomeLatitude  float64 `json:"home_latitude"`
	HomeLongitude float64 `json:"home_longitude"`

	// IsCompromised marks the card as able to produce fraud; never changes after creation
	IsCompromised bool `json:"is_compromised"`

	// Last is nil until the card's first transaction
	Last *LastTransaction `json:"last,omitempty"`
}

// LastTransaction is the timestamp and merchant location of a card's most recent transaction.
type LastTransaction struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// HasLastTransaction reports whether the card has transacted before.
func (c *Card) HasLastTransaction() bool {
	return c.Last != nil
}

// Record overwrites the card's last-transaction state.
func (c *Card) Record(ts time.Time, lat, lon float64) {
	c.Last = &LastTransaction{Timestamp: ts, Latitude: lat, Longitude: lon}
}

// CardID formats the identifier of the i-th card in a population.
func CardID(i int) string {
	return fmt.Sprintf("CARD_%04d", i)
}
