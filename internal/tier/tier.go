package tier

import (
	"time"
)

// Tier labels. Standard listings never expire; each premium tier has a fixed
// lifespan.
const (
	Standard   = "standard"
	Premium24h = "premium_24h"
	Premium7d  = "premium_7d"
	Premium15d = "premium_15d"
	Premium30d = "premium_30d"
)

var durations = map[string]time.Duration{
	Premium24h: 24 * time.Hour,
	Premium7d:  7 * 24 * time.Hour,
	Premium15d: 15 * 24 * time.Hour,
	Premium30d: 30 * 24 * time.Hour,
}

// Prices in UZS.
var prices = map[string]int64{
	Standard:   0,
	Premium24h: 5000,
	Premium7d:  25000,
	Premium15d: 45000,
	Premium30d: 80000,
}

// Duration returns the fixed lifespan of a premium tier. ok is false for
// standard or unrecognized labels.
func Duration(label string) (time.Duration, bool) {
	d, ok := durations[label]
	return d, ok
}

// IsPremium reports whether the label names a known premium tier.
func IsPremium(label string) bool {
	_, ok := durations[label]
	return ok
}

// ExpiresAt maps a tier label to an absolute expiration instant. Standard and
// unrecognized labels degrade to nil (non-expiring) rather than failing.
func ExpiresAt(label string, now time.Time) *time.Time {
	d, ok := durations[label]
	if !ok {
		return nil
	}
	at := now.Add(d)
	return &at
}

// Price returns the purchase price of a tier. ok is false for unknown labels.
func Price(label string) (int64, bool) {
	p, ok := prices[label]
	return p, ok
}

// All lists the purchasable tier labels.
func All() []string {
	return []string{Standard, Premium24h, Premium7d, Premium15d, Premium30d}
}
