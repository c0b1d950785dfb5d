package tier

import (
	"fmt"
	"time"
)

// Display states for a listing's premium badge.
const (
	StateNone      = "none"
	StateRemaining = "time_remaining"
	StateExpired   = "expired"
)

// ExpiringSoonThreshold switches the badge to its urgent styling.
const ExpiringSoonThreshold = 24 * time.Hour

// Display is the presentation state derived from a listing's tier fields.
type Display struct {
	State            string `json:"state"`
	Label            string `json:"label,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
	ExpiringSoon     bool   `json:"expiring_soon,omitempty"`
}

// Present derives the badge state from the cached record and the current
// time. Expiry is reported the instant now >= premiumExpiresAt, without
// waiting for the sweeper to persist the downgrade.
func Present(adType string, premiumExpiresAt *time.Time, now time.Time) Display {
	if !IsPremium(adType) || premiumExpiresAt == nil {
		return Display{State: StateNone}
	}

	remaining := premiumExpiresAt.Sub(now)
	if remaining <= 0 {
		return Display{State: StateExpired}
	}

	return Display{
		State:            StateRemaining,
		Label:            formatRemaining(remaining),
		RemainingSeconds: int64(remaining.Seconds()),
		ExpiringSoon:     remaining <= ExpiringSoonThreshold,
	}
}

// formatRemaining renders days+hours when at least a day remains,
// hours+minutes when at least an hour, minutes otherwise.
func formatRemaining(remaining time.Duration) string {
	switch {
	case remaining >= 24*time.Hour:
		days := int(remaining / (24 * time.Hour))
		hours := int(remaining % (24 * time.Hour) / time.Hour)
		return fmt.Sprintf("%dd %dh", days, hours)
	case remaining >= time.Hour:
		hours := int(remaining / time.Hour)
		minutes := int(remaining % time.Hour / time.Minute)
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		minutes := int(remaining / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		return fmt.Sprintf("%dm", minutes)
	}
}
