package pricing

import "time"

// DefaultMaxPromoDays bounds the promotion validity window.
const DefaultMaxPromoDays = 30

// Promotion is a time boxed promotional price.  The expiry is measured
// from the moment the window was last set, not from creation.
type Promotion struct {
	Days      int       `json:"dias"`
	ExpiresAt time.Time `json:"venceEn"`
}

// ClampDays bounds days to [1, max].
func ClampDays(days, max int) int {
	if max < 1 {
		max = DefaultMaxPromoDays
	}
	if days < 1 {
		return 1
	}
	if days > max {
		return max
	}
	return days
}

// SetWindow sets the validity window and recomputes the expiry from now.
func (p *Promotion) SetWindow(days, max int, now time.Time) {
	p.Days = ClampDays(days, max)
	p.ExpiresAt = now.AddDate(0, 0, p.Days)
}
