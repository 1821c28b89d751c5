// Package notify turns a day's price result into webhook notifications:
// classifying the change, composing the message, and fanning it out to each
// recipient's registered endpoints.
package notify

import "pricewatch/pkg/tracker"

// Tier is the notification classification assigned to a price change event.
type Tier int

// Tiers in precedence order: a price that is both below the previous price
// and below the all-time low classifies as TierNewLow, never TierDecrease.
const (
	TierNewLow Tier = iota
	TierDecrease
	TierNoChange
	TierIncrease
	TierNewProduct
)

func (t Tier) String() string {
	switch t {
	case TierNewLow:
		return "new_historical_low"
	case TierDecrease:
		return "price_decrease"
	case TierNoChange:
		return "no_change"
	case TierIncrease:
		return "price_increase"
	case TierNewProduct:
		return "new_product"
	default:
		return "unknown"
	}
}

// Classify decides the notification tier for today's aggregated price.
// previous is the most recent record strictly before today; low is the
// all-time low across the stored history. Both are nil-able: no previous
// record means the product has never been priced before.
func Classify(current tracker.PriceSample, previous, low *tracker.PriceRecord) Tier {
	if previous == nil {
		return TierNewProduct
	}
	if low != nil && current.Price < low.Price {
		return TierNewLow
	}
	switch {
	case current.Price < previous.Price:
		return TierDecrease
	case current.Price == previous.Price:
		return TierNoChange
	default:
		return TierIncrease
	}
}

// Recipients filters subscribed users down to those who should receive a
// notification of the given tier. "No change" notifications only go to users
// who opted into them; every other tier goes to all enabled users.
func Recipients(tier Tier, targets []tracker.NotificationSettings) []tracker.NotificationSettings {
	var out []tracker.NotificationSettings
	for _, t := range targets {
		if !t.Enabled {
			continue
		}
		if tier == TierNoChange && !t.NoPriceChangeEnabled {
			continue
		}
		out = append(out, t)
	}
	return out
}
