package sweep

import "pricewatch/pkg/tracker"

// SelectLowest reduces one product's source samples to the single best one.
// Unavailable samples and negative prices are discarded; among the rest the
// strictly lowest price wins, with ties keeping the first sample seen so the
// result is stable in source enumeration order. Returns nil when no sample is
// usable, which suppresses all downstream persistence and notification.
func SelectLowest(samples []tracker.PriceSample) *tracker.PriceSample {
	var best *tracker.PriceSample
	for i := range samples {
		if !samples[i].Usable() {
			continue
		}
		if best == nil || samples[i].Price < best.Price {
			best = &samples[i]
		}
	}
	return best
}
