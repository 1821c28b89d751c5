package sweep

import (
	"time"

	"pricewatch/pkg/tracker"
)

// Analyze derives the comparison points for today's sweep from a product's
// stored history, read before this sweep's write.
//
// previous is the most recent record strictly before today; a record written
// earlier today (by an earlier sweep) is not "previous". low is the record
// with the minimum price across the whole history, today's earlier record
// included, with ties resolved to the first occurrence by date. Both are nil
// when the history is empty.
func Analyze(history []tracker.PriceRecord, today time.Time) (previous, low *tracker.PriceRecord) {
	day := tracker.Day(today)

	for i := range history {
		r := &history[i]
		if r.Date.Before(day) && (previous == nil || r.Date.After(previous.Date)) {
			previous = r
		}
		if low == nil || r.Price < low.Price {
			low = r
		}
	}
	return previous, low
}
