// Package tracker contains the core domain types for the price tracking service.
package tracker

import "time"

// DateLayout is the fixed format prices are keyed by in storage. One record
// exists per product per day, so times of day never appear.
const DateLayout = "02-01-2006"

// PriceSample is a single source's price/availability observation for one
// fetch. It is transient and never persisted directly.
type PriceSample struct {
	Price      float64
	Available  bool
	CapturedAt time.Time
	SourceLink string
}

// Usable reports whether the sample carries a price worth considering.
// Unavailable products and negative prices both mean "no usable price".
func (s PriceSample) Usable() bool {
	return s.Available && s.Price >= 0
}

// PriceRecord is the persisted authoritative price for one product on one day.
type PriceRecord struct {
	ProductID  int64
	Date       time.Time
	Price      float64
	SourceLink string
}

// Product is a tracked catalog entry. Created by admin actions, never mutated
// by the sweep core.
type Product struct {
	ID       int64
	Name     string
	ImageURL string
}

// Source is one scrapeable site link for a product. The link's host decides
// which adapter handles it.
type Source struct {
	ID        int64
	ProductID int64
	SiteLink  string
}

// NotificationSettings is a user's per-subscribed-product preference.
type NotificationSettings struct {
	UserID               int64
	Enabled              bool
	NoPriceChangeEnabled bool
}

// FormatDate renders a date in the storage layout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a storage-layout date string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Day truncates a time to its date, dropping time of day and normalizing the
// location so that FormatDate/ParseDate round-trip.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two times fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
