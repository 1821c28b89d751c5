package tracker

import (
	"testing"
	"time"
)

func TestDateRoundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), // leap day
		time.Date(1999, time.June, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2100, time.October, 5, 0, 0, 0, 0, time.UTC),
	}

	for _, d := range dates {
		s := FormatDate(d)
		parsed, err := ParseDate(s)
		if err != nil {
			t.Fatalf("ParseDate(%q) returned error: %v", s, err)
		}
		if !parsed.Equal(d) {
			t.Errorf("round trip of %v via %q gave %v", d, s, parsed)
		}
	}
}

func TestDateFormat(t *testing.T) {
	d := time.Date(2023, time.September, 3, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "03-09-2023" {
		t.Errorf("FormatDate() = %q, want %q", got, "03-09-2023")
	}
}

func TestDayDropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	at := time.Date(2023, time.May, 10, 23, 59, 58, 123, loc)
	day := Day(at)

	if FormatDate(day) != "10-05-2023" {
		t.Errorf("Day() formatted as %q, want 10-05-2023", FormatDate(day))
	}

	parsed, err := ParseDate(FormatDate(day))
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if !parsed.Equal(day) {
		t.Errorf("Day() does not round trip: %v != %v", parsed, day)
	}
}

func TestSampleUsable(t *testing.T) {
	tests := []struct {
		name   string
		sample PriceSample
		want   bool
	}{
		{"available with price", PriceSample{Price: 9.99, Available: true}, true},
		{"free and available", PriceSample{Price: 0, Available: true}, true},
		{"unavailable", PriceSample{Price: 9.99, Available: false}, false},
		{"negative price", PriceSample{Price: -1, Available: true}, false},
		{"negative and unavailable", PriceSample{Price: -1, Available: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sample.Usable(); got != tt.want {
				t.Errorf("Usable() = %v, want %v", got, tt.want)
			}
		})
	}
}
