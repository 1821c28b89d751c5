package notify

import (
	"fmt"
	"strings"

	"pricewatch/pkg/tracker"
)

// Embed colors, one per direction of change.
const (
	ColorDecrease = 0x77dd77 // green
	ColorNoChange = 0xdddd77 // yellow
	ColorIncrease = 0xdd7777 // red
)

// Message is a channel-agnostic notification payload. Providers render it
// onto their own wire format.
type Message struct {
	Title       string
	Description string
	Footer      string
	URL         string
	ImageURL    string
	Color       int
}

// Compose renders a classified price event into a message. previous and low
// may be nil; low being present adds the historical-low footer.
func Compose(tier Tier, product tracker.Product, current tracker.PriceSample, previous, low *tracker.PriceRecord) Message {
	msg := Message{
		Title: product.Name,
		URL:   current.SourceLink,
		Color: color(current, previous),
	}

	if strings.HasPrefix(product.ImageURL, "http://") || strings.HasPrefix(product.ImageURL, "https://") {
		msg.ImageURL = product.ImageURL
	}

	switch tier {
	case TierNewLow:
		msg.Description = "**NEW HISTORICAL LOW**\n" + priceLine(current.Price, previous.Price)
	case TierDecrease:
		msg.Description = "**PRICE DECREASE**\n" + priceLine(current.Price, previous.Price)
	case TierIncrease:
		msg.Description = "**PRICE INCREASE**\n" + priceLine(current.Price, previous.Price)
	case TierNoChange:
		msg.Description = fmt.Sprintf("**NO PRICE CHANGE: £%.2f**", current.Price)
	case TierNewProduct:
		msg.Description = fmt.Sprintf("**PRICE FOUND**\n**£%.2f**", current.Price)
	}

	if low != nil {
		msg.Footer = fmt.Sprintf("Historical low: £%.2f, which occurred on: %s\nDifference of: %s",
			low.Price, tracker.FormatDate(low.Date), PercentDiff(current.Price, low.Price))
	}

	return msg
}

// priceLine renders the current price against the previous one, with the
// signed percentage difference.
func priceLine(current, previous float64) string {
	direction := "up"
	if current < previous {
		direction = "down"
	}
	return fmt.Sprintf("**£%.2f** %s from £%.2f | **%s**",
		current, direction, previous, PercentDiff(current, previous))
}

func color(current tracker.PriceSample, previous *tracker.PriceRecord) int {
	if previous == nil {
		return ColorIncrease
	}
	switch {
	case current.Price < previous.Price:
		return ColorDecrease
	case current.Price == previous.Price:
		return ColorNoChange
	default:
		return ColorIncrease
	}
}

// PercentDiff renders the percentage difference between a new and an old
// price, signed and to two decimal places. An old price of zero reads as a
// full 100% increase rather than dividing by zero.
func PercentDiff(newPrice, oldPrice float64) string {
	if oldPrice == 0 {
		return "+100.00%"
	}
	diff := ((oldPrice - newPrice) / oldPrice) * 100
	if newPrice >= oldPrice {
		// 0-diff rather than -diff: negating an exact zero would print "-0.00".
		return fmt.Sprintf("+%.2f%%", 0-diff)
	}
	return fmt.Sprintf("-%.2f%%", diff)
}
