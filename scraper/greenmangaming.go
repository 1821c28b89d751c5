package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/pkg/tracker"
)

// GreenManGamingHost is the URL host the Green Man Gaming adapter handles.
const GreenManGamingHost = "www.greenmangaming.com"

// GreenManGaming scrapes product pages on greenmangaming.com. The current
// price is the text of a gmgprice element, prefixed with a currency symbol.
// The site exposes no availability flag; a parseable price means in stock.
type GreenManGaming struct{}

// Host returns the host this adapter handles.
func (GreenManGaming) Host() string { return GreenManGamingHost }

// Parse extracts the price from a Green Man Gaming product page.
func (GreenManGaming) Parse(doc *goquery.Document, pageURL string) (tracker.PriceSample, error) {
	text := strings.TrimSpace(doc.Find("gmgprice.current-price.pdp-price").First().Text())
	if text == "" {
		return tracker.PriceSample{}, &ParseError{URL: pageURL, What: "price element"}
	}

	// Strip the leading currency symbol (£, $, €).
	runes := []rune(text)
	price, err := strconv.ParseFloat(string(runes[1:]), 64)
	if err != nil {
		return tracker.PriceSample{}, &ParseError{URL: pageURL, What: "price text"}
	}

	return tracker.PriceSample{Price: price, Available: true}, nil
}
