package scraper

import (
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"pricewatch/pkg/tracker"
)

// CDKeysHost is the URL host the CDKeys adapter handles.
const CDKeysHost = "www.cdkeys.com"

var cdkeysPriceID = regexp.MustCompile(`^product-price-\d+$`)

// CDKeys scrapes product pages on cdkeys.com. The price lives in a span with a
// product-price-N id and a data-price-amount attribute; availability is a JSON
// blob on the .stock element.
type CDKeys struct{}

// Host returns the host this adapter handles.
func (CDKeys) Host() string { return CDKeysHost }

// Parse extracts price and availability from a CDKeys product page.
func (CDKeys) Parse(doc *goquery.Document, pageURL string) (tracker.PriceSample, error) {
	available := cdkeysAvailability(doc)
	if !available {
		return tracker.PriceSample{Price: -1, Available: false}, nil
	}

	price := -1.0
	found := false
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		if !ok || !cdkeysPriceID.MatchString(id) {
			return true
		}
		amount, ok := s.Attr("data-price-amount")
		if !ok {
			return true
		}
		parsed, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return true
		}
		price = parsed
		found = true
		return false
	})

	if !found {
		return tracker.PriceSample{}, &ParseError{URL: pageURL, What: "price span"}
	}

	return tracker.PriceSample{Price: price, Available: true}, nil
}

func cdkeysAvailability(doc *goquery.Document) bool {
	raw, ok := doc.Find(".stock").First().Attr("data-mage-init")
	if !ok {
		return false
	}

	var payload struct {
		ProductAvailability struct {
			IsAvailable bool `json:"isAvailable"`
		} `json:"productAvailability"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return false
	}
	return payload.ProductAvailability.IsAvailable
}
