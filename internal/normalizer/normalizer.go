// Package normalizer turns raw marketplace payloads into canonical product
// records.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/jmespath/go-jmespath"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/products"
)

const (
	maxTitleLen = 500
	maxBrandLen = 100

	DefaultTitle = "Untitled"
	DefaultBrand = "Amazon"

	// Category is fixed until the payload carries a usable category.
	Category    = "electronics"
	Currency    = "EUR"
	Marketplace = "amazon"

	productURLTemplate = "https://www.amazon.es/dp/%s"
)

// ErrParse is wrapped by every failure to interpret a payload.
var ErrParse = errors.New("unparseable marketplace payload")

var (
	exprData         = jmespath.MustCompile("data")
	exprTitle        = jmespath.MustCompile("data.product_title")
	exprPrice        = jmespath.MustCompile("data.product_price")
	exprRating       = jmespath.MustCompile("data.product_star_rating")
	exprReviews      = jmespath.MustCompile("data.product_num_ratings")
	exprInformation  = jmespath.MustCompile("data.product_information")
	exprAvailability = jmespath.MustCompile("data.product_availability")
	exprPhoto        = jmespath.MustCompile("data.product_photo")
)

var maxRating = decimal.NewFromInt(5)

type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

func New(log *zap.Logger) *Normalizer {
	return &Normalizer{logger: log, now: time.Now}
}

// WithClock replaces the clock used for last_updated.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	n.now = now
	return n
}

// Normalize builds the canonical record for externalID from raw. Individual
// malformed fields degrade to defaults; only a payload without a data object
// is rejected.
func (n *Normalizer) Normalize(raw []byte, externalID string) (*products.Product, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: payload is not an object", ErrParse)
	}
	if _, ok := search(exprData, doc).(map[string]any); !ok {
		return nil, fmt.Errorf("%w: missing data object", ErrParse)
	}

	log := n.logger.With(zap.String("external_id", externalID))

	title := DefaultTitle
	if s, ok := stringValue(search(exprTitle, doc)); ok {
		title = s
	}

	rawPrice, _ := stringValue(search(exprPrice, doc))
	price, err := ParsePrice(rawPrice)
	switch {
	case rawPrice == "":
		log.Warn("price missing from payload")
	case err != nil:
		log.Warn("price not parseable", zap.String("raw", rawPrice), zap.Error(err))
	}

	rawRating, _ := stringValue(search(exprRating, doc))
	rating, err := ParseRating(rawRating)
	if err != nil {
		log.Warn("rating not parseable", zap.String("raw", rawRating), zap.Error(err))
	}

	rawReviews, _ := stringValue(search(exprReviews, doc))
	reviews := ParseReviewCount(rawReviews)

	brand := DefaultBrand
	if info, ok := search(exprInformation, doc).(map[string]any); ok {
		if s, ok := stringValue(info["Brand"]); ok {
			brand = s
		}
	}

	availability, _ := stringValue(search(exprAvailability, doc))
	image, _ := stringValue(search(exprPhoto, doc))

	p := &products.Product{
		ExternalID:   externalID,
		Title:        truncate(title, maxTitleLen),
		Brand:        truncate(brand, maxBrandLen),
		Category:     Category,
		CurrentPrice: price,
		Currency:     Currency,
		Marketplace:  Marketplace,
		Rating:       rating,
		ReviewCount:  reviews,
		StockStatus:  ParseStockStatus(availability),
		ImageURL:     image,
		LastUpdated:  n.now(),
		URL:          fmt.Sprintf(productURLTemplate, externalID),
	}

	log.Debug("payload normalized",
		zap.Stringer("price", decimalStringer{p.CurrentPrice}),
		zap.Stringer("rating", decimalStringer{p.Rating}),
		zap.Int("review_count", p.ReviewCount),
		zap.String("stock_status", string(p.StockStatus)),
	)
	return p, nil
}

// ParsePrice reads a locale formatted price such as "1.234,56 €" or "59,99".
// With both separators present '.' groups thousands and ',' is the decimal
// point. An empty string yields (nil, nil).
func ParsePrice(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			return r
		}
		return -1
	}, raw)

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")
	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", raw, err)
	}
	return &d, nil
}

// ParseRating reads the leading number of strings like "4,5 de 5 estrellas".
func ParseRating(raw string) (*decimal.Decimal, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, nil
	}

	d, err := decimal.NewFromString(strings.ReplaceAll(fields[0], ",", "."))
	if err != nil {
		return nil, fmt.Errorf("rating %q: %w", raw, err)
	}
	if d.IsNegative() || d.GreaterThan(maxRating) {
		return nil, fmt.Errorf("rating %q out of range", raw)
	}
	return &d, nil
}

// ParseReviewCount reads counts like "12.450" or "1,024"; anything else is 0.
func ParseReviewCount(raw string) int {
	cleaned := strings.NewReplacer(".", "", ",", "").Replace(raw)
	if cleaned == "" {
		return 0
	}

	n := 0
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
		if n > 1<<31 {
			return 0
		}
	}
	return n
}

func ParseStockStatus(availability string) products.StockStatus {
	if availability != "" && strings.Contains(strings.ToLower(availability), "stock") {
		return products.InStock
	}
	return products.OutOfStock
}

func search(expr *jmespath.JMESPath, doc any) any {
	v, err := expr.Search(doc)
	if err != nil {
		return nil
	}
	return v
}

// stringValue renders JSON scalars as text. Null and composite values report false.
func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		return "", false
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

type decimalStringer struct{ d *decimal.Decimal }

func (s decimalStringer) String() string {
	if s.d == nil {
		return "null"
	}
	return s.d.String()
}
