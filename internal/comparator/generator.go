package comparator

import (
	"cmp"
	"crypto/md5"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/valeevte/pricewatch/internal/metrics"
)

const (
	jitterSpan      = 0.06
	jitterOffset    = 0.03
	discountAbove   = 0.7
	discountMarkup  = 1.15
	discountPercent = 13
)

var hundred = big.NewInt(100)

// Generator produces synthetic store quotes. For a given product name, store
// and calendar day the quotes are always the same.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// WithClock replaces the clock; the day of the returned time seeds the quotes.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate quotes name at basePrice in every store carrying category. In-stock
// quotes come first by ascending price; out-of-stock quotes keep catalog order
// after them.
func (g *Generator) Generate(name string, basePrice float64, category string) []StoreQuote {
	now := g.now()
	day := now.Format(time.DateOnly)

	stores := StoresForCategory(category)
	quotes := make([]StoreQuote, 0, len(stores))
	for _, s := range stores {
		q := quote(name, basePrice, s, RandomFactor(name, s.ID, day), now)
		metrics.RecordQuote(q.StoreID, q.InStock)
		quotes = append(quotes, q)
	}

	slices.SortStableFunc(quotes, func(a, b StoreQuote) int {
		return cmp.Compare(sortKey(a), sortKey(b))
	})
	return quotes
}

// RandomFactor maps md5("{name}-{storeID}-{day}") into [0, 1) in steps of 0.01.
func RandomFactor(name, storeID, day string) float64 {
	sum := md5.Sum([]byte(name + "-" + storeID + "-" + day))
	n := new(big.Int).SetBytes(sum[:])
	return float64(n.Mod(n, hundred).Int64()) / 100
}

func quote(name string, basePrice float64, s Store, r float64, now time.Time) StoreQuote {
	// Explicit conversions keep every step individually rounded.
	price := float64(basePrice * s.PriceVariation)
	jitter := float64(price * float64(float64(r*jitterSpan)-jitterOffset))
	final := round(price+jitter, 2)

	inStock := r < s.StockProbability

	q := StoreQuote{
		StoreID:      s.ID,
		StoreName:    s.Name,
		Price:        final,
		Currency:     Currency,
		InStock:      inStock,
		DeliveryDays: s.DeliveryMin + int(float64(r*float64(s.DeliveryMax-s.DeliveryMin))),
		Rating:       round(4.0+r, 1),
		ReviewCount:  int(float64(r*500)) + 50,
		LastUpdated:  now,
		URL:          "https://" + s.ID + ".com/product/" + slug(name),
	}
	if inStock {
		q.StockQuantity = int(float64(r*50)) + 10
	}
	if r > discountAbove {
		prev := round(float64(final*discountMarkup), 2)
		q.PreviousPrice = &prev
		q.DiscountPercentage = discountPercent
	}
	return q
}

func sortKey(q StoreQuote) float64 {
	if !q.InStock {
		return math.Inf(1)
	}
	return q.Price
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// round rounds x to places decimals, resolving ties on the exact binary value
// to even.
func round(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}
