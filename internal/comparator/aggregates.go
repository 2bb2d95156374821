package comparator

import "errors"

// ErrNoStockAvailable is returned when no quote is in stock, so no price
// aggregates exist.
var ErrNoStockAvailable = errors.New("no store has the product in stock")

// ComputeAggregates derives lowest, highest and average price over the in-stock
// quotes. The average is rounded to cents.
func ComputeAggregates(quotes []StoreQuote) (Aggregates, error) {
	agg := Aggregates{Total: len(quotes)}

	var sum float64
	for _, q := range quotes {
		if !q.InStock {
			continue
		}
		if agg.Available == 0 || q.Price < agg.Lowest {
			agg.Lowest = q.Price
		}
		if agg.Available == 0 || q.Price > agg.Highest {
			agg.Highest = q.Price
		}
		sum += q.Price
		agg.Available++
	}

	if agg.Available == 0 {
		return agg, ErrNoStockAvailable
	}
	agg.Average = round(sum/float64(agg.Available), 2)
	return agg, nil
}
