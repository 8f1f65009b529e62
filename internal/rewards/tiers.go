package rewards

import "sort"

// exchangeRates maps a reward value in VND to its cost in points. The program
// runs at a 1:1 rate (50.000 VND costs 50.000 points).
var exchangeRates = map[int64]int64{
	50000:  50000,
	100000: 100000,
	200000: 200000,
	500000: 500000,
}

// RequiredPoints returns the points cost for a reward tier, and whether the
// tier exists.
func RequiredPoints(discountValue int64) (int64, bool) {
	points, ok := exchangeRates[discountValue]
	return points, ok
}

// ValidValues lists the configured tiers in ascending order, for error
// responses.
func ValidValues() []int64 {
	values := make([]int64, 0, len(exchangeRates))
	for v := range exchangeRates {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return values
}
