package season

import (
	"math"

	"github.com/shopspring/decimal"
)

// ThresholdProbability returns the percentage (0-100, one decimal) of the
// distribution at or above totalGames*fraction wins.
func ThresholdProbability(winDistribution []float64, totalGames int, fraction float64) float64 {
	threshold := float64(totalGames) * fraction

	// Summed from the top so a higher threshold never yields a larger total
	sum := 0.0
	for w := len(winDistribution) - 1; w >= 0; w-- {
		if float64(w) < threshold {
			break
		}
		sum += winDistribution[w]
	}

	return roundPercent(sum)
}

// roundPercent converts a 0-1 probability to a percentage rounded to one
// decimal. Out-of-range values are clamped first and NaN reads as 0.
func roundPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	return decimal.NewFromFloat(p * 100).Round(1).InexactFloat64()
}
