package sparsepce

import (
	"math"
	"sort"
)

// prune returns the positions of the coefficients whose magnitude is above
// threshold, largest magnitude first, keeping at most maxTerms of them. A
// maxTerms of 0 keeps them all.
func prune(coeffs []float64, maxTerms int, threshold float64) []int {
	keep := make([]int, 0, len(coeffs))
	for i, c := range coeffs {
		if math.Abs(c) > threshold {
			keep = append(keep, i)
		}
	}
	sort.SliceStable(keep, func(i, j int) bool {
		return math.Abs(coeffs[keep[i]]) > math.Abs(coeffs[keep[j]])
	})
	if maxTerms > 0 && len(keep) > maxTerms {
		keep = keep[:maxTerms]
	}
	return keep
}
