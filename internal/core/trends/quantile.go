package trends

import "math"

// ComputeQuantile returns the quantile q (0 <= q <= 1) of an ascending slice
// using linear interpolation between closest ranks (R-7, as in spreadsheets).
// The boolean is false when the lower rank does not exist, which only
// happens for an empty slice.
func ComputeQuantile(sortedAscending []float64, quantile float64) (float64, bool) {
	idx := float64(len(sortedAscending)-1) * quantile
	lo := int(math.Floor(idx))
	if lo < 0 || lo >= len(sortedAscending) {
		return 0, false
	}

	base := sortedAscending[lo]
	if lo+1 < len(sortedAscending) {
		return base + (idx-float64(lo))*(sortedAscending[lo+1]-base), true
	}
	return base, true
}
