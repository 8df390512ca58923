// Package trends computes the box-plot slices of the 24-hour glucose trend
// chart. Readings are grouped in 30-minute buckets of the day and each bucket
// is summarised by its minimum, maximum and five interpolated quantiles.
package trends

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/IANDYI/trends-service/internal/core/domain"
)

// ComputeMsThresholdForTimeOfDay maps a time-of-day offset to the center of
// its enclosing 30-minute bucket. Offsets outside [0, 86400000) are rejected
// with domain.ErrInvalidArgument.
func ComputeMsThresholdForTimeOfDay(numberOfMs int64) (int64, error) {
	if numberOfMs < 0 || numberOfMs >= domain.TwentyFourHours {
		return 0, fmt.Errorf("%w: time of day %d ms is outside [0, %d)", domain.ErrInvalidArgument, numberOfMs, domain.TwentyFourHours)
	}
	return (numberOfMs/domain.ThirtyMinutes)*domain.ThirtyMinutes + domain.FifteenMinutes, nil
}

// FormatCbgs groups readings by bucket and computes one Slice per populated
// bucket. Slices come out in the order their bucket was first seen.
func FormatCbgs(readings []domain.Reading) ([]domain.Slice, error) {
	var order []int64
	groups := make(map[int64][]float64)

	for _, r := range readings {
		msX, err := ComputeMsThresholdForTimeOfDay(r.MsPer24)
		if err != nil {
			return nil, err
		}
		if _, seen := groups[msX]; !seen {
			order = append(order, msX)
		}
		groups[msX] = append(groups[msX], r.Value)
	}

	slices := make([]domain.Slice, 0, len(order))
	for _, msX := range order {
		slices = append(slices, newSlice(msX, groups[msX]))
	}
	return slices, nil
}

func newSlice(msX int64, values []float64) domain.Slice {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	quantile := func(q float64) float64 {
		v, _ := ComputeQuantile(sorted, q)
		return v
	}

	return domain.Slice{
		ID:                strconv.FormatInt(msX, 10),
		MsX:               msX,
		MsFrom:            msX - domain.FifteenMinutes,
		MsTo:              msX + domain.FifteenMinutes,
		Min:               sorted[0],
		TenthQuantile:     quantile(0.1),
		FirstQuartile:     quantile(0.25),
		Median:            quantile(0.5),
		ThirdQuartile:     quantile(0.75),
		NinetiethQuantile: quantile(0.9),
		Max:               sorted[len(sorted)-1],
	}
}

// SortByTime orders slices by bucket center, in place
func SortByTime(slices []domain.Slice) {
	sort.SliceStable(slices, func(i, j int) bool {
		return slices[i].MsX < slices[j].MsX
	})
}

// MsPer24 returns the wall-clock offset of t since midnight in loc, in
// milliseconds. The result stays in [0, 86400000) on DST days too.
func MsPer24(t time.Time, loc *time.Location) int64 {
	local := t.In(loc)
	return int64(local.Hour())*int64(time.Hour/time.Millisecond) +
		int64(local.Minute())*int64(time.Minute/time.Millisecond) +
		int64(local.Second())*1000 +
		int64(local.Nanosecond())/int64(time.Millisecond)
}

// ToReadings positions stored readings on the 24-hour axis of loc
func ToReadings(readings []domain.GlucoseReading, loc *time.Location) []domain.Reading {
	out := make([]domain.Reading, len(readings))
	for i, r := range readings {
		out[i] = domain.Reading{
			MsPer24: MsPer24(r.Time, loc),
			Value:   r.Value,
		}
	}
	return out
}
