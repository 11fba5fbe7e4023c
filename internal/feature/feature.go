// Package feature holds the pure extractors the signal evaluators feed on.
// Every function is deterministic over its inputs and reports whether the
// input was sufficient.
package feature

import (
	"math"

	"PumpSentinel/internal/model"
)

// ATR computes Wilder's Average True Range over the last n periods of
// hourly candles. Requires n+1 candles; ok is false otherwise.
func ATR(candles []model.Candle, n int) (float64, bool) {
	if n <= 0 || len(candles) < n+1 {
		return 0, false
	}
	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		h, l, pc := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
		trs = append(trs, tr)
	}
	atr := 0.0
	for _, tr := range trs[:n] {
		atr += tr
	}
	atr /= float64(n)
	for _, tr := range trs[n:] {
		atr = (atr*float64(n-1) + tr) / float64(n)
	}
	return atr, true
}

// BBWSeries computes the Bollinger band width (upper-lower)/middle over a
// 20-period SMA with 2 standard deviations, one value per candle starting
// at index period-1.
func BBWSeries(candles []model.Candle, period int) []float64 {
	if period <= 0 || len(candles) < period {
		return nil
	}
	out := make([]float64, 0, len(candles)-period+1)
	for i := period - 1; i < len(candles); i++ {
		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += candles[j].Close
		}
		mean := sum / float64(period)
		var varSum float64
		for j := i - period + 1; j <= i; j++ {
			d := candles[j].Close - mean
			varSum += d * d
		}
		sd := math.Sqrt(varSum / float64(period))
		if mean == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, 4*sd/mean)
	}
	return out
}

// PercentileRank returns the fraction of values strictly below x.
func PercentileRank(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var below int
	for _, v := range values {
		if v < x {
			below++
		}
	}
	return float64(below) / float64(len(values))
}

// VWAP computes the volume-weighted average price over the last window
// candles using the typical price (h+l+c)/3.
func VWAP(candles []model.Candle, window int) (float64, bool) {
	if window <= 0 || len(candles) == 0 {
		return 0, false
	}
	if len(candles) > window {
		candles = candles[len(candles)-window:]
	}
	var pv, vol float64
	for _, c := range candles {
		typ := (c.High + c.Low + c.Close) / 3
		pv += typ * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

// SwingLow returns the minimum low over the last window candles; ok is
// false when the window is not fully covered.
func SwingLow(candles []model.Candle, window int) (float64, bool) {
	if window <= 0 || len(candles) < window {
		return 0, false
	}
	low := math.Inf(1)
	for _, c := range candles[len(candles)-window:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low, true
}

// WindowVolume sums candle volumes over the window ending `offset` candles
// before the latest one. offset=0 is the most recent window.
func WindowVolume(candles []model.Candle, window, offset int) (float64, bool) {
	if window <= 0 || len(candles) < window+offset {
		return 0, false
	}
	end := len(candles) - offset
	var sum float64
	for _, c := range candles[end-window : end] {
		sum += c.Volume
	}
	return sum, true
}

// ReturnOver is the fractional close-to-close return over the last `hours`
// hourly candles.
func ReturnOver(candles []model.Candle, hours int) (float64, bool) {
	if hours <= 0 || len(candles) < hours+1 {
		return 0, false
	}
	then := candles[len(candles)-1-hours].Close
	now := candles[len(candles)-1].Close
	if then == 0 {
		return 0, false
	}
	return now/then - 1, true
}

// GapExceeded reports whether any adjacent pair of candles is separated by
// more than maxGapHours.
func GapExceeded(candles []model.Candle, maxGapHours int) bool {
	limit := int64(maxGapHours) * 3_600_000
	for i := 1; i < len(candles); i++ {
		if candles[i].T-candles[i-1].T > limit {
			return true
		}
	}
	return false
}

// SeriesQuality grades a series length against the lookback it must cover:
// HIGH when fully covered, MED at half coverage, LOW below.
func SeriesQuality(have, need int) model.Quality {
	switch {
	case have >= need:
		return model.QualityHigh
	case have*2 >= need:
		return model.QualityMed
	default:
		return model.QualityLow
	}
}
