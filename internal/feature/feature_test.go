package feature

import (
	"math"
	"testing"

	"PumpSentinel/internal/model"
)

const hourMs = int64(3_600_000)

func flatCandles(n int, price, vol float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{T: int64(i) * hourMs, Open: price, High: price, Low: price, Close: price, Volume: vol}
	}
	return out
}

func TestATRConstantRange(t *testing.T) {
	// Every candle spans exactly 1.0, so TR is 1.0 and so is the ATR.
	candles := make([]model.Candle, 30)
	for i := range candles {
		candles[i] = model.Candle{T: int64(i) * hourMs, Open: 10, High: 10.5, Low: 9.5, Close: 10}
	}
	atr, ok := ATR(candles, 14)
	if !ok {
		t.Fatal("expected ok")
	}
	if math.Abs(atr-1.0) > 1e-9 {
		t.Errorf("atr = %v, want 1.0", atr)
	}
}

func TestATRInsufficient(t *testing.T) {
	if _, ok := ATR(flatCandles(14, 10, 1), 14); ok {
		t.Error("expected not ok with 14 candles for ATR(14)")
	}
}

func TestBBWSeriesFlat(t *testing.T) {
	bbw := BBWSeries(flatCandles(40, 10, 1), 20)
	if len(bbw) != 21 {
		t.Fatalf("len = %d, want 21", len(bbw))
	}
	for _, v := range bbw {
		if v != 0 {
			t.Fatalf("flat series bbw = %v, want 0", v)
		}
	}
}

func TestPercentileRank(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	cases := []struct {
		x    float64
		want float64
	}{
		{0.5, 0},
		{3, 0.4},
		{5.5, 1},
	}
	for _, tc := range cases {
		if got := PercentileRank(vals, tc.x); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("PercentileRank(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}
}

func TestVWAPFlat(t *testing.T) {
	v, ok := VWAP(flatCandles(30, 10, 5), 24)
	if !ok || math.Abs(v-10) > 1e-9 {
		t.Errorf("vwap = %v ok=%v, want 10", v, ok)
	}
}

func TestSwingLow(t *testing.T) {
	candles := flatCandles(30, 10, 1)
	candles[20].Low = 8.7
	low, ok := SwingLow(candles, 24)
	if !ok || low != 8.7 {
		t.Errorf("swing low = %v ok=%v, want 8.7", low, ok)
	}
	// Dip outside the window is ignored.
	candles[2].Low = 5
	if low, _ := SwingLow(candles, 24); low != 8.7 {
		t.Errorf("swing low = %v, want 8.7", low)
	}
}

func TestWindowVolumeOffsets(t *testing.T) {
	candles := flatCandles(48, 10, 1)
	for i := 24; i < 48; i++ {
		candles[i].Volume = 2
	}
	cur, ok := WindowVolume(candles, 24, 0)
	if !ok || cur != 48 {
		t.Errorf("current window = %v ok=%v, want 48", cur, ok)
	}
	prev, ok := WindowVolume(candles, 24, 24)
	if !ok || prev != 24 {
		t.Errorf("previous window = %v ok=%v, want 24", prev, ok)
	}
}

func TestReturnOver(t *testing.T) {
	candles := flatCandles(10, 10, 1)
	candles[len(candles)-1].Close = 11
	r, ok := ReturnOver(candles, 6)
	if !ok || math.Abs(r-0.1) > 1e-9 {
		t.Errorf("return = %v ok=%v, want 0.1", r, ok)
	}
}

func TestGapExceeded(t *testing.T) {
	candles := flatCandles(10, 10, 1)
	if GapExceeded(candles, 3) {
		t.Error("contiguous series flagged as gapped")
	}
	candles[5].T += 4 * hourMs
	for i := 6; i < 10; i++ {
		candles[i].T += 4 * hourMs
	}
	if !GapExceeded(candles, 3) {
		t.Error("4h gap not flagged")
	}
}

func TestSeriesQuality(t *testing.T) {
	cases := []struct {
		have, need int
		want       model.Quality
	}{
		{100, 100, model.QualityHigh},
		{60, 100, model.QualityMed},
		{40, 100, model.QualityLow},
	}
	for _, tc := range cases {
		if got := SeriesQuality(tc.have, tc.need); got != tc.want {
			t.Errorf("SeriesQuality(%d,%d) = %v, want %v", tc.have, tc.need, got, tc.want)
		}
	}
}
