package levels

import (
	"math"
	"testing"

	"PumpSentinel/internal/model"
)

const hourMs = int64(3_600_000)

// rangeCandles builds n candles around close=1.0 with a constant true range.
func rangeCandles(n int, tr float64) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = model.Candle{
			T: int64(i) * hourMs, Open: 1,
			High: 1 + tr/2, Low: 1 - tr/2, Close: 1, Volume: 100,
		}
	}
	return out
}

func params() Params { return Params{AccountUSD: 10_000, RiskPct: 0.02} }

func TestStopSelectionSwingLowWins(t *testing.T) {
	candles := rangeCandles(60, 0.02)
	candles[len(candles)-24].Low = 0.955
	in := Inputs{
		Price:   1.0,
		Candles: candles,
		Book: model.OrderBook{
			Bids: []model.BookLevel{{Price: 0.97, Amount: 500_000}},
		},
		Quality:        model.QualityHigh,
		Classification: model.ClassHighAlert,
	}
	lv, err := Compute(in, params())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if lv.Stop.Method != model.StopMethodSwing {
		t.Errorf("stop method = %s, want swing_low", lv.Stop.Method)
	}
	if math.Abs(lv.Stop.Price-0.95) > 0.005 {
		t.Errorf("stop = %v, want ~0.950", lv.Stop.Price)
	}
	if lv.Stop.Pct < 4.5 || lv.Stop.Pct > 5.5 {
		t.Errorf("stop pct = %v, want ~5", lv.Stop.Pct)
	}
}

func TestStopBoundsAlwaysHold(t *testing.T) {
	cases := []struct {
		name    string
		tr      float64
		quality model.Quality
		cascade float64
	}{
		{"calm", 0.005, model.QualityHigh, 0},
		{"normal", 0.02, model.QualityHigh, 0},
		{"low quality", 0.02, model.QualityLow, 0},
		{"cascade", 0.02, model.QualityHigh, 6},
		{"volatile", 0.06, model.QualityHigh, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := Inputs{
				Price:          1.0,
				Candles:        rangeCandles(60, tc.tr),
				Quality:        tc.quality,
				CascadeRatio:   tc.cascade,
				Classification: model.ClassWatchlist,
			}
			lv, err := Compute(in, params())
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			pct := lv.Stop.Pct / 100
			if pct < 0.025-1e-9 || pct > 0.15+1e-9 {
				t.Errorf("stop pct = %v out of bounds", pct)
			}
			if in.Price-lv.Stop.Price < lv.ATR-1e-9 {
				t.Errorf("stop %.4f closer than one ATR (%.4f)", lv.Stop.Price, lv.ATR)
			}
		})
	}
}

func TestComputeRejectsExtremeVolatility(t *testing.T) {
	in := Inputs{
		Price:          1.0,
		Candles:        rangeCandles(60, 0.20),
		Quality:        model.QualityHigh,
		Classification: model.ClassWatchlist,
	}
	if _, err := Compute(in, params()); err == nil {
		t.Error("expected error when ATR exceeds the stop bound")
	}
}

func TestTakeProfitCascadeStretch(t *testing.T) {
	in := Inputs{
		Price:          1.0,
		Candles:        rangeCandles(60, 0.02),
		Quality:        model.QualityHigh,
		CascadeRatio:   5, // k = 1.2
		Classification: model.ClassHighAlert,
	}
	lv, err := Compute(in, params())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// k = 1.2 stretches the 3/5.5/9 ATR ladder.
	want := []float64{1.072, 1.132, 1.216}
	for i, w := range want {
		if math.Abs(lv.TPs[i].Price-w) > 1e-9 {
			t.Errorf("TP%d = %v, want %v", i+1, lv.TPs[i].Price, w)
		}
		if lv.TPs[i].SellPct != 25 {
			t.Errorf("TP%d sell pct = %v, want 25", i+1, lv.TPs[i].SellPct)
		}
	}
	if math.Abs(lv.Trailing.Pct-4.0) > 1e-9 {
		t.Errorf("trailing = %v, want 4.0", lv.Trailing.Pct)
	}
}

func TestTakeProfitOrdering(t *testing.T) {
	for _, cascade := range []float64{0, 3, 5, 10} {
		in := Inputs{
			Price:          1.0,
			Candles:        rangeCandles(60, 0.02),
			Quality:        model.QualityHigh,
			CascadeRatio:   cascade,
			Classification: model.ClassCritical,
		}
		lv, err := Compute(in, params())
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		prev := in.Price
		for i, tp := range lv.TPs {
			if tp.Price <= prev {
				t.Errorf("cascade %v: TP%d %v not above %v", cascade, i+1, tp.Price, prev)
			}
			prev = tp.Price
		}
	}
}

func TestTakeProfitSnapsUnderAskWall(t *testing.T) {
	in := Inputs{
		Price:   1.0,
		Candles: rangeCandles(60, 0.02),
		Book: model.OrderBook{
			Asks: []model.BookLevel{{Price: 1.05, Amount: 800_000}},
		},
		Quality:        model.QualityHigh,
		Classification: model.ClassHighAlert,
	}
	lv, err := Compute(in, params())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := 1.05 * 0.998
	if math.Abs(lv.TPs[0].Price-want) > 1e-9 {
		t.Errorf("TP1 = %v, want snapped %v", lv.TPs[0].Price, want)
	}
	// The wall sits below TP2's floor, so TP2 keeps its raw level.
	if math.Abs(lv.TPs[1].Price-1.11) > 1e-9 {
		t.Errorf("TP2 = %v, want 1.11", lv.TPs[1].Price)
	}
}

func TestEntryBandsPerClassification(t *testing.T) {
	candles := rangeCandles(60, 0.02)
	base := Inputs{Price: 1.0, Candles: candles, Quality: model.QualityHigh}

	crit := base
	crit.Classification = model.ClassCritical
	lv, err := Compute(crit, params())
	if err != nil {
		t.Fatal(err)
	}
	if lv.Entry.Low != 0.998 || lv.Entry.High != 1.004 || lv.Entry.Ideal != 1.0 {
		t.Errorf("critical entry = %+v", lv.Entry)
	}

	ha := base
	ha.Classification = model.ClassHighAlert
	lv, err = Compute(ha, params())
	if err != nil {
		t.Fatal(err)
	}
	if lv.Entry.Low < 0.985-1e-9 || lv.Entry.High != 0.995 {
		t.Errorf("high alert entry = %+v", lv.Entry)
	}
	if math.Abs(lv.Entry.Ideal-(lv.Entry.Low+lv.Entry.High)/2) > 1e-9 {
		t.Errorf("high alert ideal = %v, want midpoint", lv.Entry.Ideal)
	}

	wl := base
	wl.Candles = append([]model.Candle(nil), candles...)
	wl.Candles[len(wl.Candles)-10].Low = 0.96
	wl.Classification = model.ClassWatchlist
	lv, err = Compute(wl, params())
	if err != nil {
		t.Fatal(err)
	}
	if lv.Entry.Low != 0.96 || lv.Entry.Ideal != 0.96 {
		t.Errorf("watchlist entry = %+v", lv.Entry)
	}
}

func TestRiskRewardAndSizing(t *testing.T) {
	in := Inputs{
		Price:          1.0,
		Candles:        rangeCandles(60, 0.02),
		Quality:        model.QualityHigh,
		Classification: model.ClassHighAlert,
	}
	lv, err := Compute(in, params())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// Stop is 2 ATR = 4%; risk budget 200 USD → 5000 USD position.
	if math.Abs(lv.Stop.Pct-4.0) > 1e-9 {
		t.Fatalf("stop pct = %v, want 4.0", lv.Stop.Pct)
	}
	if math.Abs(lv.RiskReward.PositionUSD-5000) > 1e-6 {
		t.Errorf("position = %v, want 5000", lv.RiskReward.PositionUSD)
	}
	wantRR := (lv.TPs[0].Price - 1.0) / (1.0 - lv.Stop.Price)
	if math.Abs(lv.RiskReward.Ratio-wantRR) > 1e-9 {
		t.Errorf("rr = %v, want %v", lv.RiskReward.Ratio, wantRR)
	}
}
