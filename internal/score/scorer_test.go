package score

import (
	"math"
	"testing"

	"PumpSentinel/internal/config"
	"PumpSentinel/internal/model"
)

func defaultThresholds() config.Thresholds {
	return config.Thresholds{
		Critical: 78, HighAlert: 62, Watchlist: 48, Monitor: 33,
		SqueezeMin: 45, CascadeMin: 40, AccumulationMin: 40,
	}
}

func signalSet(scores map[string]float64) []model.Signal {
	out := make([]model.Signal, 0, len(scores))
	for name := range Weights {
		out = append(out, model.Signal{Name: name, Score: scores[name], Quality: model.QualityHigh})
	}
	return out
}

func squeezeSignals() map[string]float64 {
	return map[string]float64{
		model.SignalOISurge:       78,
		model.SignalFunding:       72,
		model.SignalLiqLeverage:   65,
		model.SignalCrossExVolume: 48,
		model.SignalDepth:         58,
		model.SignalDecouple:      42,
		model.SignalVolCompress:   55,
		model.SignalLSRatio:       38,
		model.SignalFutVolDiverge: 32,
	}
}

func TestWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, w := range Weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum = %v, want 1.00", sum)
	}
}

func TestScoreSqueezePlusAccumulation(t *testing.T) {
	s := New(defaultThresholds())
	res := s.Score(signalSet(squeezeSignals()), 0.04)

	if math.Abs(res.Base-59.81) > 1e-9 {
		t.Errorf("base = %v, want 59.81", res.Base)
	}
	// squeeze ×1.25 then accumulation ×1.20; cascade blocked by ls=38.
	if math.Abs(res.Final-89.715) > 1e-6 {
		t.Errorf("final = %v, want 89.715", res.Final)
	}
	if len(res.Bonuses) != 2 ||
		res.Bonuses[0] != model.BonusSqueeze || res.Bonuses[1] != model.BonusAccumulation {
		t.Errorf("bonuses = %v", res.Bonuses)
	}
	if res.Penalty {
		t.Error("penalty applied at 4% 7d return")
	}
	if res.Classification != model.ClassCritical {
		t.Errorf("classification = %v, want CRITICAL", res.Classification)
	}
}

func TestScoreExtensionPenaltyDemotes(t *testing.T) {
	s := New(defaultThresholds())
	res := s.Score(signalSet(squeezeSignals()), 0.18)

	if !res.Penalty {
		t.Fatal("penalty not applied at 18% 7d return")
	}
	if math.Abs(res.Final-53.829) > 1e-6 {
		t.Errorf("final = %v, want 53.829", res.Final)
	}
	if res.Classification != model.ClassWatchlist {
		t.Errorf("classification = %v, want WATCHLIST", res.Classification)
	}
}

func TestScorePenaltyBoundary(t *testing.T) {
	s := New(defaultThresholds())
	// Exactly 15% is not extended; strictly greater is.
	if res := s.Score(signalSet(squeezeSignals()), 0.15); res.Penalty {
		t.Error("penalty applied at exactly 15%")
	}
	if res := s.Score(signalSet(squeezeSignals()), 0.1501); !res.Penalty {
		t.Error("penalty missing just above 15%")
	}
}

func TestScoreLongsDominateNone(t *testing.T) {
	s := New(defaultThresholds())
	scores := map[string]float64{
		model.SignalOISurge:       70,
		model.SignalFunding:       0,
		model.SignalLiqLeverage:   20,
		model.SignalCrossExVolume: 20,
		model.SignalDepth:         20,
		model.SignalDecouple:      20,
		model.SignalVolCompress:   20,
		model.SignalLSRatio:       6,
		model.SignalFutVolDiverge: 20,
	}
	res := s.Score(signalSet(scores), 0)
	if math.Abs(res.Base-24.76) > 1e-9 {
		t.Errorf("base = %v, want 24.76", res.Base)
	}
	if len(res.Bonuses) != 0 {
		t.Errorf("bonuses = %v, want none", res.Bonuses)
	}
	if res.Classification != model.ClassNone {
		t.Errorf("classification = %v, want NONE", res.Classification)
	}
}

func TestScoreAllZeroAndAllFull(t *testing.T) {
	s := New(defaultThresholds())
	if res := s.Score(signalSet(map[string]float64{}), 0); res.Final != 0 {
		t.Errorf("all-zero final = %v, want 0", res.Final)
	}
	full := map[string]float64{}
	for name := range Weights {
		full[name] = 100
	}
	res := s.Score(signalSet(full), 0)
	if res.Final != 100 {
		t.Errorf("all-100 final = %v, want 100 after clamp", res.Final)
	}
	if res.Classification != model.ClassCritical {
		t.Errorf("classification = %v", res.Classification)
	}
}

func TestScoreBonusesDeterministic(t *testing.T) {
	s := New(defaultThresholds())
	scores := squeezeSignals()
	scores[model.SignalLSRatio] = 40 // now cascade also activates
	res := s.Score(signalSet(scores), 0)
	want := []string{model.BonusSqueeze, model.BonusCascade, model.BonusAccumulation}
	if len(res.Bonuses) != 3 {
		t.Fatalf("bonuses = %v", res.Bonuses)
	}
	for i, b := range want {
		if res.Bonuses[i] != b {
			t.Errorf("bonus[%d] = %s, want %s", i, res.Bonuses[i], b)
		}
	}
	// Re-running yields the identical set.
	again := s.Score(signalSet(scores), 0)
	if len(again.Bonuses) != len(res.Bonuses) {
		t.Error("bonus set not deterministic")
	}
}

func TestClassifyThresholdOverrides(t *testing.T) {
	th := defaultThresholds()
	th.Critical = 90
	s := New(th)
	if got := s.Classify(85); got != model.ClassHighAlert {
		t.Errorf("Classify(85) = %v, want HIGH_ALERT with raised cutoff", got)
	}
}
