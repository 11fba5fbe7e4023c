// Package score combines the nine component signals into the final
// composite and classifies it.
package score

import (
	"PumpSentinel/internal/config"
	"PumpSentinel/internal/model"
)

// Weights per signal. They sum to exactly 1.00.
var Weights = map[string]float64{
	model.SignalOISurge:       0.18,
	model.SignalFunding:       0.17,
	model.SignalLiqLeverage:   0.15,
	model.SignalCrossExVolume: 0.12,
	model.SignalDepth:         0.11,
	model.SignalDecouple:      0.08,
	model.SignalVolCompress:   0.08,
	model.SignalLSRatio:       0.06,
	model.SignalFutVolDiverge: 0.05,
}

// Scorer applies the composite algebra with configurable thresholds.
type Scorer struct {
	thresholds config.Thresholds
}

// New builds a scorer from the threshold config.
func New(t config.Thresholds) *Scorer {
	return &Scorer{thresholds: t}
}

// Result is the scored composite before levels are attached.
type Result struct {
	Base           float64
	Final          float64
	Bonuses        []string
	Penalty        bool
	Classification model.Classification
}

// Score runs the weighted sum, interaction bonuses, extension penalty and
// classification. return7d is the fractional 7-day price return.
func (s *Scorer) Score(signals []model.Signal, return7d float64) Result {
	var base float64
	by := make(map[string]float64, len(signals))
	for _, sig := range signals {
		base += Weights[sig.Name] * sig.Score
		by[sig.Name] = sig.Score
	}

	final := base
	var bonuses []string

	// Bonuses compose multiplicatively, each at most once, in this order.
	if by[model.SignalOISurge] >= s.thresholds.SqueezeMin &&
		by[model.SignalFunding] >= s.thresholds.SqueezeMin &&
		by[model.SignalVolCompress] >= s.thresholds.SqueezeMin {
		final *= 1.25
		bonuses = append(bonuses, model.BonusSqueeze)
	}
	if by[model.SignalLiqLeverage] >= s.thresholds.CascadeMin &&
		by[model.SignalFunding] >= s.thresholds.CascadeMin &&
		by[model.SignalLSRatio] >= s.thresholds.CascadeMin {
		final *= 1.30
		bonuses = append(bonuses, model.BonusCascade)
	}
	if by[model.SignalOISurge] >= s.thresholds.AccumulationMin &&
		by[model.SignalDecouple] >= s.thresholds.AccumulationMin &&
		by[model.SignalCrossExVolume] >= s.thresholds.AccumulationMin {
		final *= 1.20
		bonuses = append(bonuses, model.BonusAccumulation)
	}

	penalty := return7d > 0.15
	if penalty {
		final *= 0.60
	}

	if final > 100 {
		final = 100
	}
	if final < 0 {
		final = 0
	}

	return Result{
		Base:           base,
		Final:          final,
		Bonuses:        bonuses,
		Penalty:        penalty,
		Classification: s.Classify(final),
	}
}

// Classify buckets a final score.
func (s *Scorer) Classify(final float64) model.Classification {
	t := s.thresholds
	switch {
	case final >= t.Critical:
		return model.ClassCritical
	case final >= t.HighAlert:
		return model.ClassHighAlert
	case final >= t.Watchlist:
		return model.ClassWatchlist
	case final >= t.Monitor:
		return model.ClassMonitor
	default:
		return model.ClassNone
	}
}
