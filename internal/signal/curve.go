package signal

// Anchor is one point of a piecewise-linear response curve.
type Anchor struct {
	Raw   float64
	Score float64
}

// Curve maps a raw feature value to a score by linear interpolation between
// anchors. Anchors must be sorted ascending by Raw. Outside the anchor range
// the curve saturates at the first/last score.
type Curve []Anchor

// Eval interpolates raw through the curve and clamps to [0,100].
func (c Curve) Eval(raw float64) float64 {
	if len(c) == 0 {
		return 0
	}
	var score float64
	switch {
	case raw <= c[0].Raw:
		score = c[0].Score
	case raw >= c[len(c)-1].Raw:
		score = c[len(c)-1].Score
	default:
		for i := 1; i < len(c); i++ {
			if raw <= c[i].Raw {
				lo, hi := c[i-1], c[i]
				frac := (raw - lo.Raw) / (hi.Raw - lo.Raw)
				score = lo.Score + frac*(hi.Score-lo.Score)
				break
			}
		}
	}
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Anchor tables. Increasing curves carry an origin anchor so sub-threshold
// raws fall off linearly to zero.
var (
	oiSurgeCurve = Curve{{0, 0}, {0.10, 45}, {0.20, 68}, {0.30, 80}, {0.40, 90}}

	fundingMagnitudeCurve  = Curve{{0, 0}, {0.00001, 45}, {0.00002, 65}, {0.00003, 78}, {0.00005, 90}}
	fundingPersistenceCurve = Curve{{0, 0}, {0.3, 20}, {0.5, 45}, {0.7, 70}, {0.85, 90}}

	liqLeverageCurve = Curve{{0, 0}, {2, 35}, {3, 55}, {5, 75}, {8, 90}}

	crossExchangeCurve = Curve{{1, 0}, {1.5, 35}, {2, 55}, {3, 75}, {4, 88}}

	depthImbalanceCurve = Curve{{1, 0}, {1.3, 30}, {1.5, 50}, {2.0, 75}, {2.5, 88}, {3.0, 95}}

	decoupleCurve = Curve{{0, 0}, {0.35, 50}, {0.75, 78}, {1.0, 88}}

	compressionCurve = Curve{{0, 0}, {0.65, 42}, {0.75, 58}, {0.85, 75}, {0.95, 95}}

	longShortCurve = Curve{{0.60, 90}, {0.70, 75}, {0.80, 55}, {0.90, 30}, {1.00, 8}, {1.20, 0}}

	futuresVolumeCurve = Curve{{1, 0}, {1.5, 35}, {2.0, 55}, {3.0, 78}, {4.0, 90}}
)
