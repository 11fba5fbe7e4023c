package model

// Signal names, in weight order.
const (
	SignalOISurge       = "oi_surge"
	SignalFunding       = "funding_rate"
	SignalLiqLeverage   = "liquidation_leverage"
	SignalCrossExVolume = "cross_exchange_volume"
	SignalDepth         = "depth_imbalance"
	SignalDecouple      = "volume_price_decouple"
	SignalVolCompress   = "volatility_compression"
	SignalLSRatio       = "long_short_ratio"
	SignalFutVolDiverge = "futures_volume_divergence"
)

// Signal is a single evaluator's output: a normalized score in [0,100],
// the raw value it was derived from, and the input quality.
type Signal struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Raw     float64 `json:"raw"`
	Quality Quality `json:"quality"`
}

// Classification buckets a final score.
type Classification string

const (
	ClassCritical  Classification = "CRITICAL"
	ClassHighAlert Classification = "HIGH_ALERT"
	ClassWatchlist Classification = "WATCHLIST"
	ClassMonitor   Classification = "MONITOR"
	ClassNone      Classification = "NONE"
)

var classRank = map[Classification]int{
	ClassNone:      0,
	ClassMonitor:   1,
	ClassWatchlist: 2,
	ClassHighAlert: 3,
	ClassCritical:  4,
}

// Rank orders classifications; higher is more urgent.
func (c Classification) Rank() int { return classRank[c] }

// Interaction bonus names.
const (
	BonusSqueeze      = "squeeze_setup"
	BonusCascade      = "cascade_setup"
	BonusAccumulation = "accumulation_setup"
)

// EventType identifies a cross-scan event.
type EventType string

const (
	EventScoreJump EventType = "SCORE_JUMP"
	EventUpgrade   EventType = "UPGRADE"
	EventIgnition  EventType = "IGNITION"
)

// Event is a notable change between two adjacent scans of a symbol.
type Event struct {
	Type    EventType `json:"type"`
	Symbol  string    `json:"symbol"`
	Message string    `json:"message"`
}

// ScanResult is the full output of one symbol scan.
type ScanResult struct {
	Symbol         string         `json:"symbol"`
	T              int64          `json:"t"`
	Price          float64        `json:"price"`
	BaseScore      float64        `json:"base_score"`
	FinalScore     float64        `json:"final_score"`
	Classification Classification `json:"classification"`
	Signals        []Signal       `json:"signals"`
	Bonuses        []string       `json:"bonuses,omitempty"`
	Penalty        bool           `json:"penalty,omitempty"`
	Levels         *Levels        `json:"levels,omitempty"`
	Quality        Quality        `json:"quality"`
	Events         []Event        `json:"events,omitempty"`
	Exchanges      []string       `json:"exchanges,omitempty"`
}

// SignalScore returns the named signal's score, or 0 when absent.
func (r *ScanResult) SignalScore(name string) float64 {
	for _, s := range r.Signals {
		if s.Name == name {
			return s.Score
		}
	}
	return 0
}
