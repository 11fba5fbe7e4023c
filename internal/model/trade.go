package model

// Trade is an open position registered via /trade and driven by the monitor.
// Fractions are 0..1; percents are percent-of-entry numbers.
type Trade struct {
	Symbol        string  `json:"symbol"`
	EntryPrice    float64 `json:"entry_price"`
	SizeUSD       float64 `json:"size_usd"`
	StopPct       float64 `json:"stop_pct"`
	CurrentStop   float64 `json:"current_stop"`
	OpenedAt      int64   `json:"opened_at"` // milliseconds
	TPs           [4]TakeProfit
	TPHit         [4]bool `json:"tp_hit"`
	Remaining     float64 `json:"remaining"`
	RealizedPnL   float64 `json:"realized_pnl"`
	TrailStagePct float64 `json:"trail_stage_pct"` // highest trail stop applied, % of entry
	OpenScore     float64 `json:"open_score"`
	LastScore     float64 `json:"last_score"`
	DegradeWarned bool    `json:"degrade_warned"`
	BelowWarned   bool    `json:"below_warned"`
	LastDigestHr  int     `json:"last_digest_hr"`
}

// ClosedTrade is the archived form of a finished trade.
type ClosedTrade struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	SizeUSD    float64 `json:"size_usd"`
	TotalPnL   float64 `json:"total_pnl"`
	PnLPct     float64 `json:"pnl_pct"`
	OpenedAt   int64   `json:"opened_at"`
	ClosedAt   int64   `json:"closed_at"`
	Hours      float64 `json:"hours"`
	Reason     string  `json:"reason"`
}
