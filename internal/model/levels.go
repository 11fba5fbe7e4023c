package model

// Stop method labels.
const (
	StopMethodATR   = "atr"
	StopMethodSwing = "swing_low"
	StopMethodBook  = "book_support"
)

// Stop is the chosen protective stop. Pct is the distance from price in
// percent (positive number).
type Stop struct {
	Price  float64 `json:"price"`
	Pct    float64 `json:"pct"`
	Method string  `json:"method"`
}

// Entry is the recommended entry band.
type Entry struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Ideal  float64 `json:"ideal"`
	Method string  `json:"method"`
}

// TakeProfit is one ladder level; SellPct is the fraction of the position
// to exit, in percent.
type TakeProfit struct {
	Level   int     `json:"level"`
	Price   float64 `json:"price"`
	Pct     float64 `json:"pct"`
	SellPct float64 `json:"sell_pct"`
	Method  string  `json:"method"`
}

// Trailing is the TP4 trailing directive, as a percent of price.
type Trailing struct {
	Pct     float64 `json:"pct"`
	SellPct float64 `json:"sell_pct"`
}

// RiskReward summarizes the trade geometry and the sized position.
type RiskReward struct {
	Ratio       float64 `json:"ratio"`
	RiskPct     float64 `json:"risk_pct"`
	PositionUSD float64 `json:"position_usd"`
}

// Levels is the smart-levels output for one symbol.
type Levels struct {
	Price      float64      `json:"price"`
	ATR        float64      `json:"atr"`
	ATRPct     float64      `json:"atr_pct"`
	Stop       Stop         `json:"stop"`
	Entry      Entry        `json:"entry"`
	TPs        []TakeProfit `json:"tps"`
	Trailing   Trailing     `json:"trailing"`
	RiskReward RiskReward   `json:"risk_reward"`
	Quality    Quality      `json:"quality"`
}
