// Package trade tracks registered positions: stops, take-profit ladder,
// trail schedule and signal degradation.
package trade

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/alert"
	"PumpSentinel/internal/config"
	"PumpSentinel/internal/market"
	"PumpSentinel/internal/model"
	"PumpSentinel/internal/store"
)

// trailStages maps gain (percent of entry) to the stop level it unlocks
// (percent of entry). Checked top-down; the stop only ever moves up.
var trailStages = []struct {
	GainPct float64
	StopPct float64
}{
	{60, 45},
	{40, 30},
	{25, 18},
	{15, 10},
	{10, 5},
	{5, 0}, // break-even
}

// Default TP ladder used when the symbol carries no computed levels.
var defaultTPPcts = []float64{15, 30, 50}

const defaultTrailPct = 10.0

// Monitor owns the registered-trade lifecycle.
type Monitor struct {
	cfg     *config.Config
	store   *store.Store
	sources []market.Source
	sink    alert.Alerter
	log     zerolog.Logger
	mu      sync.Mutex
}

// NewMonitor wires the monitor.
func NewMonitor(cfg *config.Config, st *store.Store, sources []market.Source,
	sink alert.Alerter, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		store:   st,
		sources: sources,
		sink:    sink,
		log:     log.With().Str("component", "trade").Logger(),
	}
}

// Open registers a trade. stopPct is percent of entry.
func (m *Monitor) Open(ctx context.Context, symbol string, entry, size, stopPct float64) (string, error) {
	if entry <= 0 || size <= 0 {
		return "", fmt.Errorf("entry and size must be positive")
	}
	if stopPct <= 0 || stopPct > 20 {
		return "", fmt.Errorf("stop_pct must be in (0, 20]")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists, err := m.store.Trade(symbol); err != nil {
		return "", err
	} else if exists {
		return "", fmt.Errorf("%s already has an open trade", symbol)
	}
	active, err := m.store.ActiveTrades()
	if err != nil {
		return "", err
	}
	if len(active) >= m.cfg.Risk.MaxOpenTrades {
		return "", fmt.Errorf("max open trades (%d) reached", m.cfg.Risk.MaxOpenTrades)
	}

	t := &model.Trade{
		Symbol:      symbol,
		EntryPrice:  entry,
		SizeUSD:     size,
		StopPct:     stopPct,
		CurrentStop: entry * (1 - stopPct/100),
		OpenedAt:    time.Now().UnixMilli(),
		Remaining:   1,
	}
	m.applyLadder(t)

	if latest, err := m.store.LastScanResults(symbol, 1); err == nil && len(latest) > 0 {
		t.OpenScore = latest[0].FinalScore
		t.LastScore = latest[0].FinalScore
	}
	if err := m.store.SaveTrade(t); err != nil {
		return "", err
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "opened %s: entry %s, size %s, stop %s (-%.1f%%)\n",
		symbol, alert.FormatPrice(entry), alert.FormatUSD(size),
		alert.FormatPrice(t.CurrentStop), stopPct)
	for i := 0; i < 3; i++ {
		fmt.Fprintf(b, "TP%d %s (%s)\n", i+1,
			alert.FormatPrice(t.TPs[i].Price), alert.FormatPct(t.TPs[i].Pct))
	}
	fmt.Fprintf(b, "TP4 trail %.1f%%", t.TPs[3].Pct)
	return b.String(), nil
}

// applyLadder takes TPs from the symbol's computed levels when present,
// otherwise the default percent ladder.
func (m *Monitor) applyLadder(t *model.Trade) {
	if latest, err := m.store.LastScanResults(t.Symbol, 1); err == nil &&
		len(latest) > 0 && latest[0].Levels != nil && len(latest[0].Levels.TPs) == 3 {
		lv := latest[0].Levels
		for i, tp := range lv.TPs {
			t.TPs[i] = tp
		}
		t.TPs[3] = model.TakeProfit{Level: 4, Pct: lv.Trailing.Pct, SellPct: 25, Method: "trailing"}
		return
	}
	for i, pct := range defaultTPPcts {
		t.TPs[i] = model.TakeProfit{
			Level:   i + 1,
			Price:   t.EntryPrice * (1 + pct/100),
			Pct:     pct,
			SellPct: 25,
			Method:  "pct_ladder",
		}
	}
	t.TPs[3] = model.TakeProfit{Level: 4, Pct: defaultTrailPct, SellPct: 25, Method: "trailing"}
}

// Tick polls prices and applies the stop, ladder, trail and degradation
// rules to every open trade.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.store.ActiveTrades()
	if err != nil {
		m.log.Error().Err(err).Msg("load trades failed")
		return
	}
	for _, t := range active {
		price, ok := m.price(ctx, t.Symbol)
		if !ok {
			m.log.Warn().Str("symbol", t.Symbol).Msg("no price for trade check")
			continue
		}
		m.check(ctx, t, price)
	}
}

func (m *Monitor) check(ctx context.Context, t *model.Trade, price float64) {
	if price <= t.CurrentStop {
		m.close(ctx, t, price, "STOP_HIT")
		return
	}

	for i := 0; i < 3; i++ {
		if t.TPHit[i] || price < t.TPs[i].Price {
			continue
		}
		t.TPHit[i] = true
		t.Remaining -= t.TPs[i].SellPct / 100
		t.RealizedPnL += t.SizeUSD * (t.TPs[i].SellPct / 100) * (t.TPs[i].Price/t.EntryPrice - 1)
		m.notify(ctx, alert.SeverityInfo, fmt.Sprintf("🎯 %s TP%d hit at %s: sold %.0f%%, realized %s",
			t.Symbol, i+1, alert.FormatPrice(price), t.TPs[i].SellPct, alert.FormatUSD(t.RealizedPnL)))
	}

	// After TP3, the remainder rides a trailing stop.
	if t.TPHit[0] && t.TPHit[1] && t.TPHit[2] {
		trail := price * (1 - t.TPs[3].Pct/100)
		if trail > t.CurrentStop {
			t.CurrentStop = trail
		}
	}

	gain := (price/t.EntryPrice - 1) * 100
	for _, stage := range trailStages {
		if gain < stage.GainPct {
			continue
		}
		stop := t.EntryPrice * (1 + stage.StopPct/100)
		if stop > t.CurrentStop {
			t.CurrentStop = stop
			t.TrailStagePct = stage.StopPct
			label := fmt.Sprintf("+%.0f%%", stage.StopPct)
			if stage.StopPct == 0 {
				label = "break-even"
			}
			m.notify(ctx, alert.SeverityInfo, fmt.Sprintf("🔒 %s stop trailed to %s (%s)",
				t.Symbol, alert.FormatPrice(stop), label))
		}
		break
	}

	m.checkDegradation(ctx, t)

	if err := m.store.SaveTrade(t); err != nil {
		m.log.Error().Err(err).Str("symbol", t.Symbol).Msg("save trade failed")
	}
}

// checkDegradation warns once per threshold: a ≥10 point drop since open,
// and a fall below the watchlist floor.
func (m *Monitor) checkDegradation(ctx context.Context, t *model.Trade) {
	latest, err := m.store.LastScanResults(t.Symbol, 1)
	if err != nil || len(latest) == 0 {
		return
	}
	final := latest[0].FinalScore
	t.LastScore = final

	if !t.DegradeWarned && t.OpenScore > 0 && t.OpenScore-final >= 10 {
		t.DegradeWarned = true
		m.notify(ctx, alert.SeverityWarning, fmt.Sprintf("📉 %s signal degraded: score %.1f → %.1f since open",
			t.Symbol, t.OpenScore, final))
	}
	if !t.BelowWarned && final < m.cfg.Thresholds.Watchlist {
		t.BelowWarned = true
		m.notify(ctx, alert.SeverityWarning, fmt.Sprintf("📉 %s score %.1f below watchlist floor",
			t.Symbol, final))
	}
}

// close archives the trade at the given exit price.
func (m *Monitor) close(ctx context.Context, t *model.Trade, price float64, reason string) {
	pnl := t.RealizedPnL + t.SizeUSD*t.Remaining*(price/t.EntryPrice-1)
	now := time.Now().UnixMilli()
	closed := &model.ClosedTrade{
		Symbol:     t.Symbol,
		EntryPrice: t.EntryPrice,
		ExitPrice:  price,
		SizeUSD:    t.SizeUSD,
		TotalPnL:   pnl,
		PnLPct:     pnl / t.SizeUSD * 100,
		OpenedAt:   t.OpenedAt,
		ClosedAt:   now,
		Hours:      float64(now-t.OpenedAt) / 3_600_000,
		Reason:     reason,
	}
	if err := m.store.CloseTrade(closed); err != nil {
		m.log.Error().Err(err).Str("symbol", t.Symbol).Msg("close trade failed")
		return
	}
	sev := alert.SeverityInfo
	if pnl < 0 {
		sev = alert.SeverityWarning
	}
	m.notify(ctx, sev, fmt.Sprintf("🏁 %s closed (%s) at %s: P&L %s (%s) after %.1fh",
		t.Symbol, reason, alert.FormatPrice(price), alert.FormatUSD(pnl),
		alert.FormatPct(closed.PnLPct), closed.Hours))
}

// CloseManual closes a trade at the current market price.
func (m *Monitor) CloseManual(ctx context.Context, symbol string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok, err := m.store.Trade(symbol)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no open trade for %s", symbol)
	}
	price, haveFresh := m.price(ctx, symbol)
	if !haveFresh {
		return "", fmt.Errorf("no price available for %s", symbol)
	}
	m.close(ctx, t, price, "MANUAL")
	return fmt.Sprintf("closed %s at %s", symbol, alert.FormatPrice(price)), nil
}

// Adjust changes the stop or a TP level. The stop only moves up.
func (m *Monitor) Adjust(ctx context.Context, symbol, field string, value float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok, err := m.store.Trade(symbol)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no open trade for %s", symbol)
	}

	switch field {
	case "stop":
		if value <= t.CurrentStop {
			return "", fmt.Errorf("stop can only move up (current %s)",
				alert.FormatPrice(t.CurrentStop))
		}
		t.CurrentStop = value
	case "tp1", "tp2", "tp3":
		i := int(field[2]-'0') - 1
		if t.TPHit[i] {
			return "", fmt.Errorf("%s already hit", field)
		}
		if value <= t.EntryPrice {
			return "", fmt.Errorf("%s must be above entry", field)
		}
		t.TPs[i].Price = value
		t.TPs[i].Pct = (value/t.EntryPrice - 1) * 100
	default:
		return "", fmt.Errorf("unknown field %q", field)
	}

	if err := m.store.SaveTrade(t); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s set to %s", symbol, field, alert.FormatPrice(value)), nil
}

// Status renders all open trades.
func (m *Monitor) Status(ctx context.Context) string {
	active, err := m.store.ActiveTrades()
	if err != nil {
		return "status: " + err.Error()
	}
	if len(active) == 0 {
		return "no open trades"
	}
	b := &strings.Builder{}
	for _, t := range active {
		line := m.statusLine(ctx, t)
		fmt.Fprintln(b, line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Monitor) statusLine(ctx context.Context, t *model.Trade) string {
	price, ok := m.price(ctx, t.Symbol)
	if !ok {
		return fmt.Sprintf("%s: entry %s, no current price", t.Symbol, alert.FormatPrice(t.EntryPrice))
	}
	pnl := t.RealizedPnL + t.SizeUSD*t.Remaining*(price/t.EntryPrice-1)
	return fmt.Sprintf("%s: %s (%s) stop %s · P&L %s · score %.1f",
		t.Symbol, alert.FormatPrice(price),
		alert.FormatPct((price/t.EntryPrice-1)*100),
		alert.FormatPrice(t.CurrentStop), alert.FormatUSD(pnl), t.LastScore)
}

// Digest posts the hourly status of every open trade.
func (m *Monitor) Digest(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active, err := m.store.ActiveTrades()
	if err != nil || len(active) == 0 {
		return
	}
	b := &strings.Builder{}
	fmt.Fprintln(b, "📊 hourly trade digest")
	for _, t := range active {
		fmt.Fprintln(b, m.statusLine(ctx, t))
	}
	m.notify(ctx, alert.SeverityInfo, strings.TrimRight(b.String(), "\n"))
}

// price returns the freshest price: live ticker first, stored ticker as
// fallback.
func (m *Monitor) price(ctx context.Context, symbol string) (float64, bool) {
	for _, src := range m.sources {
		t, err := src.FetchTicker(ctx, symbol)
		if err == nil && t.Price > 0 {
			return t.Price, true
		}
	}
	if tickers, err := m.store.Tickers(symbol, 1); err == nil && len(tickers) > 0 && tickers[0].Price > 0 {
		return tickers[0].Price, true
	}
	return 0, false
}

func (m *Monitor) notify(ctx context.Context, sev alert.Severity, text string) {
	if err := m.sink.Send(ctx, alert.Alert{Severity: sev, Text: text}); err != nil {
		m.log.Error().Err(err).Msg("notify failed")
	}
}
