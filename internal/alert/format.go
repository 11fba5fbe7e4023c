package alert

import (
	"fmt"
	"math"
	"strings"

	"PumpSentinel/internal/model"
)

// maxMessageLen is Telegram's hard cap minus headroom for entity markup.
const maxMessageLen = 4000

var classEmoji = map[model.Classification]string{
	model.ClassCritical:  "🚨",
	model.ClassHighAlert: "⚠️",
	model.ClassWatchlist: "👀",
	model.ClassMonitor:   "📋",
}

// ScoreBar renders a 10-segment bar for a 0-100 score.
func ScoreBar(score float64) string {
	filled := int(math.Round(score / 10))
	if filled < 0 {
		filled = 0
	}
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// FormatPrice picks decimals by magnitude so micro-cap prices stay legible.
func FormatPrice(p float64) string {
	switch {
	case p == 0:
		return "0"
	case math.Abs(p) < 0.0001:
		return fmt.Sprintf("%.8f", p)
	case math.Abs(p) < 0.01:
		return fmt.Sprintf("%.6f", p)
	case math.Abs(p) < 1:
		return fmt.Sprintf("%.4f", p)
	case math.Abs(p) < 100:
		return fmt.Sprintf("%.3f", p)
	default:
		return fmt.Sprintf("%.2f", p)
	}
}

// FormatPct renders a signed percent with one decimal.
func FormatPct(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

// FormatUSD abbreviates notionals with K/M/B suffixes.
func FormatUSD(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

var signalLabels = []struct {
	name  string
	label string
}{
	{model.SignalOISurge, "OI surge"},
	{model.SignalFunding, "Funding"},
	{model.SignalLiqLeverage, "Liq leverage"},
	{model.SignalCrossExVolume, "Cross-ex vol"},
	{model.SignalDepth, "Depth imbalance"},
	{model.SignalDecouple, "Vol/price decouple"},
	{model.SignalVolCompress, "Vol compression"},
	{model.SignalLSRatio, "Long/short"},
	{model.SignalFutVolDiverge, "Futures vol"},
}

// Render produces the alert text. html switches Telegram HTML markup on.
func Render(a Alert, html bool) string {
	if a.Result == nil {
		return a.Text
	}
	r := a.Result
	b := &strings.Builder{}

	bold := func(s string) string {
		if html {
			return "<b>" + s + "</b>"
		}
		return s
	}
	code := func(s string) string {
		if html {
			return "<code>" + s + "</code>"
		}
		return s
	}

	emoji := classEmoji[r.Classification]
	fmt.Fprintf(b, "%s %s %s\n", emoji, bold(r.Symbol), r.Classification)
	fmt.Fprintf(b, "Score %s %.1f (base %.1f) · quality %s\n",
		code(ScoreBar(r.FinalScore)), r.FinalScore, r.BaseScore, r.Quality)
	fmt.Fprintf(b, "Price %s\n", FormatPrice(r.Price))

	for _, ev := range r.Events {
		fmt.Fprintf(b, "⚡ %s: %s\n", ev.Type, ev.Message)
	}

	// Breakdown for everything above MONITOR.
	fmt.Fprintf(b, "\n%s\n", bold("Signals"))
	for _, sl := range signalLabels {
		score := r.SignalScore(sl.name)
		fmt.Fprintf(b, "%s %5.1f  %s\n", code(ScoreBar(score)), score, sl.label)
	}
	if len(r.Bonuses) > 0 {
		fmt.Fprintf(b, "Bonuses: %s\n", strings.Join(r.Bonuses, ", "))
	}
	if r.Penalty {
		fmt.Fprintln(b, "Penalty: price extended (7d > +15%)")
	}

	if r.Levels != nil {
		lv := r.Levels
		fmt.Fprintf(b, "\n%s\n", bold("Levels"))
		fmt.Fprintf(b, "Entry %s – %s (ideal %s)\n",
			FormatPrice(lv.Entry.Low), FormatPrice(lv.Entry.High), FormatPrice(lv.Entry.Ideal))
		if full := r.Classification != model.ClassWatchlist; full {
			fmt.Fprintf(b, "Stop %s (%s, %s)\n",
				FormatPrice(lv.Stop.Price), FormatPct(-lv.Stop.Pct), lv.Stop.Method)
			for _, tp := range lv.TPs {
				fmt.Fprintf(b, "TP%d %s (%s) sell %.0f%%\n",
					tp.Level, FormatPrice(tp.Price), FormatPct(tp.Pct), tp.SellPct)
			}
			fmt.Fprintf(b, "TP4 trail %.1f%% · R:R %.1f · size %s\n",
				lv.Trailing.Pct, lv.RiskReward.Ratio, FormatUSD(lv.RiskReward.PositionUSD))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Split chunks a message under the sink length cap, breaking on newlines
// where possible.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = maxMessageLen
	}
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
