package scan

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"PumpSentinel/internal/alert"
	"PumpSentinel/internal/model"
)

// HandleCommand serves the chat command surface. It returns the reply text
// for the sink to deliver.
func (s *Scheduler) HandleCommand(ctx context.Context, name string, args []string) string {
	switch name {
	case "trade":
		if len(args) != 4 {
			return "usage: /trade SYMBOL entry size_usd stop_pct"
		}
		entry, err1 := strconv.ParseFloat(args[1], 64)
		size, err2 := strconv.ParseFloat(args[2], 64)
		stopPct, err3 := strconv.ParseFloat(args[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return "trade: entry, size and stop_pct must be numbers"
		}
		reply, err := s.trades.Open(ctx, strings.ToUpper(args[0]), entry, size, stopPct)
		if err != nil {
			return "trade: " + err.Error()
		}
		return reply

	case "close":
		if len(args) != 1 {
			return "usage: /close SYMBOL"
		}
		reply, err := s.trades.CloseManual(ctx, strings.ToUpper(args[0]))
		if err != nil {
			return "close: " + err.Error()
		}
		return reply

	case "status":
		return s.trades.Status(ctx)

	case "adjust":
		if len(args) != 3 {
			return "usage: /adjust SYMBOL {stop|tp1|tp2|tp3} value"
		}
		value, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return "adjust: value must be a number"
		}
		reply, err := s.trades.Adjust(ctx, strings.ToUpper(args[0]), strings.ToLower(args[1]), value)
		if err != nil {
			return "adjust: " + err.Error()
		}
		return reply

	case "scan":
		go func() {
			if err := s.RunOnce(context.WithoutCancel(ctx)); err != nil {
				s.log.Error().Err(err).Msg("manual scan failed")
			}
		}()
		return "scan started"

	case "watchlist":
		return s.watchlist()

	default:
		return "commands: /trade /close /status /adjust /scan /watchlist"
	}
}

// watchlist renders the latest result per symbol at WATCHLIST or above.
func (s *Scheduler) watchlist() string {
	results, err := s.store.LatestResults()
	if err != nil {
		return "watchlist: " + err.Error()
	}
	b := &strings.Builder{}
	for _, r := range results {
		if r.Classification.Rank() < model.ClassWatchlist.Rank() {
			continue
		}
		fmt.Fprintf(b, "%s %s %.1f %s\n",
			r.Symbol, alert.ScoreBar(r.FinalScore), r.FinalScore, r.Classification)
	}
	if b.Len() == 0 {
		return "watchlist empty"
	}
	return strings.TrimRight(b.String(), "\n")
}
