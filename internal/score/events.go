package score

import (
	"fmt"

	"PumpSentinel/internal/model"
)

// DetectEvents diffs the current scan against the previous one and returns
// the fired events in emission order. prev may be nil on a first scan.
// return6h is the fractional 6-hour price return.
func DetectEvents(cur *model.ScanResult, prev *model.ScanResult, return6h float64, watchlistMin float64) []model.Event {
	var events []model.Event

	if prev != nil {
		if delta := cur.FinalScore - prev.FinalScore; delta >= 15 {
			events = append(events, model.Event{
				Type:    model.EventScoreJump,
				Symbol:  cur.Symbol,
				Message: fmt.Sprintf("score jumped %.1f → %.1f (+%.1f)", prev.FinalScore, cur.FinalScore, delta),
			})
		}
		if cur.Classification.Rank() > prev.Classification.Rank() {
			events = append(events, model.Event{
				Type:    model.EventUpgrade,
				Symbol:  cur.Symbol,
				Message: fmt.Sprintf("upgraded %s → %s", prev.Classification, cur.Classification),
			})
		}
	}

	if return6h >= 0.05 && cur.FinalScore >= watchlistMin {
		events = append(events, model.Event{
			Type:    model.EventIgnition,
			Symbol:  cur.Symbol,
			Message: fmt.Sprintf("price up %.1f%% in 6h with score %.1f", return6h*100, cur.FinalScore),
		})
	}
	return events
}
