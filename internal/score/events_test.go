package score

import (
	"testing"

	"PumpSentinel/internal/model"
)

func scan(final float64, class model.Classification) *model.ScanResult {
	return &model.ScanResult{Symbol: "TOKENX", FinalScore: final, Classification: class}
}

func TestDetectEventsJumpAndUpgrade(t *testing.T) {
	prev := scan(55, model.ClassWatchlist)
	cur := scan(73, model.ClassHighAlert)
	events := DetectEvents(cur, prev, 0, 48)
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if events[0].Type != model.EventScoreJump || events[1].Type != model.EventUpgrade {
		t.Errorf("order = %v, %v; want SCORE_JUMP then UPGRADE", events[0].Type, events[1].Type)
	}
}

func TestDetectEventsJumpThreshold(t *testing.T) {
	cur := scan(70, model.ClassHighAlert)
	if ev := DetectEvents(cur, scan(55.01, model.ClassHighAlert), 0, 48); len(ev) != 0 {
		t.Errorf("delta 14.99 fired %v", ev)
	}
	if ev := DetectEvents(cur, scan(55, model.ClassHighAlert), 0, 48); len(ev) != 1 || ev[0].Type != model.EventScoreJump {
		t.Errorf("delta 15 = %v, want exactly SCORE_JUMP", ev)
	}
}

func TestDetectEventsNoDowngradeEvent(t *testing.T) {
	cur := scan(50, model.ClassWatchlist)
	prev := scan(70, model.ClassHighAlert)
	if ev := DetectEvents(cur, prev, 0, 48); len(ev) != 0 {
		t.Errorf("downgrade fired %v", ev)
	}
}

func TestDetectEventsIgnition(t *testing.T) {
	cur := scan(48, model.ClassWatchlist)
	ev := DetectEvents(cur, nil, 0.05, 48)
	if len(ev) != 1 || ev[0].Type != model.EventIgnition {
		t.Fatalf("events = %v, want IGNITION", ev)
	}
	// Below the score floor no ignition fires.
	if ev := DetectEvents(scan(47, model.ClassNone), nil, 0.09, 48); len(ev) != 0 {
		t.Errorf("low-score ignition fired %v", ev)
	}
	// Below the move floor no ignition fires.
	if ev := DetectEvents(cur, nil, 0.049, 48); len(ev) != 0 {
		t.Errorf("small-move ignition fired %v", ev)
	}
}

func TestDetectEventsAllThree(t *testing.T) {
	prev := scan(40, model.ClassMonitor)
	cur := scan(80, model.ClassCritical)
	ev := DetectEvents(cur, prev, 0.08, 48)
	want := []model.EventType{model.EventScoreJump, model.EventUpgrade, model.EventIgnition}
	if len(ev) != 3 {
		t.Fatalf("events = %v", ev)
	}
	for i, w := range want {
		if ev[i].Type != w {
			t.Errorf("event[%d] = %v, want %v", i, ev[i].Type, w)
		}
	}
}
