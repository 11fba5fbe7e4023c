// Package alert renders and delivers scan alerts and trade notices.
package alert

import (
	"context"

	"PumpSentinel/internal/model"
)

// Severity grades an alert for sink-side emphasis.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is the sink-neutral message: the scored result plus severity. Text
// carries standalone notices (trade events, operator warnings) that have no
// scan result attached.
type Alert struct {
	Severity Severity
	Symbol   string
	Result   *model.ScanResult
	Text     string
}

// SeverityFor maps a classification to an alert severity.
func SeverityFor(c model.Classification) Severity {
	switch c {
	case model.ClassCritical:
		return SeverityCritical
	case model.ClassHighAlert:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// CommandHandler consumes one user command and returns the reply text.
type CommandHandler func(ctx context.Context, name string, args []string) string

// Alerter delivers alerts to one sink.
type Alerter interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans an alert out to several sinks; the last error wins but every
// sink gets the message.
type Multi []Alerter

func (m Multi) Send(ctx context.Context, a Alert) error {
	var last error
	for _, sink := range m {
		if err := sink.Send(ctx, a); err != nil {
			last = err
		}
	}
	return last
}
