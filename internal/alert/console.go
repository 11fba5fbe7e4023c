package alert

import (
	"context"

	"github.com/rs/zerolog"
)

// Console logs alerts through the process logger.
type Console struct {
	log zerolog.Logger
}

// NewConsole builds the console sink.
func NewConsole(log zerolog.Logger) *Console {
	return &Console{log: log.With().Str("component", "alert").Logger()}
}

func (c *Console) Send(_ context.Context, a Alert) error {
	ev := c.log.Info()
	if a.Severity == SeverityCritical {
		ev = c.log.Warn()
	}
	ev.Str("severity", string(a.Severity)).Str("symbol", a.Symbol).
		Msg("\n" + Render(a, false))
	return nil
}
