package market

import (
	"context"
	"time"
)

// Limiter is a token bucket shared by all requests to one exchange.
type Limiter struct {
	tokens chan struct{}
	stop   chan struct{}
}

// NewLimiter allows `perSecond` requests sustained with a burst reserve.
func NewLimiter(perSecond, burst int) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}
	go l.refill(time.Second / time.Duration(perSecond))
	return l
}

func (l *Limiter) refill(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			select {
			case l.tokens <- struct{}{}:
			default:
			}
		}
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case <-l.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the refill loop.
func (l *Limiter) Close() { close(l.stop) }
