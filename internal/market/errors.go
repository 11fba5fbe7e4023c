package market

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure for retry policy.
type Kind int

const (
	// KindTransient covers timeouts, 5xx and rate limiting; retryable.
	KindTransient Kind = iota
	// KindPermanent covers 4xx and unknown symbols; the exchange is dropped
	// for that symbol this cycle.
	KindPermanent
	// KindAbsent means the venue does not publish this series for the
	// symbol. Absent is not an outage and is never retried.
	KindAbsent
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindAbsent:
		return "absent"
	}
	return "unknown"
}

// FetchError wraps an upstream failure with venue and operation context.
type FetchError struct {
	Exchange string
	Op       string
	Symbol   string
	Kind     Kind
	Err      error
}

func (e *FetchError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s %s %s: %s: %v", e.Exchange, e.Op, e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Exchange, e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func kindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}

// IsPermanent reports whether err permanently excludes the venue for the
// symbol.
func IsPermanent(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPermanent
}

// IsAbsent reports whether the venue simply lacks the requested series.
func IsAbsent(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAbsent
}
