package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"PumpSentinel/internal/config"
)

func configExchange(name string) config.Exchange {
	return config.Exchange{Name: name, Enabled: true}
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }

func TestFetchErrorKinds(t *testing.T) {
	base := fmt.Errorf("boom")
	transient := &FetchError{Exchange: "binance", Op: "klines", Kind: KindTransient, Err: base}
	wrapped := fmt.Errorf("cycle: %w", transient)

	if !IsTransient(wrapped) {
		t.Error("wrapped transient not detected")
	}
	if IsPermanent(wrapped) || IsAbsent(wrapped) {
		t.Error("kind confusion")
	}
	if !errors.Is(wrapped, base) {
		t.Error("unwrap chain broken")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("plain error classified")
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func() error {
		calls++
		return &FetchError{Exchange: "x", Op: "y", Kind: KindPermanent, Err: errors.New("nope")}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !IsPermanent(err) {
		t.Errorf("err = %v", err)
	}
}

func TestWithRetryRetriesTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, func() error {
		calls++
		if calls < 3 {
			return &FetchError{Exchange: "x", Op: "y", Kind: KindTransient, Err: errors.New("flaky")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 3, func() error {
		return &FetchError{Exchange: "x", Op: "y", Kind: KindTransient, Err: errors.New("flaky")}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestLimiterBlocksAfterBurst(t *testing.T) {
	l := NewLimiter(1, 2)
	defer l.Close()
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	// Bucket drained: a bounded wait must now time out.
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestLimiterRefills(t *testing.T) {
	l := NewLimiter(50, 1)
	defer l.Close()
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	refill, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := l.Wait(refill); err != nil {
		t.Errorf("no refill within a second: %v", err)
	}
}

func TestMockSourceAbsentSeries(t *testing.T) {
	m := NewMockSource("mock")
	m.Symbols = []string{"TOKENX"}
	if _, err := m.FetchCandles(context.Background(), "TOKENX", 10); !IsAbsent(err) {
		t.Errorf("err = %v, want absent", err)
	}
	if _, err := m.FetchOpenInterest(context.Background(), "TOKENX"); !IsAbsent(err) {
		t.Errorf("err = %v, want absent", err)
	}
}

func TestMockSourceHistoryLimit(t *testing.T) {
	m := NewMockSource("mock")
	for i := 0; i < 10; i++ {
		m.OI["TOKENX"] = append(m.OI["TOKENX"], TimedValue{T: int64(i), V: float64(i)})
	}
	points, err := m.FetchOpenInterestHistory(context.Background(), "TOKENX", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 || points[2].V != 9 {
		t.Errorf("points = %v", points)
	}
}

func TestBybitFetchBookDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/orderbook" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{
			"b":[["0.998","1000"],["0.996","2500"]],
			"a":[["1.002","800"]]}}`)
	}))
	defer srv.Close()

	b := &bybit{http: newHTTPClient("bybit", srv.URL, 100, 100, nopLogger())}
	book, err := b.FetchBook(context.Background(), "TOKENX", 50)
	if err != nil {
		t.Fatalf("FetchBook: %v", err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("book = %+v", book)
	}
	if book.Bids[0].Price != 0.998 || book.Bids[0].Amount != 1000 {
		t.Errorf("bid = %+v", book.Bids[0])
	}
	if book.Asks[0].Price != 1.002 {
		t.Errorf("ask = %+v", book.Asks[0])
	}
}

func TestSourceFactoryRejectsUnknown(t *testing.T) {
	_, err := New(configExchange("kraken"), nopLogger())
	if err == nil {
		t.Error("expected error for unknown exchange")
	}
	for _, name := range []string{"binance", "bybit", "mock"} {
		src, err := New(configExchange(name), nopLogger())
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if src.Name() != name {
			t.Errorf("name = %s, want %s", src.Name(), name)
		}
	}
}
