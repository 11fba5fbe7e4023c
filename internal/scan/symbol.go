package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PumpSentinel/internal/feature"
	"PumpSentinel/internal/levels"
	"PumpSentinel/internal/market"
	"PumpSentinel/internal/model"
	"PumpSentinel/internal/score"
	"PumpSentinel/internal/signal"
	"PumpSentinel/internal/store"
)

// Bootstrap thresholds: below any of these the symbol refetches history.
const (
	bootstrapOI      = 200
	bootstrapFunding = 100
	bootstrapLS      = 100
	bootstrapCandles = 500
)

// scanSymbol runs the full per-symbol pipeline: fetch, store, evaluate,
// score, derive levels, diff events and route the alert.
func (s *Scheduler) scanSymbol(ctx context.Context, symbol string) error {
	counts, err := s.store.CountsFor(symbol)
	if err != nil {
		return fmt.Errorf("counts: %w", err)
	}
	bootstrap := counts.OI < bootstrapOI || counts.Funding < bootstrapFunding ||
		counts.LS < bootstrapLS || counts.Candles < bootstrapCandles

	degraded, timedOut := s.collect(ctx, symbol, bootstrap)

	in, err := s.buildInputs(symbol)
	if err != nil {
		return err
	}
	if in.Price <= 0 {
		return fmt.Errorf("no price data")
	}

	signals := signal.EvaluateAll(s.log, in)
	quality := signal.AggregateQuality(signals)
	switch {
	case timedOut:
		quality = model.QualityLow
	case degraded:
		quality = model.MinQuality(quality, model.QualityMed)
	}

	ret7d, _ := feature.ReturnOver(in.Candles, 168)
	ret6h, _ := feature.ReturnOver(in.Candles, 6)

	scored := s.scorer.Score(signals, ret7d)

	res := &model.ScanResult{
		Symbol:         symbol,
		T:              in.Now,
		Price:          in.Price,
		BaseScore:      scored.Base,
		FinalScore:     scored.Final,
		Classification: scored.Classification,
		Signals:        signals,
		Bonuses:        scored.Bonuses,
		Penalty:        scored.Penalty,
		Quality:        quality,
		Exchanges:      s.exchangeNames(),
	}

	if scored.Classification.Rank() >= model.ClassWatchlist.Rank() {
		var cascade float64
		for _, sig := range signals {
			if sig.Name == model.SignalLiqLeverage {
				cascade = sig.Raw
			}
		}
		lv, err := levels.Compute(levels.Inputs{
			Price:          in.Price,
			Candles:        in.Candles,
			Book:           in.Book,
			Quality:        quality,
			CascadeRatio:   cascade,
			Classification: scored.Classification,
		}, levels.Params{
			AccountUSD: s.cfg.Risk.AccountUSD,
			RiskPct:    s.cfg.Risk.RiskPct,
		})
		if err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("no levels")
		} else {
			res.Levels = lv
		}
	}

	var prev *model.ScanResult
	if history, err := s.store.LastScanResults(symbol, 1); err == nil && len(history) > 0 {
		prev = history[0]
	}
	res.Events = score.DetectEvents(res, prev, ret6h, s.cfg.Thresholds.Watchlist)

	if err := s.store.SaveScanResult(res); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	s.route(ctx, res)
	return nil
}

func (s *Scheduler) exchangeNames() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// collect fetches every series for one symbol, per-exchange calls running
// concurrently, and appends results to the store. It reports whether any
// venue failed and whether the budget expired.
func (s *Scheduler) collect(ctx context.Context, symbol string, bootstrap bool) (degraded, timedOut bool) {
	candleLimit := 48
	oiLimit, fundingLimit, lsLimit := 1, 1, 1
	if bootstrap {
		candleLimit = store.Cap(store.KindCandles)
		oiLimit = store.Cap(store.KindOI)
		fundingLimit = store.Cap(store.KindFunding)
		lsLimit = store.Cap(store.KindLS)
	}

	now := time.Now().UnixMilli()
	hour := now - now%3_600_000

	type venueData struct {
		name    string
		candles []model.Candle
		ticker  *model.ExchangeTicker
		oi      []market.TimedValue
		funding []market.TimedValue
		ls      []market.TimedValue
		book    *model.OrderBook
		failed  bool
	}

	results := make([]venueData, len(s.sources))
	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src market.Source) {
			defer wg.Done()
			vd := venueData{name: src.Name()}

			fetch := func(op string, fn func() error) {
				err := market.WithRetry(ctx, 3, fn)
				switch {
				case err == nil || market.IsAbsent(err):
				default:
					vd.failed = true
					if s.rec != nil {
						s.rec.FetchErrors.WithLabelValues(src.Name(), op).Inc()
					}
					s.log.Debug().Err(err).Str("symbol", symbol).Msg("fetch failed")
				}
			}

			fetch("candles", func() error {
				c, err := src.FetchCandles(ctx, symbol, candleLimit)
				if err == nil {
					vd.candles = c
				}
				return err
			})
			fetch("ticker", func() error {
				t, err := src.FetchTicker(ctx, symbol)
				if err == nil {
					vd.ticker = &t
				}
				return err
			})
			fetch("oi", func() error {
				points, err := src.FetchOpenInterestHistory(ctx, symbol, oiLimit)
				if err == nil {
					vd.oi = points
				}
				return err
			})
			fetch("funding", func() error {
				points, err := src.FetchFundingHistory(ctx, symbol, fundingLimit)
				if err == nil {
					vd.funding = points
				}
				return err
			})
			fetch("ls", func() error {
				points, err := src.FetchLSRatioHistory(ctx, symbol, lsLimit)
				if err == nil {
					vd.ls = points
				}
				return err
			})
			fetch("book", func() error {
				b, err := src.FetchBook(ctx, symbol, 50)
				if err == nil {
					vd.book = &b
				}
				return err
			})

			results[i] = vd
		}(i, src)
	}
	wg.Wait()
	timedOut = ctx.Err() != nil

	// Candles come from the first venue with data; other series merge
	// across venues by hour bucket.
	storeErr := func(err error) {
		if err != nil {
			degraded = true
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("store append failed")
		}
	}

	for _, vd := range results {
		if vd.failed {
			degraded = true
		}
	}

	for _, vd := range results {
		if len(vd.candles) > 0 {
			for _, c := range vd.candles {
				storeErr(s.store.AppendCandle(symbol, c))
			}
			break
		}
	}

	oiMerged := map[int64]map[string]float64{}
	fundingMerged := map[int64]map[string]float64{}
	lsMerged := map[int64]map[string]float64{}
	bucket := func(m map[int64]map[string]float64, t int64, name string, v float64) {
		h := t - t%3_600_000
		if m[h] == nil {
			m[h] = map[string]float64{}
		}
		m[h][name] = v
	}

	ticker := model.Ticker{T: hour, PerExchange: map[string]model.ExchangeTicker{}}
	book := model.BookSnapshot{T: hour, PerExchange: map[string]model.OrderBook{}}
	var bestVol float64

	for _, vd := range results {
		for _, p := range vd.oi {
			bucket(oiMerged, p.T, vd.name, p.V)
		}
		for _, p := range vd.funding {
			bucket(fundingMerged, p.T, vd.name, p.V)
		}
		for _, p := range vd.ls {
			bucket(lsMerged, p.T, vd.name, p.V)
		}
		if vd.ticker != nil {
			ticker.PerExchange[vd.name] = *vd.ticker
			ticker.QuoteVol += vd.ticker.QuoteVol
			if vd.ticker.QuoteVol >= bestVol {
				bestVol = vd.ticker.QuoteVol
				ticker.Price = vd.ticker.Price
				ticker.Bid = vd.ticker.Bid
				ticker.Ask = vd.ticker.Ask
			}
		}
		if vd.book != nil {
			book.PerExchange[vd.name] = *vd.book
		}
	}

	for t, byEx := range oiMerged {
		storeErr(s.store.AppendOI(symbol, model.OIPoint{T: t, USDByExchange: byEx}))
	}
	for t, byEx := range fundingMerged {
		storeErr(s.store.AppendFunding(symbol, model.FundingPoint{T: t, RateByExchange: byEx}))
	}
	for t, byEx := range lsMerged {
		storeErr(s.store.AppendLS(symbol, model.LSPoint{T: t, RatioByExchange: byEx}))
	}
	if len(ticker.PerExchange) > 0 {
		storeErr(s.store.AppendTicker(symbol, ticker))
	}
	if len(book.PerExchange) > 0 {
		storeErr(s.store.AppendBook(symbol, book))
	}
	return degraded, timedOut
}

// buildInputs assembles the evaluator bundle from stored series.
func (s *Scheduler) buildInputs(symbol string) (signal.Inputs, error) {
	var in signal.Inputs
	in.Symbol = symbol
	in.Now = time.Now().UnixMilli()

	var err error
	if in.Candles, err = s.store.Candles(symbol, store.Cap(store.KindCandles)); err != nil {
		return in, fmt.Errorf("load candles: %w", err)
	}
	if in.OI, err = s.store.OI(symbol, store.Cap(store.KindOI)); err != nil {
		return in, fmt.Errorf("load oi: %w", err)
	}
	if in.Funding, err = s.store.Funding(symbol, store.Cap(store.KindFunding)); err != nil {
		return in, fmt.Errorf("load funding: %w", err)
	}
	if in.LS, err = s.store.LS(symbol, store.Cap(store.KindLS)); err != nil {
		return in, fmt.Errorf("load ls: %w", err)
	}
	if tickers, err := s.store.Tickers(symbol, 1); err == nil && len(tickers) > 0 {
		in.Ticker = tickers[len(tickers)-1]
		in.Price = in.Ticker.Price
	}
	if in.Price <= 0 && len(in.Candles) > 0 {
		in.Price = in.Candles[len(in.Candles)-1].Close
	}
	if snap, ok, err := s.store.LatestBook(symbol); err == nil && ok {
		in.Book = snap.Merged()
	}
	in.Gapped = feature.GapExceeded(in.Candles, s.cfg.Scan.MaxGapHours)
	return in, nil
}
