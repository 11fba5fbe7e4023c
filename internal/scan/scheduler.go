// Package scan drives the periodic scan cycle: universe discovery, bounded
// fan-out over symbols, scoring and alert routing.
package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PumpSentinel/internal/alert"
	"PumpSentinel/internal/config"
	"PumpSentinel/internal/market"
	"PumpSentinel/internal/metrics"
	"PumpSentinel/internal/model"
	"PumpSentinel/internal/score"
	"PumpSentinel/internal/store"
	"PumpSentinel/internal/trade"
)

// universeMaxAge bounds how long the cached symbol listing is trusted.
const universeMaxAge = 24 * time.Hour

// Scheduler owns the cycle clock and the per-symbol pipeline.
type Scheduler struct {
	cfg     *config.Config
	store   *store.Store
	sources []market.Source
	scorer  *score.Scorer
	sink    alert.Alerter
	trades  *trade.Monitor
	rec     *metrics.Recorder
	log     zerolog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inflight map[string]bool
}

// New wires a scheduler. rec may be nil when metrics are disabled.
func New(cfg *config.Config, st *store.Store, sources []market.Source,
	sink alert.Alerter, trades *trade.Monitor, rec *metrics.Recorder, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		sources:  sources,
		scorer:   score.New(cfg.Thresholds),
		sink:     sink,
		trades:   trades,
		rec:      rec,
		log:      log.With().Str("component", "scan").Logger(),
		inflight: map[string]bool{},
	}
}

// Start runs one immediate cycle, then keeps scanning on the configured
// cadence until ctx is done. The trade monitor ticks on its own entries.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every "+s.cfg.Cadence().String(), func() {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("scan cycle failed")
		}
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 5m", func() { s.trades.Tick(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", func() { s.trades.Digest(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@daily", func() {
		if err := s.store.Cleanup(s.cfg.Store.RetentionDays); err != nil {
			s.log.Warn().Err(err).Msg("retention cleanup failed")
		}
	}); err != nil {
		return err
	}

	if err := s.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("initial scan cycle failed")
	}
	s.cron.Start()
	<-ctx.Done()
	stop := s.cron.Stop()
	<-stop.Done()
	return nil
}

// RunOnce executes one scan cycle under the hard deadline.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CycleDeadline())
	defer cancel()

	symbols, err := s.universe(ctx)
	if err != nil {
		return err
	}
	if s.rec != nil {
		s.rec.UniverseSymbols.Set(float64(len(symbols)))
	}
	s.log.Info().Int("symbols", len(symbols)).Msg("cycle start")

	work := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Scan.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range work {
				s.scanOne(ctx, symbol)
			}
		}()
	}

feed:
	for _, symbol := range symbols {
		select {
		case work <- symbol:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	if s.rec != nil {
		s.rec.CycleDuration.Observe(time.Since(start).Seconds())
		if stats, err := s.store.Stats(); err == nil {
			s.rec.StoreSizeBytes.Set(float64(stats["size_bytes"]))
		}
		if active, err := s.store.ActiveTrades(); err == nil {
			s.rec.ActiveTrades.Set(float64(len(active)))
		}
	}
	s.log.Info().Dur("took", time.Since(start)).Msg("cycle done")
	return nil
}

// scanOne serializes scans per symbol and applies the per-symbol budget.
func (s *Scheduler) scanOne(ctx context.Context, symbol string) {
	s.mu.Lock()
	if s.inflight[symbol] {
		s.mu.Unlock()
		return
	}
	s.inflight[symbol] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, symbol)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PerSymbolTimeout())
	defer cancel()

	if err := s.scanSymbol(ctx, symbol); err != nil {
		if s.rec != nil {
			s.rec.SymbolsFailed.Inc()
		}
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("symbol skipped")
		return
	}
	if s.rec != nil {
		s.rec.SymbolsScanned.Inc()
	}
}

// universe returns the scan symbol set: the cached union when fresh,
// otherwise a new union across all venues.
func (s *Scheduler) universe(ctx context.Context) ([]string, error) {
	cached, updated, err := s.store.Universe()
	if err == nil && len(cached) > 0 &&
		time.Since(time.UnixMilli(updated)) < universeMaxAge {
		return cached, nil
	}

	set := map[string]bool{}
	var lastErr error
	for _, src := range s.sources {
		var listed []string
		err := market.WithRetry(ctx, 3, func() error {
			var e error
			listed, e = src.ListFuturesSymbols(ctx)
			return e
		})
		if err != nil {
			lastErr = err
			s.log.Warn().Err(err).Str("exchange", src.Name()).Msg("listing failed")
			continue
		}
		for _, sym := range listed {
			set[sym] = true
		}
	}
	if len(set) == 0 {
		if len(cached) > 0 {
			s.log.Warn().Msg("all listings failed, using stale universe")
			return cached, nil
		}
		return nil, lastErr
	}

	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	if len(symbols) > s.cfg.Scan.MaxSymbols {
		symbols = symbols[:s.cfg.Scan.MaxSymbols]
	}
	if err := s.store.SaveUniverse(symbols); err != nil {
		s.log.Warn().Err(err).Msg("universe cache write failed")
	}
	return symbols, nil
}

// route decides whether a result alerts and sends it.
func (s *Scheduler) route(ctx context.Context, res *model.ScanResult) {
	if s.rec != nil {
		s.rec.LastScore.WithLabelValues(res.Symbol).Set(res.FinalScore)
		for _, ev := range res.Events {
			s.rec.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
		}
	}

	minRank := model.Classification(s.cfg.Alerts.MinClassification).Rank()
	eventWorthy := len(res.Events) > 0 && res.FinalScore >= s.cfg.Thresholds.Watchlist
	if res.Classification.Rank() < minRank && !eventWorthy {
		return
	}

	a := alert.Alert{
		Severity: alert.SeverityFor(res.Classification),
		Symbol:   res.Symbol,
		Result:   res,
	}
	if err := s.sink.Send(ctx, a); err != nil {
		s.log.Error().Err(err).Str("symbol", res.Symbol).Msg("alert failed")
		return
	}
	if s.rec != nil {
		s.rec.AlertsSent.WithLabelValues(string(res.Classification)).Inc()
	}
}
