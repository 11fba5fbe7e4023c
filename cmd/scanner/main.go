package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"PumpSentinel/internal/alert"
	"PumpSentinel/internal/config"
	"PumpSentinel/internal/logging"
	"PumpSentinel/internal/market"
	"PumpSentinel/internal/metrics"
	"PumpSentinel/internal/scan"
	"PumpSentinel/internal/store"
	"PumpSentinel/internal/trade"
)

// Exit codes: 1 config error, 2 no usable exchange, 3 store corruption.
const (
	exitConfig   = 1
	exitExchange = 2
	exitStore    = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("scanner", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	once := fs.Bool("once", false, "run a single scan cycle and exit")
	stats := fs.Bool("stats", false, "print store statistics and exit")
	cleanup := fs.Bool("cleanup", false, "prune old rows and exit")

	cmd := "run"
	if len(args) > 0 && (args[0] == "setup" || args[0] == "run") {
		cmd = args[0]
		args = args[1:]
	}
	fs.Parse(args)

	if cmd == "setup" {
		if err := config.WriteStarter(*cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, "setup:", err)
			return exitConfig
		}
		fmt.Println("wrote", *cfgPath)
		return 0
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfig
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	st, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		log.Error().Err(err).Msg("store open failed")
		if errors.Is(err, store.ErrCorrupt) {
			return exitStore
		}
		return exitConfig
	}
	defer st.Close()

	if *stats {
		return printStats(st)
	}
	if *cleanup {
		if err := st.Cleanup(cfg.Store.RetentionDays); err != nil {
			log.Error().Err(err).Msg("cleanup failed")
			return exitConfig
		}
		log.Info().Int("retention_days", cfg.Store.RetentionDays).Msg("cleanup done")
		return 0
	}

	sources := buildSources(cfg, log)
	if len(sources) == 0 {
		log.Error().Msg("no exchange adapter could be initialized")
		return exitExchange
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rec *metrics.Recorder
	if cfg.Metrics.Enabled {
		r, registry := metrics.New()
		rec = r
		go metrics.Serve(ctx, cfg.Metrics.Addr, registry, log)
	}

	sinks := alert.Multi{alert.NewConsole(log)}
	var tg *alert.Telegram
	if cfg.Alerts.Telegram.Enabled {
		tg = alert.NewTelegram(cfg.Alerts.Telegram.BotToken, cfg.Alerts.Telegram.ChatID, log)
		sinks = append(sinks, tg)
	}

	monitor := trade.NewMonitor(cfg, st, sources, sinks, log)
	scheduler := scan.New(cfg, st, sources, sinks, monitor, rec, log)

	if tg != nil {
		go tg.StartPolling(ctx, scheduler.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if *once {
		if err := scheduler.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("scan cycle failed")
			return exitConfig
		}
		return 0
	}

	log.Info().
		Int("exchanges", len(sources)).
		Dur("cadence", cfg.Cadence()).
		Msg("scanner starting")
	if err := scheduler.Start(ctx); err != nil {
		log.Error().Err(err).Msg("scheduler stopped")
		return exitConfig
	}
	log.Info().Msg("scanner stopped")
	return 0
}

// buildSources initializes each enabled exchange, skipping venues whose
// adapter fails to construct.
func buildSources(cfg *config.Config, log zerolog.Logger) []market.Source {
	var sources []market.Source
	for _, ex := range cfg.EnabledExchanges() {
		src, err := market.New(ex, log)
		if err != nil {
			log.Warn().Err(err).Str("exchange", ex.Name).Msg("exchange skipped")
			continue
		}
		sources = append(sources, src)
	}
	return sources
}

func printStats(st *store.Store) int {
	stats, err := st.Stats()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stats:", err)
		return exitConfig
	}
	for k, v := range stats {
		fmt.Printf("%-20s %d\n", k, v)
	}
	return 0
}
