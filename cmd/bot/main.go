// SMC Trader — an automated forex/CFD trading bot for the cTrader Open
// API, combining Smart-Money-Concepts structure trading with an
// RSI+VWAP confirmation strategy.
//
// Architecture:
//
//	main.go             — entry point: loads config, wires subsystems, waits for SIGINT/SIGTERM
//	engine/engine.go    — orchestrator: analysis and refresh loops, signal combination
//	engine/execute.go   — guarded execution path: in-flight lock, six checks, safety latch
//	smc/strategy.go     — per-symbol institutional state machine (sweep → CHoCH → FVG → entry)
//	strategy/rsivwap.go — RSI mean reversion filtered by session-anchored VWAP
//	broker/client.go    — TLS WebSocket session: auth, correlation, heartbeat, reconnect
//	broker/adapter.go   — symbol catalog, subscriptions, candle history, order placement
//	market/store.go     — per-symbol multi-timeframe bar cache
//	risk/manager.go     — daily-loss circuit breaker, session filter, position sizing
//	store/store.go      — JSON file persistence for positions, risk state, decision log
//	api/server.go       — status/admin HTTP surface, /metrics, event stream
//
// How it trades:
//
//	The institutional machine waits for the market to sweep a liquidity
//	pool (previous session or day extremes, swing points), confirms the
//	reversal with a change of character on M15, and enters on the
//	mitigation of the M5 fair value gap left behind. The RSI+VWAP
//	strategy confirms or vetoes; opposite directions trade nothing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smc-trader/internal/api"
	"smc-trader/internal/broker"
	"smc-trader/internal/config"
	"smc-trader/internal/engine"
	"smc-trader/internal/market"
	"smc-trader/internal/risk"
	"smc-trader/internal/smc"
	"smc-trader/internal/store"
	"smc-trader/internal/strategy"
	"smc-trader/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SMC_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var hub *api.Hub
	var persist engine.Persister = st
	if cfg.Dashboard.Enabled {
		hub = api.NewHub(logger)
		persist = &recordTee{Store: st, hub: hub}
	}

	riskMgr := risk.NewManager(cfg.Risk, logger)
	if saved, err := st.LoadRiskState(); err != nil {
		logger.Warn("could not restore risk state", "error", err)
	} else if saved != nil {
		riskMgr.Restore(*saved, time.Now())
	}

	client := broker.NewClient(cfg.Broker, logger)
	adapter := broker.NewAdapter(client, cfg.Engine.MaxSpreadPips, logger)
	bars := market.NewStore(0)
	smcStrat := smc.NewStrategy(cfg.SMC, logger, persist)
	rsi := strategy.NewRSIVwap(cfg.RSIVwap, logger)

	eng := engine.New(*cfg, adapter, bars, riskMgr, smcStrat, rsi, persist, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	creds := types.Credentials{
		ClientID:     cfg.Broker.ClientID,
		ClientSecret: cfg.Broker.ClientSecret,
		AccessToken:  cfg.Broker.AccessToken,
		AccountID:    cfg.Broker.AccountID,
		IsDemo:       cfg.Broker.Demo,
	}
	if err := adapter.Connect(ctx, creds); err != nil {
		logger.Error("broker connect failed", "error", err)
		os.Exit(1)
	}
	defer adapter.Disconnect()
	go adapter.Run(ctx)

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, eng, adapter, hub, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", "error", err)
			}
		}()
		logger.Info("dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}
	logger.Info("smc trader started",
		"symbols", cfg.Engine.Symbols,
		"demo", cfg.Broker.Demo,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-engineDone:
		logger.Error("engine exited", "error", err)
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", "error", err)
		}
	}
	cancel()
}

// recordTee persists decision records and mirrors them to the dashboard
// stream.
type recordTee struct {
	*store.Store
	hub *api.Hub
}

func (t *recordTee) Record(event string, fields map[string]any) {
	t.Store.Record(event, fields)
	t.hub.Record(event, fields)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
