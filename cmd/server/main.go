package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"futuresquotes/internal/config"
	"futuresquotes/internal/httpx"
	"futuresquotes/internal/logging"
	"futuresquotes/internal/quote"
	"futuresquotes/internal/quote/cache"
	"futuresquotes/internal/quote/ratelimit"
	"futuresquotes/internal/quote/yahoo"
	"futuresquotes/internal/warmer"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stdout)

	src, err := newSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("quote source")
	}
	prices := cache.New(src, cfg.Quotes.SymbolIDs(),
		cache.WithFreshness(cfg.Quotes.Freshness()),
		cache.WithFetchTimeout(cfg.Quotes.FetchTimeout()),
		cache.WithBatchTimeout(cfg.Quotes.BatchTimeout()),
		cache.WithMaxConcurrency(cfg.Quotes.MaxConcurrency),
		cache.WithLogger(log.With().Str("component", "cache").Logger()),
	)

	if cfg.Quotes.WarmSchedule != "" {
		w := warmer.New(prices, cfg.Quotes.WarmSchedule, cfg.Quotes.BatchTimeout(), log.With().Str("component", "warmer").Logger())
		if err := w.Start(); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Quotes.WarmSchedule).Msg("warmer")
		}
		defer w.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := newServer(prices, cfg.Quotes.Symbols, log,
		withPushInterval(cfg.Quotes.PushInterval()),
		withRequestTimeout(time.Duration(cfg.Server.RequestTimeoutSec)*time.Second),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
		// WebSocket handlers watch the request context, so cancelling the
		// base context on shutdown ends their push loops.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Strs("symbols", prices.Symbols()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// newSource builds the Yahoo client behind the configured rate limit.
func newSource(cfg config.Config) (quote.Source, error) {
	httpClient := httpx.New(cfg.Quotes.FetchTimeout())
	if cfg.Yahoo.UserAgent != "" {
		httpClient.UserAgent = cfg.Yahoo.UserAgent
	}
	client, err := yahoo.NewClient(
		yahoo.WithBaseURL(cfg.Yahoo.Endpoint),
		yahoo.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}
	return ratelimit.Wrap(client, cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.Yahoo.MinRequestInterval()), nil
}
