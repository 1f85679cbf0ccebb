package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"futuresquotes/internal/config"
	"futuresquotes/internal/httpx"
	"futuresquotes/internal/logging"
	"futuresquotes/internal/quote"
	"futuresquotes/internal/quote/cache"
	"futuresquotes/internal/quote/ratelimit"
	"futuresquotes/internal/quote/yahoo"
)

func main() {
	var (
		configPath string
		symbolsCSV string
		endpoint   string
		timeout    int
		indent     bool
		verbose    bool
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flag.StringVar(&symbolsCSV, "symbols", "", `symbols as "ID:Alias,..." (default from config)`)
	flag.StringVar(&endpoint, "endpoint", "", "Yahoo endpoint override")
	flag.IntVar(&timeout, "timeout", 0, "per-fetch timeout seconds (default from config)")
	flag.BoolVar(&indent, "indent", getenvBool("FETCH_INDENT", true), "indent JSON output")
	flag.BoolVar(&verbose, "v", false, "log fetch details to stderr")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	if symbolsCSV != "" {
		syms, err := config.ParseSymbols(symbolsCSV)
		if err != nil {
			fatalf("symbols: %v", err)
		}
		cfg.Quotes.Symbols = syms
		if err := cfg.Validate(); err != nil {
			fatalf("%v", err)
		}
	}
	if endpoint != "" {
		cfg.Yahoo.Endpoint = endpoint
	}
	if timeout > 0 {
		cfg.Quotes.FetchTimeoutSec = timeout
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logging.New(level, true, os.Stderr)

	httpClient := httpx.New(cfg.Quotes.FetchTimeout())
	if cfg.Yahoo.UserAgent != "" {
		httpClient.UserAgent = cfg.Yahoo.UserAgent
	}
	client, err := yahoo.NewClient(yahoo.WithBaseURL(cfg.Yahoo.Endpoint), yahoo.WithHTTPClient(httpClient))
	if err != nil {
		fatalf("yahoo client: %v", err)
	}
	src := ratelimit.Wrap(client, cfg.Yahoo.MaxRequestsPerMinute, cfg.Yahoo.Burst, cfg.Yahoo.MinRequestInterval())

	c := cache.New(src, cfg.Quotes.SymbolIDs(),
		cache.WithFetchTimeout(cfg.Quotes.FetchTimeout()),
		cache.WithBatchTimeout(cfg.Quotes.BatchTimeout()),
		cache.WithMaxConcurrency(cfg.Quotes.MaxConcurrency),
		cache.WithLogger(log),
	)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Quotes.BatchTimeout()+time.Second)
	defer cancel()
	prices := c.Get(ctx)

	out := make(map[string]*quote.Snapshot, len(cfg.Quotes.Symbols))
	missing := 0
	for _, s := range cfg.Quotes.Symbols {
		out[s.Alias] = prices[s.ID]
		if prices[s.ID] == nil {
			missing++
		}
	}
	enc := json.NewEncoder(os.Stdout)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fatalf("encode: %v", err)
	}
	if missing == len(out) {
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		}
	}
	return def
}
