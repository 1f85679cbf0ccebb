package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = parseBool(v, cfg.Log.Pretty)
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		syms, err := ParseSymbols(v)
		if err != nil {
			return fmt.Errorf("SYMBOLS: %w", err)
		}
		cfg.Quotes.Symbols = syms
	}
	if v := os.Getenv("WARM_SCHEDULE"); v != "" {
		cfg.Quotes.WarmSchedule = v
	}
	if v := os.Getenv("YAHOO_ENDPOINT"); v != "" {
		cfg.Yahoo.Endpoint = v
	}
	if v := os.Getenv("YAHOO_USER_AGENT"); v != "" {
		cfg.Yahoo.UserAgent = v
	}

	ints := []struct {
		key string
		dst *int
		min int
	}{
		{"REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1},
		{"FRESHNESS_SEC", &cfg.Quotes.FreshnessSec, 1},
		{"PUSH_INTERVAL_SEC", &cfg.Quotes.PushIntervalSec, 1},
		{"FETCH_TIMEOUT_SEC", &cfg.Quotes.FetchTimeoutSec, 1},
		{"BATCH_TIMEOUT_SEC", &cfg.Quotes.BatchTimeoutSec, 1},
		{"MAX_CONCURRENCY", &cfg.Quotes.MaxConcurrency, 0},
		{"YAHOO_MAX_RPM", &cfg.Yahoo.MaxRequestsPerMinute, 0},
		{"YAHOO_BURST", &cfg.Yahoo.Burst, 1},
		{"YAHOO_MIN_INTERVAL_SEC", &cfg.Yahoo.MinRequestIntervalSec, 0},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		x, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		if x >= e.min {
			*e.dst = x
		}
	}
	return nil
}

// ParseSymbols parses "MNQ=F:MNQ,NQ=F:NQ". A bare identifier is its own alias.
func ParseSymbols(s string) ([]Symbol, error) {
	var out []Symbol
	for _, part := range splitCSV(s) {
		id, alias := part, part
		if i := strings.LastIndex(part, ":"); i >= 0 {
			id, alias = strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:])
		}
		if id == "" || alias == "" {
			return nil, fmt.Errorf("invalid symbol %q", part)
		}
		out = append(out, Symbol{ID: id, Alias: alias})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols in %q", s)
	}
	return out, nil
}

func parseBool(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
