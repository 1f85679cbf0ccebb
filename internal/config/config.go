package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// Symbol pairs an upstream identifier with the key used in responses.
type Symbol struct {
	ID    string `json:"id" yaml:"id"`
	Alias string `json:"alias" yaml:"alias"`
}

type Quotes struct {
	Symbols         []Symbol `json:"symbols" yaml:"symbols"`
	FreshnessSec    int      `json:"freshness_sec" yaml:"freshness_sec"`
	PushIntervalSec int      `json:"push_interval_sec" yaml:"push_interval_sec"`
	FetchTimeoutSec int      `json:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
	BatchTimeoutSec int      `json:"batch_timeout_sec" yaml:"batch_timeout_sec"`
	MaxConcurrency  int      `json:"max_concurrency" yaml:"max_concurrency"`
	// WarmSchedule is a cron spec (e.g. "@every 45s"); empty disables warming.
	WarmSchedule string `json:"warm_schedule" yaml:"warm_schedule"`
}

type Yahoo struct {
	Endpoint              string `json:"endpoint" yaml:"endpoint"`
	UserAgent             string `json:"user_agent" yaml:"user_agent"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                 int    `json:"burst" yaml:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
}

type Config struct {
	Server Server `json:"server" yaml:"server"`
	Log    Log    `json:"log" yaml:"log"`
	Quotes Quotes `json:"quotes" yaml:"quotes"`
	Yahoo  Yahoo  `json:"yahoo" yaml:"yahoo"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "3000", RequestTimeoutSec: 10},
		Log:    Log{Level: "info"},
		Quotes: Quotes{
			Symbols: []Symbol{
				{ID: "MNQ=F", Alias: "MNQ"},
				{ID: "NQ=F", Alias: "NQ"},
			},
			FreshnessSec:    60,
			PushIntervalSec: 30,
			FetchTimeoutSec: 10,
			BatchTimeoutSec: 20,
		},
		Yahoo: Yahoo{
			Endpoint:  "https://query1.finance.yahoo.com",
			UserAgent: "futures-quotes/1.0",
			Burst:     1,
		},
	}
}

// Load reads config from path. If path is empty, config.json, config.yaml or
// config.yml in the working directory is used when present; otherwise the
// defaults apply. A .env file is loaded into the environment first, then
// environment variables override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := unmarshal(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func unmarshal(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if len(c.Quotes.Symbols) == 0 {
		return errors.New("config: no symbols configured")
	}
	ids := make(map[string]struct{}, len(c.Quotes.Symbols))
	aliases := make(map[string]struct{}, len(c.Quotes.Symbols))
	for i, s := range c.Quotes.Symbols {
		if s.ID == "" || s.Alias == "" {
			return fmt.Errorf("config: symbol %d: id and alias are required", i)
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("config: duplicate symbol id %q", s.ID)
		}
		if _, dup := aliases[s.Alias]; dup {
			return fmt.Errorf("config: duplicate symbol alias %q", s.Alias)
		}
		ids[s.ID] = struct{}{}
		aliases[s.Alias] = struct{}{}
	}
	if c.Quotes.FreshnessSec <= 0 {
		return errors.New("config: freshness_sec must be positive")
	}
	if c.Quotes.PushIntervalSec <= 0 {
		return errors.New("config: push_interval_sec must be positive")
	}
	return nil
}

// SymbolIDs returns the upstream identifiers in configured order.
func (q Quotes) SymbolIDs() []string {
	out := make([]string, 0, len(q.Symbols))
	for _, s := range q.Symbols {
		out = append(out, s.ID)
	}
	return out
}

func (q Quotes) Freshness() time.Duration    { return seconds(q.FreshnessSec) }
func (q Quotes) PushInterval() time.Duration { return seconds(q.PushIntervalSec) }
func (q Quotes) FetchTimeout() time.Duration { return seconds(q.FetchTimeoutSec) }
func (q Quotes) BatchTimeout() time.Duration { return seconds(q.BatchTimeoutSec) }

func (y Yahoo) MinRequestInterval() time.Duration { return seconds(y.MinRequestIntervalSec) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
