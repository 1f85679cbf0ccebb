package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timeLayout matches JavaScript's Date.toISOString, which existing clients parse.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Snapshot is the last known-good reading for one symbol.
// Numeric fields are kept as strings to avoid float rounding; an empty
// string means the upstream did not supply the value.
type Snapshot struct {
	Price   string
	Change  string
	Percent string
	AsOf    time.Time
}

type snapshotJSON struct {
	Price   string `json:"price"`
	Change  string `json:"change"`
	Percent string `json:"percent"`
	Time    string `json:"time"`
}

// MarshalJSON renders every field as a string; a zero AsOf becomes "".
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{Price: s.Price, Change: s.Change, Percent: s.Percent}
	if !s.AsOf.IsZero() {
		out.Time = s.AsOf.UTC().Format(timeLayout)
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*s = Snapshot{Price: in.Price, Change: in.Change, Percent: in.Percent}
	if in.Time != "" {
		t, err := time.Parse(time.RFC3339Nano, in.Time)
		if err != nil {
			return fmt.Errorf("parse time: %w", err)
		}
		s.AsOf = t.UTC()
	}
	return nil
}

// Prices maps every tracked symbol to its freshest snapshot, nil when the
// symbol has never been fetched successfully. Values handed out by the cache
// are shared between callers and must not be modified.
type Prices map[string]*Snapshot

// Source fetches the current quote for one symbol.
//
//go:generate mockgen -package=ratelimit_test -destination=ratelimit/mock_source_test.go -source=quote.go Source
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (Snapshot, error)
}

var (
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnavailable   = errors.New("upstream unavailable")
)

// ProviderError is returned by sources. Err wraps one of the sentinel errors above.
type ProviderError struct {
	Provider string
	Symbol   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
