package aggregate

import (
	"futuresquotes/internal/quote"
)

// Merge folds one refresh batch into the last-known-good set and returns the
// result as a new map. Neither input is modified.
//
// Rules:
//   - symbols missing from batch keep their old snapshot (a failed fetch never
//     clears a value);
//   - a batch snapshot replaces the old one, newest wins;
//   - when both carry a timestamp and the batch one is strictly older, the old
//     snapshot is kept so out-of-order upstream data cannot regress a symbol.
//     Equal timestamps go to the batch, like later input wins for ties.
func Merge(old, batch map[string]quote.Snapshot) map[string]quote.Snapshot {
	out := make(map[string]quote.Snapshot, len(old)+len(batch))
	for sym, s := range old {
		out[sym] = s
	}
	for sym, s := range batch {
		if cur, ok := out[sym]; ok && isOlder(s, cur) {
			continue
		}
		out[sym] = s
	}
	return out
}

func isOlder(s, than quote.Snapshot) bool {
	if s.AsOf.IsZero() || than.AsOf.IsZero() {
		return false
	}
	return s.AsOf.Before(than.AsOf)
}

// View builds the outward Prices for symbols from a merged set. Every symbol
// gets an entry; symbols without a snapshot map to nil.
func View(symbols []string, snaps map[string]quote.Snapshot) quote.Prices {
	out := make(quote.Prices, len(symbols))
	for _, sym := range symbols {
		if s, ok := snaps[sym]; ok {
			s := s
			out[sym] = &s
			continue
		}
		out[sym] = nil
	}
	return out
}

// Complete reports whether every symbol has a snapshot.
func Complete(symbols []string, snaps map[string]quote.Snapshot) bool {
	for _, sym := range symbols {
		if _, ok := snaps[sym]; !ok {
			return false
		}
	}
	return true
}
