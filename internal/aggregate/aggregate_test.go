package aggregate

import (
	"testing"
	"time"

	"futuresquotes/internal/quote"
)

func TestMerge_FailedSymbolKeepsOldSnapshot(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	old := map[string]quote.Snapshot{
		"MNQ=F": {Price: "21000", AsOf: t1},
		"NQ=F":  {Price: "21001", AsOf: t1},
	}
	batch := map[string]quote.Snapshot{
		"MNQ=F": {Price: "21010", AsOf: t2},
	}

	out := Merge(old, batch)
	if len(out) != 2 {
		t.Fatalf("want 2, got %d: %+v", len(out), out)
	}
	if out["MNQ=F"].Price != "21010" || !out["MNQ=F"].AsOf.Equal(t2) {
		t.Fatalf("MNQ not replaced: %+v", out["MNQ=F"])
	}
	if out["NQ=F"].Price != "21001" || !out["NQ=F"].AsOf.Equal(t1) {
		t.Fatalf("NQ regressed: %+v", out["NQ=F"])
	}
}

func TestMerge_OlderUpstreamTimestampDoesNotRegress(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t0 := t1.Add(-time.Minute)
	old := map[string]quote.Snapshot{"NQ=F": {Price: "2", AsOf: t1}}
	batch := map[string]quote.Snapshot{"NQ=F": {Price: "1", AsOf: t0}}

	out := Merge(old, batch)
	if out["NQ=F"].Price != "2" {
		t.Fatalf("older snapshot won: %+v", out["NQ=F"])
	}
}

func TestMerge_EqualOrMissingTimestamps_BatchWins(t *testing.T) {
	t1 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	old := map[string]quote.Snapshot{
		"A": {Price: "1", AsOf: t1},
		"B": {Price: "1", AsOf: t1},
	}
	batch := map[string]quote.Snapshot{
		"A": {Price: "2", AsOf: t1},
		"B": {Price: "2"},
	}

	out := Merge(old, batch)
	if out["A"].Price != "2" || out["B"].Price != "2" {
		t.Fatalf("batch should win: %+v", out)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	old := map[string]quote.Snapshot{"A": {Price: "1"}}
	batch := map[string]quote.Snapshot{"B": {Price: "2"}}

	out := Merge(old, batch)
	out["C"] = quote.Snapshot{Price: "3"}
	if len(old) != 1 || len(batch) != 1 {
		t.Fatalf("inputs mutated: old=%+v batch=%+v", old, batch)
	}
	if len(out) != 3 {
		t.Fatalf("want 3, got %d", len(out))
	}
}

func TestView_CoversEverySymbol(t *testing.T) {
	snaps := map[string]quote.Snapshot{"A": {Price: "1"}, "X": {Price: "9"}}
	v := View([]string{"A", "B"}, snaps)
	if len(v) != 2 {
		t.Fatalf("want 2 entries, got %d: %+v", len(v), v)
	}
	if v["A"] == nil || v["A"].Price != "1" {
		t.Fatalf("A missing: %+v", v["A"])
	}
	if got, ok := v["B"]; !ok || got != nil {
		t.Fatalf("B should be present and nil: %+v %v", got, ok)
	}
	if _, ok := v["X"]; ok {
		t.Fatalf("untracked symbol leaked into view")
	}
}

func TestComplete(t *testing.T) {
	snaps := map[string]quote.Snapshot{"A": {}}
	if Complete([]string{"A", "B"}, snaps) {
		t.Fatalf("B missing, want incomplete")
	}
	if !Complete([]string{"A"}, snaps) {
		t.Fatalf("want complete")
	}
}
