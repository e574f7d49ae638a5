package metrics

import (
	"context"
	"testing"
	"time"

	"alertrecon/internal/core/scorer"
	"alertrecon/internal/services/engine/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

func txStats(n int) txdom.BatchStats { return txdom.BatchStats{Stored: n} }

func TestAccumulatorObserveMatch(t *testing.T) {
	a := NewAccumulator("c-1", time.Now().UTC())

	a.ObserveMatch(matchdom.Result{
		Status:     scorer.StatusAutoMatched,
		Confidence: 0.92,
		Candidates: 3,
		RuleScores: []scorer.RuleScore{
			{Name: "exact_amount", Raw: 1.0},
			{Name: "fuzzy_reference", Raw: 0.4},
		},
	})
	a.ObserveMatch(matchdom.Result{
		Status:     scorer.StatusRejected,
		Confidence: 0.30,
		Candidates: 1,
		RuleScores: []scorer.RuleScore{
			{Name: "exact_amount", Raw: 0.0},
		},
	})
	// no-candidate results do not skew confidence
	a.ObserveMatch(matchdom.Result{Status: scorer.StatusNoCandidates})

	rec := a.Record()
	if rec.Candidates != 4 {
		t.Fatalf("Candidates = %d, want 4", rec.Candidates)
	}
	if rec.Confidence.Count != 2 {
		t.Fatalf("Confidence.Count = %d, want 2", rec.Confidence.Count)
	}
	if rec.Confidence.Min != 0.30 || rec.Confidence.Max != 0.92 {
		t.Fatalf("Confidence = %+v", rec.Confidence)
	}

	amount := rec.Rules["exact_amount"]
	if amount.Invocations != 2 || amount.Min != 0.0 || amount.Max != 1.0 || amount.CountHigh != 1 {
		t.Fatalf("exact_amount stat = %+v", amount)
	}
	if avg := amount.Avg(); avg != 0.5 {
		t.Fatalf("Avg = %v, want 0.5", avg)
	}
}

func TestHistogramBuckets(t *testing.T) {
	var h domain.Histogram
	for _, c := range []float64{0.95, 0.90, 0.85, 0.80, 0.70, 0.60, 0.50, 0.40, 0.10} {
		h.Bucket(c)
	}
	want := domain.Histogram{2, 2, 2, 2, 1}
	if h != want {
		t.Fatalf("histogram = %v, want %v", h, want)
	}
}

func TestAccumulatorFinish(t *testing.T) {
	started := time.Now().UTC()
	a := NewAccumulator("c-2", started)
	a.Phase(domain.PhaseFetchEmails, 10*time.Millisecond, nil)
	a.Phase(domain.PhaseMatch, 20*time.Millisecond, context.DeadlineExceeded)

	rec := a.Finish(domain.CyclePartial, started.Add(time.Second))
	if rec.CycleID != "c-2" || rec.Status != domain.CyclePartial {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(rec.Phases))
	}
	if rec.Phases[1].Error == "" {
		t.Fatal("failing phase recorded no error")
	}
}

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Push(domain.RunRecord{CycleID: string(rune('a' + i))})
	}
	if w.Len() != 3 {
		t.Fatalf("Len = %d, want capacity 3", w.Len())
	}
	if last := w.Last(); last == nil || last.CycleID != "e" {
		t.Fatalf("Last = %+v, want cycle e", last)
	}
}

func TestWindowLastEmpty(t *testing.T) {
	if last := NewWindow(10).Last(); last != nil {
		t.Fatalf("Last on empty window = %+v, want nil", last)
	}
}

func TestAggregates(t *testing.T) {
	w := NewWindow(10)
	now := time.Now().UTC()

	w.Push(domain.RunRecord{
		CycleID: "old-failure",
		EndedAt: now.Add(-48 * time.Hour), // outside the 24h success window
		Status:  domain.CycleFailed,
	})
	w.Push(domain.RunRecord{
		CycleID: "recent-ok",
		EndedAt: now.Add(-time.Hour),
		Status:  domain.CycleSuccess,
		TxStats: txStats(10),
		Phases:  []domain.PhaseResult{{Name: domain.PhaseMatch, Duration: 100 * time.Millisecond}},
	})
	w.Push(domain.RunRecord{
		CycleID: "recent-partial",
		EndedAt: now.Add(-time.Minute),
		Status:  domain.CyclePartial,
		TxStats: txStats(20),
		Phases:  []domain.PhaseResult{{Name: domain.PhaseMatch, Duration: 300 * time.Millisecond}},
	})

	agg := w.Aggregates(1)
	if agg.Window != 3 {
		t.Fatalf("Window = %d, want 3", agg.Window)
	}
	if agg.SuccessRate24h != 0.5 {
		t.Fatalf("SuccessRate24h = %v, want 0.5", agg.SuccessRate24h)
	}
	if agg.AvgTxPerCycle != 10 {
		t.Fatalf("AvgTxPerCycle = %v, want 10", agg.AvgTxPerCycle)
	}
	if agg.AvgPhaseDuration[domain.PhaseMatch] != 200*time.Millisecond {
		t.Fatalf("AvgPhaseDuration = %v", agg.AvgPhaseDuration)
	}
	if len(agg.Recent) != 1 || agg.Recent[0].CycleID != "recent-partial" {
		t.Fatalf("Recent = %+v, want only the newest cycle", agg.Recent)
	}
}

func TestAggregatesEmpty(t *testing.T) {
	agg := NewWindow(5).Aggregates(3)
	if agg.Window != 0 || len(agg.Recent) != 0 {
		t.Fatalf("empty aggregates = %+v", agg)
	}
}

func TestArchiveNilClickhouse(t *testing.T) {
	if err := Archive(context.Background(), nil, domain.RunRecord{CycleID: "c"}); err != nil {
		t.Fatalf("Archive with nil ch = %v, want nil", err)
	}
}
