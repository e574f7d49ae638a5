// Package metrics accumulates per-cycle counters and keeps a bounded
// rolling window of finished cycles. One writer per cycle (the
// orchestrator); readers always get copies
package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"alertrecon/internal/core/scorer"
	"alertrecon/internal/platform/store"
	"alertrecon/internal/services/engine/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
)

// highScore is the raw-score threshold counted per rule
const highScore = 0.8

// Accumulator gathers one cycle's metrics. Not safe for concurrent
// writers; the orchestrator is the only writer within a cycle
type Accumulator struct {
	rec domain.RunRecord
}

// NewAccumulator starts a cycle record
func NewAccumulator(cycleID string, started time.Time) *Accumulator {
	return &Accumulator{rec: domain.RunRecord{
		CycleID:   cycleID,
		StartedAt: started,
		Rules:     make(map[string]domain.RuleStat),
	}}
}

// ObserveMatch folds one per-email match result into the cycle record
func (a *Accumulator) ObserveMatch(res matchdom.Result) {
	a.rec.Candidates += res.Candidates
	if res.Status != scorer.StatusNoCandidates {
		a.rec.Confidence.Observe(res.Confidence)
		a.rec.Histogram.Bucket(res.Confidence)
	}
	for _, rs := range res.RuleScores {
		st := a.rec.Rules[rs.Name]
		if st.Invocations == 0 || rs.Raw < st.Min {
			st.Min = rs.Raw
		}
		if rs.Raw > st.Max {
			st.Max = rs.Raw
		}
		st.Total += rs.Raw
		st.Invocations++
		if rs.Raw >= highScore {
			st.CountHigh++
		}
		a.rec.Rules[rs.Name] = st
	}
}

// Phase records one finished phase
func (a *Accumulator) Phase(name string, d time.Duration, err error) {
	pr := domain.PhaseResult{Name: name, Duration: d}
	if err != nil {
		pr.Error = err.Error()
	}
	a.rec.Phases = append(a.rec.Phases, pr)
}

// Finish closes the record with the final status. Batch stats are filled
// through Record() as each phase completes
func (a *Accumulator) Finish(status domain.CycleStatus, ended time.Time) domain.RunRecord {
	a.rec.Status = status
	a.rec.EndedAt = ended
	return a.rec
}

// Record gives direct access to the in-progress record
func (a *Accumulator) Record() *domain.RunRecord { return &a.rec }

// Window is the bounded rolling window of finished cycles
type Window struct {
	mu   sync.RWMutex
	max  int
	recs []domain.RunRecord
}

// NewWindow builds a rolling window holding up to max records
func NewWindow(max int) *Window {
	if max <= 0 {
		max = 100
	}
	return &Window{max: max}
}

// Push appends a finished record, evicting the oldest beyond capacity
func (w *Window) Push(rec domain.RunRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.recs = append(w.recs, rec)
	if len(w.recs) > w.max {
		w.recs = w.recs[len(w.recs)-w.max:]
	}
}

// Len returns the number of recorded cycles
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.recs)
}

// Last returns a copy of the most recent record, nil when empty
func (w *Window) Last() *domain.RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.recs) == 0 {
		return nil
	}
	rec := w.recs[len(w.recs)-1]
	return &rec
}

// Aggregates computes the exposed rolling statistics. recent limits how
// many records are echoed back (0 = none)
func (w *Window) Aggregates(recent int) domain.Aggregates {
	w.mu.RLock()
	defer w.mu.RUnlock()

	agg := domain.Aggregates{
		Window:           len(w.recs),
		AvgPhaseDuration: make(map[string]time.Duration),
	}
	if len(w.recs) == 0 {
		return agg
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	var total24, ok24 int
	var txTotal int
	phaseSums := make(map[string]time.Duration)
	phaseCounts := make(map[string]int)

	for _, r := range w.recs {
		if r.EndedAt.After(cutoff) {
			total24++
			if r.Status == domain.CycleSuccess {
				ok24++
			}
		}
		txTotal += r.TxStats.Stored
		for _, p := range r.Phases {
			phaseSums[p.Name] += p.Duration
			phaseCounts[p.Name]++
		}
	}
	if total24 > 0 {
		agg.SuccessRate24h = float64(ok24) / float64(total24)
	}
	agg.AvgTxPerCycle = float64(txTotal) / float64(len(w.recs))
	for name, sum := range phaseSums {
		agg.AvgPhaseDuration[name] = sum / time.Duration(phaseCounts[name])
	}

	if recent > 0 {
		if recent > len(w.recs) {
			recent = len(w.recs)
		}
		agg.Recent = append(agg.Recent, w.recs[len(w.recs)-recent:]...)
	}
	return agg
}

// Archive appends a finished run record to the ClickHouse history table.
// Best effort: callers log and continue on error
func Archive(ctx context.Context, ch store.Clickhouse, rec domain.RunRecord) error {
	if ch == nil {
		return nil
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return ch.Insert(ctx, "run_records", [][]any{{
		rec.CycleID,
		rec.StartedAt,
		rec.EndedAt,
		string(rec.Status),
		rec.MatchStats.Emails,
		rec.MatchStats.AutoMatched,
		rec.MatchStats.NeedsReview,
		rec.MatchStats.Rejected,
		rec.MatchStats.NoCandidate,
		rec.MatchStats.Failed,
		rec.TxStats.Stored,
		rec.EmailStats.Stored,
		string(blob),
	}})
}
