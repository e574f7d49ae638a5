// Package domain defines the orchestrator's cycle types and configuration
package domain

import (
	"time"

	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

// CycleStatus labels one finished cycle
type CycleStatus string

// Cycle statuses
const (
	CycleSuccess    CycleStatus = "success"
	CyclePartial    CycleStatus = "completed_with_errors"
	CycleFailed     CycleStatus = "failed"
	CycleInProgress CycleStatus = "in_progress"
)

// Phase names in execution order
const (
	PhaseFetchEmails = "fetch_emails"
	PhasePollTxs     = "poll_transactions"
	PhaseMatch       = "match"
)

// PhaseResult captures one phase of a cycle
type PhaseResult struct {
	Name     string        `json:"name"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RuleStat aggregates one rule's raw scores over a cycle
type RuleStat struct {
	Invocations int     `json:"invocations"`
	Total       float64 `json:"total"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	CountHigh   int     `json:"count_high"` // raw >= 0.8
}

// Avg returns the mean raw score
func (r RuleStat) Avg() float64 {
	if r.Invocations == 0 {
		return 0
	}
	return r.Total / float64(r.Invocations)
}

// Histogram buckets confidences: [>=0.90, 0.80-0.90, 0.60-0.80, 0.40-0.60, <0.40]
type Histogram [5]int

// Bucket adds one confidence observation
func (h *Histogram) Bucket(c float64) {
	switch {
	case c >= 0.90:
		h[0]++
	case c >= 0.80:
		h[1]++
	case c >= 0.60:
		h[2]++
	case c >= 0.40:
		h[3]++
	default:
		h[4]++
	}
}

// RunRecord is the per-cycle metrics record
type RunRecord struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Status    CycleStatus   `json:"status"`
	Phases    []PhaseResult `json:"phases"`

	EmailStats emaildom.BatchStats `json:"email_stats"`
	TxStats    txdom.BatchStats    `json:"tx_stats"`
	MatchStats matchdom.RunStats   `json:"match_stats"`
	Rules      map[string]RuleStat `json:"rules"`
	Confidence ConfidenceStats     `json:"confidence"`
	Histogram  Histogram           `json:"histogram"`
	Candidates int                 `json:"candidates_retrieved"`
}

// ConfidenceStats tracks min/avg/max confidence over matched decisions
type ConfidenceStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
}

// Observe adds one confidence value
func (c *ConfidenceStats) Observe(v float64) {
	if c.Count == 0 || v < c.Min {
		c.Min = v
	}
	if v > c.Max {
		c.Max = v
	}
	c.Sum += v
	c.Count++
}

// Avg returns the mean confidence
func (c ConfidenceStats) Avg() float64 {
	if c.Count == 0 {
		return 0
	}
	return c.Sum / float64(c.Count)
}

// TriggerResult reports the outcome of a manual cycle trigger
type TriggerResult struct {
	Triggered bool   `json:"triggered"`
	Reason    string `json:"reason,omitempty"` // "poll_in_progress" when skipped
	CycleID   string `json:"cycle_id,omitempty"`
}

// Status is the orchestrator snapshot served by the API
type Status struct {
	Running        bool              `json:"running"`
	CycleActive    bool              `json:"cycle_active"`
	Interval       time.Duration     `json:"interval"`
	ActionsEnabled bool              `json:"actions_enabled"`
	NextRunAt      *time.Time        `json:"next_run_at,omitempty"`
	LastCycle      *RunRecord        `json:"last_cycle,omitempty"`
	Breakers       map[string]string `json:"breakers,omitempty"`
	CyclesRecorded int               `json:"cycles_recorded"`
}

// Aggregates are the rolling-window statistics served by the metrics endpoint
type Aggregates struct {
	Window           int                      `json:"window"`
	SuccessRate24h   float64                  `json:"success_rate_24h"`
	AvgTxPerCycle    float64                  `json:"avg_tx_per_cycle"`
	AvgPhaseDuration map[string]time.Duration `json:"avg_phase_duration"`
	Recent           []RunRecord              `json:"recent"`
}
