// Package scorer ranks candidate transactions for an email by applying the
// weighted rule set, breaks ties, and turns the ranking into a match decision
package scorer

import (
	"fmt"
	"math"
	"sort"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/rules"
)

// Weights maps rule name to weight. Rules without an entry score at zero
// weight (diagnostic only)
type Weights map[string]float64

// DefaultWeights is the shipped weight table; sum is 1.00
func DefaultWeights() Weights {
	return Weights{
		rules.NameExactAmount:    0.25,
		rules.NameExactReference: 0.20,
		rules.NameFuzzyReference: 0.15,
		rules.NameTimestamp:      0.15,
		rules.NameAccountMatch:   0.10,
		rules.NameCompositeKey:   0.10,
		rules.NameBankMatch:      0.05,
	}
}

// Sum adds all configured weights
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

// Thresholds partition the confidence range into decision buckets.
// Must satisfy Reject < NeedsReview < AutoMatch
type Thresholds struct {
	Reject      float64
	NeedsReview float64
	AutoMatch   float64
}

// DefaultThresholds returns the shipped cut points
func DefaultThresholds() Thresholds {
	return Thresholds{Reject: 0.40, NeedsReview: 0.60, AutoMatch: 0.80}
}

// Validate enforces threshold ordering and range
func (t Thresholds) Validate() error {
	if !(t.Reject < t.NeedsReview && t.NeedsReview < t.AutoMatch) {
		return fmt.Errorf("thresholds out of order: %.2f / %.2f / %.2f", t.Reject, t.NeedsReview, t.AutoMatch)
	}
	if t.Reject < 0 || t.AutoMatch > 1 {
		return fmt.Errorf("thresholds outside [0,1]")
	}
	return nil
}

// Status is the internal decision status
type Status string

// Decision statuses
const (
	StatusAutoMatched  Status = "auto_matched"
	StatusNeedsReview  Status = "needs_review"
	StatusRejected     Status = "rejected"
	StatusNoCandidates Status = "no_candidates"
)

// StoredStatus maps the internal status to the persisted match status.
// "pending" is reserved for crash recovery and never emitted here
func StoredStatus(s Status) string {
	switch s {
	case StatusAutoMatched:
		return "matched"
	case StatusNeedsReview:
		return "review"
	case StatusRejected:
		return "rejected"
	case StatusNoCandidates:
		return "no_candidates"
	default:
		return "pending"
	}
}

// RuleScore is one weighted rule outcome for a candidate
type RuleScore struct {
	Name     string         `json:"rule"`
	Raw      float64        `json:"raw"`
	Weight   float64        `json:"weight"`
	Weighted float64        `json:"weighted"`
	Details  map[string]any `json:"details,omitempty"`
}

// Candidate is one scored transaction
type Candidate struct {
	Tx       *canon.Transaction
	Scores   []RuleScore
	Total    float64
	Rank     int
	TieScore float64
}

// RawScore returns the raw score of the named rule, 0 when absent
func (c *Candidate) RawScore(name string) float64 {
	for _, rs := range c.Scores {
		if rs.Name == name {
			return rs.Raw
		}
	}
	return 0
}

// Config carries the scorer knobs
type Config struct {
	Weights          Weights
	Thresholds       Thresholds
	MaxTieDifference float64
	PreferRecent     bool
	MaxAlternatives  int
	Params           rules.Params
}

// withDefaults fills zero-valued knobs
func (c Config) withDefaults() Config {
	if c.Weights == nil {
		c.Weights = DefaultWeights()
	}
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = DefaultThresholds()
	}
	if c.MaxTieDifference == 0 {
		c.MaxTieDifference = 0.05
	}
	if c.MaxAlternatives == 0 {
		c.MaxAlternatives = 5
	}
	if c.Params == (rules.Params{}) {
		c.Params = rules.DefaultParams()
	}
	return c
}

// Scorer applies the rule set in stable order
type Scorer struct {
	cfg   Config
	rules []rules.Rule
}

// New builds a Scorer; zero-valued Config fields take defaults
func New(cfg Config) *Scorer {
	cfg = cfg.withDefaults()
	return &Scorer{cfg: cfg, rules: rules.Set(cfg.Params)}
}

// Thresholds exposes the effective cut points
func (s *Scorer) Thresholds() Thresholds { return s.cfg.Thresholds }

// scoreOne evaluates every rule against one pair
func (s *Scorer) scoreOne(e *canon.Email, tx *canon.Transaction) *Candidate {
	c := &Candidate{Tx: tx, Scores: make([]RuleScore, 0, len(s.rules))}
	for _, r := range s.rules {
		res := r.Fn(e, tx)
		w := s.cfg.Weights[r.Name]
		rs := RuleScore{
			Name:     r.Name,
			Raw:      res.Raw,
			Weight:   w,
			Weighted: res.Raw * w,
			Details:  res.Details,
		}
		c.Scores = append(c.Scores, rs)
		c.Total += rs.Weighted
	}
	if c.Total > 1 {
		c.Total = 1
	}
	return c
}

// Rank scores all candidates, sorts descending by total (stable), applies
// tie-breaking within the leading tie group, and assigns ranks 1..N
func (s *Scorer) Rank(e *canon.Email, txs []*canon.Transaction) []*Candidate {
	ranked := make([]*Candidate, 0, len(txs))
	for _, tx := range txs {
		ranked = append(ranked, s.scoreOne(e, tx))
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Total > ranked[j].Total })

	s.breakTies(e, ranked)

	for i, c := range ranked {
		c.Rank = i + 1
	}
	return ranked
}

// breakTies applies the recency/reference/bank tie score as a small
// additive adjustment within the leading tie group, then re-sorts the
// group only, so no candidate moves past a non-member
func (s *Scorer) breakTies(e *canon.Email, ranked []*Candidate) {
	if len(ranked) < 2 {
		return
	}
	best := ranked[0].Total
	group := 1
	for group < len(ranked) && best-ranked[group].Total <= s.cfg.MaxTieDifference {
		group++
	}
	if group < 2 {
		return
	}

	for _, c := range ranked[:group] {
		c.TieScore = s.tieScore(e, c)
		c.Total += c.TieScore * 0.01
		if c.Total > 1 {
			c.Total = 1
		}
	}
	tied := ranked[:group]
	sort.SliceStable(tied, func(i, j int) bool { return tied[i].Total > tied[j].Total })
}

func (s *Scorer) tieScore(e *canon.Email, c *Candidate) float64 {
	var recency float64
	if s.cfg.PreferRecent && e.Instant != nil {
		dh := math.Abs(e.Instant.Sub(c.Tx.Instant).Hours())
		recency = 1 / (1 + dh)
	}
	ref := c.RawScore(rules.NameExactReference)
	if fz := c.RawScore(rules.NameFuzzyReference); fz > ref {
		ref = fz
	}
	bank := c.RawScore(rules.NameBankMatch)
	return recency*0.4 + ref*0.4 + bank*0.2
}

// Decision is the terminal scoring outcome for one email
type Decision struct {
	Status       Status
	Best         *Candidate
	Alternatives []*Candidate
	Confidence   float64
	Notes        string
}

// Decide maps a ranking onto a decision per the threshold table.
// Boundary values land in the higher bucket
func (s *Scorer) Decide(ranked []*Candidate) Decision {
	if len(ranked) == 0 {
		return Decision{Status: StatusNoCandidates, Confidence: 0, Notes: "no candidate transactions"}
	}

	best := ranked[0]
	th := s.cfg.Thresholds
	d := Decision{Best: best, Confidence: best.Total}

	switch {
	case best.Total >= th.AutoMatch:
		d.Status = StatusAutoMatched
	case best.Total >= th.NeedsReview:
		d.Status = StatusNeedsReview
	default:
		d.Status = StatusRejected
		if best.Total < th.Reject {
			d.Notes = "best candidate below reject threshold"
		} else {
			d.Notes = "best candidate retained for review"
		}
	}

	switch d.Status {
	case StatusAutoMatched, StatusNeedsReview:
		// alternatives are ranks 2..maxAlternatives+1
		end := 1 + s.cfg.MaxAlternatives
		if end > len(ranked) {
			end = len(ranked)
		}
		d.Alternatives = ranked[1:end]
	case StatusRejected:
		// keep the top candidates wholesale for human review
		end := s.cfg.MaxAlternatives
		if end > len(ranked) {
			end = len(ranked)
		}
		d.Alternatives = ranked[:end]
	}
	return d
}
