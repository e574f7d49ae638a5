// Package service wires retrieval, scoring and match persistence into the
// per-email matching pipeline
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/money"
	"alertrecon/internal/core/scorer"
	"alertrecon/internal/modkit/repokit"
	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	emaildom "alertrecon/internal/services/emails/domain"
	"alertrecon/internal/services/matcher/domain"
	"alertrecon/internal/services/matcher/repo"
	txdom "alertrecon/internal/services/transactions/domain"
)

// matchMethod labels how a persisted match was produced
const matchMethod = "weighted_rules"

// Config for the matcher service
type Config struct {
	WindowHours         int
	Tolerance           decimal.Decimal
	MaxCandidates       int
	RequireSameCurrency bool
	ExcludeMatched      bool
	Scorer              scorer.Config
}

func (c Config) withDefaults() Config {
	if c.WindowHours <= 0 {
		c.WindowHours = 48
	}
	if c.Tolerance.IsZero() {
		c.Tolerance = decimal.NewFromFloat(0.01)
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 50
	}
	return c
}

// Service implements domain.RunnerPort
type Service struct {
	DB      store.TxRunner
	Matches repokit.Binder[repo.Storage]
	Emails  emaildom.ReaderPort
	Txs     txdom.ReaderPort
	Cfg     Config

	scorer *scorer.Scorer
	// Hook is optional; injected at wiring time to avoid a dispatcher cycle
	Hook domain.PostMatchHook
	// Observer, when set, receives every successful per-email result
	// (the metrics accumulator hangs off this)
	Observer func(domain.Result)

	writeRetry *resilience.Runner
	log        *logger.Logger
}

// New constructs the matcher service
func New(
	db store.TxRunner,
	matches repokit.Binder[repo.Storage],
	emails emaildom.ReaderPort,
	txs txdom.ReaderPort,
	cfg Config,
) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		DB:      db,
		Matches: repokit.MustBind(matches, "matcher"),
		Emails:  emails,
		Txs:     txs,
		Cfg:     cfg,
		scorer:  scorer.New(cfg.Scorer),
		// storage gets one retry inside the operation boundary
		writeRetry: resilience.NewRunner(resilience.RetryConfig{MaxAttempts: 2, Initial: 200 * time.Millisecond}),
		log:        logger.Named("matcher"),
	}
}

// Retrieve returns plausible candidates for the email: storage window query,
// then a paranoid in-memory re-check of the same predicates, truncated to
// MaxCandidates. An email without an amount has no candidates by definition
func (s *Service) Retrieve(ctx context.Context, email emaildom.Email) ([]txdom.Transaction, error) {
	if email.Amount == nil {
		return nil, nil
	}

	rows, err := s.Txs.Candidates(ctx, txdom.CandidateQuery{
		Amount:              *email.Amount,
		Currency:            email.Currency,
		Instant:             email.Instant,
		WindowHours:         s.Cfg.WindowHours,
		Tolerance:           s.Cfg.Tolerance,
		RequireSameCurrency: s.Cfg.RequireSameCurrency,
		ExcludeMatched:      s.Cfg.ExcludeMatched,
	})
	if err != nil {
		return nil, err
	}

	kept := rows[:0]
	for _, t := range rows {
		if !money.WithinTolerance(t.Amount, *email.Amount, *email.Amount, s.Cfg.Tolerance) {
			continue
		}
		if s.Cfg.RequireSameCurrency && email.Currency != "" && t.Currency != email.Currency {
			continue
		}
		if email.Instant != nil {
			dh := email.Instant.Sub(t.Instant)
			if dh < 0 {
				dh = -dh
			}
			if dh > time.Duration(s.Cfg.WindowHours)*time.Hour {
				continue
			}
		}
		kept = append(kept, t)
	}
	if len(kept) > s.Cfg.MaxCandidates {
		kept = kept[:s.Cfg.MaxCandidates]
	}

	s.log.Debug().
		Int64("email_id", email.ID).
		Int("retrieved", len(rows)).
		Int("kept", len(kept)).
		Msg("candidates retrieved")
	return kept, nil
}

// MatchEmail runs the full pipeline for one email: retrieve, score, decide,
// persist, mark processed, then the post-match hook unless skipActions
func (s *Service) MatchEmail(ctx context.Context, email emaildom.Email, skipActions bool) (domain.Result, error) {
	start := time.Now()

	candidates, err := s.Retrieve(ctx, email)
	if err != nil {
		return domain.Result{EmailID: email.ID}, err
	}

	// index canonical pointers back to their rows for persistence
	canonTxs := make([]*canon.Transaction, len(candidates))
	byCanon := make(map[*canon.Transaction]*txdom.Transaction, len(candidates))
	for i := range candidates {
		canonTxs[i] = &candidates[i].Transaction
		byCanon[canonTxs[i]] = &candidates[i]
	}

	ranked := s.scorer.Rank(&email.Email, canonTxs)
	decision := s.scorer.Decide(ranked)

	m := domain.Match{
		ID:         uuid.NewString(),
		EmailID:    email.ID,
		Confidence: decision.Confidence,
		Status:     scorer.StoredStatus(decision.Status),
		Method:     matchMethod,
		Notes:      decision.Notes,
	}
	var bestTx *txdom.Transaction
	if decision.Best != nil {
		bestTx = byCanon[decision.Best.Tx]
		m.TransactionID = &bestTx.ID
		if blob, err := json.Marshal(decision.Best.Scores); err == nil {
			m.Details = blob
		}
	}
	if len(decision.Alternatives) > 0 {
		alts := make([]domain.Alternative, 0, len(decision.Alternatives))
		for _, a := range decision.Alternatives {
			if a == decision.Best {
				continue
			}
			alts = append(alts, domain.Alternative{
				TransactionID: byCanon[a.Tx].ID,
				ExternalID:    a.Tx.ExternalID,
				Total:         a.Total,
				Rank:          a.Rank,
			})
		}
		if blob, err := json.Marshal(alts); err == nil {
			m.Alternatives = blob
		}
	}

	if err := s.writeMatch(ctx, m); err != nil {
		// record the failure on the email and leave it unprocessed
		msg := str.Truncate("persistence_failed: "+err.Error(), 500)
		if merr := s.Emails.MarkProcessed(ctx, email.ID, &msg); merr != nil {
			s.log.Error().Err(merr).Int64("email_id", email.ID).Msg("failed to record persistence error")
		}
		return domain.Result{EmailID: email.ID}, perr.Wrap(err, perr.ErrorCodeDB, "write match")
	}

	res := domain.Result{
		EmailID:       email.ID,
		MatchID:       m.ID,
		Status:        decision.Status,
		Confidence:    decision.Confidence,
		TransactionID: m.TransactionID,
		Candidates:    len(candidates),
		Alternatives:  m.AlternativeCount(),
		Elapsed:       time.Since(start),
	}
	if decision.Best != nil {
		res.RuleScores = decision.Best.Scores
	}

	s.log.Info().
		Int64("email_id", email.ID).
		Str("status", string(decision.Status)).
		Float64("confidence", decision.Confidence).
		Int("candidates", len(candidates)).
		Dur("elapsed", res.Elapsed).
		Msg("email matched")

	if s.Observer != nil {
		s.Observer(res)
	}

	if !skipActions && s.Hook != nil {
		if err := s.Hook.AfterMatch(ctx, m, email, bestTx); err != nil {
			// action failures never unwind a persisted match
			s.log.Warn().Err(err).Str("match_id", m.ID).Msg("post-match hook failed")
		}
	}
	return res, nil
}

// writeMatch replaces the match row and marks the email processed in one
// transaction, with a single retry on transient storage failures
func (s *Service) writeMatch(ctx context.Context, m domain.Match) error {
	return s.writeRetry.Do(ctx, func(ctx context.Context) error {
		return s.DB.Tx(ctx, func(q store.RowQuerier) error {
			r := s.Matches.Bind(q)
			if err := r.Replace(ctx, m); err != nil {
				return err
			}
			return r.MarkEmailProcessed(ctx, m.EmailID)
		})
	})
}

// SetObserver wires the per-result observer (metrics accumulator)
func (s *Service) SetObserver(fn func(domain.Result)) { s.Observer = fn }

// MatchAll processes unmatched emails sequentially, oldest first.
// Per-email failures are recorded and never abort the pass
func (s *Service) MatchAll(ctx context.Context, limit int, skipActions bool) (domain.RunStats, error) {
	var stats domain.RunStats

	emails, err := s.Emails.ListUnmatched(ctx, limit)
	if err != nil {
		return stats, err
	}
	stats.Emails = len(emails)

	for _, e := range emails {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.MatchEmail(ctx, e, skipActions)
		if err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Int64("email_id", e.ID).Msg("match failed")
			continue
		}
		switch res.Status {
		case scorer.StatusAutoMatched:
			stats.AutoMatched++
		case scorer.StatusNeedsReview:
			stats.NeedsReview++
		case scorer.StatusRejected:
			stats.Rejected++
		case scorer.StatusNoCandidates:
			stats.NoCandidate++
		}
	}
	return stats, nil
}

// Rematch re-runs the pipeline for one email. The existing match row is
// replaced atomically; actions re-run unless skipActions
func (s *Service) Rematch(ctx context.Context, emailID int64, skipActions bool) (domain.Result, error) {
	email, err := s.Emails.ByID(ctx, emailID)
	if err != nil {
		return domain.Result{}, err
	}
	return s.MatchEmail(ctx, *email, skipActions)
}

// GetForEmail returns the persisted match for an email, if any
func (s *Service) GetForEmail(ctx context.Context, emailID int64) (*domain.Match, error) {
	return s.Matches.Bind(s.DB).GetForEmail(ctx, emailID)
}
