// Package service implements the post-match action dispatcher: outcome
// categorization, policy lookup, handler execution with per-action audits
package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"alertrecon/internal/modkit/repokit"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/platform/store"
	str "alertrecon/internal/platform/strings"
	"alertrecon/internal/services/actions/domain"
	"alertrecon/internal/services/actions/repo"
	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

// Config for the actions service
type Config struct {
	Policy              domain.Policy
	AutoMatchThreshold  float64
	AmbiguousCandidates int
	EscalateAmountAbove decimal.Decimal // zero disables the amount trigger
	ActionTimeout       time.Duration
	Retry               resilience.RetryConfig
	Actor               string
	Simulate            bool // unconfigured handlers succeed as "<kind>_simulated"
}

func (c Config) withDefaults() Config {
	if c.Policy == nil {
		c.Policy = domain.DefaultPolicy()
	}
	if c.AutoMatchThreshold == 0 {
		c.AutoMatchThreshold = 0.80
	}
	if c.AmbiguousCandidates == 0 {
		c.AmbiguousCandidates = 2
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 30 * time.Second
	}
	if c.Actor == "" {
		c.Actor = "system"
	}
	return c
}

// Service implements domain.DispatcherPort and the matcher's PostMatchHook
type Service struct {
	DB     store.TxRunner
	Audits repokit.Binder[repo.Storage]
	Txs    txdom.ReaderPort
	Cfg    Config

	mu       sync.RWMutex
	handlers map[domain.Kind]domain.Handler

	retry *resilience.Runner
	log   *logger.Logger
}

// New constructs the actions service. mark_verified is always wired
// internally against the transactions port; everything else registers via
// RegisterHandler or falls back to simulation
func New(
	db store.TxRunner,
	audits repokit.Binder[repo.Storage],
	txs txdom.ReaderPort,
	cfg Config,
) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		DB:       db,
		Audits:   repokit.MustBind(audits, "actions"),
		Txs:      txs,
		Cfg:      cfg,
		handlers: make(map[domain.Kind]domain.Handler),
		retry:    resilience.NewRunner(cfg.Retry),
		log:      logger.Named("actions"),
	}
	s.handlers[domain.KindMarkVerified] = domain.HandlerFunc(s.markVerified)
	return s
}

// RegisterHandler wires an outbound handler for one action kind
func (s *Service) RegisterHandler(kind domain.Kind, h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

func (s *Service) handler(kind domain.Kind) (domain.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[kind]
	return h, ok
}

// Categorize derives the action outcome from a persisted match
func (s *Service) Categorize(m matchdom.Match) domain.Outcome {
	switch m.Status {
	case "matched":
		if m.Confidence >= s.Cfg.AutoMatchThreshold && m.AlternativeCount() < s.Cfg.AmbiguousCandidates {
			return domain.OutcomeMatched
		}
		return domain.OutcomeAmbiguous
	case "review":
		return domain.OutcomeReview
	case "no_candidates":
		return domain.OutcomeUnmatched
	default:
		return domain.OutcomeRejected
	}
}

// shouldEscalate checks the escalation additives: large amount, too many
// close alternatives, or a missing / placeholder reference
func (s *Service) shouldEscalate(m matchdom.Match, email emaildom.Email) bool {
	if !s.Cfg.EscalateAmountAbove.IsZero() && email.Amount != nil &&
		email.Amount.GreaterThan(s.Cfg.EscalateAmountAbove) {
		return true
	}
	if m.AlternativeCount() >= s.Cfg.AmbiguousCandidates {
		return true
	}
	if email.Reference == nil || strings.EqualFold(strings.TrimSpace(email.Reference.Original), "N/A") {
		return true
	}
	return false
}

// AfterMatch implements the matcher's PostMatchHook
func (s *Service) AfterMatch(ctx context.Context, m matchdom.Match, email emaildom.Email, tx *txdom.Transaction) error {
	_, err := s.Dispatch(ctx, m, email, tx)
	return err
}

// Dispatch computes the action list for the match outcome and executes it
// in order. Handler failures never abort subsequent actions; the returned
// error is nil unless auditing itself is broken
func (s *Service) Dispatch(
	ctx context.Context,
	m matchdom.Match,
	email emaildom.Email,
	tx *txdom.Transaction,
) ([]domain.ActionResult, error) {
	outcome := s.Categorize(m)

	kinds := append([]domain.Kind(nil), s.Cfg.Policy[outcome]...)
	if s.shouldEscalate(m, email) && !contains(kinds, domain.KindEscalate) {
		kinds = append(kinds, domain.KindEscalate)
	}
	if len(kinds) == 0 {
		s.log.Debug().Str("match_id", m.ID).Str("outcome", string(outcome)).Msg("no actions for outcome")
		return nil, nil
	}

	payload := s.payload(m, email, tx, outcome)
	results := make([]domain.ActionResult, 0, len(kinds))
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.runOne(ctx, kind, payload, m))
	}

	s.log.Info().
		Str("match_id", m.ID).
		Str("outcome", string(outcome)).
		Int("actions", len(results)).
		Msg("actions dispatched")
	return results, nil
}

func (s *Service) payload(m matchdom.Match, email emaildom.Email, tx *txdom.Transaction, outcome domain.Outcome) domain.Payload {
	meta := map[string]any{"message_id": email.MessageID}
	if tx != nil {
		meta["external_id"] = tx.ExternalID
		meta["source"] = tx.Source
	}
	return domain.Payload{
		Event:         "match_completed",
		MatchID:       m.ID,
		EmailID:       m.EmailID,
		TransactionID: m.TransactionID,
		Status:        m.Status,
		Confidence:    m.Confidence,
		Outcome:       outcome,
		Metadata:      meta,
	}
}

// runOne appends a pending audit, executes the handler (with retries when
// the kind is critical), and patches the audit with the outcome
func (s *Service) runOne(
	ctx context.Context,
	kind domain.Kind,
	payload domain.Payload,
	m matchdom.Match,
) domain.ActionResult {
	started := time.Now().UTC()
	blob, _ := json.Marshal(payload)

	audit := domain.Audit{
		ID:            uuid.NewString(),
		Kind:          kind,
		MatchID:       m.ID,
		EmailID:       m.EmailID,
		TransactionID: m.TransactionID,
		MatchStatus:   m.Status,
		Confidence:    m.Confidence,
		Actor:         s.Cfg.Actor,
		StartedAt:     started,
		Status:        domain.AuditPending,
		Payload:       blob,
	}
	if err := s.Audits.Bind(s.DB).Append(ctx, audit); err != nil {
		s.log.Error().Err(err).Str("match_id", m.ID).Str("kind", string(kind)).Msg("audit append failed")
		return domain.ActionResult{Kind: kind, Status: domain.AuditFailed, Error: err.Error()}
	}

	s.markStatus(ctx, audit.ID, domain.AuditRunning, 0)
	res, retries := s.execute(ctx, kind, payload, audit.ID)

	ended := time.Now().UTC()
	result := domain.ActionResult{
		Kind:     kind,
		Status:   res.Status,
		Outcome:  res.Outcome,
		Message:  res.Message,
		Duration: ended.Sub(started),
		Retries:  retries,
	}
	patch := repo.Patch{
		Status:     res.Status,
		Outcome:    res.Outcome,
		Message:    str.Truncate(res.Message, 500),
		EndedAt:    ended,
		DurationMs: ended.Sub(started).Milliseconds(),
		RetryCount: retries,
	}
	if res.Status == domain.AuditFailed {
		result.Error = res.Message
		patch.Error = str.Truncate(res.Message, 500)
	}
	if err := s.Audits.Bind(s.DB).Update(ctx, audit.ID, patch); err != nil {
		s.log.Error().Err(err).Str("audit_id", audit.ID).Msg("audit update failed")
	}
	return result
}

// markStatus records an intermediate audit status; a failed write only logs,
// the action itself proceeds
func (s *Service) markStatus(ctx context.Context, auditID, status string, retries int) {
	if err := s.Audits.Bind(s.DB).Update(ctx, auditID, repo.Patch{Status: status, RetryCount: retries}); err != nil {
		s.log.Warn().Err(err).Str("audit_id", auditID).Str("status", status).Msg("audit status update failed")
	}
}

// execute runs the handler once, or under the retry runner for critical
// kinds. Unregistered kinds simulate success in dev mode and fail otherwise
func (s *Service) execute(ctx context.Context, kind domain.Kind, payload domain.Payload, auditID string) (domain.HandlerResult, int) {
	h, ok := s.handler(kind)
	if !ok {
		if s.Cfg.Simulate {
			return domain.HandlerResult{
				Status:  domain.AuditSuccess,
				Outcome: string(kind) + "_simulated",
				Message: "handler unconfigured, simulated in dev mode",
			}, 0
		}
		return domain.HandlerResult{
			Status:  domain.AuditFailed,
			Outcome: "unconfigured",
			Message: "no handler registered for " + string(kind),
		}, 0
	}

	run := func(ctx context.Context) (domain.HandlerResult, error) {
		hctx, cancel := context.WithTimeout(ctx, s.Cfg.ActionTimeout)
		defer cancel()
		return h.Run(hctx, payload)
	}

	if !kind.Critical() {
		res, err := run(ctx)
		if err != nil {
			return domain.HandlerResult{Status: domain.AuditFailed, Outcome: "error", Message: err.Error()}, 0
		}
		return res, 0
	}

	var res domain.HandlerResult
	attempts := 0
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			s.markStatus(ctx, auditID, domain.AuditRetrying, attempts-1)
		}
		var herr error
		res, herr = run(ctx)
		return herr
	})
	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}
	if err != nil {
		return domain.HandlerResult{Status: domain.AuditFailed, Outcome: "error", Message: err.Error()}, retries
	}
	return res, retries
}

// markVerified is the built-in critical handler backing the verified flag
func (s *Service) markVerified(ctx context.Context, p domain.Payload) (domain.HandlerResult, error) {
	if p.TransactionID == nil {
		return domain.HandlerResult{
			Status:  domain.AuditSkipped,
			Outcome: "no_transaction",
			Message: "match has no transaction to verify",
		}, nil
	}
	if err := s.Txs.MarkVerified(ctx, *p.TransactionID); err != nil {
		return domain.HandlerResult{}, err
	}
	return domain.HandlerResult{Status: domain.AuditSuccess, Outcome: "transaction_verified"}, nil
}

// ListForMatch returns the audit trail for one match
func (s *Service) ListForMatch(ctx context.Context, matchID string) ([]domain.Audit, error) {
	return s.Audits.Bind(s.DB).ListForMatch(ctx, matchID)
}

// CleanupAudits deletes audit rows older than retentionDays
func (s *Service) CleanupAudits(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	return s.Audits.Bind(s.DB).DeleteBefore(ctx, cutoff)
}

func contains(ks []domain.Kind, k domain.Kind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}
