// Package service implements transaction polling: fetch, normalization and
// idempotent storage keyed by (source, external_id)
package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/money"
	"alertrecon/internal/core/normalize"
	"alertrecon/internal/modkit/repokit"
	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/platform/store"
	"alertrecon/internal/services/transactions/domain"
	"alertrecon/internal/services/transactions/repo"
)

// Config for the transactions service
type Config struct {
	Retry        resilience.RetryConfig
	Breaker      resilience.BreakerConfig
	FetchTimeout time.Duration
}

// Service implements domain.PollPort and domain.ReaderPort
type Service struct {
	DB     store.TxRunner
	Binder repokit.Binder[repo.Storage]
	Source domain.SourcePort
	Cfg    Config

	retry   *resilience.Runner
	breaker *resilience.Breaker
	log     *logger.Logger
}

// New constructs the transactions service. One breaker per source instance
func New(
	db store.TxRunner,
	binder repokit.Binder[repo.Storage],
	source domain.SourcePort,
	cfg Config,
) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Service{
		DB:      db,
		Binder:  repokit.MustBind(binder, "transactions"),
		Source:  source,
		Cfg:     cfg,
		retry:   resilience.NewRunner(cfg.Retry),
		breaker: resilience.NewBreaker(cfg.Breaker),
		log:     logger.Named("transactions"),
	}
}

// BreakerState exposes the source breaker state for status reporting
func (s *Service) BreakerState() resilience.BreakerState { return s.breaker.State() }

// PollBatch fetches one batch from the provider and stores survivors.
// Per-record normalization failures count toward Failed and never abort
// the batch
func (s *Service) PollBatch(ctx context.Context, since, until time.Time, limit int) (domain.BatchStats, error) {
	var stats domain.BatchStats

	var raws []domain.Raw
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.retry.Do(ctx, func(ctx context.Context) error {
			fctx, cancel := context.WithTimeout(ctx, s.Cfg.FetchTimeout)
			defer cancel()
			var ferr error
			raws, ferr = s.Source.Fetch(fctx, since, until, limit, 0)
			return ferr
		})
	})
	if err != nil {
		return stats, perr.Wrapf(err, perr.CodeOf(err), "poll from %s", s.Source.Label())
	}
	stats.Fetched = len(raws)

	for _, raw := range raws {
		t, err := s.Normalize(raw)
		if err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Str("external_id", raw.ExternalID).Msg("transaction normalization failed")
			continue
		}

		created, err := s.upsert(ctx, t)
		if err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Str("external_id", raw.ExternalID).Msg("transaction upsert failed")
			continue
		}
		if created {
			stats.New++
			stats.Stored++
		} else {
			stats.Duplicate++
		}
	}

	s.log.Info().
		Int("fetched", stats.Fetched).
		Int("new", stats.New).
		Int("duplicate", stats.Duplicate).
		Int("failed", stats.Failed).
		Msg("transaction batch polled")
	return stats, nil
}

func (s *Service) upsert(ctx context.Context, t domain.Transaction) (bool, error) {
	var created bool
	err := s.DB.Tx(ctx, func(q store.RowQuerier) error {
		var err error
		created, err = s.Binder.Bind(q).Upsert(ctx, t)
		return err
	})
	return created, err
}

// Normalize converts a raw provider record to its canonical form.
// Amount and instant are mandatory; a record missing either is rejected
func (s *Service) Normalize(raw domain.Raw) (domain.Transaction, error) {
	if strings.TrimSpace(raw.ExternalID) == "" {
		return domain.Transaction{}, perr.InvalidArgf("transaction missing external id")
	}

	amount, ok := money.Parse(raw.Amount)
	if !ok {
		return domain.Transaction{}, perr.InvalidArgf("unparsable amount %q", raw.Amount)
	}
	instant, ok := normalize.Timestamp(raw.Instant)
	if !ok {
		return domain.Transaction{}, perr.InvalidArgf("unparsable instant %q", raw.Instant)
	}

	currency := normalize.Currency(raw.Currency)
	if currency == "" {
		currency = normalize.DefaultCurrency
	}

	t := domain.Transaction{
		Transaction: canon.Transaction{
			Source:     s.Source.Label(),
			ExternalID: strings.TrimSpace(raw.ExternalID),
			Amount:     amount,
			Currency:   currency,
			Instant:    instant,
			AccountRef: strings.TrimSpace(raw.AccountRef),

			Description:      strings.TrimSpace(raw.Description),
			CounterpartyName: strings.TrimSpace(raw.CounterpartyName),
			CounterpartyMail: strings.TrimSpace(raw.CounterpartyMail),
			Status:           strings.ToLower(strings.TrimSpace(raw.Status)),
		},
	}
	t.Reference = normalize.Reference(raw.Reference)
	t.Enrichment = normalize.Enrich(t.CounterpartyMail, t.CounterpartyName, t.Description)
	t.Key = normalize.Key(&t.Amount, t.Currency, &t.Instant, t.Reference, t.AccountRef)
	return t, nil
}

// Candidates implements domain.ReaderPort
func (s *Service) Candidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Transaction, error) {
	return s.Binder.Bind(s.DB).Candidates(ctx, q)
}

// ByExternalID implements domain.ReaderPort
func (s *Service) ByExternalID(ctx context.Context, source, externalID string) (*domain.Transaction, error) {
	return s.Binder.Bind(s.DB).ByExternalID(ctx, source, externalID)
}

// ByID fetches one transaction by row id
func (s *Service) ByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	return s.Binder.Bind(s.DB).ByID(ctx, id)
}

// MarkVerified implements domain.ReaderPort
func (s *Service) MarkVerified(ctx context.Context, id int64) error {
	return s.Binder.Bind(s.DB).MarkVerified(ctx, id)
}

// TightCandidates uses the composite-key hour bucket with a 1-hour window
func (s *Service) TightCandidates(ctx context.Context, key canon.CompositeKey) ([]domain.Transaction, error) {
	amount, err := decimal.NewFromString(key.AmountString)
	if err != nil {
		return nil, perr.InvalidArgf("bad composite key amount %q", key.AmountString)
	}
	bucket, err := time.Parse("2006-01-02-15", key.DateBucket)
	if err != nil {
		return nil, perr.InvalidArgf("bad composite key bucket %q", key.DateBucket)
	}
	return s.Binder.Bind(s.DB).CandidatesByKeyBucket(ctx, amount, key.Currency, bucket.UTC())
}
