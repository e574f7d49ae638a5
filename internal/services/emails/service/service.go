// Package service implements email ingest: fetch, pre-filter, extraction,
// canonicalization and idempotent storage
package service

import (
	"context"
	"strings"
	"time"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/money"
	"alertrecon/internal/core/normalize"
	"alertrecon/internal/modkit/repokit"
	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/platform/store"
	"alertrecon/internal/services/emails/domain"
	"alertrecon/internal/services/emails/repo"
)

// Config for the emails service
type Config struct {
	Filter       domain.FilterConfig
	Retry        resilience.RetryConfig
	Breaker      resilience.BreakerConfig
	FetchTimeout time.Duration
}

// Service implements domain.IngestPort and domain.ReaderPort
type Service struct {
	DB        store.TxRunner
	Binder    repokit.Binder[repo.Storage]
	Source    domain.SourcePort
	Extractor domain.ExtractorPort
	Cfg       Config

	retry   *resilience.Runner
	breaker *resilience.Breaker
	log     *logger.Logger
}

// New constructs the emails service. One breaker per source instance
func New(
	db store.TxRunner,
	binder repokit.Binder[repo.Storage],
	source domain.SourcePort,
	extractor domain.ExtractorPort,
	cfg Config,
) *Service {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Service{
		DB:        db,
		Binder:    repokit.MustBind(binder, "emails"),
		Source:    source,
		Extractor: extractor,
		Cfg:       cfg,
		retry:     resilience.NewRunner(cfg.Retry),
		breaker:   resilience.NewBreaker(cfg.Breaker),
		log:       logger.Named("emails"),
	}
}

// BreakerState exposes the source breaker state for status reporting
func (s *Service) BreakerState() resilience.BreakerState { return s.breaker.State() }

// IngestBatch fetches one batch from the source and stores survivors.
// Retries run inside one logical breaker call, so exhausted retries count
// as a single failure toward the breaker
func (s *Service) IngestBatch(ctx context.Context, since, until time.Time, limit int) (domain.BatchStats, error) {
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
		return stats, perr.Wrapf(err, perr.CodeOf(err), "fetch from %s", s.Source.Label())
	}
	stats.Fetched = len(raws)

	for _, raw := range raws {
		if ok, reason := PreFilter(raw, s.Cfg.Filter); !ok {
			stats.Filtered++
			s.log.Debug().Str("message_id", raw.MessageID).Str("reason", reason).Msg("email filtered")
			continue
		}

		ext, err := s.Extractor.Extract(ctx, raw)
		if err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Str("message_id", raw.MessageID).Msg("extraction failed")
			continue
		}

		email := Canonicalize(raw, ext)
		created, err := s.upsert(ctx, email)
		if err != nil {
			stats.Failed++
			s.log.Warn().Err(err).Str("message_id", raw.MessageID).Msg("email upsert failed")
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
		Int("filtered", stats.Filtered).
		Int("new", stats.New).
		Int("duplicate", stats.Duplicate).
		Int("failed", stats.Failed).
		Msg("email batch ingested")
	return stats, nil
}

func (s *Service) upsert(ctx context.Context, e domain.Email) (bool, error) {
	var created bool
	err := s.DB.Tx(ctx, func(q store.RowQuerier) error {
		var err error
		created, err = s.Binder.Bind(q).Upsert(ctx, e)
		return err
	})
	return created, err
}

// ListUnmatched implements domain.ReaderPort
func (s *Service) ListUnmatched(ctx context.Context, limit int) ([]domain.Email, error) {
	return s.Binder.Bind(s.DB).ListUnmatched(ctx, limit)
}

// ByID implements domain.ReaderPort
func (s *Service) ByID(ctx context.Context, id int64) (*domain.Email, error) {
	return s.Binder.Bind(s.DB).ByID(ctx, id)
}

// MarkProcessed implements domain.ReaderPort
func (s *Service) MarkProcessed(ctx context.Context, id int64, parseErr *string) error {
	return s.Binder.Bind(s.DB).MarkProcessed(ctx, id, parseErr)
}

// DeleteProcessedBefore removes processed emails older than cutoff
func (s *Service) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.Binder.Bind(s.DB).DeleteProcessedBefore(ctx, cutoff)
}

// PreFilter applies the cheap raw-email filters. Returns ok=false with a
// reason label when the email should be dropped without persistence
func PreFilter(raw domain.Raw, cfg domain.FilterConfig) (bool, string) {
	if len(cfg.AllowedDomains) > 0 {
		at := strings.LastIndexByte(raw.Sender, '@')
		if at < 0 {
			return false, "sender malformed"
		}
		d := strings.ToLower(raw.Sender[at+1:])
		ok := false
		for _, allowed := range cfg.AllowedDomains {
			if d == allowed || strings.HasSuffix(d, "."+allowed) {
				ok = true
				break
			}
		}
		if !ok {
			return false, "sender domain not allowed"
		}
	}

	subject := strings.ToLower(raw.Subject)
	for _, deny := range cfg.SubjectDenylist {
		if deny != "" && strings.Contains(subject, strings.ToLower(deny)) {
			return false, "subject denylisted"
		}
	}
	if len(cfg.SubjectKeywords) > 0 {
		hit := false
		for _, kw := range cfg.SubjectKeywords {
			if kw != "" && strings.Contains(subject, strings.ToLower(kw)) {
				hit = true
				break
			}
		}
		if !hit {
			return false, "subject keyword missing"
		}
	}

	if cfg.MinBodyLength > 0 && len(strings.TrimSpace(raw.Body)) < cfg.MinBodyLength {
		return false, "body too short"
	}
	return true, ""
}

// Canonicalize builds the canonical email from raw plus extracted fields.
// Pure: identical inputs always yield identical canonical records
func Canonicalize(raw domain.Raw, ext domain.Extracted) domain.Email {
	e := domain.Email{
		Email: canon.Email{
			MessageID: raw.MessageID,
			Sender:    raw.Sender,
			SenderNm:  raw.SenderName,
			Subject:   raw.Subject,
			Body:      raw.Body,
			Received:  raw.Received.UTC(),

			ExtractConfidence: ext.Confidence,
			ExtractMethod:     ext.Method,
			IsAlert:           ext.IsAlert,
		},
	}

	if amt, ok := money.Parse(ext.Amount); ok {
		e.Amount = &amt
	}
	e.Currency = normalize.Currency(ext.Currency)
	if e.Amount != nil && e.Currency == "" {
		e.Currency = normalize.DefaultCurrency
	}
	if ts, ok := normalize.Timestamp(ext.Instant); ok {
		e.Instant = &ts
	}
	e.Reference = normalize.Reference(ext.Reference)
	e.AccountRef = strings.TrimSpace(ext.Account)
	e.TxType = ext.TxType
	if e.TxType == "" {
		e.TxType = canon.TxUnknown
	}

	e.Enrichment = normalize.Enrich(raw.Sender, raw.SenderName, raw.Subject)
	e.Key = normalize.Key(e.Amount, e.Currency, e.Instant, e.Reference, e.AccountRef)
	return e
}
