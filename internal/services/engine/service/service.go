// Package service implements the periodic reconciliation orchestrator:
// a three-phase cycle (fetch emails, poll transactions, match) on a
// cancellable interval loop, with manual trigger and metrics
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/store"
	"alertrecon/internal/services/engine/domain"
	"alertrecon/internal/services/engine/metrics"
	matchdom "alertrecon/internal/services/matcher/domain"
)

// Service implements domain.OrchestratorPort
type Service struct {
	Cfg     domain.Config
	Emails  domain.EmailIngester
	Txs     domain.TxPoller
	Matcher domain.Matcher
	Cleaner domain.AuditCleaner
	CH      store.Clickhouse // optional run-record archive

	window *metrics.Window
	log    *logger.Logger

	mu          sync.Mutex
	running     bool
	cycleActive bool
	cancel      context.CancelFunc
	done        chan struct{}
	wake        chan struct{}
	nextRun     time.Time

	// runtime knobs, applied at the next cycle boundary
	knobMu         sync.Mutex
	interval       time.Duration
	actionsEnabled bool
}

// New constructs the orchestrator. cfg must already be validated
func New(
	cfg domain.Config,
	emails domain.EmailIngester,
	txs domain.TxPoller,
	matcher domain.Matcher,
	cleaner domain.AuditCleaner,
	ch store.Clickhouse,
) *Service {
	return &Service{
		Cfg:            cfg,
		Emails:         emails,
		Txs:            txs,
		Matcher:        matcher,
		Cleaner:        cleaner,
		CH:             ch,
		window:         metrics.NewWindow(cfg.MetricsWindow),
		log:            logger.Named("engine"),
		wake:           make(chan struct{}, 1),
		interval:       cfg.Interval(),
		actionsEnabled: cfg.ActionsEnabled,
	}
}

// SetInterval changes the cycle interval from the next boundary on
func (s *Service) SetInterval(d time.Duration) {
	if d < time.Minute || d > 24*time.Hour {
		return
	}
	s.knobMu.Lock()
	s.interval = d
	s.knobMu.Unlock()
}

// SetActionsEnabled toggles post-match actions from the next boundary on
func (s *Service) SetActionsEnabled(on bool) {
	s.knobMu.Lock()
	s.actionsEnabled = on
	s.knobMu.Unlock()
}

func (s *Service) knobs() (time.Duration, bool) {
	s.knobMu.Lock()
	defer s.knobMu.Unlock()
	return s.interval, s.actionsEnabled
}

// Start launches the background loop. Idempotent: a second call while
// running is a no-op
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx)

	s.log.Info().Dur("interval", s.Cfg.Interval()).Msg("orchestrator started")
	return nil
}

// Stop requests shutdown and waits up to StopGraceSeconds for an
// in-progress cycle to drain. Idempotent
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	grace := time.Duration(s.Cfg.StopGraceSeconds) * time.Second
	select {
	case <-done:
		s.log.Info().Msg("orchestrator stopped")
	case <-time.After(grace):
		s.log.Warn().Dur("grace", grace).Msg("orchestrator stop grace elapsed, abandoning cycle")
	}
}

// loop runs cycles on the interval until ctx is cancelled. No error ever
// aborts the loop; unexpected failures back off before resuming
func (s *Service) loop(ctx context.Context) {
	defer close(s.done)

	if s.Cfg.StartImmediately {
		s.safeCycle(ctx)
	}

	for {
		interval, _ := s.knobs()
		s.mu.Lock()
		s.nextRun = time.Now().UTC().Add(interval)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-time.After(interval):
		}
		if ctx.Err() != nil {
			return
		}
		s.safeCycle(ctx)
	}
}

// safeCycle runs one cycle, converting panics and unexpected errors into
// an error-backoff sleep
func (s *Service) safeCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Msg("cycle panicked")
			s.backoff(ctx)
		}
	}()
	if _, err := s.RunCycle(ctx); err != nil && !perr.IsCode(err, perr.ErrorCodeConflict) {
		s.log.Error().Err(err).Msg("cycle failed")
		s.backoff(ctx)
	}
}

func (s *Service) backoff(ctx context.Context) {
	d := time.Duration(s.Cfg.ErrorBackoffSeconds) * time.Second
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// TriggerCycle requests one immediate cycle. Returns skipped with reason
// poll_in_progress when a cycle is already running
func (s *Service) TriggerCycle() domain.TriggerResult {
	s.mu.Lock()
	if s.cycleActive {
		s.mu.Unlock()
		return domain.TriggerResult{Triggered: false, Reason: "poll_in_progress"}
	}
	running := s.running
	s.mu.Unlock()

	if running {
		select {
		case s.wake <- struct{}{}:
		default:
		}
		return domain.TriggerResult{Triggered: true}
	}

	// not running as a loop: execute one cycle in the background
	go func() {
		if _, err := s.RunCycle(context.Background()); err != nil && !perr.IsCode(err, perr.ErrorCodeConflict) {
			s.log.Error().Err(err).Msg("triggered cycle failed")
		}
	}()
	return domain.TriggerResult{Triggered: true}
}

// RunCycle executes one full cycle. Refuses to overlap a running cycle
func (s *Service) RunCycle(ctx context.Context) (domain.RunRecord, error) {
	s.mu.Lock()
	if s.cycleActive {
		s.mu.Unlock()
		return domain.RunRecord{}, perr.Conflictf("poll_in_progress")
	}
	s.cycleActive = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cycleActive = false
		s.mu.Unlock()
	}()

	cycleID := uuid.NewString()
	ctx = logger.WithCycle(ctx, cycleID)
	log := logger.C(ctx)
	started := time.Now().UTC()
	_, actionsOn := s.knobs()

	acc := metrics.NewAccumulator(cycleID, started)
	s.Matcher.SetObserver(acc.ObserveMatch)
	defer s.Matcher.SetObserver(nil)

	until := started
	since := until.Add(-time.Duration(s.Cfg.LookbackHours) * time.Hour)
	var phaseErrs int

	// phase 1: fetch emails
	t0 := time.Now()
	emailStats, err := s.Emails.IngestBatch(ctx, since, until, s.Cfg.BatchSize)
	acc.Phase(domain.PhaseFetchEmails, time.Since(t0), err)
	if err != nil {
		phaseErrs++
		log.Warn().Err(err).Msg("fetch emails phase failed")
	}
	acc.Record().EmailStats = emailStats

	// phase 2: poll transactions
	t0 = time.Now()
	txStats, err := s.Txs.PollBatch(ctx, since, until, s.Cfg.BatchSize)
	acc.Phase(domain.PhasePollTxs, time.Since(t0), err)
	if err != nil {
		phaseErrs++
		log.Warn().Err(err).Msg("poll transactions phase failed")
	}
	acc.Record().TxStats = txStats

	// phase 3: match
	t0 = time.Now()
	matchStats, err := s.Matcher.MatchAll(ctx, 0, !actionsOn)
	acc.Phase(domain.PhaseMatch, time.Since(t0), err)
	if err != nil {
		phaseErrs++
		log.Warn().Err(err).Msg("match phase failed")
	}
	acc.Record().MatchStats = matchStats

	status := domain.CycleSuccess
	if phaseErrs > 0 {
		status = domain.CyclePartial
	}
	if phaseErrs == 3 {
		status = domain.CycleFailed
	}
	rec := acc.Finish(status, time.Now().UTC())
	s.window.Push(rec)

	if err := metrics.Archive(ctx, s.CH, rec); err != nil {
		log.Warn().Err(err).Msg("run record archive failed")
	}

	log.Info().
		Str("status", string(status)).
		Int("emails_stored", emailStats.Stored).
		Int("txs_stored", txStats.Stored).
		Int("matched", matchStats.AutoMatched).
		Dur("elapsed", rec.EndedAt.Sub(rec.StartedAt)).
		Msg("cycle finished")
	return rec, nil
}

// Status implements domain.OrchestratorPort
func (s *Service) Status() domain.Status {
	s.mu.Lock()
	running, active, next := s.running, s.cycleActive, s.nextRun
	s.mu.Unlock()
	interval, actionsOn := s.knobs()

	st := domain.Status{
		Running:        running,
		CycleActive:    active,
		Interval:       interval,
		ActionsEnabled: actionsOn,
		LastCycle:      s.window.Last(),
		CyclesRecorded: s.window.Len(),
		Breakers: map[string]string{
			"emails":       s.Emails.BreakerState().String(),
			"transactions": s.Txs.BreakerState().String(),
		},
	}
	if running && !next.IsZero() {
		st.NextRunAt = &next
	}
	return st
}

// Metrics implements domain.OrchestratorPort
func (s *Service) Metrics(recent int) domain.Aggregates {
	return s.window.Aggregates(recent)
}

// Rematch re-scores one email through the matcher
func (s *Service) Rematch(ctx context.Context, emailID int64, skipActions bool) (matchdom.Result, error) {
	return s.Matcher.Rematch(ctx, emailID, skipActions)
}

// Cleanup applies the retention policy to audits and processed emails
func (s *Service) Cleanup(ctx context.Context) (int64, int64, error) {
	audits, err := s.Cleaner.CleanupAudits(ctx, s.Cfg.RetentionAuditDays)
	if err != nil {
		return 0, 0, fmt.Errorf("cleanup audits: %w", err)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.Cfg.RetentionEmailDays)
	emails, err := s.Emails.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return audits, 0, fmt.Errorf("cleanup emails: %w", err)
	}
	s.log.Info().Int64("audits", audits).Int64("emails", emails).Msg("retention cleanup done")
	return audits, emails, nil
}
