package service

import (
	"context"
	"testing"
	"time"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/services/engine/domain"
	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

type fakeIngester struct {
	stats   emaildom.BatchStats
	err     error
	deleted int64
	calls   int
}

func (f *fakeIngester) IngestBatch(context.Context, time.Time, time.Time, int) (emaildom.BatchStats, error) {
	f.calls++
	return f.stats, f.err
}

func (f *fakeIngester) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return f.deleted, nil
}

func (f *fakeIngester) BreakerState() resilience.BreakerState { return resilience.StateClosed }

type fakePoller struct {
	stats txdom.BatchStats
	err   error
}

func (f *fakePoller) PollBatch(context.Context, time.Time, time.Time, int) (txdom.BatchStats, error) {
	return f.stats, f.err
}

func (f *fakePoller) BreakerState() resilience.BreakerState { return resilience.StateClosed }

type fakeMatcher struct {
	stats       matchdom.RunStats
	err         error
	skipActions *bool
	observer    func(matchdom.Result)
}

func (f *fakeMatcher) MatchAll(_ context.Context, _ int, skipActions bool) (matchdom.RunStats, error) {
	f.skipActions = &skipActions
	if f.observer != nil {
		f.observer(matchdom.Result{Status: "auto_matched", Confidence: 0.9, Candidates: 1})
	}
	return f.stats, f.err
}

func (f *fakeMatcher) Rematch(_ context.Context, emailID int64, _ bool) (matchdom.Result, error) {
	return matchdom.Result{EmailID: emailID}, nil
}

func (f *fakeMatcher) SetObserver(fn func(matchdom.Result)) { f.observer = fn }

type fakeCleaner struct {
	retention int
}

func (f *fakeCleaner) CleanupAudits(_ context.Context, retentionDays int) (int64, error) {
	f.retention = retentionDays
	return 5, nil
}

func testConfig() domain.Config {
	c := domain.DefaultConfig()
	c.StartImmediately = false
	return c
}

func newTestEngine(em *fakeIngester, tx *fakePoller, m *fakeMatcher, cl *fakeCleaner) *Service {
	return New(testConfig(), em, tx, m, cl, nil)
}

func TestRunCycleSuccess(t *testing.T) {
	em := &fakeIngester{stats: emaildom.BatchStats{Fetched: 4, Stored: 3}}
	tx := &fakePoller{stats: txdom.BatchStats{Fetched: 6, Stored: 6}}
	m := &fakeMatcher{stats: matchdom.RunStats{Emails: 3, AutoMatched: 2, NoCandidate: 1}}
	s := newTestEngine(em, tx, m, &fakeCleaner{})

	rec, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rec.Status != domain.CycleSuccess {
		t.Fatalf("status = %q, want success", rec.Status)
	}
	if rec.CycleID == "" {
		t.Fatal("cycle id missing")
	}
	if len(rec.Phases) != 3 {
		t.Fatalf("phases = %d, want 3", len(rec.Phases))
	}
	wantPhases := []string{domain.PhaseFetchEmails, domain.PhasePollTxs, domain.PhaseMatch}
	for i, p := range rec.Phases {
		if p.Name != wantPhases[i] {
			t.Fatalf("phase[%d] = %q, want %q", i, p.Name, wantPhases[i])
		}
	}
	if rec.EmailStats.Stored != 3 || rec.TxStats.Stored != 6 || rec.MatchStats.AutoMatched != 2 {
		t.Fatalf("stats = %+v / %+v / %+v", rec.EmailStats, rec.TxStats, rec.MatchStats)
	}
	// match results observed into the cycle record
	if rec.Confidence.Count != 1 || rec.Candidates != 1 {
		t.Fatalf("observation missing: %+v", rec.Confidence)
	}
	// actions enabled by default, so the matcher must not skip them
	if m.skipActions == nil || *m.skipActions {
		t.Fatal("matcher asked to skip actions with actions enabled")
	}
}

func TestRunCyclePartialOnPhaseFailure(t *testing.T) {
	em := &fakeIngester{err: perr.Unavailablef("mailbox down")}
	tx := &fakePoller{stats: txdom.BatchStats{Stored: 2}}
	m := &fakeMatcher{}
	s := newTestEngine(em, tx, m, &fakeCleaner{})

	rec, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rec.Status != domain.CyclePartial {
		t.Fatalf("status = %q, want completed_with_errors", rec.Status)
	}
	if rec.Phases[0].Error == "" {
		t.Fatal("failing phase carries no error")
	}
	// remaining phases still ran
	if rec.TxStats.Stored != 2 {
		t.Fatalf("tx phase skipped after email failure: %+v", rec.TxStats)
	}
}

func TestRunCycleFailedWhenAllPhasesFail(t *testing.T) {
	em := &fakeIngester{err: perr.Unavailablef("down")}
	tx := &fakePoller{err: perr.Unavailablef("down")}
	m := &fakeMatcher{err: perr.DBf("down")}
	s := newTestEngine(em, tx, m, &fakeCleaner{})

	rec, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if rec.Status != domain.CycleFailed {
		t.Fatalf("status = %q, want failed", rec.Status)
	}
}

func TestRunCycleRefusesOverlap(t *testing.T) {
	s := newTestEngine(&fakeIngester{}, &fakePoller{}, &fakeMatcher{}, &fakeCleaner{})

	s.mu.Lock()
	s.cycleActive = true
	s.mu.Unlock()

	_, err := s.RunCycle(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("err = %v, want conflict while a cycle is active", err)
	}
}

func TestTriggerCycleSkippedWhileActive(t *testing.T) {
	s := newTestEngine(&fakeIngester{}, &fakePoller{}, &fakeMatcher{}, &fakeCleaner{})

	s.mu.Lock()
	s.cycleActive = true
	s.mu.Unlock()

	res := s.TriggerCycle()
	if res.Triggered || res.Reason != "poll_in_progress" {
		t.Fatalf("trigger = %+v, want skipped with poll_in_progress", res)
	}
}

func TestActionsToggleReachesMatcher(t *testing.T) {
	m := &fakeMatcher{}
	s := newTestEngine(&fakeIngester{}, &fakePoller{}, m, &fakeCleaner{})

	s.SetActionsEnabled(false)
	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if m.skipActions == nil || !*m.skipActions {
		t.Fatal("actions disabled but matcher not asked to skip them")
	}
}

func TestSetIntervalBounds(t *testing.T) {
	s := newTestEngine(&fakeIngester{}, &fakePoller{}, &fakeMatcher{}, &fakeCleaner{})

	s.SetInterval(10 * time.Second) // below the floor, ignored
	if got := s.Status().Interval; got != testConfig().Interval() {
		t.Fatalf("Interval = %v, want unchanged %v", got, testConfig().Interval())
	}

	s.SetInterval(2 * time.Minute)
	if got := s.Status().Interval; got != 2*time.Minute {
		t.Fatalf("Interval = %v, want 2m", got)
	}
}

func TestStatusSnapshot(t *testing.T) {
	s := newTestEngine(&fakeIngester{}, &fakePoller{}, &fakeMatcher{}, &fakeCleaner{})

	st := s.Status()
	if st.Running || st.CycleActive {
		t.Fatalf("status = %+v, want idle", st)
	}
	if st.Breakers["emails"] != "closed" || st.Breakers["transactions"] != "closed" {
		t.Fatalf("breakers = %+v", st.Breakers)
	}
	if st.LastCycle != nil || st.CyclesRecorded != 0 {
		t.Fatalf("status reports cycles before any ran: %+v", st)
	}

	if _, err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	st = s.Status()
	if st.LastCycle == nil || st.CyclesRecorded != 1 {
		t.Fatalf("status after a cycle = %+v", st)
	}
}

func TestCleanupAppliesRetention(t *testing.T) {
	em := &fakeIngester{deleted: 7}
	cl := &fakeCleaner{}
	s := newTestEngine(em, &fakePoller{}, &fakeMatcher{}, cl)

	audits, emails, err := s.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if audits != 5 || emails != 7 {
		t.Fatalf("cleanup = (%d, %d), want (5, 7)", audits, emails)
	}
	if cl.retention != testConfig().RetentionAuditDays {
		t.Fatalf("retention = %d, want configured %d", cl.retention, testConfig().RetentionAuditDays)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.StopGraceSeconds = 1
	s := New(cfg, &fakeIngester{}, &fakePoller{}, &fakeMatcher{}, &fakeCleaner{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !s.Status().Running {
		t.Fatal("not running after Start")
	}

	s.Stop()
	s.Stop()
	if s.Status().Running {
		t.Fatal("still running after Stop")
	}
}
