package scorer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alertrecon/internal/core/canon"
	"alertrecon/internal/core/normalize"
	"alertrecon/internal/core/rules"
)

func alertEmail(t *testing.T, amount, ref string, instant time.Time) *canon.Email {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	at := instant
	return &canon.Email{
		Amount:     &amt,
		Currency:   "NGN",
		Reference:  normalize.Reference(ref),
		AccountRef: "0123456789",
		Instant:    &at,
		TxType:     canon.TxCredit,
	}
}

func providerTx(t *testing.T, id int64, amount, ref string, instant time.Time) *canon.Transaction {
	t.Helper()
	return &canon.Transaction{
		ID:         id,
		ExternalID: "ext-" + ref,
		Amount:     decimal.RequireFromString(amount),
		Currency:   "NGN",
		Reference:  normalize.Reference(ref),
		AccountRef: "0123456789",
		Instant:    instant,
		Status:     "successful",
	}
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	sum := DefaultWeights().Sum()
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("weight sum = %v, want 1.00", sum)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds invalid: %v", err)
	}
	bad := Thresholds{Reject: 0.6, NeedsReview: 0.5, AutoMatch: 0.8}
	if err := bad.Validate(); err == nil {
		t.Fatal("out-of-order thresholds accepted")
	}
	outside := Thresholds{Reject: 0.4, NeedsReview: 0.6, AutoMatch: 1.2}
	if err := outside.Validate(); err == nil {
		t.Fatal("threshold above 1 accepted")
	}
}

func TestStoredStatus(t *testing.T) {
	cases := map[Status]string{
		StatusAutoMatched:  "matched",
		StatusNeedsReview:  "review",
		StatusRejected:     "rejected",
		StatusNoCandidates: "no_candidates",
		Status("bogus"):    "pending",
	}
	for in, want := range cases {
		if got := StoredStatus(in); got != want {
			t.Fatalf("StoredStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecideAutoMatchOnStrongCandidate(t *testing.T) {
	// exact amount, exact reference, close timestamp: well above 0.80
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1234.56", "NIP/GTB/00123", at)
	tx := providerTx(t, 1, "1234.56", "NIP/GTB/00123", at.Add(-30*time.Minute))

	s := New(Config{})
	d := s.Decide(s.Rank(e, []*canon.Transaction{tx}))
	if d.Status != StatusAutoMatched {
		t.Fatalf("status = %q (confidence %v), want auto_matched", d.Status, d.Confidence)
	}
	if d.Best == nil || d.Best.Tx.ID != 1 {
		t.Fatalf("best = %+v, want tx 1", d.Best)
	}
	if d.Confidence < 0.80 {
		t.Fatalf("confidence = %v, want >= 0.80", d.Confidence)
	}
}

func TestDecideAutoMatchOnDelimiterVariantReference(t *testing.T) {
	// typical bank pair: the alert re-delimits and abbreviates the provider
	// reference ("GTB/TRF/2025/001" vs "GTB-TRANSFER-2025-001") but amount,
	// account and instant agree. Must clear the auto-match threshold
	at := time.Date(2025, 11, 5, 10, 30, 0, 0, time.UTC)
	amt := decimal.RequireFromString("23500.00")
	ref := normalize.Reference("GTB/TRF/2025/001")
	e := &canon.Email{
		Amount:     &amt,
		Currency:   "NGN",
		Reference:  ref,
		AccountRef: "1234567890",
		Instant:    &at,
		TxType:     canon.TxCredit,
		Key:        normalize.Key(&amt, "NGN", &at, ref, "1234567890"),
	}

	txAt := at.Add(-5 * time.Minute)
	txRef := normalize.Reference("GTB-TRANSFER-2025-001")
	tx := &canon.Transaction{
		ID:         1,
		ExternalID: "TXN001",
		Amount:     amt,
		Currency:   "NGN",
		Reference:  txRef,
		AccountRef: "1234567890",
		Instant:    txAt,
		Status:     "successful",
		Key:        normalize.Key(&amt, "NGN", &txAt, txRef, "1234567890"),
	}

	s := New(Config{})
	d := s.Decide(s.Rank(e, []*canon.Transaction{tx}))
	if d.Status != StatusAutoMatched {
		t.Fatalf("status = %q (confidence %v), want auto_matched", d.Status, d.Confidence)
	}
	if d.Confidence < 0.80 {
		t.Fatalf("confidence = %v, want >= 0.80", d.Confidence)
	}
	if d.Best == nil || d.Best.Tx.ExternalID != "TXN001" {
		t.Fatalf("best = %+v, want TXN001", d.Best)
	}
}

func TestDecideNoCandidates(t *testing.T) {
	s := New(Config{})
	d := s.Decide(nil)
	if d.Status != StatusNoCandidates {
		t.Fatalf("status = %q, want no_candidates", d.Status)
	}
	if d.Confidence != 0 || d.Best != nil {
		t.Fatalf("decision = %+v, want zero confidence and no best", d)
	}
}

func TestDecideRejectedOnWeakCandidate(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1234.56", "NIP/GTB/00123", at)
	// amount off, reference unrelated, far in time
	tx := providerTx(t, 9, "9999.00", "SOMETHING ELSE", at.Add(-47*time.Hour))

	s := New(Config{})
	d := s.Decide(s.Rank(e, []*canon.Transaction{tx}))
	if d.Status != StatusRejected {
		t.Fatalf("status = %q (confidence %v), want rejected", d.Status, d.Confidence)
	}
	if d.Notes == "" {
		t.Fatal("rejected decision carries no notes")
	}
	if len(d.Alternatives) != 1 {
		t.Fatalf("alternatives = %d, want the rejected candidate retained", len(d.Alternatives))
	}
}

func TestBoundaryLandsInHigherBucket(t *testing.T) {
	s := New(Config{})
	mk := func(total float64) []*Candidate {
		return []*Candidate{{Tx: &canon.Transaction{ID: 1}, Total: total, Rank: 1}}
	}
	if d := s.Decide(mk(0.80)); d.Status != StatusAutoMatched {
		t.Fatalf("0.80 -> %q, want auto_matched", d.Status)
	}
	if d := s.Decide(mk(0.60)); d.Status != StatusNeedsReview {
		t.Fatalf("0.60 -> %q, want needs_review", d.Status)
	}
	if d := s.Decide(mk(0.5999)); d.Status != StatusRejected {
		t.Fatalf("0.5999 -> %q, want rejected", d.Status)
	}
}

func TestRankOrdersByTotal(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1000.00", "REF ALPHA 001", at)

	strong := providerTx(t, 1, "1000.00", "REF ALPHA 001", at)
	weak := providerTx(t, 2, "1000.00", "UNRELATED", at.Add(-40*time.Hour))

	s := New(Config{})
	ranked := s.Rank(e, []*canon.Transaction{weak, strong})
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d", len(ranked))
	}
	if ranked[0].Tx.ID != 1 || ranked[1].Tx.ID != 2 {
		t.Fatalf("order = [%d %d], want [1 2]", ranked[0].Tx.ID, ranked[1].Tx.ID)
	}
	if ranked[0].Rank != 1 || ranked[1].Rank != 2 {
		t.Fatalf("ranks = [%d %d], want [1 2]", ranked[0].Rank, ranked[1].Rank)
	}
}

func TestTieBreakPrefersRecent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1000.00", "REF ALPHA 001", at)

	// identical except distance from the alert instant; both within one
	// hour so the timestamp rule itself cannot separate them
	near := providerTx(t, 1, "1000.00", "REF ALPHA 001", at.Add(-5*time.Minute))
	far := providerTx(t, 2, "1000.00", "REF ALPHA 001", at.Add(-55*time.Minute))

	s := New(Config{PreferRecent: true})
	ranked := s.Rank(e, []*canon.Transaction{far, near})
	if ranked[0].Tx.ID != 1 {
		t.Fatalf("winner = tx %d, want the nearer tx 1", ranked[0].Tx.ID)
	}
	if ranked[0].TieScore == 0 {
		t.Fatal("tie score not applied to the leading group")
	}
}

func TestTieBreakCannotCrossGroupBoundary(t *testing.T) {
	s := New(Config{MaxTieDifference: 0.05})
	ranked := []*Candidate{
		{Tx: &canon.Transaction{ID: 1}, Total: 0.90},
		{Tx: &canon.Transaction{ID: 2}, Total: 0.88},
		{Tx: &canon.Transaction{ID: 3}, Total: 0.70}, // outside the group
	}
	e := alertEmail(t, "10.00", "REF", time.Now().UTC())
	s.breakTies(e, ranked)
	if ranked[2].Tx.ID != 3 {
		t.Fatalf("non-member moved: last = tx %d, want 3", ranked[2].Tx.ID)
	}
	if ranked[2].TieScore != 0 {
		t.Fatal("tie score applied outside the leading group")
	}
}

func TestDecideAlternativesExcludeBest(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1000.00", "REF ALPHA 001", at)

	txs := []*canon.Transaction{
		providerTx(t, 1, "1000.00", "REF ALPHA 001", at),
		providerTx(t, 2, "1000.00", "REF ALPHA 002", at.Add(-2*time.Hour)),
		providerTx(t, 3, "1000.00", "REF ALPHA 003", at.Add(-3*time.Hour)),
	}
	s := New(Config{MaxAlternatives: 2})
	d := s.Decide(s.Rank(e, txs))
	if d.Status == StatusNoCandidates || d.Best == nil {
		t.Fatalf("unexpected decision %+v", d)
	}
	for _, a := range d.Alternatives {
		if a == d.Best {
			t.Fatal("best listed among alternatives")
		}
	}
	if len(d.Alternatives) > 2 {
		t.Fatalf("alternatives = %d, want <= MaxAlternatives", len(d.Alternatives))
	}
}

func TestUnweightedRulesDoNotMoveTotal(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := alertEmail(t, "1000.00", "REF ALPHA 001", at)
	tx := providerTx(t, 1, "1000.00", "REF ALPHA 001", at)

	s := New(Config{})
	c := s.Rank(e, []*canon.Transaction{tx})[0]
	var fromWeighted float64
	for _, rs := range c.Scores {
		fromWeighted += rs.Weighted
		if rs.Name == rules.NameCurrencyMatch || rs.Name == rules.NameTransactionType {
			if rs.Weight != 0 {
				t.Fatalf("%s carries weight %v, want diagnostic 0", rs.Name, rs.Weight)
			}
		}
	}
	if diff := c.Total - fromWeighted; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("total %v != sum of weighted %v", c.Total, fromWeighted)
	}
}
