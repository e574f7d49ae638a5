package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"NGN", "NGN"},
		{"ngn", "NGN"},
		{"naira", "NGN"},
		{"₦", "NGN"},
		{"USD", "USD"},
		{"$", "USD"},
		{"dollars", "USD"},
		{"£", "GBP"},
		{"euro", "EUR"},
		{"", ""},
		{"  ", ""},
		{"XYZ", "NGN"}, // unknown non-empty falls back to the default
	}
	for _, tc := range cases {
		if got := Currency(tc.in); got != tc.want {
			t.Fatalf("Currency(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCurrencyIdempotent(t *testing.T) {
	for _, in := range []string{"NGN", "naira", "$", "XYZ", ""} {
		once := Currency(in)
		if twice := Currency(once); twice != once {
			t.Fatalf("Currency not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want string // RFC3339 UTC, "" means no parse
	}{
		{"2026-03-01T14:30:00Z", "2026-03-01T14:30:00Z"},
		{"2026-03-01T14:30:00+01:00", "2026-03-01T13:30:00Z"},
		{"2026-03-01T14:30", "2026-03-01T14:30:00Z"},
		{"01/03/2026 14:30:00", "2026-03-01T14:30:00Z"},
		{"01-03-2026 14:30", "2026-03-01T14:30:00Z"},
		{"2026-03-01 14:30:05", "2026-03-01T14:30:05Z"},
		{"01 Mar 2026 14:30", "2026-03-01T14:30:00Z"},
		{"", ""},
		{"yesterday", ""},
		{"14:30", ""},
	}
	for _, tc := range cases {
		got, ok := Timestamp(tc.in)
		if tc.want == "" {
			if ok {
				t.Fatalf("Timestamp(%q) parsed to %v, want failure", tc.in, got)
			}
			continue
		}
		if !ok {
			t.Fatalf("Timestamp(%q) failed, want %s", tc.in, tc.want)
		}
		want, _ := time.Parse(time.RFC3339, tc.want)
		if !got.Equal(want) {
			t.Fatalf("Timestamp(%q) = %v, want %v", tc.in, got, want)
		}
		if got.Location() != time.UTC {
			t.Fatalf("Timestamp(%q) not UTC: %v", tc.in, got.Location())
		}
	}
}

func TestReference(t *testing.T) {
	b := Reference("  NIP/GTB/00123 transfer  from JOHN ")
	if b == nil {
		t.Fatal("Reference returned nil")
	}
	if b.Cleaned != "NIP/GTB/00123 transfer from JOHN" {
		t.Fatalf("Cleaned = %q", b.Cleaned)
	}
	if b.AlphaNum != "NIPGTB00123TRANSFERFROMJOHN" {
		t.Fatalf("AlphaNum = %q", b.AlphaNum)
	}
	want := []string{"NIP", "GTB", "00123", "TRANSFER", "FROM", "JOHN"}
	if !reflect.DeepEqual(b.Tokens, want) {
		t.Fatalf("Tokens = %v, want %v", b.Tokens, want)
	}
}

func TestReferenceShortTokensDropped(t *testing.T) {
	b := Reference("TX a1 of REF9")
	if b == nil {
		t.Fatal("Reference returned nil")
	}
	want := []string{"REF9"}
	if !reflect.DeepEqual(b.Tokens, want) {
		t.Fatalf("Tokens = %v, want %v (length < 3 dropped)", b.Tokens, want)
	}
}

func TestReferenceBlank(t *testing.T) {
	if b := Reference(""); b != nil {
		t.Fatalf("Reference(\"\") = %+v, want nil", b)
	}
	if b := Reference("   "); b != nil {
		t.Fatalf("Reference(blank) = %+v, want nil", b)
	}
}

func TestSanitizeStripsInvisibles(t *testing.T) {
	in := "REF\u200b123\ufeff"
	if got := Sanitize(in); got != "REF123" {
		t.Fatalf("Sanitize(%q) = %q, want REF123", in, got)
	}
}

func TestKey(t *testing.T) {
	amt := decimal.RequireFromString("1234.56")
	at := time.Date(2026, 3, 1, 14, 45, 12, 0, time.UTC)
	ref := Reference("NIP/GTB/00123 transfer extra words here")

	k := Key(&amt, "NGN", &at, ref, "0123456789")
	if k == nil {
		t.Fatal("Key returned nil")
	}
	// first three tokens, sorted
	want := "1234.56|NGN|2026-03-01-14|00123_GTB_NIP|6789"
	if got := k.String(); got != want {
		t.Fatalf("Key = %q, want %q", got, want)
	}
}

func TestKeyDeterministic(t *testing.T) {
	amt := decimal.RequireFromString("500")
	at := time.Date(2026, 3, 1, 14, 59, 59, 0, time.UTC)
	ref := Reference("ALPHA BETA")

	a := Key(&amt, "NGN", &at, ref, "")
	b := Key(&amt, "NGN", &at, ref, "")
	if a.String() != b.String() {
		t.Fatalf("Key not deterministic: %q vs %q", a.String(), b.String())
	}
	if a.AmountString != "500.00" {
		t.Fatalf("AmountString = %q, want scale-2 rendering", a.AmountString)
	}
}

func TestKeyMissingComponents(t *testing.T) {
	amt := decimal.RequireFromString("10.00")
	at := time.Now().UTC()

	if k := Key(nil, "NGN", &at, nil, ""); k != nil {
		t.Fatalf("Key without amount = %+v, want nil", k)
	}
	if k := Key(&amt, "", &at, nil, ""); k != nil {
		t.Fatalf("Key without currency = %+v, want nil", k)
	}
	if k := Key(&amt, "NGN", nil, nil, ""); k != nil {
		t.Fatalf("Key without instant = %+v, want nil", k)
	}
}

func TestKeyHourBucket(t *testing.T) {
	amt := decimal.RequireFromString("10.00")
	early := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 1, 14, 59, 59, 0, time.UTC)
	next := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)

	a := Key(&amt, "NGN", &early, nil, "")
	b := Key(&amt, "NGN", &late, nil, "")
	c := Key(&amt, "NGN", &next, nil, "")
	if a.DateBucket != b.DateBucket {
		t.Fatalf("same hour split: %q vs %q", a.DateBucket, b.DateBucket)
	}
	if b.DateBucket == c.DateBucket {
		t.Fatalf("adjacent hours merged: %q", c.DateBucket)
	}
}

func TestEnrich(t *testing.T) {
	cases := []struct {
		name            string
		email, sender   string
		subject         string
		wantCode        string
		wantConfidence  float64
	}{
		{"domain match", "alerts@gtbank.com", "", "", "GTB", 0.95},
		{"subdomain match", "noreply@mail.gtbank.com", "", "", "GTB", 0.95},
		{"name match", "noreply@example.com", "Guaranty Trust Bank", "", "GTB", 0.85},
		{"subject match", "noreply@example.com", "", "Zenith Bank credit alert", "ZEN", 0.75},
		{"domain beats subject", "alerts@ubagroup.com", "", "Zenith Bank alert", "UBA", 0.95},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := Enrich(tc.email, tc.sender, tc.subject)
			if e == nil {
				t.Fatal("Enrich returned nil")
			}
			if e.BankCode != tc.wantCode {
				t.Fatalf("BankCode = %q, want %q", e.BankCode, tc.wantCode)
			}
			if e.Confidence != tc.wantConfidence {
				t.Fatalf("Confidence = %v, want %v", e.Confidence, tc.wantConfidence)
			}
		})
	}

	if e := Enrich("someone@example.com", "A Person", "hello"); e != nil {
		t.Fatalf("Enrich on non-bank sender = %+v, want nil", e)
	}
}
