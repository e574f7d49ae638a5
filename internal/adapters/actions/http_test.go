package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/services/actions/domain"
)

func payload() domain.Payload {
	return domain.Payload{
		Event:      "match_completed",
		MatchID:    "m-1",
		EmailID:    1,
		Status:     "matched",
		Confidence: 0.92,
		Outcome:    domain.OutcomeMatched,
	}
}

func TestPosterSuccess(t *testing.T) {
	var got domain.Payload
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := NewWebhook(Endpoint{URL: srv.URL, Token: "tok"})
	res, err := h.Run(context.Background(), payload())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != domain.AuditSuccess || res.Outcome != "webhook_sent" {
		t.Fatalf("result = %+v", res)
	}
	if res.Metadata["http_status"] != http.StatusAccepted {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
	if gotAuth != "Bearer tok" || gotType != "application/json" {
		t.Fatalf("headers = (%q, %q)", gotAuth, gotType)
	}
	if got.MatchID != "m-1" || got.Outcome != domain.OutcomeMatched {
		t.Fatalf("posted payload = %+v", got)
	}
}

func TestPosterOutcomeLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cases := []struct {
		mk   func(Endpoint) domain.Handler
		want string
	}{
		{NewWebhook, "webhook_sent"},
		{NewNotifier, "external_system_notified"},
		{NewTicket, "ticket_created"},
		{NewEmailer, "email_sent"},
		{NewFlagger, "unmatched_flagged"},
		{NewEscalator, "escalated"},
	}
	for _, tc := range cases {
		res, err := tc.mk(Endpoint{URL: srv.URL}).Run(context.Background(), payload())
		if err != nil {
			t.Fatalf("%s: %v", tc.want, err)
		}
		if res.Outcome != tc.want {
			t.Fatalf("Outcome = %q, want %q", res.Outcome, tc.want)
		}
	}
}

func TestPosterServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewNotifier(Endpoint{URL: srv.URL}).Run(context.Background(), payload())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
	if !perr.Retryable(err) {
		t.Fatal("5xx not retryable")
	}
}

func TestPosterClientErrorFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewTicket(Endpoint{URL: srv.URL}).Run(context.Background(), payload())
	if !perr.IsCode(err, perr.ErrorCodeUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
	if perr.Retryable(err) {
		t.Fatal("4xx marked retryable")
	}
}
