// Package actions provides the outbound HTTP action handlers: webhook
// poster, external-system notifier, ticket creator and email sender. Each
// POSTs the dispatch payload to a configured endpoint; kinds with no
// endpoint configured stay unregistered and fall back to the dispatcher's
// simulation path
package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/services/actions/domain"
)

// Endpoint configures one outbound handler
type Endpoint struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// poster is the shared JSON-POST handler behind every outbound kind
type poster struct {
	ep      Endpoint
	outcome string
	http    *http.Client
}

func newPoster(ep Endpoint, outcome string) *poster {
	if ep.Timeout <= 0 {
		ep.Timeout = 30 * time.Second
	}
	return &poster{ep: ep, outcome: outcome, http: &http.Client{Timeout: ep.Timeout}}
}

// NewWebhook posts the payload verbatim to the webhook URL
func NewWebhook(ep Endpoint) domain.Handler { return newPoster(ep, "webhook_sent") }

// NewNotifier notifies the downstream reconciliation system
func NewNotifier(ep Endpoint) domain.Handler { return newPoster(ep, "external_system_notified") }

// NewTicket opens a ticket in the configured tracker
func NewTicket(ep Endpoint) domain.Handler { return newPoster(ep, "ticket_created") }

// NewEmailer sends a notification email through the mail relay
func NewEmailer(ep Endpoint) domain.Handler { return newPoster(ep, "email_sent") }

// NewFlagger records an unmatched flag with the downstream system
func NewFlagger(ep Endpoint) domain.Handler { return newPoster(ep, "unmatched_flagged") }

// NewEscalator pages the on-call escalation endpoint
func NewEscalator(ep Endpoint) domain.Handler { return newPoster(ep, "escalated") }

// Run implements domain.Handler. 2xx succeeds; 5xx and transport failures
// surface as retryable errors so critical kinds get retried; 4xx is final
func (p *poster) Run(ctx context.Context, payload domain.Payload) (domain.HandlerResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.HandlerResult{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode action payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.ep.URL, bytes.NewReader(body))
	if err != nil {
		return domain.HandlerResult{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "action request")
	}
	req.Header.Set("Content-Type", "application/json")
	if p.ep.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.ep.Token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return domain.HandlerResult{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "action endpoint unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return domain.HandlerResult{
			Status:   domain.AuditSuccess,
			Outcome:  p.outcome,
			Message:  http.StatusText(resp.StatusCode),
			Metadata: map[string]any{"http_status": resp.StatusCode},
		}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.HandlerResult{}, perr.Unavailablef("action endpoint returned %d", resp.StatusCode)
	default:
		return domain.HandlerResult{}, perr.Upstreamf("action endpoint returned %d", resp.StatusCode)
	}
}
