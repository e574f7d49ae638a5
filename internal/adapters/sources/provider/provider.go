// Package provider implements the transaction source port against the
// payment provider's REST API, paging through the list endpoint
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	perr "alertrecon/internal/platform/errors"
	txdom "alertrecon/internal/services/transactions/domain"
)

// Config for the provider client
type Config struct {
	BaseURL string
	APIKey  string
	Source  string // label stored with every transaction, e.g. "provider"
	Timeout time.Duration
}

// Client implements txdom.SourcePort
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a provider client
func New(cfg Config) *Client {
	if cfg.Source == "" {
		cfg.Source = "provider"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Label implements txdom.SourcePort
func (c *Client) Label() string { return c.cfg.Source }

// record is the provider wire shape
type record struct {
	ID               string `json:"id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	OccurredAt       string `json:"occurred_at"`
	Status           string `json:"status"`
	Reference        string `json:"reference"`
	Description      string `json:"description"`
	AccountReference string `json:"account_reference"`
	CounterpartyName string `json:"counterparty_name"`
	CounterpartyMail string `json:"counterparty_email"`
}

func (r record) toRaw() txdom.Raw {
	return txdom.Raw{
		ExternalID:       r.ID,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Instant:          r.OccurredAt,
		Status:           r.Status,
		Reference:        r.Reference,
		Description:      r.Description,
		AccountRef:       r.AccountReference,
		CounterpartyName: r.CounterpartyName,
		CounterpartyMail: r.CounterpartyMail,
	}
}

type listResponse struct {
	Data    []record `json:"data"`
	HasMore bool     `json:"has_more"`
}

// Fetch implements txdom.SourcePort. limit and offset map straight onto the
// provider's pagination parameters; the poll service drives the paging
func (c *Client) Fetch(ctx context.Context, since, until time.Time, limit, offset int) ([]txdom.Raw, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("until", until.UTC().Format(time.RFC3339))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var body listResponse
	if err := c.get(ctx, "/transactions?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	out := make([]txdom.Raw, 0, len(body.Data))
	for _, r := range body.Data {
		out = append(out, r.toRaw())
	}
	return out, nil
}

// ByID implements txdom.SourcePort
func (c *Client) ByID(ctx context.Context, id string) (*txdom.Raw, error) {
	var r record
	if err := c.get(ctx, "/transactions/"+url.PathEscape(id), &r); err != nil {
		return nil, err
	}
	raw := r.toRaw()
	return &raw, nil
}

// Validate implements txdom.SourcePort
func (c *Client) Validate(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// get issues a GET and classifies failures: 4xx persistent, 5xx transient
func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "provider request")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "provider unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return perr.Unavailablef("provider returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return perr.ErrNotFound
	case resp.StatusCode >= 400:
		return perr.Upstreamf("provider returned %d", resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, fmt.Sprintf("decode provider %s", path))
	}
	return nil
}
