// Package mailbox implements the email source port against a JSON-over-HTTP
// dev mailbox. IMAP wire handling stays out of scope; anything that can
// serve this small JSON surface can feed the pipeline
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	perr "alertrecon/internal/platform/errors"
	emaildom "alertrecon/internal/services/emails/domain"
)

// Config for the mailbox client
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements emaildom.SourcePort
type Client struct {
	cfg  Config
	http *http.Client
}

// New constructs a mailbox client
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Label implements emaildom.SourcePort
func (c *Client) Label() string { return "mailbox" }

// message is the dev mailbox wire shape
type message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	FromName   string    `json:"from_name"`
	Subject    string    `json:"subject"`
	BodyText   string    `json:"body_text"`
	BodyHTML   string    `json:"body_html"`
	ReceivedAt time.Time `json:"received_at"`
}

func (m message) toRaw() emaildom.Raw {
	body := m.BodyText
	if body == "" {
		// plain text preferred; HTML only as a fallback
		body = m.BodyHTML
	}
	return emaildom.Raw{
		MessageID:  m.ID,
		Sender:     m.From,
		SenderName: m.FromName,
		Subject:    m.Subject,
		Body:       body,
		Received:   m.ReceivedAt.UTC(),
	}
}

// Fetch implements emaildom.SourcePort
func (c *Client) Fetch(ctx context.Context, since, until time.Time, limit, offset int) ([]emaildom.Raw, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Set("until", until.UTC().Format(time.RFC3339))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var msgs []message
	if err := c.get(ctx, "/messages?"+q.Encode(), &msgs); err != nil {
		return nil, err
	}
	out := make([]emaildom.Raw, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.toRaw())
	}
	return out, nil
}

// ByID implements emaildom.SourcePort
func (c *Client) ByID(ctx context.Context, id string) (*emaildom.Raw, error) {
	var m message
	if err := c.get(ctx, "/messages/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	raw := m.toRaw()
	return &raw, nil
}

// Validate implements emaildom.SourcePort
func (c *Client) Validate(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// get issues a GET and classifies failures: 4xx persistent, 5xx transient
func (c *Client) get(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "mailbox request")
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "mailbox unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return perr.Unavailablef("mailbox returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return perr.ErrNotFound
	case resp.StatusCode >= 400:
		return perr.Upstreamf("mailbox returned %d", resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, fmt.Sprintf("decode mailbox %s", path))
	}
	return nil
}
