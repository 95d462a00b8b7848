// Package mailer sends digest emails through the Mailgun messages API.
package mailer

import (
	"context"
	"fmt"

	mailgun "github.com/mailgun/mailgun-go/v4"
)

// Mailgun wraps a mailgun-go client with the fixed to/from pair used for all
// digests. It satisfies report.Mailer.
type Mailgun struct {
	mg   *mailgun.MailgunImpl
	to   string
	from string
}

// New builds a client for the given domain and API key. apiBase overrides the
// API endpoint (tests, EU region); empty keeps the library default.
func New(domain, apiKey, apiBase, to, from string) *Mailgun {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase != "" {
		mg.SetAPIBase(apiBase)
	}
	return &Mailgun{mg: mg, to: to, from: from}
}

// Send submits one message and returns the provider message id. The caller
// owns the timeout via ctx; a non-2xx response surfaces as an error and the
// message must be treated as not sent.
func (m *Mailgun) Send(ctx context.Context, subject, body string) (string, error) {
	msg := m.mg.NewMessage(m.from, subject, body, m.to)
	_, id, err := m.mg.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return id, nil
}
