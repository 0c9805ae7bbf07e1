package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"time"
)

// Transport delivers a message to a channel's destination
type Transport interface {
	Deliver(ctx context.Context, channel Channel, msg Message) error
}

// webhookTransport POSTs a formatted JSON payload to the channel target.
// It backs the slack, teams and webhook channel types, differing only in
// the formatter.
type webhookTransport struct {
	client *http.Client
	format func(Message) ([]byte, error)
}

func (t *webhookTransport) Deliver(ctx context.Context, channel Channel, msg Message) error {
	payload, err := t.format(msg)
	if err != nil {
		return fmt.Errorf("failed to format payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}
	return nil
}

// smtpTransport sends mail through the channel's SMTP settings. net/smtp has
// no context support, so cancellation only takes effect between attempts.
type smtpTransport struct{}

func (t *smtpTransport) Deliver(ctx context.Context, channel Channel, msg Message) error {
	if channel.Email == nil {
		return fmt.Errorf("channel %s has no email settings", channel.Name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	settings := channel.Email
	var auth smtp.Auth
	if settings.Username != "" {
		auth = smtp.PlainAuth("", settings.Username, settings.Password, settings.Host)
	}

	body := FormatEmail(msg, settings.From, settings.To)
	if err := smtp.SendMail(settings.Addr(), auth, settings.From, settings.To, body); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
