// Package notify is the Notification Dispatcher: it renders localized mail
// and hands it to a bounded queue served by a fixed pool of workers.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/url"

	"github.com/dajohi/goemail"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
)

// Message is one rendered email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// NewTransport returns an SMTP transport when mail is configured and a
// log-only transport otherwise.
func NewTransport(cfg *config.Config, logger logging.Logger) (Transport, error) {
	if !cfg.MailEnabled() {
		logger.Warn(context.Background(), "mail is not configured, notifications will only be logged")
		return NewLogTransport(logger), nil
	}
	return NewSMTPTransport(cfg.MailHost, cfg.MailUser, cfg.MailPassword, cfg.MailFrom, cfg.MailSkipVerify)
}

type smtpSender interface {
	Send(msg *goemail.Message) error
}

// SMTPTransport sends mail over SMTPS.
type SMTPTransport struct {
	client      smtpSender
	mailName    string
	mailAddress string
}

func NewSMTPTransport(host, user, password, from string, skipVerify bool) (*SMTPTransport, error) {
	u, err := url.Parse(fmt.Sprintf("smtps://%v:%v@%v", url.QueryEscape(user), url.QueryEscape(password), host))
	if err != nil {
		return nil, err
	}

	a, err := mail.ParseAddress(from)
	if err != nil {
		return nil, err
	}

	client, err := goemail.NewSMTP(u.String(), &tls.Config{InsecureSkipVerify: skipVerify})
	if err != nil {
		return nil, err
	}

	return &SMTPTransport{client: client, mailName: a.Name, mailAddress: a.Address}, nil
}

// Send gives up waiting when ctx ends. goemail has no context support so
// the underlying send may still complete in the background.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m, err := t.buildMessage(msg)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- t.client.Send(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SMTPTransport) buildMessage(msg Message) (*goemail.Message, error) {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	m := goemail.NewMessage(t.mailAddress, msg.Subject, msg.Body)
	m.AddTo(to.Address)
	m.SetName(t.mailName)
	return m, nil
}

// LogTransport logs messages instead of delivering them.
type LogTransport struct {
	logger logging.Logger
}

func NewLogTransport(logger logging.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.Info(ctx, "simulated email", "kind", string(msg.Kind), "to", msg.To, "subject", msg.Subject)
	return nil
}
