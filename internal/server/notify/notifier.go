package notify

import (
	"context"

	"github.com/dmitrijs2005/rentdesk/internal/logging"
)

// Notifier is the fire-and-forget notification contract used by the
// services. Each method reports whether the message was accepted for
// delivery; callers never fail because of it.
type Notifier interface {
	SendWelcome(ctx context.Context, to, lang string) bool
	SendVerification(ctx context.Context, to, link, lang string) bool
	SendLicenseUploaded(ctx context.Context, adminTo, userEmail, userID, lang string) bool
	SendLicenseApproved(ctx context.Context, to, lang string) bool
	SendLicenseRejected(ctx context.Context, to, reason, lang string) bool
}

type enqueuer interface {
	Enqueue(msg Message) bool
}

// MailNotifier renders localized templates and enqueues them.
type MailNotifier struct {
	queue       enqueuer
	baseURL     string
	defaultLang string
	logger      logging.Logger
}

func NewMailNotifier(queue enqueuer, baseURL, defaultLang string, logger logging.Logger) *MailNotifier {
	return &MailNotifier{queue: queue, baseURL: baseURL, defaultLang: defaultLang, logger: logger}
}

func (n *MailNotifier) send(ctx context.Context, kind Kind, to, lang string, data templateData) bool {
	if to == "" {
		n.logger.Warn(ctx, "notification without recipient skipped", "kind", string(kind))
		return false
	}

	data.BaseURL = n.baseURL
	subject, body, err := render(kind, lang, n.defaultLang, data)
	if err != nil {
		n.logger.Error(ctx, "failed to render notification", "kind", string(kind), "error", err)
		return false
	}

	return n.queue.Enqueue(Message{Kind: kind, To: to, Subject: subject, Body: body})
}

func (n *MailNotifier) SendWelcome(ctx context.Context, to, lang string) bool {
	return n.send(ctx, KindWelcome, to, lang, templateData{Email: to})
}

func (n *MailNotifier) SendVerification(ctx context.Context, to, link, lang string) bool {
	return n.send(ctx, KindVerification, to, lang, templateData{Email: to, Link: link})
}

func (n *MailNotifier) SendLicenseUploaded(ctx context.Context, adminTo, userEmail, userID, lang string) bool {
	return n.send(ctx, KindLicenseUploaded, adminTo, lang, templateData{UserEmail: userEmail, UserID: userID})
}

func (n *MailNotifier) SendLicenseApproved(ctx context.Context, to, lang string) bool {
	return n.send(ctx, KindLicenseApproved, to, lang, templateData{Email: to})
}

func (n *MailNotifier) SendLicenseRejected(ctx context.Context, to, reason, lang string) bool {
	return n.send(ctx, KindLicenseRejected, to, lang, templateData{Email: to, Reason: reason})
}
