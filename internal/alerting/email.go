package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"ratecatalog/internal/catalog"
	"ratecatalog/internal/config"
)

// MailSender delivers composed messages. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails moderation events to the configured recipients.
type EmailNotifier struct {
	sender MailSender
	from   string
	to     []string
	logger zerolog.Logger
}

// NewEmailNotifier builds an SMTP notifier from configuration.
func NewEmailNotifier(cfg config.EmailConfig, logger zerolog.Logger) *EmailNotifier {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	return NewEmailNotifierWithSender(dialer, cfg.From, cfg.To, logger)
}

// NewEmailNotifierWithSender wires a custom sender.
func NewEmailNotifierWithSender(sender MailSender, from string, to []string, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender: sender,
		from:   from,
		to:     to,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
}

// OnSubmission implements Notifier.
func (n *EmailNotifier) OnSubmission(ctx context.Context, rec catalog.Record) error {
	return n.send(ctx, Event{Kind: EventSubmission, Record: rec, At: time.Now()})
}

// OnReport implements Notifier.
func (n *EmailNotifier) OnReport(ctx context.Context, rec catalog.Record, reason string) error {
	return n.send(ctx, Event{Kind: EventReport, Record: rec, Reason: reason, At: time.Now()})
}

func (n *EmailNotifier) send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", Subject(ev))
	m.SetBody("text/plain", renderMessage(ev))

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().
		Str("event", string(ev.Kind)).
		Str("record_id", ev.Record.ID.String()).
		Int("recipients", len(n.to)).
		Msg("notification sent (email)")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
