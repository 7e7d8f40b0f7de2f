package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ratecatalog/internal/catalog"
)

// EventKind distinguishes moderation events.
type EventKind string

const (
	EventSubmission EventKind = "submission"
	EventReport     EventKind = "report"
)

// Event carries the context of one moderation notification.
type Event struct {
	Kind   EventKind
	Record catalog.Record
	// Reason is the reporter's free-text reason; it is never persisted.
	Reason string
	At     time.Time
}

// Notifier receives moderation events. Delivery is best effort.
type Notifier interface {
	OnSubmission(ctx context.Context, rec catalog.Record) error
	OnReport(ctx context.Context, rec catalog.Record, reason string) error
}

// TelegramNotifier pushes moderation events through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// OnSubmission implements Notifier.
func (n *TelegramNotifier) OnSubmission(ctx context.Context, rec catalog.Record) error {
	return n.send(ctx, Event{Kind: EventSubmission, Record: rec, At: time.Now()})
}

// OnReport implements Notifier.
func (n *TelegramNotifier) OnReport(ctx context.Context, rec catalog.Record, reason string) error {
	return n.send(ctx, Event{Kind: EventReport, Record: rec, Reason: reason, At: time.Now()})
}

func (n *TelegramNotifier) send(ctx context.Context, ev Event) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(ev),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return errors.New("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("event", string(ev.Kind)).
		Str("record_id", ev.Record.ID.String()).
		Msg("notification sent (telegram)")
	return nil
}

// Multi fans an event out to several notifiers and joins their errors.
type Multi []Notifier

// OnSubmission implements Notifier.
func (m Multi) OnSubmission(ctx context.Context, rec catalog.Record) error {
	var errs []error
	for _, n := range m {
		if err := n.OnSubmission(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnReport implements Notifier.
func (m Multi) OnReport(ctx context.Context, rec catalog.Record, reason string) error {
	var errs []error
	for _, n := range m {
		if err := n.OnReport(ctx, rec, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subject is the one-line summary used for mail subjects.
func Subject(ev Event) string {
	switch ev.Kind {
	case EventReport:
		return fmt.Sprintf("[Rate Catalog] Reported: %s %s", ev.Record.InstitutionName, ev.Record.AccountType)
	default:
		if strings.HasPrefix(ev.Record.Notes, "[auto-flagged") {
			return fmt.Sprintf("[Rate Catalog] Flagged submission: %s %s", ev.Record.InstitutionName, ev.Record.AccountType)
		}
		return fmt.Sprintf("[Rate Catalog] New submission: %s %s", ev.Record.InstitutionName, ev.Record.AccountType)
	}
}

func renderMessage(ev Event) string {
	rec := ev.Record
	b := strings.Builder{}
	b.WriteString(Subject(ev))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("ID: %s\n", rec.ID))
	b.WriteString(fmt.Sprintf("Institution: %s\n", rec.InstitutionName))
	b.WriteString(fmt.Sprintf("Account: %s", rec.AccountType))
	if rec.TermMonths != nil {
		b.WriteString(fmt.Sprintf(" (%d months)", *rec.TermMonths))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("APY: %s%%\n", rec.APY.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Verifications: %d, Reports: %d\n", rec.VerificationCount, rec.ReportCount))
	if !catalog.Visible(rec) {
		b.WriteString("Hidden from public listings\n")
	}
	if rec.Location != "" {
		b.WriteString(fmt.Sprintf("Location: %s\n", rec.Location))
	}
	if ev.Reason != "" {
		b.WriteString(fmt.Sprintf("Reason: %s\n", ev.Reason))
	}
	if rec.Notes != "" {
		b.WriteString(fmt.Sprintf("Notes: %s\n", rec.Notes))
	}
	return b.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = Multi(nil)
)
