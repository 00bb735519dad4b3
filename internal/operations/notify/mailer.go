package notify

import (
	"CopyTradeBot/config"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"go.uber.org/zap"
)

// InvoiceEmail carries what the invoice message needs to render.
type InvoiceEmail struct {
	ToEmail    string
	ToName     string
	Quarter    string
	Amount     string
	PaymentURL string
}

// ErrNotDelivered is returned by mailers that render but never send.
var ErrNotDelivered = errors.New("email not delivered")

type Mailer interface {
	SendInvoiceEmail(ctx context.Context, email InvoiceEmail) error
}

// NewMailer picks Mailgun when fully configured and falls back to logging.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) Mailer {
	logger = logger.With(zap.String("component", "mailer"))
	provider := strings.ToLower(cfg.Provider)

	if provider == "mailgun" {
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.SenderEmail == "" {
			logger.Warn("Mailgun configuration incomplete, falling back to log mailer")
			return &LogMailer{logger: logger}
		}
		mg := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
		logger.Info("Mailgun client initialized", zap.String("domain", cfg.MailgunDomain))
		return &MailgunMailer{
			mg:          mg,
			senderEmail: cfg.SenderEmail,
			senderName:  cfg.SenderName,
			logger:      logger,
		}
	}
	return &LogMailer{logger: logger}
}

type MailgunMailer struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	logger      *zap.Logger
}

func (m *MailgunMailer) SendInvoiceEmail(ctx context.Context, email InvoiceEmail) error {
	from := fmt.Sprintf("%s <%s>", m.senderName, m.senderEmail)
	subject := fmt.Sprintf("Your %s copy trading invoice", email.Quarter)
	body := renderInvoice(email)

	message := m.mg.NewMessage(from, subject, body, email.ToEmail)
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	resp, id, err := m.mg.Send(ctx, message)
	if err != nil {
		m.logger.Error("Failed to send invoice email",
			zap.String("to", email.ToEmail), zap.String("mailgun_resp", resp), zap.Error(err))
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	m.logger.Info("Invoice email sent", zap.String("to", email.ToEmail), zap.String("id", id))
	return nil
}

// LogMailer writes the rendered invoice to the log instead of sending it.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendInvoiceEmail(_ context.Context, email InvoiceEmail) error {
	m.logger.Info("Invoice email (not sent)",
		zap.String("to", email.ToEmail),
		zap.String("quarter", email.Quarter),
		zap.String("amount", email.Amount),
		zap.String("payment_url", email.PaymentURL))
	return ErrNotDelivered
}

func renderInvoice(email InvoiceEmail) string {
	name := email.ToName
	if name == "" {
		name = email.ToEmail
	}
	return fmt.Sprintf(`Hi %s,

Your maintenance fee for %s is %s USD.

Pay here: %s

Thanks`, name, email.Quarter, email.Amount, email.PaymentURL)
}
