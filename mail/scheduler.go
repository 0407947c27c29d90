package mail

import (
	"context"
	"fmt"
	"time"

	"invoicing-backend/documents"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	deliverTimeout    = 2 * time.Minute
	maxDeliverElapsed = 90 * time.Second
)

// Scheduler queues deferred invoice emails. Delivery is strictly best effort:
// the account's auto-send preference is honored at send time, not at schedule
// time, and every failure path ends in a log line rather than an error return.
type Scheduler struct {
	db     *gorm.DB
	mailer Mailer
	log    *zap.Logger

	// afterFunc is swapped in tests to run deliveries synchronously.
	afterFunc func(time.Duration, func()) *time.Timer
}

func NewScheduler(db *gorm.DB, mailer Mailer, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{db: db, mailer: mailer, log: log, afterFunc: time.AfterFunc}
}

// ScheduleInvoiceEmail queues delivery of the invoice after the given delay.
func (s *Scheduler) ScheduleInvoiceEmail(accountID string, invoiceID uint, delay time.Duration) {
	s.afterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := s.deliver(ctx, accountID, invoiceID); err != nil {
			s.log.Warn("invoice email not delivered",
				zap.String("account_id", accountID),
				zap.Uint("invoice_id", invoiceID),
				zap.Error(err))
		}
	})
}

func (s *Scheduler) deliver(ctx context.Context, accountID string, invoiceID uint) error {
	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if !account.AutoSendInvoice {
		s.log.Info("auto-send disabled, skipping invoice email",
			zap.String("account_id", accountID),
			zap.Uint("invoice_id", invoiceID))
		return nil
	}
	if account.SenderEmail == "" {
		return fmt.Errorf("account has no sender email configured")
	}

	var invoice models.Invoice
	err := s.db.WithContext(ctx).Preload("Items").
		Where("account_id = ?", accountID).
		First(&invoice, invoiceID).Error
	if err != nil {
		return fmt.Errorf("load invoice: %w", err)
	}
	if invoice.BillToEmail == "" {
		s.log.Info("invoice has no recipient email, skipping",
			zap.Uint("invoice_id", invoiceID))
		return nil
	}

	pdf, err := documents.RenderInvoicePDF(&invoice)
	if err != nil {
		return fmt.Errorf("render invoice pdf: %w", err)
	}

	msg := InvoiceEmail{
		From:       account.SenderEmail,
		To:         invoice.BillToEmail,
		Subject:    fmt.Sprintf("Invoice %s", invoice.InvoiceNumber),
		HTML:       invoiceHTML(&invoice),
		PDF:        pdf,
		Attachment: fmt.Sprintf("%s.pdf", invoice.InvoiceNumber),
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxDeliverElapsed
	return backoff.Retry(func() error {
		return s.mailer.SendInvoice(ctx, msg)
	}, backoff.WithContext(policy, ctx))
}

func invoiceHTML(invoice *models.Invoice) string {
	symbol := utils.CurrencySymbol(invoice.Currency)
	note := invoice.ThankYouNote
	if note == "" {
		note = "Thank you for your business!"
	}
	return fmt.Sprintf(
		"<p>Hello %s,</p><p>Your invoice <strong>%s</strong> over <strong>%s%s</strong> is attached.</p><p>%s</p>",
		invoice.BillTo, invoice.InvoiceNumber, symbol, invoice.Total.StringFixed(2), note)
}
