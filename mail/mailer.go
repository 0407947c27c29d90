package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// InvoiceEmail is one outbound invoice notification with the rendered PDF
// attached.
type InvoiceEmail struct {
	From       string
	To         string
	Subject    string
	HTML       string
	PDF        []byte
	Attachment string
}

// Mailer delivers invoice emails. The concrete implementation talks to
// Resend; tests substitute a recorder.
type Mailer interface {
	SendInvoice(ctx context.Context, msg InvoiceEmail) error
}

type ResendMailer struct {
	client *resend.Client
}

func NewResendMailer(apiKey string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) SendInvoice(ctx context.Context, msg InvoiceEmail) error {
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if len(msg.PDF) > 0 {
		params.Attachments = []*resend.Attachment{{
			Filename: msg.Attachment,
			Content:  msg.PDF,
		}}
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}
	return nil
}
