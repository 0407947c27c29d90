package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentIntent is a succeeded payment intent as reported by the processor.
// Intents are immutable once succeeded, so the upsert is a plain overwrite.
type PaymentIntent struct {
	ID        string `json:"id" gorm:"primaryKey"`
	AccountID string `json:"-" gorm:"index;not null"`

	Amount   decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)"`
	Currency string          `json:"currency" gorm:"type:VARCHAR(3)"`
	Status   string          `json:"status" gorm:"type:VARCHAR(30)"`

	StripeCustomerID string `json:"customer"`
	PaymentMethodID  string `json:"payment_method"`
	ReceiptEmail     string `json:"receipt_email"`

	StripeEventID string         `json:"-"`
	Metadata      datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
