package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice origin values.
const (
	OriginManual          = "manual"
	OriginProcessorCharge = "processor-charge"
)

// Invoice is one billable document. Numbers are gap-free and strictly increasing
// per account (see sync.Allocator); StripeChargeID, when set, is unique per
// account and acts as the idempotency key for processor-driven invoices.
type Invoice struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	AccountID     string `json:"-" gorm:"index;not null;uniqueIndex:idx_invoices_account_number,priority:1"`
	InvoiceNumber string `json:"invoice_number" gorm:"uniqueIndex:idx_invoices_account_number,priority:2"`
	Origin        string `json:"origin" gorm:"type:VARCHAR(20);not null"`

	// Processor references. ChargeID uniqueness is enforced by a partial index,
	// see database.Migrate.
	StripeChargeID      *string `json:"stripe_charge_id,omitempty" gorm:"index"`
	StripePaymentIntent *string `json:"stripe_payment_intent,omitempty"`
	StripeCustomer      *string `json:"stripe_customer,omitempty"`

	Currency  string          `json:"currency" gorm:"type:VARCHAR(3)"`
	Total     decimal.Decimal `json:"total" gorm:"type:numeric(12,2)"`
	AmountDue decimal.Decimal `json:"amount_due" gorm:"type:numeric(12,2)"`
	Discount  string          `json:"discount"`

	// Paid flags are independent: manual bookkeeping vs. processor-confirmed.
	PaidManual    bool `json:"paid_manual"`
	PaidProcessor bool `json:"paid_processor"`

	// Bill-to block, taken from the charge's billing details or manual entry.
	BillTo             string `json:"bill_to"`
	BillToAddressLine1 string `json:"bill_to_address_line_1"`
	BillToAddressLine2 string `json:"bill_to_address_line_2"`
	BillToCity         string `json:"bill_to_city"`
	BillToState        string `json:"bill_to_state"`
	BillToPostalCode   string `json:"bill_to_postal_code"`
	BillToCountry      string `json:"bill_to_country"`
	BillToEmail        string `json:"bill_to_email"`
	BillToPhone        string `json:"bill_to_phone"`

	// Bill-from block, copied from the account's origin profile.
	BillFrom             string `json:"bill_from"`
	BillFromAddressLine1 string `json:"bill_from_address_line_1"`
	BillFromAddressLine2 string `json:"bill_from_address_line_2"`
	BillFromCity         string `json:"bill_from_city"`
	BillFromState        string `json:"bill_from_state"`
	BillFromPostalCode   string `json:"bill_from_postal_code"`
	BillFromCountry      string `json:"bill_from_country"`
	BillFromEmail        string `json:"bill_from_email"`
	BillFromPhone        string `json:"bill_from_phone"`

	Items []InvoiceItem `json:"items" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`

	ThankYouNote string     `json:"thankyou_note"`
	Edited       bool       `json:"edited"`
	DateOfIssue  *time.Time `json:"date_of_issue"`
	DateDue      *time.Time `json:"date_due"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type InvoiceItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	InvoiceID   uint            `json:"-" gorm:"index"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2)"`
	Subtotal    decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2)"`
}

// DeletedInvoice is the tombstone ledger: a row is written here before the
// invoice itself is physically removed, so numbering history survives deletion.
type DeletedInvoice struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID     string    `json:"-" gorm:"index"`
	InvoiceNumber string    `json:"invoice_number"`
	DeletedAt     time.Time `json:"deleted_at"`
}
