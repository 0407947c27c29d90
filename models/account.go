package models

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account is the tenant scope: every invoice, subscription and payment intent
// belongs to exactly one account.
type Account struct {
	Id        string `json:"id" gorm:"primaryKey"`
	FullName  string `json:"full_name"`
	Email     string `json:"email" gorm:"unique;not null"`
	Password  []byte `json:"-" gorm:"not null"`

	// Stripe credentials. The API key is stored AES-256-CBC encrypted
	// (utils.EncryptSecret); the webhook secret may be empty, which puts the
	// intake endpoint into degraded-trust mode for this account.
	StripeAPIKey        string `json:"-"`
	StripeWebhookSecret string `json:"-"`

	// Invoice email settings.
	SenderEmail     string `json:"sender_email"`
	AutoSendInvoice bool   `json:"auto_send_invoice"`
	ThankYouNote    string `json:"thankyou_note"`

	// Billing contact copied from the default payment method on checkout
	// completion. Kept as JSON, the shape follows the processor's address object.
	BillingName    string         `json:"billing_name"`
	BillingPhone   string         `json:"billing_phone"`
	BillingAddress datatypes.JSON `json:"billing_address" gorm:"type:jsonb"`
	PaymentMethod  datatypes.JSON `json:"-" gorm:"type:jsonb"`
}

func (account *Account) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	account.Id = uuid.NewString()
	return
}

func (account *Account) SetPassword(password string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), 12)
	account.Password = hashedPassword
}

func (account *Account) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(account.Password, []byte(password))
}
