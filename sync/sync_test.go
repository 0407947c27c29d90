package sync

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"invoicing-backend/models"
	"invoicing-backend/payments"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDBCounter int64

// newTestDB opens a fresh in-memory database per test. The shared cache keeps
// all pooled connections on the same database; the counter keeps tests apart.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:sync_test_%d?mode=memory&cache=shared&_pragma=busy_timeout(10000)", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Account{},
		&models.CompanyProfile{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.DeletedInvoice{},
		&models.Subscription{},
		&models.CustomerLink{},
		&models.PaymentIntent{},
		&models.SyncBookmark{},
		&models.InvoiceSequence{},
	))
	// The charge-ref guard is a partial index, which AutoMigrate cannot express.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_account_charge
		 ON invoices (account_id, stripe_charge_id)
		 WHERE stripe_charge_id IS NOT NULL`).Error)
	return db
}

func seedAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	account := models.Account{
		FullName:        "Ada Lovelace",
		Email:           fmt.Sprintf("ada+%d@example.com", atomic.AddInt64(&testDBCounter, 1)),
		AutoSendInvoice: true,
		SenderEmail:     "billing@example.com",
	}
	account.SetPassword("secret")
	require.NoError(t, db.Create(&account).Error)
	return &account
}

func seedProfile(t *testing.T, db *gorm.DB, accountID string) *models.CompanyProfile {
	t.Helper()
	profile := models.CompanyProfile{
		AccountID:    accountID,
		BillFrom:     "Analytical Engines Ltd",
		AddressLine1: "12 Gower Street",
		City:         "London",
		Country:      "GB",
		Email:        "office@example.com",
		Default:      true,
	}
	require.NoError(t, db.Create(&profile).Error)
	return &profile
}

func seedCustomerLink(t *testing.T, db *gorm.DB, accountID, customerID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.CustomerLink{
		StripeCustomerID: customerID,
		AccountID:        accountID,
	}).Error)
}

func paymentsBillingContact(name, email, phone, line1 string) payments.BillingContact {
	return payments.BillingContact{
		Name:         name,
		Email:        email,
		Phone:        phone,
		AddressLine1: line1,
		City:         "Arlington",
		Country:      "US",
	}
}

func paymentsCharge(chargeID string, amount int64) payments.Charge {
	return payments.Charge{
		ID:         chargeID,
		Amount:     amount,
		Currency:   "usd",
		CustomerID: "cus_123",
		Billing:    paymentsBillingContact("Grace Hopper", "grace@example.com", "+1 555 0100", "1 Navy Way"),
		Created:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func chargeEvent(chargeID string, amount int64) ChargeSucceeded {
	return ChargeSucceeded{
		ChargeRef:        chargeID,
		PaymentIntentRef: "pi_" + chargeID,
		Amount:           amount,
		Currency:         "usd",
		CustomerRef:      "cus_123",
		Billing: paymentsBillingContact(
			"Grace Hopper", "grace@example.com", "+1 555 0100", "1 Navy Way"),
		OccurredAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		EventID:    "evt_" + chargeID,
	}
}
