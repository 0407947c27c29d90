package database

import (
	"fmt"

	"invoicing-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - Money column types (NUMERIC(12,2))
// - Partial unique index on (account_id, stripe_charge_id): the processor-side
//   idempotency key; manual invoices carry NULL and stay out of the index
// - Basic CHECK constraints
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
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
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		// --- Enforce money columns as NUMERIC(12,2) (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE invoices        ALTER COLUMN total      TYPE numeric(12,2)`,
			`ALTER TABLE invoices        ALTER COLUMN amount_due TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items   ALTER COLUMN unit_price TYPE numeric(12,2)`,
			`ALTER TABLE invoice_items   ALTER COLUMN subtotal   TYPE numeric(12,2)`,
			`ALTER TABLE payment_intents ALTER COLUMN amount     TYPE numeric(12,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Uniqueness + helpful indexes (idempotent) ---
		indexes := []string{
			// One invoice per processor charge per account; NULL charge ids
			// (manual invoices) are excluded by the partial predicate.
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_account_charge ON invoices (account_id, stripe_charge_id) WHERE stripe_charge_id IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions (stripe_customer_id)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoices'::regclass
					  AND conname  = 'chk_invoices_total_nonneg'
				) THEN
					ALTER TABLE invoices
					ADD CONSTRAINT chk_invoices_total_nonneg
					CHECK (total >= 0);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoice_sequences'::regclass
					  AND conname  = 'chk_invoice_sequences_positive'
				) THEN
					ALTER TABLE invoice_sequences
					ADD CONSTRAINT chk_invoice_sequences_positive
					CHECK (next_value >= 1);
				END IF;
			END $$;`,
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoice_items'::regclass
					  AND conname  = 'chk_invoice_items_quantity_nonneg'
				) THEN
					ALTER TABLE invoice_items
					ADD CONSTRAINT chk_invoice_items_quantity_nonneg
					CHECK (quantity >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
