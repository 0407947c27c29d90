package sync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"invoicing-backend/models"

	"gorm.io/gorm"
)

const invoiceNumberPrefix = "INV-"

// FormatInvoiceNumber renders a sequence value as INV-NNNNNN.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", invoiceNumberPrefix, seq)
}

// ParseInvoiceNumber extracts the numeric suffix from an invoice number.
func ParseInvoiceNumber(number string) (int64, error) {
	raw, ok := strings.CutPrefix(number, invoiceNumberPrefix)
	if !ok {
		return 0, fmt.Errorf("invoice number %q has no %s prefix", number, invoiceNumberPrefix)
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invoice number %q has a non-numeric suffix", number)
	}
	return seq, nil
}

// Allocator hands out per-account invoice numbers. The legacy design derived
// the next number by querying the current maximum and inserting, which loses
// under concurrent writers; here the counter itself lives in the store and is
// advanced by a single conditional write, so two allocators can never observe
// the same value.
type Allocator struct {
	db *gorm.DB
}

func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{db: db}
}

// Next returns the next invoice number for the account. When the allocator is
// built over a transaction the counter bump participates in it, so rolling the
// owning insert back returns the number to the pool; a caller seeing the
// per-account invoice-number constraint fire re-allocates (see
// Engine.applyCharge).
func (a *Allocator) Next(ctx context.Context, accountID string) (string, error) {
	var seq int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Fast path: counter row exists, bump it atomically.
		row := tx.Raw(
			`UPDATE invoice_sequences
			 SET next_value = next_value + 1
			 WHERE account_id = ?
			 RETURNING next_value`,
			accountID,
		).Scan(&seq)
		if row.Error != nil {
			return row.Error
		}
		if row.RowsAffected > 0 {
			return nil
		}

		// First allocation for this account: seed from the highest number any
		// legacy invoice already carries, so pre-counter data keeps its
		// gap-free sequence.
		seed, err := a.highestExisting(tx, accountID)
		if err != nil {
			return err
		}

		// A concurrent first allocation may race this insert; the conflict arm
		// keeps the operation atomic either way.
		return tx.Raw(
			`INSERT INTO invoice_sequences (account_id, next_value)
			 VALUES (?, ?)
			 ON CONFLICT (account_id)
			 DO UPDATE SET next_value = invoice_sequences.next_value + 1
			 RETURNING next_value`,
			accountID, seed+1,
		).Scan(&seq).Error
	})
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(seq), nil
}

func (a *Allocator) highestExisting(tx *gorm.DB, accountID string) (int64, error) {
	var last string
	err := tx.Model(&models.Invoice{}).
		Where("account_id = ?", accountID).
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &last).Error
	if err != nil {
		return 0, err
	}
	if last == "" {
		return 0, nil
	}
	seq, err := ParseInvoiceNumber(last)
	if err != nil {
		// Unparseable legacy numbers start a fresh sequence rather than
		// blocking allocation.
		return 0, nil
	}
	return seq, nil
}
