package sync

import (
	"context"
	"errors"
	"time"

	"invoicing-backend/models"
	"invoicing-backend/payments"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Report summarizes one reconciliation run.
type Report struct {
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Pages   int    `json:"pages"`
	Cursor  string `json:"cursor,omitempty"`
	// Complete is set when the processor's history was exhausted, as opposed
	// to the run stopping at its creation limit.
	Complete bool `json:"complete"`
}

// Reconciler walks the processor's historical charge record page by page,
// from the persisted bookmark toward older charges, and feeds each charge
// through the same upsert engine the live webhook path uses. Interrupted runs
// resume from the bookmark; redelivered charges fall out as no-ops.
type Reconciler struct {
	db        *gorm.DB
	engine    *Engine
	processor payments.Processor
	log       *zap.Logger
}

func NewReconciler(db *gorm.DB, engine *Engine, processor payments.Processor, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{db: db, engine: engine, processor: processor, log: log}
}

// Run backfills up to limit invoices for the account, paging pageSize charges
// at a time. The bookmark only advances after a fully processed page, so a
// failure mid-page replays that page on the next run instead of skipping it.
func (r *Reconciler) Run(ctx context.Context, accountID string, limit int, pageSize int64) (Report, error) {
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if limit < 1 {
		limit = int(pageSize)
	}

	cursor, err := r.bookmark(ctx, accountID)
	if err != nil {
		return Report{}, err
	}

	report := Report{Cursor: cursor}
	for report.Created < limit {
		page, err := r.processor.ListCharges(ctx, cursor, pageSize)
		if err != nil {
			return report, err
		}
		if len(page.Charges) == 0 {
			report.Complete = true
			break
		}
		report.Pages++

		for _, charge := range page.Charges {
			ev, err := NormalizeCharge(charge)
			if err != nil {
				// Malformed records in the history are logged and skipped;
				// they must not wedge the whole run.
				r.log.Warn("skipping malformed charge",
					zap.String("account_id", accountID),
					zap.String("charge_id", charge.ID),
					zap.Error(err))
				report.Skipped++
				continue
			}
			result, err := r.engine.Apply(ctx, accountID, ev)
			if err != nil {
				return report, err
			}
			if result == ResultCreated {
				report.Created++
			} else {
				report.Skipped++
			}
		}

		cursor = page.Charges[len(page.Charges)-1].ID
		if err := r.advanceBookmark(ctx, accountID, cursor); err != nil {
			return report, err
		}
		report.Cursor = cursor

		if !page.HasMore {
			report.Complete = true
			break
		}
	}

	r.log.Info("reconciliation run finished",
		zap.String("account_id", accountID),
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("pages", report.Pages),
		zap.Bool("complete", report.Complete))
	return report, nil
}

// bookmark returns the resume cursor: the persisted bookmark when present,
// otherwise the oldest already-booked charge reference. Accounts with no
// processor invoices at all start from the newest charge.
func (r *Reconciler) bookmark(ctx context.Context, accountID string) (string, error) {
	var mark models.SyncBookmark
	err := r.db.WithContext(ctx).First(&mark, "account_id = ?", accountID).Error
	if err == nil {
		return mark.OldestChargeID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var invoice models.Invoice
	err = r.db.WithContext(ctx).
		Where("account_id = ? AND stripe_charge_id IS NOT NULL", accountID).
		Order("id ASC").
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return *invoice.StripeChargeID, nil
}

func (r *Reconciler) advanceBookmark(ctx context.Context, accountID, chargeID string) error {
	mark := models.SyncBookmark{
		AccountID:      accountID,
		OldestChargeID: chargeID,
		UpdatedAt:      time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"oldest_charge_id", "updated_at"}),
	}).Create(&mark).Error
}
