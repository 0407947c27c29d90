package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"invoicing-backend/models"
	"invoicing-backend/payments"
	"invoicing-backend/utils"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result describes the effect an Apply call had on durable state.
type Result string

const (
	ResultCreated Result = "created"
	ResultUpdated Result = "updated"
	// ResultSkipped is a successful no-op: redelivered, stale, or not
	// applicable to this account.
	ResultSkipped Result = "skipped"
)

const (
	maxAllocationAttempts    = 3
	chargeLineDescription    = "Stripe payment"
	defaultThankYouNote      = "Thank you for your business!"
	invoiceEmailDelay        = 5 * time.Second
	checkoutModeSubscription = "subscription"
)

// EmailScheduler queues a deferred invoice email. Fire-and-forget: the engine
// never observes the outcome, and a failed send never rolls back the event.
type EmailScheduler interface {
	ScheduleInvoiceEmail(accountID string, invoiceID uint, delay time.Duration)
}

// Engine applies canonical sync events to durable state, exactly-once in
// effect. The backing store is the only synchronization point: idempotence and
// ordering rest on its uniqueness constraints and conditional writes, never on
// in-process state.
type Engine struct {
	db        *gorm.DB
	processor payments.Processor
	mail      EmailScheduler
	cache     *StatusCache
	log       *zap.Logger
}

// NewEngine wires an engine for one account's processing. processor is only
// needed for checkout completion (it retrieves the subscription and default
// payment method); mail and cache may be nil.
func NewEngine(db *gorm.DB, processor payments.Processor, mail EmailScheduler, cache *StatusCache, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		db:        db,
		processor: processor,
		mail:      mail,
		cache:     cache,
		log:       log,
	}
}

// Apply dispatches a canonical event. A nil event (unrecognized notification)
// is a successful no-op.
func (e *Engine) Apply(ctx context.Context, accountID string, event SyncEvent) (Result, error) {
	switch ev := event.(type) {
	case nil:
		return ResultSkipped, nil
	case ChargeSucceeded:
		return e.applyCharge(ctx, accountID, ev)
	case PaymentIntentSucceeded:
		return e.applyPaymentIntent(ctx, accountID, ev)
	case SubscriptionChanged:
		return e.applySubscription(ctx, ev)
	case CheckoutCompleted:
		return e.applyCheckout(ctx, accountID, ev)
	default:
		return ResultSkipped, fmt.Errorf("unsupported sync event %T", event)
	}
}

// applyCharge materializes an invoice for a succeeded charge. The per-account
// uniqueness of stripe_charge_id makes redelivery a no-op; the per-account
// uniqueness of invoice_number turns allocation races into bounded retries.
// Allocation and insert share one transaction: a failed insert rolls the
// counter back, so a lost race never leaves a hole in the number sequence.
func (e *Engine) applyCharge(ctx context.Context, accountID string, ev ChargeSucceeded) (Result, error) {
	existing, err := e.chargeAlreadyBooked(ctx, accountID, ev.ChargeRef)
	if err != nil {
		return ResultSkipped, err
	}
	if existing {
		return ResultSkipped, nil
	}

	profile, err := e.originProfile(ctx, accountID)
	if err != nil {
		return ResultSkipped, err
	}

	var account models.Account
	if err := e.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return ResultSkipped, fmt.Errorf("load account: %w", err)
	}
	note := account.ThankYouNote
	if note == "" {
		note = defaultThankYouNote
	}

	total := utils.AmountFromMinorUnits(ev.Amount, ev.Currency)
	occurredAt := ev.OccurredAt

	var invoiceID uint
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := NewAllocator(tx).Next(ctx, accountID)
			if err != nil {
				return err
			}

			invoice := models.Invoice{
				AccountID:     accountID,
				InvoiceNumber: number,
				Origin:        models.OriginProcessorCharge,

				StripeChargeID:      &ev.ChargeRef,
				StripePaymentIntent: optional(ev.PaymentIntentRef),
				StripeCustomer:      optional(ev.CustomerRef),

				Currency:  ev.Currency,
				Total:     total,
				AmountDue: total,

				// Both flags: the processor confirmed the payment, and the manual
				// ledger view should agree.
				PaidManual:    true,
				PaidProcessor: true,

				BillTo:             ev.Billing.Name,
				BillToAddressLine1: ev.Billing.AddressLine1,
				BillToAddressLine2: ev.Billing.AddressLine2,
				BillToCity:         ev.Billing.City,
				BillToState:        ev.Billing.State,
				BillToPostalCode:   ev.Billing.PostalCode,
				BillToCountry:      ev.Billing.Country,
				BillToEmail:        ev.Billing.Email,
				BillToPhone:        ev.Billing.Phone,

				BillFrom:             profile.BillFrom,
				BillFromAddressLine1: profile.AddressLine1,
				BillFromAddressLine2: profile.AddressLine2,
				BillFromCity:         profile.City,
				BillFromState:        profile.State,
				BillFromPostalCode:   profile.PostalCode,
				BillFromCountry:      profile.Country,
				BillFromEmail:        profile.Email,
				BillFromPhone:        profile.Phone,

				Items: []models.InvoiceItem{{
					Description: chargeLineDescription,
					Quantity:    1,
					UnitPrice:   total,
					Subtotal:    total,
				}},

				ThankYouNote: note,
				DateOfIssue:  &occurredAt,
			}

			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			invoiceID = invoice.ID
			return nil
		})
		if err == nil {
			break
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return ResultSkipped, err
		}

		// Two constraints can fire here; either way the rollback returned the
		// allocated number. A charge-ref duplicate means a concurrent delivery
		// won the race: done. A number duplicate means the allocation lost to a
		// racing writer: re-allocate.
		booked, checkErr := e.chargeAlreadyBooked(ctx, accountID, ev.ChargeRef)
		if checkErr != nil {
			return ResultSkipped, checkErr
		}
		if booked {
			return ResultSkipped, nil
		}
		e.log.Warn("invoice number collision, re-allocating",
			zap.String("account_id", accountID),
			zap.String("charge_id", ev.ChargeRef),
			zap.Int("attempt", attempt+1))
	}
	if invoiceID == 0 {
		return ResultSkipped, ErrAllocationFailed
	}

	e.log.Info("invoice created from charge",
		zap.String("account_id", accountID),
		zap.String("charge_id", ev.ChargeRef),
		zap.Uint("invoice_id", invoiceID))

	// The write is committed; the email is a deferred side effect whose
	// failure never bubbles back into event processing.
	if e.mail != nil {
		e.mail.ScheduleInvoiceEmail(accountID, invoiceID, invoiceEmailDelay)
	}
	return ResultCreated, nil
}

func (e *Engine) chargeAlreadyBooked(ctx context.Context, accountID, chargeRef string) (bool, error) {
	var count int64
	err := e.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("account_id = ? AND stripe_charge_id = ?", accountID, chargeRef).
		Count(&count).Error
	return count > 0, err
}

// originProfile returns the account's default bill-from profile, falling back
// to the most recently created one. Live webhook processing and backfill both
// fail with ErrNoOriginProfile when none exists.
func (e *Engine) originProfile(ctx context.Context, accountID string) (*models.CompanyProfile, error) {
	var profile models.CompanyProfile
	err := e.db.WithContext(ctx).
		Where("account_id = ? AND \"default\" = ?", accountID, true).
		First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = e.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoOriginProfile
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// applyPaymentIntent upserts with pure overwrite semantics: intents are
// immutable once succeeded, so there is no ordering hazard.
func (e *Engine) applyPaymentIntent(ctx context.Context, accountID string, ev PaymentIntentSucceeded) (Result, error) {
	metadata, _ := json.Marshal(ev.Metadata)
	intent := models.PaymentIntent{
		ID:               ev.IntentRef,
		AccountID:        accountID,
		Amount:           utils.AmountFromMinorUnits(ev.Amount, ev.Currency),
		Currency:         ev.Currency,
		Status:           ev.Status,
		StripeCustomerID: ev.CustomerRef,
		PaymentMethodID:  ev.PaymentMethodRef,
		ReceiptEmail:     ev.ReceiptEmail,
		StripeEventID:    ev.EventID,
		Metadata:         datatypes.JSON(metadata),
		OccurredAt:       ev.OccurredAt,
	}

	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&intent).Error
	if err != nil {
		return ResultSkipped, err
	}
	return ResultUpdated, nil
}

// applySubscription resolves the tenant through the customer mapping and
// upserts the subscription row. The conditional update refuses to regress
// current_period_end and, on an equal period end, the notification timestamp,
// so a late-arriving stale event is a successful no-op and can never clobber a
// newer state. A cancellation keeps its period bounds, which is why the
// timestamp tie-break matters: without it a redelivered older "active" event
// would resurrect a canceled row.
func (e *Engine) applySubscription(ctx context.Context, ev SubscriptionChanged) (Result, error) {
	var link models.CustomerLink
	err := e.db.WithContext(ctx).First(&link, "stripe_customer_id = ?", ev.CustomerRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ResultSkipped, ErrUnknownCustomer
	}
	if err != nil {
		return ResultSkipped, err
	}

	metadata, _ := json.Marshal(ev.Metadata)
	sub := models.Subscription{
		ID:                 ev.SubscriptionRef,
		AccountID:          link.AccountID,
		StripeCustomerID:   ev.CustomerRef,
		Status:             ev.Status,
		CurrentPeriodStart: ev.PeriodStart,
		CurrentPeriodEnd:   ev.PeriodEnd,
		CancelAt:           ev.CancelAt,
		CanceledAt:         ev.CanceledAt,
		OccurredAt:         ev.OccurredAt,
		StripeEventID:      ev.EventID,
		Metadata:           datatypes.JSON(metadata),
	}

	res := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "current_period_start", "current_period_end",
			"cancel_at", "canceled_at", "occurred_at", "stripe_event_id",
			"metadata", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "subscriptions.current_period_end < excluded.current_period_end" +
				" OR (subscriptions.current_period_end = excluded.current_period_end" +
				" AND subscriptions.occurred_at <= excluded.occurred_at)"},
		}},
	}).Create(&sub)
	if res.Error != nil {
		return ResultSkipped, res.Error
	}
	if res.RowsAffected == 0 {
		e.log.Info("discarding stale subscription event",
			zap.String("subscription_id", ev.SubscriptionRef),
			zap.Time("event_period_end", ev.PeriodEnd))
		return ResultSkipped, nil
	}

	if e.cache != nil {
		e.cache.Set(ev.SubscriptionRef, ev.Status)
	}
	return ResultUpdated, nil
}

// applyCheckout establishes the customer-to-account mapping, pulls the live
// subscription state, and copies the default payment method's billing contact
// onto the account. Incomplete contacts are skipped without error.
func (e *Engine) applyCheckout(ctx context.Context, accountID string, ev CheckoutCompleted) (Result, error) {
	if ev.Mode != checkoutModeSubscription {
		return ResultSkipped, nil
	}

	link := models.CustomerLink{
		StripeCustomerID: ev.CustomerRef,
		AccountID:        accountID,
	}
	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id"}),
	}).Create(&link).Error
	if err != nil {
		return ResultSkipped, err
	}

	if e.processor == nil || ev.SubscriptionRef == "" {
		return ResultUpdated, nil
	}

	sub, err := e.processor.RetrieveSubscription(ctx, ev.SubscriptionRef)
	if err != nil {
		return ResultSkipped, fmt.Errorf("retrieve subscription: %w", err)
	}
	if _, err := e.applySubscription(ctx, SubscriptionChanged{
		SubscriptionRef: sub.ID,
		CustomerRef:     ev.CustomerRef,
		Status:          sub.Status,
		PeriodStart:     sub.CurrentPeriodStart,
		PeriodEnd:       sub.CurrentPeriodEnd,
		CancelAt:        sub.CancelAt,
		CanceledAt:      sub.CanceledAt,
		Kind:            SubscriptionCreated,
		// A live retrieve reflects the current state, so it outranks any
		// notification delivered so far.
		OccurredAt: time.Now().UTC(),
		EventID:    ev.EventID,
	}); err != nil {
		return ResultSkipped, err
	}

	if sub.DefaultPaymentMethodID == "" {
		return ResultUpdated, nil
	}
	method, err := e.processor.RetrievePaymentMethod(ctx, sub.DefaultPaymentMethodID)
	if err != nil {
		return ResultSkipped, fmt.Errorf("retrieve payment method: %w", err)
	}
	if !method.Billing.Complete() {
		e.log.Info("incomplete billing details, leaving account contact untouched",
			zap.String("account_id", accountID),
			zap.String("payment_method_id", method.ID))
		return ResultUpdated, nil
	}

	address, _ := json.Marshal(map[string]string{
		"line1":       method.Billing.AddressLine1,
		"line2":       method.Billing.AddressLine2,
		"city":        method.Billing.City,
		"state":       method.Billing.State,
		"postal_code": method.Billing.PostalCode,
		"country":     method.Billing.Country,
	})
	methodBlob, _ := json.Marshal(map[string]string{"id": method.ID, "type": method.Type})
	err = e.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"billing_name":    method.Billing.Name,
			"billing_phone":   method.Billing.Phone,
			"billing_address": datatypes.JSON(address),
			"payment_method":  datatypes.JSON(methodBlob),
		}).Error
	if err != nil {
		return ResultSkipped, err
	}
	return ResultUpdated, nil
}

// SubscriptionStatus reads a subscription's status through the optional
// short-TTL cache. The store stays authoritative: a cache miss always reads
// through, and cached values are best effort only.
func (e *Engine) SubscriptionStatus(ctx context.Context, subscriptionID string) (string, error) {
	if e.cache != nil {
		if status, ok := e.cache.Get(subscriptionID); ok {
			return status, nil
		}
	}
	var sub models.Subscription
	if err := e.db.WithContext(ctx).First(&sub, "id = ?", subscriptionID).Error; err != nil {
		return "", err
	}
	if e.cache != nil {
		e.cache.Set(sub.ID, sub.Status)
	}
	return sub.Status, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
