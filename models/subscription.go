package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription mirrors a recurring billing agreement at the processor. The
// external subscription id is the primary key; rows are status-transitioned by
// lifecycle events and never deleted. Out-of-order protection lives in the
// upsert path (sync.Engine), which refuses to regress CurrentPeriodEnd and,
// within one period, the notification timestamp OccurredAt.
type Subscription struct {
	ID               string `json:"id" gorm:"primaryKey"`
	AccountID        string `json:"-" gorm:"index;not null"`
	StripeCustomerID string `json:"customer" gorm:"index"`

	Status             string     `json:"status" gorm:"type:VARCHAR(20)"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end" gorm:"index"`
	CancelAt           *time.Time `json:"cancel_at"`
	CanceledAt         *time.Time `json:"canceled_at"`

	// Timestamp of the notification that produced the current row state.
	OccurredAt time.Time `json:"-"`

	StripeEventID string         `json:"-"`
	Metadata      datatypes.JSON `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerLink maps a processor customer reference to the local account. It is
// established by a completed checkout and consumed when subscription events need
// to resolve their tenant.
type CustomerLink struct {
	StripeCustomerID string    `json:"stripe_customer_id" gorm:"primaryKey"`
	AccountID        string    `json:"account_id" gorm:"index;not null"`
	CreatedAt        time.Time `json:"created_at"`
}
