package models

import "time"

// SyncBookmark records, per account, the oldest charge reference that has been
// fully ingested by the backfill reconciler. It only ever advances (to older
// charges); a partially processed page never moves it.
type SyncBookmark struct {
	AccountID     string    `json:"account_id" gorm:"primaryKey"`
	OldestChargeID string    `json:"oldest_charge_id" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InvoiceSequence is the per-account monotonic counter behind invoice numbering.
// NextValue is only ever moved by a single conditional UPDATE ... RETURNING, so
// concurrent allocators cannot observe the same value.
type InvoiceSequence struct {
	AccountID string `gorm:"primaryKey"`
	NextValue int64  `gorm:"not null"`
}
