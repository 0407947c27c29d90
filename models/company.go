package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompanyProfile is the "bill-from" origin profile stamped onto invoices that are
// materialized from processor charges. One profile per account may be flagged as
// default; when none is, the most recently created profile is used as fallback.
type CompanyProfile struct {
	Id           string `json:"id" gorm:"primaryKey"`
	AccountID    string `json:"-" gorm:"index;not null"`
	BillFrom     string `json:"bill_from" gorm:"not null"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Default      bool   `json:"default"`

	CreatedAt int64 `json:"created_at" gorm:"autoCreateTime"`
}

func (profile *CompanyProfile) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	profile.Id = uuid.NewString()
	return
}
