package model

import (
	"time"
)

const (
	AccountTypeSavings      = "savings"
	AccountTypeCurrent      = "current"
	AccountTypeFixedDeposit = "fixed-deposit"
)

// ValidAccountType reports whether t is a recognized account type.
func ValidAccountType(t string) bool {
	switch t {
	case AccountTypeSavings, AccountTypeCurrent, AccountTypeFixedDeposit:
		return true
	}
	return false
}

// Account holds a user's balance in minor currency units.
//
// The account number is generated once, at creation, and is immutable. The
// unique index on it is authoritative: the generator only proposes a number,
// the store rejects duplicates.
type Account struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountNumber string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"account_number"`
	AccountType   string    `gorm:"type:varchar(20);not null" json:"account_type"`
	Balance       int64     `gorm:"not null;default:0" json:"balance"` // minor units, never negative
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
