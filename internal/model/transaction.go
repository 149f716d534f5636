package model

import (
	"time"
)

const (
	TransactionTypeDeposit  = "deposit"
	TransactionTypeWithdraw = "withdraw"
	// TransactionTypeTransfer is the outbound leg of a transfer. The inbound
	// leg on the destination account is recorded as a deposit.
	TransactionTypeTransfer = "transfer"
)

// Transaction is one row of the append-only ledger log. Rows are only ever
// created as a side effect of a balance mutation, never updated or deleted.
//
// CreatedAt is the sole ordering key for the daily-limit windows.
type Transaction struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	AccountID int64     `gorm:"index;not null" json:"account_id"`
	Type      string    `gorm:"type:varchar(20);index;not null" json:"type"`
	Amount    int64     `gorm:"not null" json:"amount"` // minor units, always positive
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
